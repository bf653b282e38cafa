package middleware

import (
	"github.com/gin-gonic/gin"

	midsec "socialchat/middleware/security"
)

type RouteOpt struct {
	IsAuth bool
	// AuthOptional extracts the credential without rejecting requests that lack one.
	AuthOptional bool
}

func (o RouteOpt) chain(handler gin.HandlerFunc) []gin.HandlerFunc {
	if !o.IsAuth {
		return []gin.HandlerFunc{handler}
	}
	opts := midsec.DefaultOptions()
	opts.Required = !o.AuthOptional
	return []gin.HandlerFunc{midsec.Middleware(opts), handler}
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, opt.chain(handler)...)
}
