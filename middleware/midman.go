package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

// MiddlewareManager collects the global chain before the engine is built.
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []gin.HandlerFunc
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

func (m *MiddlewareManager) Add(h ...gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = append(m.mids, h...)
}

func (m *MiddlewareManager) Handlers() []gin.HandlerFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]gin.HandlerFunc{}, m.mids...)
}

// Mount installs the chain, in insertion order, on r.
func (m *MiddlewareManager) Mount(r gin.IRoutes) {
	r.Use(m.Handlers()...)
}
