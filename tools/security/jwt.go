package security

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"socialchat/tools/errs"
	"socialchat/tools/ids"
)

// Options controls signing and token lifetime.
type Options struct {
	Secret []byte        // HMAC key
	Alg    string        // HS256/HS384/HS512, HS256 when empty
	TTL    time.Duration // 2h when zero
}

type JWTClaims struct {
	jwtlib.MapClaims
}

// Subject returns the user id carried by the token. Tokens minted by other
// services may put it under userId or id instead of sub.
func (c *JWTClaims) Subject() string {
	for _, k := range []string{"sub", "userId", "id"} {
		if v, ok := c.MapClaims[k]; ok {
			switch t := v.(type) {
			case string:
				if t != "" {
					return t
				}
			case float64:
				return fmt.Sprintf("%.0f", t)
			}
		}
	}
	return ""
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 2 * time.Hour}
}

func Generate(opts Options, userID string, scopes []string) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := jwtlib.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	if len(scopes) > 0 {
		claims["scope"] = scopes
	}

	signed, err := jwtlib.NewWithClaims(method, claims).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, errs.Wrap(err)
	}
	return signed, exp, nil
}

// Verify parses token and checks its HMAC signature and time claims.
// Failures are ErrUnauthorized.
func Verify(opts Options, token string) (*JWTClaims, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, errs.ErrUnauthorized.WrapMsg("missing token")
	}
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	}, jwtlib.WithValidMethods([]string{method.Alg()}))
	if err != nil {
		return nil, errs.ErrUnauthorized.WrapMsg("invalid token", "err", err)
	}
	if !parsed.Valid {
		return nil, errs.ErrUnauthorized.WrapMsg("invalid token")
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errs.ErrUnauthorized.WrapMsg("claims type mismatch")
	}
	return &JWTClaims{claims}, nil
}

// Verifier adapts Verify to the gateway's token verifier contract.
type Verifier struct {
	opts Options
}

func NewVerifier(opts Options) *Verifier {
	return &Verifier{opts: opts}
}

// VerifyToken returns the subject of a valid token. The subject must be a UUID.
func (v *Verifier) VerifyToken(token string) (string, error) {
	claims, err := Verify(v.opts, token)
	if err != nil {
		return "", err
	}
	sub := claims.Subject()
	if sub == "" {
		return "", errs.ErrUnauthorized.WrapMsg("token has no subject")
	}
	// user ids are UUIDs in every store
	if !ids.IsUUID(sub) {
		return "", errs.ErrUnauthorized.WrapMsg("token subject is not a user id", "sub", sub)
	}
	return sub, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
