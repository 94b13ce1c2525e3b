package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys the auth middleware populates for downstream handlers.
const (
	ContextEmail = "email"
	ContextRole  = "role"
)

// JWTAuth validates a Bearer access token signed with HS256 and stores
// the email and role claims in the request context. Requests without a
// valid token are rejected.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := authenticate(c, secret); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// OptionalJWTAuth behaves like JWTAuth but lets anonymous requests
// through; a present-but-invalid token is still rejected. Used on the
// create endpoint, where guests book without an account but admins need
// their role recognized for inline packages.
func OptionalJWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				return next(c)
			}
			if err := authenticate(c, secret); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireRole rejects requests whose authenticated role is not in the
// allowed set. Must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ContextRole).(string)
			if !allowed[role] {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}

func authenticate(c echo.Context, secret string) error {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid claims")
	}

	email, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	c.Set(ContextEmail, email)
	c.Set(ContextRole, role)
	return nil
}
