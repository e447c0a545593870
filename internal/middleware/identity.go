// Package middleware holds the echo middleware specific to this service:
// bearer identity, access logging and HTTP metrics.
package middleware

import (
	"context"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"maskan/internal/auth"
	"maskan/internal/errors"
	"maskan/internal/model"
)

const (
	claimsContextKey = "tokenClaims"
	userContextKey   = "currentUser"
)

type userCtxKey struct{}

// Authenticator resolves the user behind verified token claims.
type Authenticator interface {
	Authenticate(ctx context.Context, claims *auth.Claims) (*model.User, error)
}

// Identity authenticates the bearer token of every request and attaches the
// resolved user. A request without an Authorization header fails with
// ErrUnauthenticated; any other failure is ErrInvalidToken.
func Identity(tokens auth.TokenService, users Authenticator) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		ContextKey:  claimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return tokens.Verify(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return errors.ErrUnauthenticated
			}
			return errors.ErrInvalidToken
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			claims, ok := c.Get(claimsContextKey).(*auth.Claims)
			if !ok {
				return errors.ErrInvalidToken
			}

			user, err := users.Authenticate(c.Request().Context(), claims)
			if err != nil {
				return err
			}

			c.Set(userContextKey, user)
			c.SetRequest(c.Request().WithContext(WithUser(c.Request().Context(), user)))
			return next(c)
		})
	}
}

// CurrentUser returns the authenticated user of c.
func CurrentUser(c echo.Context) (*model.User, error) {
	user, ok := c.Get(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, errors.ErrUnauthenticated
	}
	return user, nil
}

// CurrentClaims returns the verified token claims of c, or nil.
func CurrentClaims(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsContextKey).(*auth.Claims)
	return claims
}

// WithUser stores user in ctx.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// UserFromContext returns the user stored by WithUser.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(*model.User)
	return user, ok && user != nil
}
