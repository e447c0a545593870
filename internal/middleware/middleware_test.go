package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"maskan/internal/auth"
	apperrors "maskan/internal/errors"
	"maskan/internal/model"
)

type stubAuthenticator struct {
	users map[string]*model.User
}

func (s *stubAuthenticator) Authenticate(_ context.Context, claims *auth.Claims) (*model.User, error) {
	u, ok := s.users[claims.UserID]
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	return u, nil
}

func newIdentityServer(t *testing.T) (*echo.Echo, *auth.JWTService, *model.User) {
	t.Helper()
	tokens := auth.NewJWTService("test-secret")
	user := &model.User{ID: primitive.NewObjectID(), Name: "Ann", Email: "ann@x.com"}
	authn := &stubAuthenticator{users: map[string]*model.User{user.ID.Hex(): user}}

	e := echo.New()
	e.HTTPErrorHandler = apperrors.HTTPErrorHandler(zaptest.NewLogger(t))
	e.GET("/me", func(c echo.Context) error {
		u, err := CurrentUser(c)
		if err != nil {
			return err
		}
		fromCtx, ok := UserFromContext(c.Request().Context())
		if !ok || fromCtx.ID != u.ID {
			return echo.NewHTTPError(http.StatusInternalServerError, "context user missing")
		}
		if CurrentClaims(c) == nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "claims missing")
		}
		return c.JSON(http.StatusOK, echo.Map{"id": u.ID.Hex()})
	}, Identity(tokens, authn))
	return e, tokens, user
}

func TestIdentity(t *testing.T) {
	e, tokens, user := newIdentityServer(t)

	valid, _, err := tokens.Issue(user.ID.Hex())
	require.NoError(t, err)
	orphan, _, err := tokens.Issue(primitive.NewObjectID().Hex())
	require.NoError(t, err)
	foreign, _, err := auth.NewJWTService("other-secret").Issue(user.ID.Hex())
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"unknown user", "Bearer " + orphan, http.StatusUnauthorized, "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
				assert.NotEmpty(t, body["message"])
			} else {
				assert.Equal(t, user.ID.Hex(), body["id"])
			}
		})
	}
}

func TestCurrentUser_Missing(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, err := CurrentUser(c)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)
}

func TestHTTPMetricsHandlerRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)

	e := echo.New()
	e.HTTPErrorHandler = apperrors.HTTPErrorHandler(zap.NewNop())
	e.Use(metrics.Handler())
	e.GET("/listings/:id", func(c echo.Context) error {
		time.Sleep(5 * time.Millisecond)
		return apperrors.ErrListingNotFound
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listings/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	labels := prometheus.Labels{"method": http.MethodGet, "route": "/listings/:id", "status": "404"}
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Requests.With(labels)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
	assert.NotZero(t, testutil.CollectAndCount(metrics.Duration))
}

func TestHTTPMetrics_ReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)
	second, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)

	assert.Same(t, first.Requests, second.Requests)
}

func TestHTTPMetricsHandlerNoopWhenNil(t *testing.T) {
	e := echo.New()
	e.Use((*HTTPMetrics)(nil).Handler())
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	e := echo.New()
	e.HTTPErrorHandler = apperrors.HTTPErrorHandler(zap.NewNop())
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/forbidden", func(c echo.Context) error { return apperrors.ErrForbidden })

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forbidden", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "request completed", entries[0].Message)
	assert.Equal(t, int64(http.StatusNoContent), entries[0].ContextMap()["status"])
	assert.Equal(t, "request rejected", entries[1].Message)
	assert.Equal(t, "/forbidden", entries[1].ContextMap()["route"])
}
