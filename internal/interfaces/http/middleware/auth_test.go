package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge-settle.backend/pkg/jwt"
)

func setupRouter(svc *jwt.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/ping", AuthMiddleware(svc), func(c *gin.Context) {
		userID, _ := GetUserID(c)
		role, _ := GetUserRole(c)
		c.JSON(http.StatusOK, gin.H{"userId": userID.String(), "role": role})
	})
	return r
}

func TestAuthMiddleware_ValidTokenPasses(t *testing.T) {
	svc := jwt.NewJWTService("test-secret", time.Hour, 24*time.Hour)
	pair, err := svc.GenerateTokenPair(uuid.New(), "admin@example.com", "ADMIN")
	require.NoError(t, err)

	r := setupRouter(svc)
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set(AuthorizationHeader, BearerPrefix+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_MissingHeaderRejected(t *testing.T) {
	svc := jwt.NewJWTService("test-secret", time.Hour, 24*time.Hour)
	r := setupRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_MalformedHeaderRejected(t *testing.T) {
	svc := jwt.NewJWTService("test-secret", time.Hour, 24*time.Hour)
	r := setupRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set(AuthorizationHeader, "not-a-bearer-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_InvalidTokenRejected(t *testing.T) {
	svc := jwt.NewJWTService("test-secret", time.Hour, 24*time.Hour)
	r := setupRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set(AuthorizationHeader, BearerPrefix+"garbage.token.value")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ExpiredTokenRejected(t *testing.T) {
	svc := jwt.NewJWTService("test-secret", -time.Hour, 24*time.Hour)
	pair, err := svc.GenerateTokenPair(uuid.New(), "admin@example.com", "ADMIN")
	require.NoError(t, err)

	r := setupRouter(svc)
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set(AuthorizationHeader, BearerPrefix+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_WrongSecretRejected(t *testing.T) {
	issuing := jwt.NewJWTService("issuer-secret", time.Hour, 24*time.Hour)
	pair, err := issuing.GenerateTokenPair(uuid.New(), "admin@example.com", "ADMIN")
	require.NoError(t, err)

	verifying := jwt.NewJWTService("different-secret", time.Hour, 24*time.Hour)
	r := setupRouter(verifying)
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set(AuthorizationHeader, BearerPrefix+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole_RejectsWrongRole(t *testing.T) {
	svc := jwt.NewJWTService("test-secret", time.Hour, 24*time.Hour)
	pair, err := svc.GenerateTokenPair(uuid.New(), "viewer@example.com", "VIEWER")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/ping", AuthMiddleware(svc), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set(AuthorizationHeader, BearerPrefix+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
