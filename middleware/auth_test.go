package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newAuthRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", handler, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"role": c.GetString("role")})
	})
	return router
}

func doRequest(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	router := newAuthRouter(RequireAuth(testSecret))

	token, err := GenerateToken("reader", RoleUser, testSecret, time.Minute)
	require.NoError(t, err)

	w := doRequest(router, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), RoleUser)
}

func TestRequireAuthMissingHeader(t *testing.T) {
	router := newAuthRouter(RequireAuth(testSecret))

	w := doRequest(router, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	router := newAuthRouter(RequireAuth(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthWrongSecret(t *testing.T) {
	router := newAuthRouter(RequireAuth(testSecret))

	token, err := GenerateToken("reader", RoleUser, "other-secret", time.Minute)
	require.NoError(t, err)

	w := doRequest(router, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthExpiredToken(t *testing.T) {
	router := newAuthRouter(RequireAuth(testSecret))

	token, err := GenerateToken("reader", RoleUser, testSecret, -time.Minute)
	require.NoError(t, err)

	w := doRequest(router, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	router := newAuthRouter(RequireAdmin(testSecret))

	adminToken, err := GenerateToken("boss", RoleAdmin, testSecret, time.Minute)
	require.NoError(t, err)
	w := doRequest(router, adminToken)
	assert.Equal(t, http.StatusOK, w.Code)

	userToken, err := GenerateToken("reader", RoleUser, testSecret, time.Minute)
	require.NoError(t, err)
	w = doRequest(router, userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
