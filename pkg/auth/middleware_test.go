package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cert-studio/studio-backend/pkg/apperr"
)

func newRouter(v *Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", v.Middleware(), func(c *gin.Context) {
		owner, err := Owner(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, owner)
	})
	return r
}

func get(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue("Ana@Example.com", time.Hour)
	require.NoError(t, err)

	w := get(newRouter(v), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana@example.com", w.Body.String())
}

func TestMiddlewareRejects(t *testing.T) {
	v := NewVerifier("secret")
	expired, err := v.Issue("ana@example.com", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewVerifier("other").Issue("ana@example.com", time.Hour)
	require.NoError(t, err)
	noEmail, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + foreign},
		{"no email", "Bearer " + noEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(newRouter(v), tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Email:            "ana@example.com",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewVerifier("secret").Verify(token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestOwnerWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := Owner(c)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
