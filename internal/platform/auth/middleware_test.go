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
)

var testSecret = []byte("unit-test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(secret)
	require.NoError(t, err)
	return s
}

func newTestRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{RequireAuth(testSecret)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"sub":  c.GetString(CtxUserIDKey),
			"role": c.GetString(CtxRoleKey),
		})
	})
	r.GET("/protected", handlers...)
	return r
}

func doRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "42",
		"role": RoleMember,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	w := doRequest(newTestRouter(), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sub":"42"`)
	assert.Contains(t, w.Body.String(), `"role":"member"`)
}

func TestRequireAuthRejects(t *testing.T) {
	valid := signToken(t, testSecret, jwt.MapClaims{
		"sub": "42", "role": RoleMember, "exp": time.Now().Add(time.Hour).Unix(),
	})
	wrongKey := signToken(t, []byte("other-secret"), jwt.MapClaims{
		"sub": "42", "exp": time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, testSecret, jwt.MapClaims{
		"sub": "42", "exp": time.Now().Add(-time.Hour).Unix(),
	})
	noSub := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic " + valid},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong signing key", "Bearer " + wrongKey},
		{"expired", "Bearer " + expired},
		{"missing sub", "Bearer " + noSub},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(newTestRouter(), tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin := signToken(t, testSecret, jwt.MapClaims{
		"sub": "1", "role": RoleAdmin, "exp": time.Now().Add(time.Hour).Unix(),
	})
	member := signToken(t, testSecret, jwt.MapClaims{
		"sub": "2", "role": RoleMember, "exp": time.Now().Add(time.Hour).Unix(),
	})

	r := newTestRouter(RequireRole(RoleAdmin))

	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer "+admin).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, "Bearer "+member).Code)
}

func TestDeriveRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, DeriveRole("boss@admin.com"))
	assert.Equal(t, RoleMember, DeriveRole("reader@example.com"))
}
