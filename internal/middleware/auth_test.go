package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/levelup-events/backend/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setPrincipal(p auth.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextPrincipal, p)
		c.Next()
	}
}

func TestRequireGroup(t *testing.T) {
	tests := []struct {
		name       string
		middleware []gin.HandlerFunc
		wantStatus int
	}{
		{
			"member allowed",
			[]gin.HandlerFunc{setPrincipal(auth.Principal{Authenticated: true, Groups: []string{"admins"}}), RequireGroup("admins")},
			http.StatusOK,
		},
		{
			"non-member forbidden",
			[]gin.HandlerFunc{setPrincipal(auth.Principal{Authenticated: true, Groups: []string{"organizers"}}), RequireGroup("admins")},
			http.StatusForbidden,
		},
		{
			"no groups forbidden",
			[]gin.HandlerFunc{setPrincipal(auth.Principal{Authenticated: true}), RequireGroup("admins")},
			http.StatusForbidden,
		},
		{
			"unauthenticated rejected",
			[]gin.HandlerFunc{RequireGroup("admins")},
			http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		r := gin.New()
		handlers := append(tt.middleware, func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/", handlers...)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		r.ServeHTTP(w, req)

		if w.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.name, w.Code, tt.wantStatus)
		}
	}
}

func TestPrincipalDefaultsToAnonymous(t *testing.T) {
	r := gin.New()
	var got auth.Principal
	r.GET("/", func(c *gin.Context) {
		got = Principal(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got.Authenticated {
		t.Error("missing principal should be anonymous")
	}
}
