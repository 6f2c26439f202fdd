package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func withRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, UserRolesKey, roles)
}

var testKey = []byte("test-signing-key")

func signToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(testKey)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	var gotUser string
	h := mw(func(c echo.Context) error {
		gotUser = UserIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, gotUser
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	token := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dr.adams",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:  "Dr Adams",
		Roles: []string{"physician"},
	})

	rec, user := doRequest(t, Middleware(Config{SigningKey: testKey}), "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if user != "dr.adams" {
		t.Errorf("user id = %q, want dr.adams", user)
	}
}

func TestMiddlewareRejectsBadToken(t *testing.T) {
	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage token":  "Bearer not.a.token",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := doRequest(t, Middleware(Config{SigningKey: testKey}), header)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	token := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dr.adams",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	rec, _ := doRequest(t, Middleware(Config{SigningKey: testKey}), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	run := func(roles []string, required ...string) int {
		mw := RequireRole(required...)
		h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		ctx := c.Request().Context()
		ctx = withRoles(ctx, roles)
		c.SetRequest(c.Request().WithContext(ctx))
		if err := h(c); err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec.Code
	}

	if code := run([]string{"physician"}, "physician", "nurse"); code != http.StatusOK {
		t.Errorf("physician refused: %d", code)
	}
	if code := run([]string{"admin"}, "physician"); code != http.StatusOK {
		t.Errorf("admin should pass any role gate: %d", code)
	}
	if code := run([]string{"registrar"}, "physician"); code != http.StatusForbidden {
		t.Errorf("registrar admitted to physician gate: %d", code)
	}
}

func TestDevMiddlewareSetsDefaults(t *testing.T) {
	rec, user := doRequest(t, DevMiddleware(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if user != "dev-clinician" {
		t.Errorf("dev user = %q", user)
	}
}
