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

var testSecret = []byte("test-secret")

func signToken(t *testing.T, roles []string, expires time.Time) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "praticien-1",
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Roles: roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func runMiddleware(mw echo.MiddlewareFunc, req *http.Request) (echo.Context, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return c, h(c)
}

func TestMiddleware_ValidToken(t *testing.T) {
	token := signToken(t, []string{"billing"}, time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	c, err := runMiddleware(Middleware(testSecret), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(c.Request().Context()); got != "praticien-1" {
		t.Errorf("expected subject in context, got %q", got)
	}
	roles := RolesFromContext(c.Request().Context())
	if len(roles) != 1 || roles[0] != "billing" {
		t.Errorf("unexpected roles: %v", roles)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := runMiddleware(Middleware(testSecret), req)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	token := signToken(t, []string{"billing"}, time.Now().Add(-time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err := runMiddleware(Middleware(testSecret), req)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired token, got %v", err)
	}
}

func TestMiddleware_WrongScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	_, err := runMiddleware(Middleware(testSecret), req)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong scheme, got %v", err)
	}
}

func TestDevMiddleware_GrantsAdmin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, err := runMiddleware(DevMiddleware(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	roles := RolesFromContext(c.Request().Context())
	if len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("expected admin role, got %v", roles)
	}
}

func requireRoleTest(t *testing.T, userRoles []string, required string, wantPass bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, userRoles)
	req = req.WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())

	h := RequireRole(required)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	err := h(c)
	if wantPass && err != nil {
		t.Errorf("roles %v should satisfy %q: %v", userRoles, required, err)
	}
	if !wantPass && err == nil {
		t.Errorf("roles %v should not satisfy %q", userRoles, required)
	}
}

func TestRequireRole(t *testing.T) {
	requireRoleTest(t, []string{"billing"}, "billing", true)
	requireRoleTest(t, []string{"admin"}, "billing", true)
	requireRoleTest(t, []string{"secretary"}, "billing", false)
	requireRoleTest(t, nil, "billing", false)
}
