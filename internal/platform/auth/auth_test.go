package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(mw echo.MiddlewareFunc, authHeader string) (*echo.HTTPError, echo.Context) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := mw(func(c echo.Context) error { return nil })(c)
	if err == nil {
		return nil, c
	}
	he, _ := err.(*echo.HTTPError)
	return he, c
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{Secret: testSecret})
	he, _ := doRequest(mw, "")
	if he == nil || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", he)
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "8a4076c7-57e3-4a25-b114-41b312fcbf5a",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleDoctor,
	})

	mw := JWTMiddleware(JWTConfig{Secret: testSecret})
	he, c := doRequest(mw, "Bearer "+token)
	if he != nil {
		t.Fatalf("unexpected error: %v", he)
	}

	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "8a4076c7-57e3-4a25-b114-41b312fcbf5a" {
		t.Errorf("unexpected user id: %s", got)
	}
	if got := RoleFromContext(ctx); got != RoleDoctor {
		t.Errorf("unexpected role: %s", got)
	}
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	token := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleNurse,
	})

	mw := JWTMiddleware(JWTConfig{Secret: "other-secret"})
	he, _ := doRequest(mw, "Bearer "+token)
	if he == nil || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", he)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: RoleNurse,
	})

	mw := JWTMiddleware(JWTConfig{Secret: testSecret})
	he, _ := doRequest(mw, "Bearer "+token)
	if he == nil || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", he)
	}
}

func requireRoleCheck(t *testing.T, userRole string, allowed []string) *echo.HTTPError {
	t.Helper()
	token := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: userRole,
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	chain := JWTMiddleware(JWTConfig{Secret: testSecret})(
		RequireRole(allowed...)(func(c echo.Context) error { return nil }))
	err := chain(c)
	if err == nil {
		return nil
	}
	he, _ := err.(*echo.HTTPError)
	return he
}

func TestRequireRole_Allowed(t *testing.T) {
	if he := requireRoleCheck(t, RoleDoctor, []string{RoleDoctor, RoleNurse}); he != nil {
		t.Fatalf("expected doctor to pass, got %v", he)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	if he := requireRoleCheck(t, RoleAdmin, []string{RoleDoctor}); he != nil {
		t.Fatalf("expected admin to pass, got %v", he)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	he := requireRoleCheck(t, RolePatient, []string{RoleDoctor, RoleNurse})
	if he == nil || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", he)
	}
}
