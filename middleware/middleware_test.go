package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/smartfarmlink/smartfarm-backend-go/utils"
)

const testSecret = "test-secret"

func whoami(c echo.Context) error {
	id, _ := UserID(c)
	return c.String(http.StatusOK, id)
}

func serve(h echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	e.GET("/", h)
	e.ServeHTTP(rec, req)
	return rec
}

func TestIdentity(t *testing.T) {
	token, err := utils.GenerateJWT(testSecret, "b1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	expired, err := utils.GenerateJWT(testSecret, "b1", -time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	tests := []struct {
		name     string
		secret   string
		header   string
		query    string
		wantCode int
		wantBody string
	}{
		{"disabled", "", "", "", http.StatusOK, ""},
		{"valid header", testSecret, "Bearer " + token, "", http.StatusOK, "b1"},
		{"valid query token", testSecret, "", "?token=" + token, http.StatusOK, "b1"},
		{"missing", testSecret, "", "", http.StatusUnauthorized, ""},
		{"wrong scheme", testSecret, "Basic " + token, "", http.StatusUnauthorized, ""},
		{"expired", testSecret, "Bearer " + expired, "", http.StatusUnauthorized, ""},
		{"garbage", testSecret, "Bearer abc.def.ghi", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(Identity(tt.secret)(whoami), req)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && rec.Body.String() != tt.wantBody {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestActingAs(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	if err := ActingAs(c, "anyone"); err != nil {
		t.Fatalf("unauthenticated: %v", err)
	}

	c.Set(userIDKey, "b1")
	if err := ActingAs(c, "b1"); err != nil {
		t.Fatalf("same user: %v", err)
	}
	err := ActingAs(c, "f1")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Limit()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	request := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		return serve(h, req).Code
	}

	for i := 0; i < 2; i++ {
		if code := request("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: code %d", i, code)
		}
	}
	if code := request("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := request("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("other client: code %d", code)
	}

	now = now.Add(visitorTTL + time.Minute)
	rl.getLimiter("10.0.0.3")
	rl.mu.Lock()
	_, kept := rl.visitors["10.0.0.1"]
	rl.mu.Unlock()
	if kept {
		t.Fatal("idle visitor was not swept")
	}
}
