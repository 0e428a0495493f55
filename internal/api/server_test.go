package api

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func TestParseTimeParam(t *testing.T) {
	loc := time.FixedZone("UTC+02:00", 2*3600)
	tests := []struct {
		in   string
		want *time.Time
	}{
		{"2025-08-20T12:00:00Z", timePtr(time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC))},
		{"2025-08-20", timePtr(time.Date(2025, 8, 20, 0, 0, 0, 0, loc))},
		{"", nil},
		{"yesterday", nil},
	}
	for _, tt := range tests {
		got := parseTimeParam(tt.in, loc)
		if (got == nil) != (tt.want == nil) {
			t.Errorf("parseTimeParam(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		if got != nil && !got.Equal(*tt.want) {
			t.Errorf("parseTimeParam(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"goods,rail", []string{"goods", "rail"}},
		{" goods , , rail ", []string{"goods", "rail"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := splitCSV(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitCSV(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJWTMiddleware(t *testing.T) {
	const secret = "test-secret"
	t.Setenv("JWT_SECRET", secret)

	s := &Server{}
	handler := s.jwtMiddleware(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user@example.co.za",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/user/preferences", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			if err := handler(e.NewContext(req, rec)); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestJWTMiddlewarePassThroughWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	s := &Server{}
	handler := s.jwtMiddleware(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/user/preferences", nil)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want open route without a configured secret", rec.Code)
	}
}
