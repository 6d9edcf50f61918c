package httpserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Clark-Hu/store-ratings/internal/config"
	"github.com/Clark-Hu/store-ratings/internal/domain"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{" 42 ", 42, false},
		{"9223372036854775807", 9223372036854775807, false},
		{"", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"1.5", 0, true},
		{"9223372036854775808", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseID(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseID(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("parseID(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRespondServiceError(t *testing.T) {
	srv := New(config.Config{}, nil, nil, nil)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domain.ValidationError("op", "bad"), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"not found", domain.NotFoundError("op", "gone"), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", domain.ConflictError("op", "dup"), http.StatusConflict, "CONFLICT"},
		{"unauthenticated", domain.NewError(domain.CodeUnauthenticated, "op", "no", nil), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"retryable", domain.NewError(domain.CodeRetryable, "op", "busy", nil), http.StatusServiceUnavailable, "RETRY_LATER"},
		{"uncoded", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.respondServiceError(rec, tt.err)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			body := decodeError(t, rec)
			if body.Code != tt.code {
				t.Fatalf("code = %s, want %s", body.Code, tt.code)
			}
		})
	}
}

func TestVerifyBearer(t *testing.T) {
	srv := New(config.Config{AuthToken: "secret"}, nil, nil, nil)

	cases := map[string]bool{
		"":                false,
		"secret":          false,
		"Bearer wrong":    false,
		"Bearer secret":   true,
		"Bearer  secret ": true,
	}
	for header, want := range cases {
		if got := srv.verifyBearer(header); got != want {
			t.Fatalf("verifyBearer(%q) = %v, want %v", header, got, want)
		}
	}

	empty := New(config.Config{}, nil, nil, nil)
	if empty.verifyBearer("Bearer ") {
		t.Fatalf("empty AUTH_TOKEN must never authorize")
	}
}
