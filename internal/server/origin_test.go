package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func testPolicy(origins ...string) *originPolicy {
	return newOriginPolicy(origins, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"exact match", []string{"https://app.example.com"}, "https://app.example.com", true},
		{"case insensitive", []string{"https://App.Example.com"}, "HTTPS://app.example.COM", true},
		{"scheme mismatch", []string{"https://app.example.com"}, "http://app.example.com", false},
		{"host mismatch", []string{"https://app.example.com"}, "https://evil.example.com", false},
		{"missing header", []string{"https://app.example.com"}, "", false},
		{"wildcard allows anything", []string{"*"}, "https://whatever.example.com", true},
		{"wildcard still needs a header", []string{"*"}, "", false},
		{"unparseable origin", []string{"https://app.example.com"}, "::not-a-url", false},
		{"empty allow list", nil, "https://app.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPolicy(tt.allowed...)
			assert.Equal(t, tt.want, p.checkOrigin(requestWithOrigin(tt.origin)))
		})
	}
}

func TestOriginPolicySkipsInvalidConfigEntries(t *testing.T) {
	p := testPolicy("not a url", "", "https://good.example.com")

	assert.True(t, p.allows(requestWithOrigin("https://good.example.com")))
	assert.Len(t, p.allowed, 1)
}
