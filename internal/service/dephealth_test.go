package service

import "testing"

func TestJWKSHealthPath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"path из URL", "https://idp.example.com/realms/media/protocol/openid-connect/certs", "/realms/media/protocol/openid-connect/certs"},
		{"без path", "https://idp.example.com", "/health"},
		{"некорректный URL", "://bad", "/health"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jwksHealthPath(tt.in); got != tt.want {
				t.Errorf("jwksHealthPath(%q) = %q, ожидалось %q", tt.in, got, tt.want)
			}
		})
	}
}
