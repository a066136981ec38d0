package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIP(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain ipv4", "79.144.65.173", "79.144.65.173"},
		{"padded", " 79.144.65.173 ", "79.144.65.173"},
		{"quoted", `"79.144.65.173"`, "79.144.65.173"},
		{"ipv4 with port", "79.144.65.173:443", "79.144.65.173"},
		{"ipv6", "2001:db8::1", "2001:db8::1"},
		{"bracketed ipv6", "[2001:db8::1]", "2001:db8::1"},
		{"ipv6 with port", "[2001:db8::1]:8443", "2001:db8::1"},
		{"zoned ipv6", "fe80::1%eth0", "fe80::1"},
		{"mapped ipv4", "::ffff:203.0.113.9", "203.0.113.9"},
		{"garbage", "not-an-ip", ""},
		{"blank", "  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, ok := parseIP(tt.raw)
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestFirstPublic(t *testing.T) {
	got, ok := firstPublic([]string{"10.0.0.1", "2606:4700::1111", "192.168.1.4", "8.8.8.8"})
	assert.True(t, ok)
	assert.Equal(t, "8.8.8.8", got)

	got, ok = firstPublic([]string{"127.0.0.1", "2606:4700::1111"})
	assert.True(t, ok)
	assert.Equal(t, "2606:4700::1111", got)

	_, ok = firstPublic([]string{"127.0.0.1", "fc00::1", ""})
	assert.False(t, ok)
}

func TestForwardedFor(t *testing.T) {
	got := forwardedFor(`for=192.0.2.60;proto=http;by=203.0.113.43, For="[2001:db8:cafe::17]:4711"`)
	assert.Equal(t, []string{"192.0.2.60", `"[2001:db8:cafe::17]:4711"`}, got)
}
