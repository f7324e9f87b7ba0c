package netguard

import (
	"net"
	"testing"
)

func TestIsBlocked(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1":       true,
		"10.1.2.3":        true,
		"172.31.255.255":  true,
		"172.32.0.1":      false,
		"192.168.1.1":     true,
		"169.254.169.254": true,
		"8.8.8.8":         false,
		"::1":             true,
		"fd00::1":         true,
		"2001:4860::8888": false,
	}
	for in, want := range cases {
		if got := IsBlocked(net.ParseIP(in)); got != want {
			t.Errorf("IsBlocked(%s) = %v, want %v", in, got, want)
		}
	}
	if IsBlocked(nil) {
		t.Error("nil IP must not be blocked")
	}
}

func TestIsPrivateHost(t *testing.T) {
	cases := map[string]bool{
		"192.168.1.1":  true,
		"[fe80::1]":    true,
		"example.com":  false,
		"localhost":    false,
		"":             false,
		"93.184.216.3": false,
	}
	for in, want := range cases {
		if got := IsPrivateHost(in); got != want {
			t.Errorf("IsPrivateHost(%q) = %v, want %v", in, got, want)
		}
	}
}
