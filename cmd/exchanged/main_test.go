package main

import (
	"path/filepath"
	"testing"

	"synthex/gateway/config"
)

func TestResolvePath(t *testing.T) {
	if got := resolvePath("/etc/synthex", "protocol.toml"); got != filepath.Join("/etc/synthex", "protocol.toml") {
		t.Fatalf("relative path not anchored: %s", got)
	}
	if got := resolvePath("/etc/synthex", "/var/lib/p.toml"); got != "/var/lib/p.toml" {
		t.Fatalf("absolute path rewritten: %s", got)
	}
	if got := resolvePath("", " data "); got != "data" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestIsLoopbackAddress(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:8080": true,
		"localhost:8080": true,
		"[::1]:8080":     true,
		"0.0.0.0:8080":   false,
		":8080":          false,
		"bogus":          false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddress(addr); got != want {
			t.Fatalf("%s: expected %t", addr, want)
		}
	}
}

func TestBuildTLSConfigOptional(t *testing.T) {
	cfg, err := buildTLSConfig("", config.SecurityConfig{})
	if err != nil || cfg != nil {
		t.Fatalf("expected no TLS config, got %v %v", cfg, err)
	}
}
