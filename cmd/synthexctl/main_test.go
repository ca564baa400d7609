package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestInitThenInspect(t *testing.T) {
	dir := t.TempDir()
	protocol := filepath.Join(dir, "protocol.toml")
	data := filepath.Join(dir, "data")

	if err := runDefaultConfig([]string{"--out", protocol}); err != nil {
		t.Fatalf("default-config: %v", err)
	}
	if err := runDefaultConfig([]string{"--out", protocol}); err == nil {
		t.Fatalf("expected existing file to be protected")
	}

	var out bytes.Buffer
	if err := runValidate([]string{"--protocol", protocol}, &out); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := runInit([]string{"--protocol", protocol, "--data", data}, &out); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := runInit([]string{"--protocol", protocol, "--data", data}, &out); err == nil {
		t.Fatalf("expected second init to fail")
	}

	out.Reset()
	if err := runState([]string{"--data", data}, &out); err != nil {
		t.Fatalf("state: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("state output: %v", err)
	}
	if _, ok := decoded["assetsList"]; !ok {
		t.Fatalf("state output missing registry: %s", out.String())
	}

	err := runAccount([]string{"--data", data, "--owner", "0x00000000000000000000000000000000000000b1"}, &out)
	if err == nil || !strings.Contains(err.Error(), "no exchange account") {
		t.Fatalf("expected missing account error, got %v", err)
	}
}

func TestStateRequiresGenesis(t *testing.T) {
	var out bytes.Buffer
	if err := runState([]string{"--data", filepath.Join(t.TempDir(), "empty")}, &out); err == nil {
		t.Fatalf("expected uninitialised store to be rejected")
	}
}

func TestIssueToken(t *testing.T) {
	now := time.Now()
	signed, err := issueToken("secret", "0x00000000000000000000000000000000000000b1", "exchange:trade  exchange:oracle", "synthex", "", time.Minute, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parsed, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["scope"] != "exchange:trade exchange:oracle" || claims["iss"] != "synthex" {
		t.Fatalf("unexpected claims %v", claims)
	}
	if _, err := issueToken("secret", "alice", "", "", "", time.Minute, now); err == nil {
		t.Fatalf("expected non-address subject to be rejected")
	}
}
