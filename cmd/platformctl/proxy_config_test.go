// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestProxyConfigurator(t *testing.T, env map[string]string) *ProxyConfigurator {
	t.Helper()
	p := NewProxyConfigurator(testLogger())
	p.configPath = filepath.Join(t.TempDir(), "config.json")
	p.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return p
}

func readConfigDoc(t *testing.T, path string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("config is not valid JSON: %v\n%s", err, raw)
	}
	return doc
}

func proxyDefaults(t *testing.T, doc map[string]any) map[string]any {
	t.Helper()
	proxies, ok := doc["proxies"].(map[string]any)
	if !ok {
		t.Fatalf("config has no proxies block: %v", doc)
	}
	defaults, ok := proxies["default"].(map[string]any)
	if !ok {
		t.Fatalf("proxies has no default block: %v", proxies)
	}
	return defaults
}

// TestProxyConfigurator_NoProxyVars verifies the file is untouched
// when the host has no proxy configuration.
func TestProxyConfigurator_NoProxyVars(t *testing.T) {
	p := newTestProxyConfigurator(t, nil)
	if err := p.Apply(); err != nil {
		t.Fatalf("Apply() unexpected error: %v", err)
	}
	if _, err := os.Stat(p.configPath); !os.IsNotExist(err) {
		t.Errorf("config file created despite no proxy vars")
	}
}

// TestProxyConfigurator_CreatesFile verifies a missing config is
// created with the proxies block.
func TestProxyConfigurator_CreatesFile(t *testing.T) {
	p := newTestProxyConfigurator(t, map[string]string{
		"http_proxy":  "http://proxy.corp:3128",
		"HTTPS_PROXY": "http://proxy.corp:3129",
		"no_proxy":    "localhost,127.0.0.1",
	})

	if err := p.Apply(); err != nil {
		t.Fatalf("Apply() unexpected error: %v", err)
	}

	defaults := proxyDefaults(t, readConfigDoc(t, p.configPath))
	if defaults["httpProxy"] != "http://proxy.corp:3128" {
		t.Errorf("httpProxy = %v", defaults["httpProxy"])
	}
	if defaults["httpsProxy"] != "http://proxy.corp:3129" {
		t.Errorf("httpsProxy = %v (uppercase env should be honored)", defaults["httpsProxy"])
	}
	if defaults["noProxy"] != "localhost,127.0.0.1" {
		t.Errorf("noProxy = %v", defaults["noProxy"])
	}
}

// TestProxyConfigurator_PreservesUnrelatedKeys verifies a structured
// merge keeps auths and other blocks intact.
func TestProxyConfigurator_PreservesUnrelatedKeys(t *testing.T) {
	p := newTestProxyConfigurator(t, map[string]string{
		"http_proxy": "http://proxy.corp:3128",
	})

	existing := `{
  "auths": {"ghcr.io": {"auth": "dG9rZW4="}},
  "credHelpers": {"gcr.io": "gcloud"},
  "proxies": {"default": {"httpProxy": "http://old:8080", "ftpProxy": "http://ftp:21"}}
}`
	if err := os.WriteFile(p.configPath, []byte(existing), 0600); err != nil {
		t.Fatalf("seeding config: %v", err)
	}

	if err := p.Apply(); err != nil {
		t.Fatalf("Apply() unexpected error: %v", err)
	}

	doc := readConfigDoc(t, p.configPath)
	if _, ok := doc["auths"]; !ok {
		t.Error("auths block lost during merge")
	}
	if _, ok := doc["credHelpers"]; !ok {
		t.Error("credHelpers block lost during merge")
	}

	defaults := proxyDefaults(t, doc)
	if defaults["httpProxy"] != "http://proxy.corp:3128" {
		t.Errorf("httpProxy = %v, want updated value", defaults["httpProxy"])
	}
	if defaults["ftpProxy"] != "http://ftp:21" {
		t.Errorf("ftpProxy = %v, unrelated proxy key should survive", defaults["ftpProxy"])
	}
}

// TestProxyConfigurator_LossyFallback verifies unparseable JSON falls
// back to in-place value substitution.
func TestProxyConfigurator_LossyFallback(t *testing.T) {
	p := newTestProxyConfigurator(t, map[string]string{
		"http_proxy": "http://proxy.corp:3128",
	})

	// Trailing comma makes this invalid JSON.
	broken := `{"proxies": {"default": {"httpProxy": "http://old:8080",}}}`
	if err := os.WriteFile(p.configPath, []byte(broken), 0600); err != nil {
		t.Fatalf("seeding config: %v", err)
	}

	if err := p.Apply(); err != nil {
		t.Fatalf("Apply() unexpected error: %v", err)
	}

	raw, err := os.ReadFile(p.configPath)
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	if !strings.Contains(string(raw), `"httpProxy": "http://proxy.corp:3128"`) {
		t.Errorf("lossy substitution did not rewrite httpProxy:\n%s", raw)
	}
	// Still broken JSON; the fallback is lossy, not a repair.
	if !strings.Contains(string(raw), ",}") {
		t.Errorf("fallback unexpectedly restructured the file:\n%s", raw)
	}
}

// TestProxyConfigurator_LossyFallbackNoKeys verifies the fallback
// leaves a broken file alone when no proxy keys exist to rewrite.
func TestProxyConfigurator_LossyFallbackNoKeys(t *testing.T) {
	p := newTestProxyConfigurator(t, map[string]string{
		"http_proxy": "http://proxy.corp:3128",
	})

	broken := `{"auths": {,}}`
	if err := os.WriteFile(p.configPath, []byte(broken), 0600); err != nil {
		t.Fatalf("seeding config: %v", err)
	}

	if err := p.Apply(); err != nil {
		t.Fatalf("Apply() unexpected error: %v", err)
	}
	raw, _ := os.ReadFile(p.configPath)
	if string(raw) != broken {
		t.Errorf("file modified despite no rewritable keys:\n%s", raw)
	}
}
