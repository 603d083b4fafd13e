// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/unstract/platformctl/pkg/logging"
)

// proxyEnvMapping maps host proxy variables to the keys Docker's client
// configuration expects under proxies.default.
var proxyEnvMapping = []struct {
	envKey    string
	configKey string
}{
	{"http_proxy", "httpProxy"},
	{"https_proxy", "httpsProxy"},
	{"no_proxy", "noProxy"},
}

// ProxyConfigurator propagates host proxy settings into the Docker
// client configuration.
//
// # Description
//
// Corporate hosts often expose http_proxy / https_proxy / no_proxy in
// the shell but the Docker engine spawns build and pull containers with
// its own client config. Apply merges the host values into
// ~/.docker/config.json under proxies.default:
//
//   - Missing file: created with just the proxies block.
//   - Parseable file: edited structurally, preserving every unrelated
//     key (auths, credHelpers, plugins, ...).
//   - Unparseable file: a lossy regex substitution rewrites existing
//     proxy values in place and a warning is reported; keys absent from
//     the broken file are not added.
//
// Hosts with no proxy variables set are left untouched.
type ProxyConfigurator struct {
	configPath string
	lookupEnv  func(string) (string, bool)
	logger     *logging.Logger
}

// NewProxyConfigurator targets ~/.docker/config.json. The path is kept
// overridable for tests via the struct field.
func NewProxyConfigurator(logger *logging.Logger) *ProxyConfigurator {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &ProxyConfigurator{
		configPath: filepath.Join(home, ".docker", "config.json"),
		lookupEnv:  os.LookupEnv,
		logger:     logger,
	}
}

// Apply merges host proxy settings into the client configuration.
// Returns nil without touching the file when no proxy variable is set.
func (p *ProxyConfigurator) Apply() error {
	values := p.hostProxyValues()
	if len(values) == 0 {
		p.logger.Debug("no proxy variables set, skipping engine proxy passthrough")
		return nil
	}

	raw, err := os.ReadFile(p.configPath)
	if os.IsNotExist(err) {
		return p.writeFresh(values)
	}
	if err != nil {
		return fmt.Errorf("reading docker client config %s: %w", p.configPath, err)
	}

	if err := p.mergeStructured(raw, values); err == nil {
		return nil
	}

	p.logger.Warn("docker client config is not valid JSON, falling back to lossy substitution",
		"path", p.configPath,
	)
	return p.substituteLossy(raw, values)
}

// hostProxyValues collects the proxy variables present in the host
// environment, preferring the lowercase spelling.
func (p *ProxyConfigurator) hostProxyValues() map[string]string {
	values := make(map[string]string)
	for _, m := range proxyEnvMapping {
		for _, key := range []string{m.envKey, strings.ToUpper(m.envKey)} {
			if v, ok := p.lookupEnv(key); ok && v != "" {
				values[m.configKey] = v
				break
			}
		}
	}
	return values
}

// writeFresh creates the config file with only the proxies block.
func (p *ProxyConfigurator) writeFresh(values map[string]string) error {
	doc := map[string]any{
		"proxies": map[string]any{"default": toAnyMap(values)},
	}
	if err := os.MkdirAll(filepath.Dir(p.configPath), 0750); err != nil {
		return fmt.Errorf("creating docker config directory: %w", err)
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering docker client config: %w", err)
	}
	if err := os.WriteFile(p.configPath, append(body, '\n'), 0600); err != nil {
		return fmt.Errorf("writing docker client config %s: %w", p.configPath, err)
	}
	p.logger.Info("created docker client config with proxy settings", "path", p.configPath)
	return nil
}

// mergeStructured edits the parsed document in place, preserving every
// key it does not own.
func (p *ProxyConfigurator) mergeStructured(raw []byte, values map[string]string) error {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		doc = make(map[string]any)
	}

	proxies, ok := doc["proxies"].(map[string]any)
	if !ok {
		proxies = make(map[string]any)
	}
	defaults, ok := proxies["default"].(map[string]any)
	if !ok {
		defaults = make(map[string]any)
	}
	for k, v := range values {
		defaults[k] = v
	}
	proxies["default"] = defaults
	doc["proxies"] = proxies

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering docker client config: %w", err)
	}
	if err := os.WriteFile(p.configPath, append(body, '\n'), 0600); err != nil {
		return fmt.Errorf("writing docker client config %s: %w", p.configPath, err)
	}
	p.logger.Info("merged proxy settings into docker client config",
		"path", p.configPath,
		"keys", len(values),
	)
	return nil
}

// substituteLossy rewrites existing proxy values by regex. Keys not
// already present in the broken file are dropped.
func (p *ProxyConfigurator) substituteLossy(raw []byte, values map[string]string) error {
	out := raw
	replaced := 0
	for key, value := range values {
		re, err := regexp.Compile(`"` + key + `"\s*:\s*"[^"]*"`)
		if err != nil {
			continue
		}
		if re.Match(out) {
			out = re.ReplaceAll(out, []byte(fmt.Sprintf("%q: %q", key, value)))
			replaced++
		}
	}
	if replaced == 0 {
		p.logger.Warn("lossy substitution found no proxy keys to rewrite", "path", p.configPath)
		return nil
	}
	if err := os.WriteFile(p.configPath, out, 0600); err != nil {
		return fmt.Errorf("writing docker client config %s: %w", p.configPath, err)
	}
	p.logger.Warn("rewrote proxy values via lossy substitution",
		"path", p.configPath,
		"replaced", replaced,
	)
	return nil
}

func toAnyMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
