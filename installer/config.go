// Package installer generates one-click installation deeplinks and HTML pages
// for registering an MCP server with LM Studio. It is pure plumbing: a server
// configuration is serialized to compact JSON, base64-encoded and embedded in
// an lmstudio:// URL. No network calls are made.
package installer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
)

// DeeplinkBase is the URL scheme LM Studio registers for one-click installs.
const DeeplinkBase = "lmstudio://add_mcp"

// ServerConfig describes an MCP server registration: either a local process
// (command, args, optional env) or a remote endpoint (url, optional headers).
// Field order is fixed so the encoded form is stable.
type ServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// NewStdioConfig builds a configuration for a stdio-based MCP server.
func NewStdioConfig(command, script string, env map[string]string) ServerConfig {
	cfg := ServerConfig{Command: command}
	if script != "" {
		cfg.Args = []string{script}
	}
	if len(env) > 0 {
		cfg.Env = env
	}
	return cfg
}

// NewRemoteConfig builds a configuration for a remote (SSE) MCP server.
func NewRemoteConfig(serverURL string, headers map[string]string) ServerConfig {
	cfg := ServerConfig{URL: serverURL}
	if len(headers) > 0 {
		cfg.Headers = headers
	}
	return cfg
}

// EncodeConfig serializes the configuration to compact JSON and base64.
func EncodeConfig(cfg ServerConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeConfig reverses EncodeConfig.
func DecodeConfig(encoded string) (ServerConfig, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	var cfg ServerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Deeplink builds the one-click installation URL for the named server.
func Deeplink(serverName string, cfg ServerConfig) (string, error) {
	encoded, err := EncodeConfig(cfg)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("name", serverName)
	params.Set("config", encoded)
	return DeeplinkBase + "?" + params.Encode(), nil
}

// ManualCommand returns the equivalent manual registration command line.
func ManualCommand(serverName string, cfg ServerConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return fmt.Sprintf("lmstudio mcp add-json '%s' '%s'", serverName, data), nil
}
