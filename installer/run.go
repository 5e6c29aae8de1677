package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jessevdk/go-flags"
)

// Options are the installer command line options. A preset takes precedence
// over explicit parameters; a URL selects the remote shape, otherwise a stdio
// configuration is built.
type Options struct {
	Preset    string `long:"preset" description:"use a preset configuration" choice:"docker" choice:"local" choice:"remote"`
	Name      string `long:"name" description:"server name"`
	Command   string `long:"command" description:"command to run"`
	Script    string `long:"script" description:"script or argument passed to the command"`
	Env       string `long:"env" description:"environment variables as JSON"`
	URL       string `long:"url" description:"SSE server URL (for remote servers)"`
	Headers   string `long:"headers" description:"headers as JSON (for remote servers)"`
	Output    string `long:"output" description:"output HTML file" default:"installer.html"`
	Open      bool   `long:"open" description:"open installer in browser"`
	PrintLink bool   `long:"print-link" description:"print deeplink URL instead of writing HTML"`
}

// Run parses args and either prints a deeplink or writes an installer page.
// The equivalent manual registration command is always printed.
func Run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	serverName, description, cfg, err := resolve(options)
	if err != nil {
		return err
	}

	if options.PrintLink {
		deeplink, err := Deeplink(serverName, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Deeplink: %s\n", deeplink)
	} else {
		ctx := context.Background()
		if err := WriteHTML(ctx, options.Output, serverName, description, cfg); err != nil {
			return err
		}
		fmt.Printf("HTML installer saved to: %s\n", options.Output)
		if options.Open {
			if err := openBrowser(fileURL(options.Output)); err != nil {
				return fmt.Errorf("failed to open browser: %w", err)
			}
			fmt.Println("Opened installer in browser")
		}
	}

	manual, err := ManualCommand(serverName, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("\nManual installation command:\n%s\n", manual)
	return nil
}

// resolve maps options to a server name, description and configuration.
// Malformed JSON for env vars or headers is a fatal startup error; it occurs
// before any side effect.
func resolve(options *Options) (string, string, ServerConfig, error) {
	if options.Preset != "" {
		preset, ok := Presets[options.Preset]
		if !ok {
			return "", "", ServerConfig{}, fmt.Errorf("unknown preset %q (available: %s)", options.Preset, strings.Join(PresetNames(), ", "))
		}
		return preset.Name, preset.Description, preset.Config, nil
	}
	if options.URL != "" {
		headers, err := parseJSONMap(options.Headers, "headers")
		if err != nil {
			return "", "", ServerConfig{}, err
		}
		name := options.Name
		if name == "" {
			name = "remote-mcp"
		}
		return name, "Remote MCP server via SSE", NewRemoteConfig(options.URL, headers), nil
	}
	env, err := parseJSONMap(options.Env, "env")
	if err != nil {
		return "", "", ServerConfig{}, err
	}
	name := options.Name
	if name == "" {
		name = "custom-mcp"
	}
	command := options.Command
	if command == "" {
		command = "lmstudio-bridge"
	}
	return name, "Custom MCP server", NewStdioConfig(command, options.Script, env), nil
}

func parseJSONMap(raw, flag string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("invalid JSON for --%s: %w", flag, err)
	}
	return m, nil
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + abs
}

func openBrowser(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}
