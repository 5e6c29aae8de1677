package installer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"os"

	"github.com/viant/afs"
)

var pageTemplate = template.Must(template.New("installer").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Install {{.ServerName}} - LM Studio MCP</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            margin: 0;
        }
        .card {
            background: white;
            border-radius: 20px;
            padding: 40px;
            box-shadow: 0 20px 60px rgba(0,0,0,0.3);
            max-width: 500px;
            text-align: center;
        }
        h1 {
            color: #333;
            margin-bottom: 10px;
        }
        .description {
            color: #666;
            margin-bottom: 20px;
        }
        .install-btn {
            display: inline-block;
            padding: 15px 30px;
            background: linear-gradient(135deg, #48bb78 0%, #38a169 100%);
            color: white;
            text-decoration: none;
            border-radius: 10px;
            font-size: 1.2em;
            font-weight: 600;
            margin: 20px 0;
            transition: transform 0.3s;
        }
        .install-btn:hover {
            transform: translateY(-2px);
        }
        .config {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 8px;
            margin: 20px 0;
            text-align: left;
        }
        .config pre {
            margin: 0;
            font-size: 0.9em;
            overflow-x: auto;
        }
        .warning {
            background: #fff5f5;
            border: 1px solid #feb2b2;
            color: #c53030;
            padding: 10px;
            border-radius: 8px;
            margin-top: 20px;
            font-size: 0.9em;
        }
    </style>
</head>
<body>
    <div class="card">
        <h1>&#128640; {{.ServerName}}</h1>
        <p class="description">{{.Description}}</p>

        <a href="{{.Deeplink}}" class="install-btn">
            Install in LM Studio
        </a>

        <div class="config">
            <strong>Configuration:</strong>
            <pre>{{.ConfigJSON}}</pre>
        </div>

        <div class="warning">
            &#9888;&#65039; Only install MCP servers from trusted sources
        </div>
    </div>
</body>
</html>
`))

type pageData struct {
	ServerName  string
	Description string
	Deeplink    template.URL
	ConfigJSON  string
}

// RenderHTML produces a standalone installer page with the deeplink as a
// clickable action and a human-readable rendering of the configuration.
func RenderHTML(serverName, description string, cfg ServerConfig) ([]byte, error) {
	if description == "" {
		description = "MCP Server for LM Studio"
	}
	deeplink, err := Deeplink(serverName, cfg)
	if err != nil {
		return nil, err
	}
	pretty, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, pageData{
		ServerName:  serverName,
		Description: description,
		Deeplink:    template.URL(deeplink),
		ConfigJSON:  string(pretty),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render installer page: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteHTML renders the installer page and writes it to the destination URL
// (a plain path for local storage).
func WriteHTML(ctx context.Context, dest, serverName, description string, cfg ServerConfig) error {
	data, err := RenderHTML(serverName, description, cfg)
	if err != nil {
		return err
	}
	fs := afs.New()
	if err := fs.Upload(ctx, dest, os.FileMode(0644), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write installer page %s: %w", dest, err)
	}
	return nil
}
