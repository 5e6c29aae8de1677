package installer

import "sort"

// Preset is a named, ready-made server registration.
type Preset struct {
	Name        string
	Description string
	Config      ServerConfig
}

// Presets are the built-in registrations for common bridge deployments.
var Presets = map[string]Preset{
	"local": {
		Name:        "lmstudio-local",
		Description: "Local LM Studio bridge over stdio",
		Config: ServerConfig{
			Command: "lmstudio-bridge",
			Env:     map[string]string{"LMSTUDIO_API_BASE": "http://localhost:1234/v1"},
		},
	},
	"docker": {
		Name:        "lmstudio-docker",
		Description: "Dockerized LM Studio bridge",
		Config: ServerConfig{
			Command: "docker",
			Args:    []string{"run", "-i", "--rm", "--network=host", "lmstudio-bridge:latest"},
		},
	},
	"remote": {
		Name:        "lmstudio-remote",
		Description: "Remote LM Studio bridge over SSE",
		Config: ServerConfig{
			URL: "http://localhost:4981/sse",
		},
	},
}

// PresetNames returns the available preset names sorted for stable output.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
