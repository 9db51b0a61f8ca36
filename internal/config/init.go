package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# plugwatch configuration
updates:
  enabled: true
  check_interval: "1h"
  initial_delay: "30s"
  stagger_delay: "10s"

source:
  api_base_url: "https://api.github.com"
  raw_base_url: "https://raw.githubusercontent.com"
  # token: "${GITHUB_TOKEN}"

components:
  - name: example-plugin
    version: "v1.0.0"
    owner: example-org
    repo: example-plugin
    path: "Plugins/example-plugin.dll"

notify:
  nats:
    url: ""
    subject: "plugwatch.updates"

history:
  enabled: true
  path: "plugwatch-history.db"

server:
  enabled: true
  listen: ":8642"

logging:
  level: info
  format: text
`

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
