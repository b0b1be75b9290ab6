package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteDefaultConfig scaffolds a YAML config file at path seeded from
// Defaults(), so a new deployment has something to edit instead of
// memorizing every flag. Grounded on the teacher's config template
// scaffolding (templates.go's ConfigTemplate/createLocalTemplate family),
// trimmed from arxos's four deployment-mode templates (local/cloud/hybrid/
// production) down to docudactyl's single config shape: there is no
// multi-mode deployment concept here, just one run profile to start from.
//
// It refuses to overwrite an existing file unless force is true.
func WriteDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %s already exists (use --force to overwrite)", path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("config: marshaling defaults: %w", err)
	}

	header := "# Docudactyl run configuration.\n" +
		"# Every field here may also be set as a CLI flag; an explicitly-set\n" +
		"# flag always overrides the value loaded from this file.\n"

	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
