package configs

import (
	"io/fs"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestExampleConfigIsValidYAML(t *testing.T) {
	data, err := fs.ReadFile(EmbeddedConfigs, ExampleConfigFile)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", ExampleConfigFile, err)
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Example config is not valid YAML: %v", err)
	}

	for _, section := range []string{"site", "settings", "http", "cache", "images", "server"} {
		if _, ok := parsed[section]; !ok {
			t.Errorf("Example config is missing section %q", section)
		}
	}
}
