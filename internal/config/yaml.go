package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// loadYAML parses a YAML step file with strict field validation, so typos
// like "input_feild:" are reported instead of silently ignored.
func loadYAML(path string) (Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Step{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var step Step
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&step); err != nil {
		if errors.Is(err, io.EOF) {
			return Step{}, fmt.Errorf("config file %s is empty", path)
		}
		return Step{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return step, nil
}
