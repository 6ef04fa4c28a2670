package stack

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	// ErrComposeFileNotFound indicates the stack definition file is absent.
	ErrComposeFileNotFound = errors.New("compose file not found")
	// ErrInvalidComposeFile indicates the stack definition could not be parsed.
	ErrInvalidComposeFile = errors.New("invalid compose file")
)

// ComposeFile is the subset of a compose definition relayops inspects.
type ComposeFile struct {
	Services map[string]ServiceConfig `yaml:"services"`
	Volumes  map[string]yaml.Node     `yaml:"volumes,omitempty"`
}

// ServiceConfig is the per-service subset relayops inspects.
type ServiceConfig struct {
	Image         string `yaml:"image,omitempty"`
	ContainerName string `yaml:"container_name,omitempty"`
}

// ParseComposeFile reads and parses the stack's compose definition.
func ParseComposeFile(path string) (*ComposeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrComposeFileNotFound
		}
		return nil, fmt.Errorf("read compose file: %w", err)
	}

	var compose ComposeFile
	if err := yaml.Unmarshal(data, &compose); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidComposeFile, err)
	}
	if len(compose.Services) == 0 {
		return nil, fmt.Errorf("%w: no services defined", ErrInvalidComposeFile)
	}
	return &compose, nil
}

// ServiceNames returns the defined service names in stable order.
func (c *ComposeFile) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VolumeNames returns the declared named volumes in stable order.
func (c *ComposeFile) VolumeNames() []string {
	names := make([]string, 0, len(c.Volumes))
	for name := range c.Volumes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
