package ingest

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all tender portals.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP crawl settings for a portal.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"`
	MaxRetries     int     `yaml:"max_retries,omitempty"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`
}

// SourceConfig defines a single tender portal. Prefix is the object-store
// key prefix its payloads arrive under.
type SourceConfig struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Prefix      string      `yaml:"prefix"`
	BaseURL     string      `yaml:"base_url,omitempty"`
	Schedule    string      `yaml:"schedule,omitempty"`
	Description string      `yaml:"description,omitempty"`
	Fetch       FetchConfig `yaml:"fetch,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml, falling back to the given
// path for local overrides. Environment references like ${API_KEY} are
// expanded.
func LoadRegistry(path string) (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

// ByID returns the portal with the given id.
func (r *Registry) ByID(id string) (*SourceConfig, error) {
	for i := range r.Sources {
		if r.Sources[i].ID == id {
			return &r.Sources[i], nil
		}
	}
	return nil, fmt.Errorf("source %q not in registry", id)
}
