package quality

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/geoqc/pkg/dataset"
)

const (
	DefaultVertexLimit           = 30000
	DefaultPartLimit             = 1000
	DefaultCompletenessThreshold = 0.5
)

// Config represents the rule configuration
type Config struct {
	Version    string                     `yaml:"version" validate:"omitempty,oneof=v1"`
	Rules      map[string]bool            `yaml:"rules,omitempty"`
	Fields     FieldRules                 `yaml:"fields"`
	Geometry   GeometryConfig             `yaml:"geometry"`
	Thresholds ThresholdConfig            `yaml:"thresholds"`
	Datasets   map[string]DatasetOverride `yaml:"datasets,omitempty" validate:"dive"`
}

// FieldRules declares attribute expectations. Field names match ignoring case.
type FieldRules struct {
	Required []string                  `yaml:"required,omitempty" validate:"dive,required"`
	Keys     []string                  `yaml:"keys,omitempty" validate:"dive,required"`
	Types    map[string]string         `yaml:"types,omitempty"`
	Domains  map[string]dataset.Domain `yaml:"domains,omitempty"`
}

// GeometryConfig configures geometry checks
type GeometryConfig struct {
	Bounds      *Bounds `yaml:"bounds,omitempty"`
	VertexLimit int     `yaml:"vertex_limit" validate:"gte=0"`
	PartLimit   int     `yaml:"part_limit" validate:"gte=0"`
}

// Bounds is an axis-aligned coordinate envelope
type Bounds struct {
	MinX float64 `yaml:"min_x"`
	MinY float64 `yaml:"min_y"`
	MaxX float64 `yaml:"max_x" validate:"gtefield=MinX"`
	MaxY float64 `yaml:"max_y" validate:"gtefield=MinY"`
}

// ThresholdConfig holds ratio thresholds
type ThresholdConfig struct {
	// Completeness is the null/blank share above which a field is reported
	Completeness float64 `yaml:"completeness" validate:"gte=0,lte=1"`
}

// DatasetOverride applies to datasets whose name matches the map key, a
// path.Match pattern
type DatasetOverride struct {
	Rules  map[string]bool `yaml:"rules,omitempty"`
	Fields *FieldRules     `yaml:"fields,omitempty"`
}

// DefaultConfig returns the default rule configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "v1",
		Rules:   make(map[string]bool),
		Fields: FieldRules{
			Types:   make(map[string]string),
			Domains: make(map[string]dataset.Domain),
		},
		Geometry: GeometryConfig{
			VertexLimit: DefaultVertexLimit,
			PartLimit:   DefaultPartLimit,
		},
		Thresholds: ThresholdConfig{
			Completeness: DefaultCompletenessThreshold,
		},
		Datasets: make(map[string]DatasetOverride),
	}
}

// LoadConfig loads configuration from a file. Keys absent from the file keep
// their default values.
func LoadConfig(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule config %s: %w", file, err)
	}

	return config, nil
}

// ConfigNames are the file names LoadConfigFromDir looks for, in order
var ConfigNames = []string{"geoqc.yaml", "geoqc.yml", ".geoqc.yaml", ".geoqc.yml"}

// LoadConfigFromDir searches for config file in directory
func LoadConfigFromDir(dir string) (*Config, error) {
	for _, name := range ConfigNames {
		file := filepath.Join(dir, name)
		if _, err := os.Stat(file); err == nil {
			return LoadConfig(file)
		}
	}

	// Return default if no config found
	return DefaultConfig(), nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config *Config, file string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(file, data, 0644)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and the configured field types
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Fields.validateTypes(); err != nil {
		return err
	}
	for pattern, o := range c.Datasets {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("datasets: bad pattern %q: %w", pattern, err)
		}
		if o.Fields != nil {
			if err := o.Fields.validateTypes(); err != nil {
				return fmt.Errorf("datasets[%s]: %w", pattern, err)
			}
		}
	}
	return nil
}

func (f FieldRules) validateTypes() error {
	for name, t := range f.Types {
		if _, err := dataset.ParseFieldType(t); err != nil {
			return fmt.Errorf("fields.types[%s]: %w", name, err)
		}
	}
	return nil
}

// overrides returns the overrides matching a dataset name in pattern order
func (c *Config) overrides(name string) []DatasetOverride {
	patterns := make([]string, 0, len(c.Datasets))
	for p := range c.Datasets {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	var out []DatasetOverride
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			out = append(out, c.Datasets[p])
		}
	}
	return out
}

// RuleEnabled reports whether a rule is enabled globally. Rules are enabled
// unless the config sets them to false.
func (c *Config) RuleEnabled(id string) bool {
	enabled, ok := c.Rules[id]
	return !ok || enabled
}

// RuleEnabledFor applies per-dataset overrides on top of RuleEnabled
func (c *Config) RuleEnabledFor(id, datasetName string) bool {
	enabled := c.RuleEnabled(id)
	for _, o := range c.overrides(datasetName) {
		if v, ok := o.Rules[id]; ok {
			enabled = v
		}
	}
	return enabled
}

// FieldsFor returns the field rules for a dataset. Lists in an override
// replace the global lists; map entries are merged key by key.
func (c *Config) FieldsFor(datasetName string) FieldRules {
	out := FieldRules{
		Required: c.Fields.Required,
		Keys:     c.Fields.Keys,
		Types:    make(map[string]string, len(c.Fields.Types)),
		Domains:  make(map[string]dataset.Domain, len(c.Fields.Domains)),
	}
	for k, v := range c.Fields.Types {
		out.Types[k] = v
	}
	for k, v := range c.Fields.Domains {
		out.Domains[k] = v
	}

	for _, o := range c.overrides(datasetName) {
		if o.Fields == nil {
			continue
		}
		if o.Fields.Required != nil {
			out.Required = o.Fields.Required
		}
		if o.Fields.Keys != nil {
			out.Keys = o.Fields.Keys
		}
		for k, v := range o.Fields.Types {
			out.Types[k] = v
		}
		for k, v := range o.Fields.Domains {
			out.Domains[k] = v
		}
	}
	return out
}

// Fingerprint hashes the effective configuration. Cached reports are only
// reused while the fingerprint is unchanged.
func (c *Config) Fingerprint() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
