// Package config loads the run configuration: the weight configuration
// string, bootstrap and efficiency parameters, and the component bindings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/banshee-data/calibweights/internal/bootstrap"
	"github.com/banshee-data/calibweights/internal/calib"
	"github.com/banshee-data/calibweights/internal/efficiency"
	"github.com/banshee-data/calibweights/internal/weights"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the example configuration shipped with the repo.
const DefaultConfigPath = "config/calibweights.example.yaml"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// RunConfig is the root configuration. Pointer fields are optional; the
// Get* methods supply defaults for omitted values so partial files are
// safe.
type RunConfig struct {
	Weights        *string `json:"weights,omitempty" yaml:"weights,omitempty"`
	Version        *string `json:"version,omitempty" yaml:"version,omitempty"`
	BootstrapSize  *int    `json:"bootstrap_size,omitempty" yaml:"bootstrap_size,omitempty" validate:"omitempty,min=1,max=100000"`
	BootstrapIndex *int    `json:"bootstrap_index,omitempty" yaml:"bootstrap_index,omitempty" validate:"omitempty,min=-1"`
	MaxRetries     *int    `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"omitempty,min=1"`
	OnExhaust      *string `json:"on_exhaust,omitempty" yaml:"on_exhaust,omitempty" validate:"omitempty,oneof=boundary nominal"`

	ConfidenceLevel   *float64 `json:"confidence_level,omitempty" yaml:"confidence_level,omitempty" validate:"omitempty,gt=0,lt=1"`
	WeightedTolerance *float64 `json:"weighted_tolerance,omitempty" yaml:"weighted_tolerance,omitempty" validate:"omitempty,gt=0"`

	Workers        *int    `json:"workers,omitempty" yaml:"workers,omitempty" validate:"omitempty,min=1,max=1024"`
	Database       *string `json:"database,omitempty" yaml:"database,omitempty"`
	TableCacheSize *int    `json:"table_cache_size,omitempty" yaml:"table_cache_size,omitempty" validate:"omitempty,min=1"`

	Bindings []BindingConfig `json:"bindings,omitempty" yaml:"bindings,omitempty" validate:"dive"`
}

// BindingConfig is the file form of weights.Binding.
type BindingConfig struct {
	Key          string   `json:"key" yaml:"key" validate:"required"`
	Token        string   `json:"token" yaml:"token" validate:"required"`
	Table        string   `json:"table" yaml:"table" validate:"required"`
	AltTable     string   `json:"alt_table,omitempty" yaml:"alt_table,omitempty"`
	SplitVar     string   `json:"split_var,omitempty" yaml:"split_var,omitempty" validate:"required_with=AltTable"`
	Vars         []string `json:"vars" yaml:"vars" validate:"required,min=1,max=3,dive,required"`
	Validity     string   `json:"validity,omitempty" yaml:"validity,omitempty"`
	Interpolable bool     `json:"interpolable,omitempty" yaml:"interpolable,omitempty"`
	Bootstrap    bool     `json:"bootstrap,omitempty" yaml:"bootstrap,omitempty"`
	Output       string   `json:"output,omitempty" yaml:"output,omitempty"`
}

var validate = validator.New()

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptyRunConfig returns a RunConfig with every field unset.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// Load reads a .json, .yaml or .yml file and validates it.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRunConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. It panics when the file cannot be found, so it is
// meant for tests.
func MustLoadDefaultConfig() *RunConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/calibweights/
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the struct tags, then that the weight string, tokens and
// policies parse.
func (c *RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	opts, err := weights.ParseOptions(c.GetWeights())
	if err != nil {
		return fmt.Errorf("weights %q: %w", c.GetWeights(), err)
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("weights %q: %w", c.GetWeights(), err)
	}
	if c.GetBootstrapIndex() >= 0 && c.GetBootstrapIndex() >= c.GetBootstrapSize() {
		return fmt.Errorf("bootstrap_index %d out of range for bootstrap_size %d", c.GetBootstrapIndex(), c.GetBootstrapSize())
	}
	seen := make(map[string]bool, len(c.Bindings))
	for _, b := range c.Bindings {
		if seen[b.Key] {
			return fmt.Errorf("duplicate binding key %q", b.Key)
		}
		seen[b.Key] = true
		if _, err := b.binding(); err != nil {
			return err
		}
	}
	return nil
}

func (b BindingConfig) binding() (weights.Binding, error) {
	tok, err := weights.ParseToken(b.Token)
	if err != nil {
		return weights.Binding{}, fmt.Errorf("binding %q: %w", b.Key, err)
	}
	if !tok.IsComponent() {
		return weights.Binding{}, fmt.Errorf("binding %q: token %q does not name a component", b.Key, b.Token)
	}
	v, err := calib.ParseValidity(b.Validity)
	if err != nil {
		return weights.Binding{}, fmt.Errorf("binding %q: %w", b.Key, err)
	}
	return weights.Binding{
		Key:          b.Key,
		Token:        tok,
		Table:        b.Table,
		AltTable:     b.AltTable,
		SplitVar:     b.SplitVar,
		Vars:         append([]string(nil), b.Vars...),
		Validity:     v,
		Interpolable: b.Interpolable,
		Bootstrap:    b.Bootstrap,
		Output:       b.Output,
	}, nil
}

// WeightBindings converts the binding list.
func (c *RunConfig) WeightBindings() ([]weights.Binding, error) {
	out := make([]weights.Binding, 0, len(c.Bindings))
	for _, b := range c.Bindings {
		wb, err := b.binding()
		if err != nil {
			return nil, err
		}
		out = append(out, wb)
	}
	return out, nil
}

// Configuration builds the composer configuration.
func (c *RunConfig) Configuration() (weights.Configuration, error) {
	wc, err := weights.NewConfiguration(c.GetWeights())
	if err != nil {
		return weights.Configuration{}, err
	}
	policy, err := bootstrap.ParseExhaustPolicy(c.GetOnExhaust())
	if err != nil {
		return weights.Configuration{}, err
	}
	wc.Version = c.GetVersion()
	wc.BootstrapSize = c.GetBootstrapSize()
	wc.BootstrapIndex = c.GetBootstrapIndex()
	wc.MaxRetries = c.GetMaxRetries()
	wc.OnExhaust = policy
	return wc, nil
}

// Estimator builds the efficiency estimator.
func (c *RunConfig) Estimator() efficiency.Estimator {
	return efficiency.Estimator{
		ConfidenceLevel: c.GetConfidenceLevel(),
		Tolerance:       c.GetWeightedTolerance(),
	}
}

// GetWeights returns the weight configuration string; empty means identity.
func (c *RunConfig) GetWeights() string {
	if c.Weights == nil {
		return ""
	}
	return *c.Weights
}

// GetVersion returns the bootstrap seed tag or the default.
func (c *RunConfig) GetVersion() string {
	if c.Version == nil || *c.Version == "" {
		return "v0" // default
	}
	return *c.Version
}

// GetBootstrapSize returns the ensemble size or the default.
func (c *RunConfig) GetBootstrapSize() int {
	if c.BootstrapSize == nil {
		return weights.DefaultBootstrapSize
	}
	return *c.BootstrapSize
}

// GetBootstrapIndex returns the selected member, -1 for all.
func (c *RunConfig) GetBootstrapIndex() int {
	if c.BootstrapIndex == nil {
		return -1 // default
	}
	return *c.BootstrapIndex
}

// GetMaxRetries returns the redraw cap or the default.
func (c *RunConfig) GetMaxRetries() int {
	if c.MaxRetries == nil {
		return bootstrap.DefaultMaxRetries
	}
	return *c.MaxRetries
}

// GetOnExhaust returns the exhaust policy name or the default.
func (c *RunConfig) GetOnExhaust() string {
	if c.OnExhaust == nil {
		return bootstrap.ExhaustBoundary.String()
	}
	return *c.OnExhaust
}

// GetConfidenceLevel returns the interval coverage or the default.
func (c *RunConfig) GetConfidenceLevel() float64 {
	if c.ConfidenceLevel == nil {
		return efficiency.DefaultConfidenceLevel
	}
	return *c.ConfidenceLevel
}

// GetWeightedTolerance returns the weighted-input tolerance or the default.
func (c *RunConfig) GetWeightedTolerance() float64 {
	if c.WeightedTolerance == nil {
		return efficiency.DefaultTolerance
	}
	return *c.WeightedTolerance
}

// GetWorkers returns the worker count, defaulting to the CPU count.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetDatabase returns the database path or the default.
func (c *RunConfig) GetDatabase() string {
	if c.Database == nil || *c.Database == "" {
		return "calibweights.db" // default
	}
	return *c.Database
}

// GetTableCacheSize returns the loader cache size or the default.
func (c *RunConfig) GetTableCacheSize() int {
	if c.TableCacheSize == nil {
		return 64 // default
	}
	return *c.TableCacheSize
}
