// Package config provides configuration loading and management for
// odfpeaks. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Peak extraction parameters
	Peaks struct {
		// RelativePeakThreshold discards peaks below this fraction of
		// the dominant peak's baseline-subtracted value
		RelativePeakThreshold float64 `yaml:"relativePeakThreshold"`

		// MinSeparationAngle is the minimum angle in degrees between
		// two reported peaks
		MinSeparationAngle float64 `yaml:"minSeparationAngle"`

		// NPeaks is the maximum number of peaks kept per voxel
		NPeaks int `yaml:"nPeaks"`

		// NormalizePeaks rescales each voxel's peaks so the dominant
		// one equals 1
		NormalizePeaks bool `yaml:"normalizePeaks"`
	} `yaml:"peaks"`

	// Processing parameters
	Processing struct {
		// Parallel processes voxels with a worker pool
		Parallel bool `yaml:"parallel"`

		// NumWorkers selects the pool size: 0 uses all cores and a
		// negative value -n leaves n-1 cores free
		NumWorkers int `yaml:"numWorkers"`

		// ReturnODF keeps the full per-voxel field samples in the
		// result bundle
		ReturnODF bool `yaml:"returnODF"`

		// ReturnCoeffs fits and keeps per-voxel basis coefficients
		ReturnCoeffs bool `yaml:"returnCoeffs"`
	} `yaml:"processing"`

	// Mesh parameters
	Mesh struct {
		// Subdivisions is how many times the base icosahedron is
		// subdivided before hemisphere collapsing
		Subdivisions int `yaml:"subdivisions"`
	} `yaml:"mesh"`

	// Output parameters
	Output struct {
		// BundleFile is where the serialized result bundle is written
		BundleFile string `yaml:"bundleFile"`

		// GFASliceDir, when set, receives the GFA map exported as
		// per-axis JPEG slices
		GFASliceDir string `yaml:"gfaSliceDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default peak extraction parameters
	cfg.Peaks.RelativePeakThreshold = 0.5
	cfg.Peaks.MinSeparationAngle = 25
	cfg.Peaks.NPeaks = 5
	cfg.Peaks.NormalizePeaks = false

	// Set default processing parameters
	cfg.Processing.Parallel = true
	cfg.Processing.NumWorkers = 0 // All available cores
	cfg.Processing.ReturnODF = false
	cfg.Processing.ReturnCoeffs = false

	// Set default mesh parameters
	cfg.Mesh.Subdivisions = 3

	// Set default output parameters
	cfg.Output.BundleFile = "peaks.pam"
	cfg.Output.GFASliceDir = ""
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
