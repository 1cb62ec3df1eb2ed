package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"

	"github.com/banshee-data/motionfit/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical fit defaults file.
const DefaultConfigPath = "config/fit.defaults.json"

// maxFileSize caps config files at 1MB.
const maxFileSize = 1 * 1024 * 1024

// Window weighting names accepted by window_weighting.
const (
	WeightingUniform     = "uniform"
	WeightingInverseCost = "inverse_cost"
)

// FitConfig holds the tunable parameters of a calibration run. Every field
// is optional; the Get* methods return the default for unset fields, so
// partial files and command-line overrides compose.
type FitConfig struct {
	// Windowing
	LocationsBatchSize *int `json:"locations_batch_size,omitempty"`
	LocationsShiftStep *int `json:"locations_shift_step,omitempty"`
	MinWindowLocations *int `json:"min_window_locations,omitempty"`

	// Optimizer
	OptimizationIters *int     `json:"optimization_iters,omitempty"`
	GradientTolerance *float64 `json:"gradient_tolerance,omitempty"`
	LBFGSMemory       *int     `json:"lbfgs_memory,omitempty"`

	// Aggregation and smoothing
	WindowWeighting       *string  `json:"window_weighting,omitempty"`
	PostSmoothingSigmaSec *float64 `json:"post_smoothing_sigma_sec,omitempty"`

	// Principal axis estimation
	PCAMaxSamples *int `json:"pca_max_samples,omitempty"`

	// Execution
	Workers *int `json:"workers,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyFitConfig returns a FitConfig with all fields unset.
func EmptyFitConfig() *FitConfig {
	return &FitConfig{}
}

// DefaultFitConfig returns a FitConfig with every field set to its default.
func DefaultFitConfig() *FitConfig {
	empty := EmptyFitConfig()
	return &FitConfig{
		LocationsBatchSize:    ptrInt(empty.GetLocationsBatchSize()),
		LocationsShiftStep:    ptrInt(empty.GetLocationsShiftStep()),
		MinWindowLocations:    ptrInt(empty.GetMinWindowLocations()),
		OptimizationIters:     ptrInt(empty.GetOptimizationIters()),
		GradientTolerance:     ptrFloat64(empty.GetGradientTolerance()),
		LBFGSMemory:           ptrInt(empty.GetLBFGSMemory()),
		WindowWeighting:       ptrString(empty.GetWindowWeighting()),
		PostSmoothingSigmaSec: ptrFloat64(empty.GetPostSmoothingSigmaSec()),
		PCAMaxSamples:         ptrInt(empty.GetPCAMaxSamples()),
		Workers:               ptrInt(empty.GetWorkers()),
	}
}

// LoadFitConfig loads a FitConfig from a JSON file on the host filesystem.
func LoadFitConfig(path string) (*FitConfig, error) {
	return LoadFitConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadFitConfigFS loads a FitConfig from fsys. The file must have a .json
// extension and be at most 1MB. Unknown keys are rejected so misspelt
// options do not silently fall back to defaults.
//
// A file may set only some keys, so it is not validated on its own: call
// Validate on the configuration after merging overrides into it.
func LoadFitConfigFS(fsys fsutil.FileSystem, path string) (*FitConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFitConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repository
// root. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *FitConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadFitConfig(path); err == nil && cfg.Validate() == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge returns a copy of c with every field set in override replacing the
// corresponding field of c.
func (c *FitConfig) Merge(override *FitConfig) *FitConfig {
	out := *c
	if override == nil {
		return &out
	}
	if override.LocationsBatchSize != nil {
		out.LocationsBatchSize = override.LocationsBatchSize
	}
	if override.LocationsShiftStep != nil {
		out.LocationsShiftStep = override.LocationsShiftStep
	}
	if override.MinWindowLocations != nil {
		out.MinWindowLocations = override.MinWindowLocations
	}
	if override.OptimizationIters != nil {
		out.OptimizationIters = override.OptimizationIters
	}
	if override.GradientTolerance != nil {
		out.GradientTolerance = override.GradientTolerance
	}
	if override.LBFGSMemory != nil {
		out.LBFGSMemory = override.LBFGSMemory
	}
	if override.WindowWeighting != nil {
		out.WindowWeighting = override.WindowWeighting
	}
	if override.PostSmoothingSigmaSec != nil {
		out.PostSmoothingSigmaSec = override.PostSmoothingSigmaSec
	}
	if override.PCAMaxSamples != nil {
		out.PCAMaxSamples = override.PCAMaxSamples
	}
	if override.Workers != nil {
		out.Workers = override.Workers
	}
	return &out
}

// Validate checks the effective values, including defaults for unset
// fields.
func (c *FitConfig) Validate() error {
	batch, shift := c.GetLocationsBatchSize(), c.GetLocationsShiftStep()
	if batch <= 0 {
		return fmt.Errorf("locations_batch_size must be positive, got %d", batch)
	}
	if shift <= 0 {
		return fmt.Errorf("locations_shift_step must be positive, got %d", shift)
	}
	if shift > batch {
		return fmt.Errorf("locations_shift_step (%d) must not exceed locations_batch_size (%d)", shift, batch)
	}
	if n := c.GetMinWindowLocations(); n < 1 {
		return fmt.Errorf("min_window_locations must be at least 1, got %d", n)
	}
	if n := c.GetOptimizationIters(); n <= 0 {
		return fmt.Errorf("optimization_iters must be positive, got %d", n)
	}
	if tol := c.GetGradientTolerance(); !(tol > 0) || math.IsInf(tol, 0) {
		return fmt.Errorf("gradient_tolerance must be positive, got %g", tol)
	}
	if m := c.GetLBFGSMemory(); m <= 0 {
		return fmt.Errorf("lbfgs_memory must be positive, got %d", m)
	}
	if sigma := c.GetPostSmoothingSigmaSec(); !(sigma > 0) || math.IsInf(sigma, 0) {
		return fmt.Errorf("post_smoothing_sigma_sec must be positive, got %g", sigma)
	}
	if n := c.GetPCAMaxSamples(); n <= 0 {
		return fmt.Errorf("pca_max_samples must be positive, got %d", n)
	}
	switch w := c.GetWindowWeighting(); w {
	case WeightingUniform, WeightingInverseCost:
	default:
		return fmt.Errorf("window_weighting must be %q or %q, got %q", WeightingUniform, WeightingInverseCost, w)
	}
	if n := c.GetWorkers(); n < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", n)
	}
	return nil
}

// GetLocationsBatchSize returns the locations_batch_size value or the default.
func (c *FitConfig) GetLocationsBatchSize() int {
	if c.LocationsBatchSize == nil {
		return 40
	}
	return *c.LocationsBatchSize
}

// GetLocationsShiftStep returns the locations_shift_step value or the default.
func (c *FitConfig) GetLocationsShiftStep() int {
	if c.LocationsShiftStep == nil {
		return 5
	}
	return *c.LocationsShiftStep
}

// GetMinWindowLocations returns the min_window_locations value or the default.
func (c *FitConfig) GetMinWindowLocations() int {
	if c.MinWindowLocations == nil {
		return 2
	}
	return *c.MinWindowLocations
}

// GetOptimizationIters returns the optimization_iters value or the default.
func (c *FitConfig) GetOptimizationIters() int {
	if c.OptimizationIters == nil {
		return 500
	}
	return *c.OptimizationIters
}

// GetGradientTolerance returns the gradient_tolerance value or the default.
func (c *FitConfig) GetGradientTolerance() float64 {
	if c.GradientTolerance == nil {
		return 1e-6
	}
	return *c.GradientTolerance
}

// GetLBFGSMemory returns the lbfgs_memory value or the default.
func (c *FitConfig) GetLBFGSMemory() int {
	if c.LBFGSMemory == nil {
		return 6
	}
	return *c.LBFGSMemory
}

// GetWindowWeighting returns the window_weighting value or the default.
func (c *FitConfig) GetWindowWeighting() string {
	if c.WindowWeighting == nil {
		return WeightingUniform
	}
	return *c.WindowWeighting
}

// GetPostSmoothingSigmaSec returns the post_smoothing_sigma_sec value or the default.
func (c *FitConfig) GetPostSmoothingSigmaSec() float64 {
	if c.PostSmoothingSigmaSec == nil {
		return 0.003
	}
	return *c.PostSmoothingSigmaSec
}

// GetPCAMaxSamples returns the pca_max_samples value or the default.
func (c *FitConfig) GetPCAMaxSamples() int {
	if c.PCAMaxSamples == nil {
		return 500000
	}
	return *c.PCAMaxSamples
}

// GetWorkers returns the workers value or the default.
func (c *FitConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// JSON returns the effective configuration, defaults filled in, as compact
// JSON for run records.
func (c *FitConfig) JSON() (string, error) {
	data, err := json.Marshal(DefaultFitConfig().Merge(c))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
