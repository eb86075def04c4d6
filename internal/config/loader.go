// Package config loads npcloud's JSON configuration and applies
// environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/banshee-data/npcloud/internal/pointcloud"
	"github.com/banshee-data/npcloud/internal/pointcloud/scene"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/npcloud.defaults.json"

// DefaultMaxFileBytes caps input files when max_file_bytes is unset.
const DefaultMaxFileBytes int64 = 512 << 20

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// LoaderConfig is the root configuration. Pointer fields distinguish
// "omitted" from zero; the Get* methods supply defaults for omitted fields.
// Fields with an env tag can be overridden from the environment.
type LoaderConfig struct {
	NormalizeNPZ *bool   `json:"normalize_npz,omitempty" env:"NPCLOUD_NORMALIZE_NPZ"`
	NormalizeNPY *bool   `json:"normalize_npy,omitempty" env:"NPCLOUD_NORMALIZE_NPY"`
	ArrayKey     *string `json:"array_key,omitempty" env:"NPCLOUD_ARRAY_KEY"`
	MaxFileBytes *int64  `json:"max_file_bytes,omitempty" env:"NPCLOUD_MAX_FILE_BYTES"`

	Render *RenderSettings `json:"render,omitempty"`
}

// RenderSettings mirrors scene.RenderConfig with optional fields.
type RenderSettings struct {
	PointSize        *float64 `json:"point_size,omitempty"`
	PointColor       *string  `json:"point_color,omitempty"`
	BackgroundColor  *string  `json:"background_color,omitempty"`
	CoordinateSystem *string  `json:"coordinate_system,omitempty"`
	RotationX        *float64 `json:"rotation_x,omitempty"`
	RotationY        *float64 `json:"rotation_y,omitempty"`
	RotationZ        *float64 `json:"rotation_z,omitempty"`
	AutoRotate       *bool    `json:"auto_rotate,omitempty"`
	AutoRotateSpeed  *float64 `json:"auto_rotate_speed,omitempty"`
	CameraFOVDeg     *float64 `json:"camera_fov_deg,omitempty"`
}

// EmptyLoaderConfig returns a LoaderConfig with all fields unset.
func EmptyLoaderConfig() *LoaderConfig {
	return &LoaderConfig{}
}

// LoadLoaderConfig loads a LoaderConfig from a JSON file. The file must have
// a .json extension and be at most 1MB. Omitted fields keep their defaults.
func LoadLoaderConfig(path string) (*LoaderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyLoaderConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded; intended for
// test setup.
func MustLoadDefaultConfig() *LoaderConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/pointcloud/*/
	}
	for _, path := range candidates {
		if cfg, err := LoadLoaderConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// ApplyEnv overrides fields from environment variables. A nil environ
// reads the process environment. Unset variables leave fields untouched.
func (c *LoaderConfig) ApplyEnv(environ map[string]string) error {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return c.Validate()
}

// Validate checks that set values are in range.
func (c *LoaderConfig) Validate() error {
	if c.MaxFileBytes != nil && *c.MaxFileBytes <= 0 {
		return fmt.Errorf("max_file_bytes must be positive, got %d", *c.MaxFileBytes)
	}
	if c.Render == nil {
		return nil
	}
	r := c.Render
	if r.PointSize != nil && (*r.PointSize <= 0 || *r.PointSize > math.MaxFloat32) {
		return fmt.Errorf("render.point_size must be positive, got %g", *r.PointSize)
	}
	if r.CoordinateSystem != nil {
		switch cs := scene.CoordinateSystem(*r.CoordinateSystem); cs {
		case scene.YUp, scene.ZUp:
		default:
			return fmt.Errorf("render.coordinate_system must be %q or %q, got %q", scene.YUp, scene.ZUp, cs)
		}
	}
	if r.CameraFOVDeg != nil && (*r.CameraFOVDeg <= 0 || *r.CameraFOVDeg >= 180) {
		return fmt.Errorf("render.camera_fov_deg must be in (0, 180), got %g", *r.CameraFOVDeg)
	}
	return c.RenderConfig().Validate()
}

// GetNormalizeNPZ returns whether .npz input is normalized (default true).
func (c *LoaderConfig) GetNormalizeNPZ() bool {
	if c.NormalizeNPZ == nil {
		return true
	}
	return *c.NormalizeNPZ
}

// GetNormalizeNPY returns whether .npy input is normalized (default false).
func (c *LoaderConfig) GetNormalizeNPY() bool {
	if c.NormalizeNPY == nil {
		return false
	}
	return *c.NormalizeNPY
}

// GetArrayKey returns the configured .npz member name, or "".
func (c *LoaderConfig) GetArrayKey() string {
	if c.ArrayKey == nil {
		return ""
	}
	return *c.ArrayKey
}

// GetMaxFileBytes returns the input size limit.
func (c *LoaderConfig) GetMaxFileBytes() int64 {
	if c.MaxFileBytes == nil {
		return DefaultMaxFileBytes
	}
	return *c.MaxFileBytes
}

// LoadOptions returns the pointcloud options for input of format f.
func (c *LoaderConfig) LoadOptions(f pointcloud.Format) pointcloud.Options {
	normalize := c.GetNormalizeNPY()
	if f == pointcloud.FormatNPZ {
		normalize = c.GetNormalizeNPZ()
	}
	mode := pointcloud.NormalizeNever
	if normalize {
		mode = pointcloud.NormalizeAlways
	}
	return pointcloud.Options{
		Normalize: mode,
		ArrayKey:  c.GetArrayKey(),
	}
}

// RenderConfig returns the scene config, starting from
// scene.DefaultRenderConfig and applying every set field.
func (c *LoaderConfig) RenderConfig() scene.RenderConfig {
	rc := scene.DefaultRenderConfig()
	r := c.Render
	if r == nil {
		return rc
	}
	if r.PointSize != nil {
		rc.PointSize = float32(*r.PointSize)
	}
	if r.PointColor != nil {
		rc.PointColor = *r.PointColor
	}
	if r.BackgroundColor != nil {
		rc.BackgroundColor = *r.BackgroundColor
	}
	if r.CoordinateSystem != nil {
		rc.CoordinateSystem = scene.CoordinateSystem(*r.CoordinateSystem)
	}
	if r.RotationX != nil {
		rc.RotationX = *r.RotationX
	}
	if r.RotationY != nil {
		rc.RotationY = *r.RotationY
	}
	if r.RotationZ != nil {
		rc.RotationZ = *r.RotationZ
	}
	if r.AutoRotate != nil {
		rc.AutoRotate = *r.AutoRotate
	}
	if r.AutoRotateSpeed != nil {
		rc.AutoRotateSpeed = *r.AutoRotateSpeed
	}
	if r.CameraFOVDeg != nil {
		rc.CameraFOV = *r.CameraFOVDeg
	}
	return rc
}
