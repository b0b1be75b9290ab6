// Package config loads and validates Docudactyl's run configuration: CLI
// flags layered over an optional YAML file layered over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperpolymath/docudactyl/internal/stages"
	"gopkg.in/yaml.v3"
)

// ManifestMode mirrors spec.md §4.2's shared/broadcast distribution modes.
type ManifestMode string

const (
	ManifestShared    ManifestMode = "shared"
	ManifestBroadcast ManifestMode = "broadcast"
)

// CacheMode controls what the L1 cache is allowed to do.
type CacheMode string

const (
	CacheOff       CacheMode = "off"
	CacheRead      CacheMode = "read"
	CacheWrite     CacheMode = "write"
	CacheReadWrite CacheMode = "readwrite"
)

// OutputFormat selects the extracted-content serialization.
type OutputFormat string

const (
	FormatScheme OutputFormat = "scheme"
	FormatJSON   OutputFormat = "json"
	FormatCSV    OutputFormat = "csv"
)

// Config is the full set of tunables from spec.md §6, plus the config-file
// convenience source SPEC_FULL.md adds on top of the flag-only surface.
type Config struct {
	ManifestPath string `yaml:"manifestPath"`
	OutputDir    string `yaml:"outputDir"`
	OutputFormat OutputFormat `yaml:"outputFormat"`

	ChunkSize           int     `yaml:"chunkSize"`
	MaxRetriesPerDoc     int     `yaml:"maxRetriesPerDoc"`
	FailureThresholdPct  float64 `yaml:"failureThresholdPct"`
	ProgressIntervalSec  int     `yaml:"progressIntervalSec"`
	TimeoutPerDocMs      int     `yaml:"timeoutPerDocMs"`
	ManifestMode         ManifestMode `yaml:"manifestMode"`

	CacheDir   string    `yaml:"cacheDir"`
	CacheSizeMB int64    `yaml:"cacheSizeMB"`
	CacheMode   CacheMode `yaml:"cacheMode"`

	L2Addr string `yaml:"l2Addr"`
	L2TTLSec int  `yaml:"l2TTLSec"`

	StagesConfig string `yaml:"stagesConfig"`

	Resume                 bool `yaml:"resume"`
	CheckpointIntervalDocs int  `yaml:"checkpointIntervalDocs"`

	WorkerCount int `yaml:"workerCount"` // -nl

	DebugAddr string `yaml:"debugAddr"`
	MergeShards bool  `yaml:"mergeShards"`
	StreamNDJSON bool `yaml:"streamNDJSON"`

	PrefetchWindow int `yaml:"prefetchWindow"`
}

// Defaults returns the baseline configuration from spec.md §6's default
// column, matching the teacher's DefaultConfigSource role in loader.go.
func Defaults() Config {
	return Config{
		ManifestPath:           "manifest.txt",
		OutputDir:              "output",
		OutputFormat:           FormatScheme,
		ChunkSize:              256,
		MaxRetriesPerDoc:       2,
		FailureThresholdPct:    5.0,
		ProgressIntervalSec:    10,
		TimeoutPerDocMs:        300000,
		ManifestMode:           ManifestShared,
		CacheDir:               "",
		CacheSizeMB:            10240,
		CacheMode:              CacheReadWrite,
		L2Addr:                 "",
		L2TTLSec:               0,
		StagesConfig:           "none",
		Resume:                 false,
		CheckpointIntervalDocs: 1000,
		WorkerCount:            1,
		DebugAddr:              "",
		MergeShards:            false,
		StreamNDJSON:           false,
		PrefetchWindow:         16,
	}
}

// LoadYAMLFile merges a YAML file's fields onto base, field by field: zero
// values in the file leave base's value in place, mirroring the teacher's
// file-source-overrides-defaults priority merge in loader.go.
func LoadYAMLFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return mergeNonZero(base, file), nil
}

func mergeNonZero(base, override Config) Config {
	out := base
	if override.ManifestPath != "" {
		out.ManifestPath = override.ManifestPath
	}
	if override.OutputDir != "" {
		out.OutputDir = override.OutputDir
	}
	if override.OutputFormat != "" {
		out.OutputFormat = override.OutputFormat
	}
	if override.ChunkSize != 0 {
		out.ChunkSize = override.ChunkSize
	}
	if override.MaxRetriesPerDoc != 0 {
		out.MaxRetriesPerDoc = override.MaxRetriesPerDoc
	}
	if override.FailureThresholdPct != 0 {
		out.FailureThresholdPct = override.FailureThresholdPct
	}
	if override.ProgressIntervalSec != 0 {
		out.ProgressIntervalSec = override.ProgressIntervalSec
	}
	if override.TimeoutPerDocMs != 0 {
		out.TimeoutPerDocMs = override.TimeoutPerDocMs
	}
	if override.ManifestMode != "" {
		out.ManifestMode = override.ManifestMode
	}
	if override.CacheDir != "" {
		out.CacheDir = override.CacheDir
	}
	if override.CacheSizeMB != 0 {
		out.CacheSizeMB = override.CacheSizeMB
	}
	if override.CacheMode != "" {
		out.CacheMode = override.CacheMode
	}
	if override.L2Addr != "" {
		out.L2Addr = override.L2Addr
	}
	if override.L2TTLSec != 0 {
		out.L2TTLSec = override.L2TTLSec
	}
	if override.StagesConfig != "" {
		out.StagesConfig = override.StagesConfig
	}
	if override.Resume {
		out.Resume = true
	}
	if override.CheckpointIntervalDocs != 0 {
		out.CheckpointIntervalDocs = override.CheckpointIntervalDocs
	}
	if override.WorkerCount != 0 {
		out.WorkerCount = override.WorkerCount
	}
	if override.DebugAddr != "" {
		out.DebugAddr = override.DebugAddr
	}
	if override.MergeShards {
		out.MergeShards = true
	}
	if override.StreamNDJSON {
		out.StreamNDJSON = true
	}
	if override.PrefetchWindow != 0 {
		out.PrefetchWindow = override.PrefetchWindow
	}
	return out
}

// Validate collects every configuration problem instead of stopping at the
// first, matching the teacher's ConfigValidator.Validate (validator.go)
// accumulation style.
func (c Config) Validate() []error {
	var errs []error

	if c.ManifestPath == "" {
		errs = append(errs, fmt.Errorf("config: manifestPath must not be empty"))
	}
	if c.OutputDir == "" {
		errs = append(errs, fmt.Errorf("config: outputDir must not be empty"))
	}
	switch c.OutputFormat {
	case FormatScheme, FormatJSON, FormatCSV:
	default:
		errs = append(errs, fmt.Errorf("config: outputFormat %q must be one of scheme|json|csv", c.OutputFormat))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("config: chunkSize must be positive, got %d", c.ChunkSize))
	}
	if c.MaxRetriesPerDoc < 0 {
		errs = append(errs, fmt.Errorf("config: maxRetriesPerDoc must not be negative"))
	}
	if c.FailureThresholdPct < 0 || c.FailureThresholdPct > 100 {
		errs = append(errs, fmt.Errorf("config: failureThresholdPct must be within [0,100], got %f", c.FailureThresholdPct))
	}
	if c.ProgressIntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("config: progressIntervalSec must be positive"))
	}
	if c.TimeoutPerDocMs <= 0 {
		errs = append(errs, fmt.Errorf("config: timeoutPerDocMs must be positive"))
	}
	switch c.ManifestMode {
	case ManifestShared, ManifestBroadcast:
	default:
		errs = append(errs, fmt.Errorf("config: manifestMode %q must be shared|broadcast", c.ManifestMode))
	}
	switch c.CacheMode {
	case CacheOff, CacheRead, CacheWrite, CacheReadWrite:
	default:
		errs = append(errs, fmt.Errorf("config: cacheMode %q must be off|read|write|readwrite", c.CacheMode))
	}
	if c.CacheSizeMB < 0 {
		errs = append(errs, fmt.Errorf("config: cacheSizeMB must not be negative"))
	}
	if c.CheckpointIntervalDocs <= 0 {
		errs = append(errs, fmt.Errorf("config: checkpointIntervalDocs must be positive"))
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("config: worker count (-nl) must be positive, got %d", c.WorkerCount))
	}
	if c.PrefetchWindow <= 0 {
		errs = append(errs, fmt.Errorf("config: prefetchWindow must be positive"))
	}
	if _, err := stages.ParseBitmask(c.StagesConfig); err != nil {
		errs = append(errs, fmt.Errorf("config: stagesConfig: %w", err))
	}
	if c.CacheDir != "" && c.CacheMode != CacheOff {
		if err := validateCacheDir(c.CacheDir); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// validateCacheDir rejects a cacheDir that already exists as a non-directory,
// or whose parent isn't writable, mirroring the teacher's
// CacheDirectoryValidator.validateAppDataDirectory (cache_directory_validator.go)
// trimmed from arxos's dual app-data/build-cache split to this single L1 root.
func validateCacheDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("config: cacheDir %q exists and is not a directory", dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("config: cacheDir %q: %w", dir, err)
	}
	parent := filepath.Dir(dir)
	if pInfo, pErr := os.Stat(parent); pErr == nil && !pInfo.IsDir() {
		return fmt.Errorf("config: cacheDir %q's parent %q is not a directory", dir, parent)
	}
	return nil
}

// ValidationError joins every problem Validate found into one error, the
// way the teacher's ConfigLoader.Load wraps its validator's slice.
func ValidationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d configuration error(s):\n  %s", len(errs), strings.Join(msgs, "\n  "))
}
