package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	scerrors "github.com/hpungsan/scratchpad/internal/errors"
)

// Eviction policy names.
const (
	PolicyFail    = "fail"
	PolicyDiscard = "discard"
	PolicyPreempt = "preempt"
)

// DefaultTenant is the tenant used when no principal has been resolved.
const DefaultTenant = "default"

// Limits holds the three capacity ceilings. Zero means unlimited once resolved;
// in a config file a negative value explicitly disables a ceiling and zero inherits.
type Limits struct {
	MaxScratchpads int `json:"max_scratchpads,omitempty" yaml:"max_scratchpads,omitempty"`
	MaxCellsPerPad int `json:"max_cells_per_pad,omitempty" yaml:"max_cells_per_pad,omitempty"`
	MaxCellBytes   int `json:"max_cell_bytes,omitempty" yaml:"max_cell_bytes,omitempty"`
}

// Config holds application configuration.
type Config struct {
	// StorageDir is where scratchpad.db lives. Empty means ~/.scratchpad.
	StorageDir string `json:"storage_dir,omitempty" yaml:"storage_dir,omitempty"`

	// Tenant is the active tenant for stdio and CLI sessions.
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`

	// Global capacity ceilings.
	Limits `yaml:",inline"`

	// TenantLimits overrides individual ceilings per tenant. Unset fields fall back to the globals.
	TenantLimits map[string]Limits `json:"tenant_limits,omitempty" yaml:"tenant_limits,omitempty"`

	// EvictionPolicy is one of fail, discard, preempt.
	EvictionPolicy string `json:"eviction_policy,omitempty" yaml:"eviction_policy,omitempty"`

	// PreemptAge is how long a pad may go unread before the preempt sweeper removes it.
	PreemptAge Duration `json:"preempt_age,omitempty" yaml:"preempt_age,omitempty"`

	// PreemptInterval is the sweeper period. Values below 100ms are clamped.
	PreemptInterval Duration `json:"preempt_interval,omitempty" yaml:"preempt_interval,omitempty"`

	ValidationTimeout Duration `json:"validation_timeout,omitempty" yaml:"validation_timeout,omitempty"`
	ShutdownTimeout   Duration `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`

	// EnableSemanticSearch is a pointer so that an explicit false in an overlay wins.
	EnableSemanticSearch *bool `json:"enable_semantic_search,omitempty" yaml:"enable_semantic_search,omitempty"`

	// EmbeddingModel selects the backend: "debug-*" uses the hashing embedder,
	// "openai:<model>" calls the OpenAI embeddings API.
	EmbeddingModel     string `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty"`
	EmbeddingDevice    string `json:"embedding_device,omitempty" yaml:"embedding_device,omitempty"`
	EmbeddingBatchSize int    `json:"embedding_batch_size,omitempty" yaml:"embedding_batch_size,omitempty"`

	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	enabled := true
	return &Config{
		Tenant: DefaultTenant,
		Limits: Limits{
			MaxScratchpads: 1024,
			MaxCellsPerPad: 1024,
			MaxCellBytes:   5 * 1024 * 1024,
		},
		EvictionPolicy:       PolicyDiscard,
		PreemptAge:           Duration(24 * time.Hour),
		PreemptInterval:      Duration(10 * time.Minute),
		ValidationTimeout:    Duration(10 * time.Second),
		ShutdownTimeout:      Duration(5 * time.Second),
		EnableSemanticSearch: &enabled,
		EmbeddingModel:       "debug-hash",
		EmbeddingDevice:      "cpu",
		EmbeddingBatchSize:   16,
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Load loads configuration from baseDir/config.json, or config.yaml when no JSON file exists.
// Returns default config if neither file exists.
func Load(baseDir string) (*Config, error) {
	raw, err := loadDirRaw(baseDir)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), raw), nil
}

// LoadFile loads a specific config file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	raw, err := loadFileRaw(path)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), raw), nil
}

// LoadWithRepo loads configuration from both global (~/.scratchpad) and repo (.scratchpad) directories.
// Repo config is found by walking upward from startDir to find the nearest .scratchpad directory.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadDirRaw(globalDir)
	if err != nil {
		return nil, err
	}

	repo := &Config{}
	if repoDir := FindRepoConfigDir(startDir); repoDir != "" {
		repo, err = loadDirRaw(repoDir)
		if err != nil {
			return nil, err
		}
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfigDir walks upward from startDir to find the nearest .scratchpad
// directory holding a config file. Returns "" if none is found.
func FindRepoConfigDir(startDir string) string {
	dir := startDir
	for {
		candidate := filepath.Join(dir, ".scratchpad")
		for _, name := range configFileNames {
			if _, err := os.Stat(filepath.Join(candidate, name)); err == nil {
				return candidate
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

var configFileNames = []string{"config.json", "config.yaml", "config.yml"}

// loadDirRaw loads the first config file present in dir.
func loadDirRaw(dir string) (*Config, error) {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return loadFileRaw(path)
		}
	}
	return &Config{}, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.StorageDir = pickString(overlay.StorageDir, base.StorageDir)
	result.Tenant = pickString(overlay.Tenant, base.Tenant)
	result.EvictionPolicy = pickString(overlay.EvictionPolicy, base.EvictionPolicy)
	result.EmbeddingModel = pickString(overlay.EmbeddingModel, base.EmbeddingModel)
	result.EmbeddingDevice = pickString(overlay.EmbeddingDevice, base.EmbeddingDevice)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pickString(overlay.LogFormat, base.LogFormat)

	result.Limits = mergeLimits(base.Limits, overlay.Limits)
	result.EmbeddingBatchSize = pickInt(overlay.EmbeddingBatchSize, base.EmbeddingBatchSize)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.PreemptAge = pickDuration(overlay.PreemptAge, base.PreemptAge)
	result.PreemptInterval = pickDuration(overlay.PreemptInterval, base.PreemptInterval)
	result.ValidationTimeout = pickDuration(overlay.ValidationTimeout, base.ValidationTimeout)
	result.ShutdownTimeout = pickDuration(overlay.ShutdownTimeout, base.ShutdownTimeout)

	// Tri-state: overlay wins whenever it is set
	result.EnableSemanticSearch = base.EnableSemanticSearch
	if overlay.EnableSemanticSearch != nil {
		result.EnableSemanticSearch = overlay.EnableSemanticSearch
	}

	// Maps: per-tenant entries merge field by field
	if len(base.TenantLimits)+len(overlay.TenantLimits) > 0 {
		result.TenantLimits = make(map[string]Limits, len(base.TenantLimits)+len(overlay.TenantLimits))
		for tenant, l := range base.TenantLimits {
			result.TenantLimits[tenant] = l
		}
		for tenant, l := range overlay.TenantLimits {
			result.TenantLimits[tenant] = mergeLimits(result.TenantLimits[tenant], l)
		}
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// ApplyEnv overlays SCRATCHPAD_* environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	overlay := &Config{}

	strs := map[string]*string{
		"SCRATCHPAD_STORAGE_DIR":      &overlay.StorageDir,
		"SCRATCHPAD_TENANT":           &overlay.Tenant,
		"SCRATCHPAD_EVICTION_POLICY":  &overlay.EvictionPolicy,
		"SCRATCHPAD_EMBEDDING_MODEL":  &overlay.EmbeddingModel,
		"SCRATCHPAD_EMBEDDING_DEVICE": &overlay.EmbeddingDevice,
		"SCRATCHPAD_LOG_LEVEL":        &overlay.LogLevel,
		"SCRATCHPAD_LOG_FORMAT":       &overlay.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"SCRATCHPAD_MAX_SCRATCHPADS":      &overlay.MaxScratchpads,
		"SCRATCHPAD_MAX_CELLS_PER_PAD":    &overlay.MaxCellsPerPad,
		"SCRATCHPAD_MAX_CELL_BYTES":       &overlay.MaxCellBytes,
		"SCRATCHPAD_EMBEDDING_BATCH_SIZE": &overlay.EmbeddingBatchSize,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return scerrors.NewConfig(fmt.Sprintf("%s must be an integer", key))
		}
		// Environment zero means unlimited, matching the CLI convention.
		if n == 0 && key != "SCRATCHPAD_EMBEDDING_BATCH_SIZE" {
			n = -1
		}
		*dst = n
	}

	durations := map[string]*Duration{
		"SCRATCHPAD_PREEMPT_AGE":        &overlay.PreemptAge,
		"SCRATCHPAD_PREEMPT_INTERVAL":   &overlay.PreemptInterval,
		"SCRATCHPAD_VALIDATION_TIMEOUT": &overlay.ValidationTimeout,
		"SCRATCHPAD_SHUTDOWN_TIMEOUT":   &overlay.ShutdownTimeout,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		d, err := ParseDuration(v)
		if err != nil {
			return scerrors.NewConfig(fmt.Sprintf("%s: %v", key, err))
		}
		*dst = Duration(d)
	}

	if v, ok := lookup("SCRATCHPAD_ENABLE_SEMANTIC_SEARCH"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return scerrors.NewConfig("SCRATCHPAD_ENABLE_SEMANTIC_SEARCH must be a boolean")
		}
		overlay.EnableSemanticSearch = &b
	}

	*c = *Merge(c, overlay)
	return nil
}

// Validate checks values that the storage core relies on.
func (c *Config) Validate() error {
	switch c.EvictionPolicy {
	case PolicyFail, PolicyDiscard, PolicyPreempt:
	default:
		return scerrors.NewConfig(fmt.Sprintf("eviction_policy must be one of fail, discard, preempt (got %q)", c.EvictionPolicy)).
			WithDetail("policy", c.EvictionPolicy)
	}
	if c.EmbeddingBatchSize < 0 {
		return scerrors.NewConfig("embedding_batch_size must be positive")
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" && c.SemanticSearchEnabled() {
		return scerrors.NewConfig("embedding_model is required when semantic search is enabled")
	}
	for name, d := range map[string]Duration{
		"preempt_age":        c.PreemptAge,
		"preempt_interval":   c.PreemptInterval,
		"validation_timeout": c.ValidationTimeout,
		"shutdown_timeout":   c.ShutdownTimeout,
	} {
		if d < 0 {
			return scerrors.NewConfig(name + " must be non-negative")
		}
	}
	return nil
}

// SemanticSearchEnabled reports whether the embedding index is maintained.
func (c *Config) SemanticSearchEnabled() bool {
	return c.EnableSemanticSearch == nil || *c.EnableSemanticSearch
}

// LimitsFor resolves the capacity ceilings for tenant. Negative values become 0 (unlimited).
func (c *Config) LimitsFor(tenant string) Limits {
	resolved := c.Limits
	if override, ok := c.TenantLimits[tenant]; ok {
		resolved = mergeLimits(resolved, override)
	}
	return Limits{
		MaxScratchpads: max(resolved.MaxScratchpads, 0),
		MaxCellsPerPad: max(resolved.MaxCellsPerPad, 0),
		MaxCellBytes:   max(resolved.MaxCellBytes, 0),
	}
}

func mergeLimits(base, overlay Limits) Limits {
	return Limits{
		MaxScratchpads: pickInt(overlay.MaxScratchpads, base.MaxScratchpads),
		MaxCellsPerPad: pickInt(overlay.MaxCellsPerPad, base.MaxCellsPerPad),
		MaxCellBytes:   pickInt(overlay.MaxCellBytes, base.MaxCellBytes),
	}
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return strings.TrimSpace(overlay)
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickDuration(overlay, base Duration) Duration {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
