package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	scerrors "github.com/hpungsan/scratchpad/internal/errors"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.MaxScratchpads != def.MaxScratchpads {
		t.Errorf("MaxScratchpads = %d, want %d", cfg.MaxScratchpads, def.MaxScratchpads)
	}
	if cfg.EvictionPolicy != PolicyDiscard {
		t.Errorf("EvictionPolicy = %q, want %q", cfg.EvictionPolicy, PolicyDiscard)
	}
	if cfg.PreemptAge.Std() != 24*time.Hour {
		t.Errorf("PreemptAge = %v, want 24h", cfg.PreemptAge.Std())
	}
	if !cfg.SemanticSearchEnabled() {
		t.Error("semantic search should be enabled by default")
	}
}

func TestLoad_OverridesFromJSON(t *testing.T) {
	tmpDir := t.TempDir()
	body := `{"max_scratchpads": 3, "eviction_policy": "fail", "preempt_age": "2h", "validation_timeout": 30}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxScratchpads != 3 {
		t.Errorf("MaxScratchpads = %d, want 3", cfg.MaxScratchpads)
	}
	if cfg.MaxCellsPerPad != 1024 {
		t.Errorf("MaxCellsPerPad = %d, want default 1024", cfg.MaxCellsPerPad)
	}
	if cfg.EvictionPolicy != PolicyFail {
		t.Errorf("EvictionPolicy = %q, want fail", cfg.EvictionPolicy)
	}
	if cfg.PreemptAge.Std() != 2*time.Hour {
		t.Errorf("PreemptAge = %v, want 2h", cfg.PreemptAge.Std())
	}
	if cfg.ValidationTimeout.Std() != 30*time.Second {
		t.Errorf("ValidationTimeout = %v, want 30s", cfg.ValidationTimeout.Std())
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	body := `
max_cell_bytes: 128
eviction_policy: preempt
preempt_interval: 5m
enable_semantic_search: false
tenant_limits:
  team-a:
    max_scratchpads: 2
disabled_tools:
  - scratch_search
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxCellBytes != 128 {
		t.Errorf("MaxCellBytes = %d, want 128", cfg.MaxCellBytes)
	}
	if cfg.EvictionPolicy != PolicyPreempt {
		t.Errorf("EvictionPolicy = %q, want preempt", cfg.EvictionPolicy)
	}
	if cfg.PreemptInterval.Std() != 5*time.Minute {
		t.Errorf("PreemptInterval = %v, want 5m", cfg.PreemptInterval.Std())
	}
	if cfg.SemanticSearchEnabled() {
		t.Error("semantic search should be disabled by explicit false")
	}
	if got := cfg.LimitsFor("team-a").MaxScratchpads; got != 2 {
		t.Errorf("LimitsFor(team-a).MaxScratchpads = %d, want 2", got)
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "scratch_search" {
		t.Errorf("DisabledTools = %v, want [scratch_search]", cfg.DisabledTools)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoadWithRepo_RepoOverridesGlobal(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	if err := os.WriteFile(filepath.Join(globalDir, "config.json"),
		[]byte(`{"max_scratchpads": 10, "disabled_tools": ["scratch_delete"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	repoDir := filepath.Join(repoRoot, ".scratchpad")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"),
		[]byte(`{"max_scratchpads": 4, "disabled_tools": ["scratch_search"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	nested := filepath.Join(repoRoot, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, nested)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.MaxScratchpads != 4 {
		t.Errorf("MaxScratchpads = %d, want 4 (repo override)", cfg.MaxScratchpads)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools = %v, want merged pair", cfg.DisabledTools)
	}
}

func TestLimitsFor_NegativeDisables(t *testing.T) {
	cfg := Merge(DefaultConfig(), &Config{Limits: Limits{MaxScratchpads: -1}})
	l := cfg.LimitsFor("anyone")
	if l.MaxScratchpads != 0 {
		t.Errorf("MaxScratchpads = %d, want 0 (unlimited)", l.MaxScratchpads)
	}
	if l.MaxCellsPerPad != 1024 {
		t.Errorf("MaxCellsPerPad = %d, want 1024", l.MaxCellsPerPad)
	}
}

func TestLimitsFor_TenantOverrideFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TenantLimits = map[string]Limits{"small": {MaxCellBytes: 10}}

	l := cfg.LimitsFor("small")
	if l.MaxCellBytes != 10 {
		t.Errorf("MaxCellBytes = %d, want 10", l.MaxCellBytes)
	}
	if l.MaxScratchpads != 1024 {
		t.Errorf("MaxScratchpads = %d, want global 1024", l.MaxScratchpads)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SCRATCHPAD_TENANT":                 "team-b",
		"SCRATCHPAD_MAX_SCRATCHPADS":        "0",
		"SCRATCHPAD_MAX_CELL_BYTES":         "64",
		"SCRATCHPAD_PREEMPT_AGE":            "1d",
		"SCRATCHPAD_ENABLE_SEMANTIC_SEARCH": "false",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Tenant != "team-b" {
		t.Errorf("Tenant = %q, want team-b", cfg.Tenant)
	}
	if got := cfg.LimitsFor(cfg.Tenant).MaxScratchpads; got != 0 {
		t.Errorf("MaxScratchpads = %d, want unlimited", got)
	}
	if cfg.MaxCellBytes != 64 {
		t.Errorf("MaxCellBytes = %d, want 64", cfg.MaxCellBytes)
	}
	if cfg.PreemptAge.Std() != 24*time.Hour {
		t.Errorf("PreemptAge = %v, want 24h", cfg.PreemptAge.Std())
	}
	if cfg.SemanticSearchEnabled() {
		t.Error("semantic search should be disabled")
	}
}

func TestApplyEnv_BadInteger(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "SCRATCHPAD_MAX_CELLS_PER_PAD" {
			return "lots", true
		}
		return "", false
	})
	if !scerrors.Is(err, scerrors.ErrConfig) {
		t.Fatalf("ApplyEnv() error = %v, want CONFIG_ERROR", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() default error = %v", err)
	}

	cfg.EvictionPolicy = "lru"
	err := cfg.Validate()
	if !scerrors.Is(err, scerrors.ErrConfig) {
		t.Fatalf("Validate() error = %v, want CONFIG_ERROR", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30", 30 * time.Second, false},
		{"45s", 45 * time.Second, false},
		{"10m", 10 * time.Minute, false},
		{"24h", 24 * time.Hour, false},
		{"2d", 48 * time.Hour, false},
		{"1h30m", 90 * time.Minute, false},
		{"100ms", 100 * time.Millisecond, false},
		{"", 0, true},
		{"-5", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDuration(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDuration(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMergeStringSlice(t *testing.T) {
	got := mergeStringSlice([]string{" a ", "b"}, []string{"b", "", "c"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("mergeStringSlice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("mergeStringSlice()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if mergeStringSlice(nil, nil) != nil {
		t.Error("mergeStringSlice(nil, nil) should be nil")
	}
}
