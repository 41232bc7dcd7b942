package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/compgraph/pkg/graph"
	"github.com/chazu/compgraph/pkg/recorder"
)

func TestNewLoader(t *testing.T) {
	loader, err := NewLoader()
	if err != nil {
		t.Fatalf("Failed to create loader: %v", err)
	}
	if loader.ctx == nil {
		t.Error("Expected non-nil CUE context")
	}
	if !loader.schema.Exists() {
		t.Error("Expected the #Config definition to exist")
	}
}

func TestDefaults(t *testing.T) {
	loader, err := NewLoader()
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := loader.Default()
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	want := &Config{
		Recorder: recorder.Options{Name: "root"},
		Executor: graph.ExecutorConfig{MaxConcurrency: 4},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    *Config
		wantErr bool
	}{
		{
			name: "overrides",
			src: `
recorder: {
	name:   "wing"
	inline: true
	debug:  true
}
executor: maxConcurrency: 16
`,
			want: &Config{
				Recorder: recorder.Options{Name: "wing", Inline: true, Debug: true},
				Executor: graph.ExecutorConfig{MaxConcurrency: 16},
			},
		},
		{
			name: "partial",
			src:  `recorder: expandComposites: true`,
			want: &Config{
				Recorder: recorder.Options{Name: "root", ExpandComposites: true},
				Executor: graph.ExecutorConfig{MaxConcurrency: 4},
			},
		},
		{name: "concurrency out of range", src: `executor: maxConcurrency: 0`, wantErr: true},
		{name: "wrong type", src: `recorder: inline: "yes"`, wantErr: true},
		{name: "unknown field", src: `recorder: verbose: true`, wantErr: true},
		{name: "empty name", src: `recorder: name: ""`, wantErr: true},
		{name: "syntax error", src: `recorder: {`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.src))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %+v", cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, cfg); diff != "" {
				t.Errorf("Config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadCaching(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.cue")
	if err := os.WriteFile(path, []byte(`recorder: autoHierarchy: true`), 0o600); err != nil {
		t.Fatal(err)
	}

	loader, err := NewLoader()
	if err != nil {
		t.Fatal(err)
	}

	first, err := loader.Load(path)
	if err != nil {
		t.Fatalf("First load failed: %v", err)
	}
	if len(loader.decoded) != 1 {
		t.Errorf("Expected cache size 1, got %d", len(loader.decoded))
	}

	second, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Second load failed: %v", err)
	}
	if len(loader.decoded) != 1 {
		t.Errorf("Expected cache to be reused, got size %d", len(loader.decoded))
	}
	if !first.Recorder.AutoHierarchy || !second.Recorder.AutoHierarchy {
		t.Error("Expected autoHierarchy to be set")
	}

	if _, err := Load(filepath.Join(dir, "missing.cue")); err == nil {
		t.Error("Expected error for a missing file")
	}
}
