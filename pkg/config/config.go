// Package config loads recorder and executor settings from CUE. User input
// is unified with an embedded schema that supplies defaults and bounds, then
// validated concretely and decoded.
package config

import (
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/cespare/xxhash/v2"

	schemas "github.com/chazu/compgraph/cue"
	"github.com/chazu/compgraph/pkg/graph"
	"github.com/chazu/compgraph/pkg/recorder"
)

// Config holds the settings of one recording and its execution pass
type Config struct {
	Recorder recorder.Options     `json:"recorder"`
	Executor graph.ExecutorConfig `json:"executor"`
}

// Loader compiles configuration sources against the embedded schema.
// Decoded configurations are kept by content hash, so reloading an
// unchanged file skips compilation.
type Loader struct {
	ctx    *cue.Context
	schema cue.Value

	mu      sync.RWMutex
	decoded map[uint64]Config
}

// NewLoader compiles the embedded schema
func NewLoader() (*Loader, error) {
	src, err := schemas.SchemaFS.ReadFile(schemas.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded schema: %w", err)
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(schemas.SchemaFile))
	if value.Err() != nil {
		return nil, fmt.Errorf("failed to compile embedded schema: %w", value.Err())
	}

	def := value.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return nil, fmt.Errorf("embedded schema has no #Config definition")
	}

	return &Loader{
		ctx:     ctx,
		schema:  def,
		decoded: make(map[uint64]Config),
	}, nil
}

// Default returns the configuration with every field at its default
func (l *Loader) Default() (*Config, error) {
	return l.Parse(nil)
}

// Parse unifies src with the schema and decodes the result. Empty input
// yields the defaults.
func (l *Loader) Parse(src []byte) (*Config, error) {
	return l.parse("input", src)
}

// Load reads and parses the CUE file at path
func (l *Loader) Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return l.parse(path, src)
}

func (l *Loader) parse(filename string, src []byte) (*Config, error) {
	key := xxhash.Sum64(src)
	l.mu.RLock()
	cfg, found := l.decoded[key]
	l.mu.RUnlock()
	if found {
		return &cfg, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	user := l.ctx.CompileBytes(src, cue.Filename(filename))
	if user.Err() != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", filename, user.Err())
	}

	value := l.schema.Unify(user)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filename, err)
	}
	if err := value.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	l.decoded[key] = cfg
	return &cfg, nil
}

// Load reads the CUE file at path with a fresh loader
func Load(path string) (*Config, error) {
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	return l.Load(path)
}

// Parse parses src with a fresh loader
func Parse(src []byte) (*Config, error) {
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	return l.Parse(src)
}
