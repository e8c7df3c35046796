package universe

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/pkg/config"
	"github.com/wonny/breakscan/pkg/logger"
)

//go:embed default_universe.yaml
var defaultUniverse []byte

// Document is the YAML layout of a universe file
type Document struct {
	Primary   []string            `yaml:"primary"`
	Secondary []string            `yaml:"secondary"`
	Sectors   map[string][]string `yaml:"sectors"` // sector → symbols
}

// Parse decodes a universe document (unknown fields rejected)
func Parse(data []byte) (*contracts.SymbolUniverse, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode universe: %w", err)
	}
	return doc.Build()
}

// Build validates the document and produces the universe.
// Symbols are upper-cased; a symbol listed under two sectors is an error.
func (d Document) Build() (*contracts.SymbolUniverse, error) {
	sectors := make(map[string]string)

	// 섹터 이름 순으로 처리 (에러 메시지 재현성)
	names := make([]string, 0, len(d.Sectors))
	for name := range d.Sectors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, sector := range names {
		label := strings.TrimSpace(sector)
		if label == "" {
			return nil, fmt.Errorf("universe: empty sector name")
		}
		for _, raw := range d.Sectors[sector] {
			sym := normalize(raw)
			if sym == "" {
				continue
			}
			if prev, ok := sectors[sym]; ok && prev != label {
				return nil, fmt.Errorf("universe: %s listed under both %q and %q", sym, prev, label)
			}
			sectors[sym] = label
		}
	}

	primary := dedupe(d.Primary)
	secondary := dedupe(d.Secondary)

	if len(sectors) == 0 && len(primary) == 0 && len(secondary) == 0 {
		return nil, fmt.Errorf("universe: no symbols")
	}

	return contracts.NewSymbolUniverse(sectors, primary, secondary), nil
}

// normalize trims and upper-cases a ticker
func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// dedupe normalizes and keeps the first occurrence of each symbol
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		sym := normalize(raw)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// =============================================================================
// Sources
// =============================================================================

// EmbeddedSource serves the universe compiled into the binary
type EmbeddedSource struct{}

// Load parses the embedded default universe
func (EmbeddedSource) Load(context.Context) (*contracts.SymbolUniverse, error) {
	return Parse(defaultUniverse)
}

// FileSource reads a universe YAML from disk
type FileSource struct {
	Path string
}

// Load reads and parses the file
func (s FileSource) Load(context.Context) (*contracts.SymbolUniverse, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}
	return Parse(data)
}

// NewSource picks the universe source configured by UNIVERSE_SOURCE.
// db is only required for the postgres source.
func NewSource(cfg *config.Config, db Querier, log *logger.Logger) (contracts.UniverseSource, error) {
	switch cfg.Universe.Source {
	case "", config.UniverseEmbedded:
		return EmbeddedSource{}, nil
	case config.UniverseFile:
		if cfg.Universe.File == "" {
			return nil, fmt.Errorf("universe source %q requires UNIVERSE_FILE", config.UniverseFile)
		}
		return FileSource{Path: cfg.Universe.File}, nil
	case config.UniversePostgres:
		if db == nil {
			return nil, fmt.Errorf("universe source %q requires a database connection", config.UniversePostgres)
		}
		return NewPostgresSource(db, log), nil
	default:
		return nil, fmt.Errorf("unknown universe source %q", cfg.Universe.Source)
	}
}
