package main

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Discipline is the field a mental model is borrowed from.
type Discipline string

const (
	DisciplinePsychology Discipline = "Psychology"
	DisciplineEconomics  Discipline = "Economics"
	DisciplinePhysics    Discipline = "Physics"
	DisciplineMath       Discipline = "Math"
	DisciplineBiology    Discipline = "Biology"
	DisciplineGeneral    Discipline = "General"

	// DisciplineAll disables discipline filtering.
	DisciplineAll Discipline = "All"
)

var disciplines = []Discipline{
	DisciplinePsychology,
	DisciplineEconomics,
	DisciplinePhysics,
	DisciplineMath,
	DisciplineBiology,
	DisciplineGeneral,
}

// filterChips is the cycle order of the discipline filter.
var filterChips = append([]Discipline{DisciplineAll}, disciplines...)

func (d Discipline) valid() bool {
	for _, known := range disciplines {
		if d == known {
			return true
		}
	}
	return false
}

// parseDiscipline accepts any case; "all" and "" map to DisciplineAll.
func parseDiscipline(raw string) (Discipline, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, string(DisciplineAll)) {
		return DisciplineAll, nil
	}
	for _, known := range disciplines {
		if strings.EqualFold(trimmed, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown discipline %q", raw)
}

// nextChip returns the chip after current, wrapping around. step may be negative.
func nextChip(current Discipline, step int) Discipline {
	idx := 0
	for i, chip := range filterChips {
		if chip == current {
			idx = i
			break
		}
	}
	n := len(filterChips)
	return filterChips[((idx+step)%n+n)%n]
}

// ModelEntry is one catalogue card.
type ModelEntry struct {
	ID                  string     `yaml:"id"`
	Title               string     `yaml:"title"`
	Discipline          Discipline `yaml:"discipline"`
	Summary             string     `yaml:"summary"`
	Icon                Icon       `yaml:"icon"`
	Description         string     `yaml:"description"`
	CrossPollinationIDs []string   `yaml:"crossPollination,omitempty"`
}

// Quote is a catalogue quote shown in the header.
type Quote struct {
	Text        string `yaml:"text"`
	Attribution string `yaml:"attribution"`
}

type catalogDocument struct {
	Models []ModelEntry `yaml:"models"`
	Quotes []Quote      `yaml:"quotes"`
}

// catalog is the read-only store built once at startup.
type catalog struct {
	models []ModelEntry
	quotes []Quote
	byID   map[string]int
}

//go:embed catalog/default.yaml
var defaultCatalogYAML []byte

// loadCatalog reads the catalogue at path, or the built-in one when path is empty.
func loadCatalog(path string, logger *zap.Logger) (*catalog, error) {
	data := defaultCatalogYAML
	source := "embedded"
	if strings.TrimSpace(path) != "" {
		path = expandHome(path)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalogue %q: %w", path, err)
		}
		data = raw
		source = path
	}
	cat, err := parseCatalog(data, logger)
	if err != nil {
		return nil, fmt.Errorf("load catalogue %s: %w", source, err)
	}
	logger.Debug("catalogue loaded",
		zap.String("source", source),
		zap.Int("models", len(cat.models)),
		zap.Int("quotes", len(cat.quotes)))
	return cat, nil
}

// parseCatalog decodes and validates a YAML catalogue. Unknown icons,
// unknown disciplines and duplicate ids are fatal; dangling
// cross-pollination ids are only logged.
func parseCatalog(data []byte, logger *zap.Logger) (*catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc catalogDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalogue is empty")
		}
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}
	if len(doc.Models) == 0 {
		return nil, errors.New("catalogue defines no models")
	}
	if len(doc.Quotes) == 0 {
		return nil, errors.New("catalogue defines no quotes")
	}

	cat := &catalog{
		models: doc.Models,
		quotes: doc.Quotes,
		byID:   make(map[string]int, len(doc.Models)),
	}
	for idx, m := range doc.Models {
		if strings.TrimSpace(m.ID) == "" {
			return nil, fmt.Errorf("model #%d has no id", idx+1)
		}
		if _, dup := cat.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", m.ID)
		}
		if strings.TrimSpace(m.Title) == "" {
			return nil, fmt.Errorf("model %q has no title", m.ID)
		}
		if !m.Discipline.valid() {
			return nil, fmt.Errorf("model %q has unknown discipline %q", m.ID, m.Discipline)
		}
		if !m.Icon.registered() {
			return nil, fmt.Errorf("model %q references unregistered icon %q", m.ID, m.Icon)
		}
		cat.byID[m.ID] = idx
	}

	for _, ref := range cat.danglingRefs() {
		logger.Warn("dangling cross-pollination reference", zap.String("ref", ref))
	}
	return cat, nil
}

func (c *catalog) allModels() []ModelEntry {
	return c.models
}

func (c *catalog) allQuotes() []Quote {
	return c.quotes
}

func (c *catalog) lookup(id string) (ModelEntry, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return ModelEntry{}, false
	}
	return c.models[idx], true
}

// related resolves entry's cross-pollination ids in declared order.
func (c *catalog) related(entry ModelEntry) []ModelEntry {
	out := make([]ModelEntry, 0, len(entry.CrossPollinationIDs))
	for _, id := range entry.CrossPollinationIDs {
		if m, ok := c.lookup(id); ok {
			out = append(out, m)
		}
	}
	return out
}

// danglingRefs lists "from->to" pairs whose target is not in the catalogue.
func (c *catalog) danglingRefs() []string {
	var refs []string
	for _, m := range c.models {
		for _, id := range m.CrossPollinationIDs {
			if _, ok := c.byID[id]; !ok {
				refs = append(refs, m.ID+"->"+id)
			}
		}
	}
	return refs
}
