package pipeline

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// Kind classifies a diagnostic message.
type Kind int

const (
	KindInfo Kind = iota
	KindMissingValue
	KindWarning
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindMissingValue:
		return "missing_value"
	case KindWarning:
		return "warning"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Diagnostic is one finding attributed to a dataset or country.
type Diagnostic struct {
	Kind     Kind
	Category string
	Message  string
}

// Collector gathers diagnostics for a run without rendering or delivering
// them. Duplicate findings (same kind, category and message) collapse into
// one, so per-row loops can report freely.
type Collector struct {
	RunID  string
	seen   map[string]bool
	items  []Diagnostic
	logger *slog.Logger
}

// NewCollector creates a collector with a fresh run identifier.
func NewCollector() *Collector {
	runID := uuid.NewString()
	return &Collector{
		RunID:  runID,
		seen:   make(map[string]bool),
		logger: slog.Default().With("component", "diagnostics", "run_id", runID),
	}
}

func (c *Collector) add(kind Kind, category, message string) {
	key := fmt.Sprintf("%d|%s|%s", kind, category, message)
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.items = append(c.items, Diagnostic{Kind: kind, Category: category, Message: message})
}

// Info records an informational count or note.
func (c *Collector) Info(category, message string) {
	c.add(KindInfo, category, message)
}

// MissingValue records a vocabulary miss.
func (c *Collector) MissingValue(dataset, valueType, value string) {
	c.add(KindMissingValue, dataset, fmt.Sprintf("missing %s: %s", valueType, value))
}

// Warning records a non-fatal data-quality finding.
func (c *Collector) Warning(dataset, message string) {
	c.add(KindWarning, dataset, message)
}

// Error records a row- or country-level failure.
func (c *Collector) Error(dataset, message string) {
	c.add(KindError, dataset, message)
}

// Items returns a copy of the collected diagnostics in arrival order.
func (c *Collector) Items() []Diagnostic {
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Count reports how many diagnostics of a kind were collected.
func (c *Collector) Count(kind Kind) int {
	n := 0
	for _, item := range c.items {
		if item.Kind == kind {
			n++
		}
	}
	return n
}

// LogAll writes every collected diagnostic to the logger, grouped by kind
// and sorted within each group.
func (c *Collector) LogAll() {
	sorted := c.Items()
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		return sorted[i].Message < sorted[j].Message
	})
	for _, item := range sorted {
		switch item.Kind {
		case KindError:
			c.logger.Error(item.Message, "category", item.Category, "kind", item.Kind.String())
		case KindWarning, KindMissingValue:
			c.logger.Warn(item.Message, "category", item.Category, "kind", item.Kind.String())
		default:
			c.logger.Info(item.Message, "category", item.Category, "kind", item.Kind.String())
		}
	}
}
