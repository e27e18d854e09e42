// Package layout turns positioned text fragments from one statement page into
// column boundaries and ordered table rows.
//
// Coordinates follow PDF user space: y grows upwards, so the topmost row has
// the largest y. Nothing in this package performs I/O.
package layout

import (
	"math"
	"sort"
	"strings"
)

// TextFragment is an atomic piece of positioned text extracted from a page.
type TextFragment struct {
	Text   string
	X      float64
	Y      float64
	Width  float64
	Height float64
	Page   int
}

// ColumnBoundary is a named horizontal interval mapped to a semantic field.
type ColumnBoundary struct {
	Label string
	Start float64
	Width float64
}

// Contains reports whether x falls inside the boundary widened by tolerance
// on both sides.
func (b ColumnBoundary) Contains(x, tolerance float64) bool {
	return x >= b.Start-tolerance && x <= b.Start+b.Width+tolerance
}

// Span is an explicit start/width pair supplied by a template.
type Span struct {
	Start float64
	Width float64
}

// BoundarySet holds the resolved columns of one page.
type BoundarySet struct {
	Positions map[string]ColumnBoundary
	// Order lists labels in template header order; column assignment walks it
	// so the first matching boundary wins deterministically.
	Order   []string
	HeaderY float64
	// FromHeaders is false when the page had no header row and template
	// defaults were used.
	FromHeaders bool
}

// Boundaries returns the boundaries in Order.
func (s BoundarySet) Boundaries() []ColumnBoundary {
	out := make([]ColumnBoundary, 0, len(s.Order))
	for _, label := range s.Order {
		if b, ok := s.Positions[label]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Spec is the page-layout part of a template.
type Spec struct {
	Headers []string
	// Adjustments override header-detected positions per label. Observed
	// coordinates drift between renders, so templates pin them here.
	Adjustments map[string]Span
	// Defaults are used for labels without a header on the page, and for
	// every label on continuation pages with no header row.
	Defaults       map[string]Span
	DefaultHeaderY float64
	TopMargin      float64
}

// BoundaryStrategy tries to resolve a page's columns. ok is false when the
// strategy does not apply to the page.
type BoundaryStrategy func(fragments []TextFragment, spec Spec) (set BoundarySet, ok bool)

// DefaultStrategies is the fallback chain used by ResolveBoundaries.
var DefaultStrategies = []BoundaryStrategy{FromHeaders, FromDefaults}

// ResolveBoundaries computes the column boundaries of one page. It never
// fails: when no header is found the template defaults are used.
func ResolveBoundaries(fragments []TextFragment, spec Spec) BoundarySet {
	return ResolveWith(DefaultStrategies, fragments, spec)
}

// ResolveWith evaluates strategies in order and returns the first result.
func ResolveWith(strategies []BoundaryStrategy, fragments []TextFragment, spec Spec) BoundarySet {
	for _, strategy := range strategies {
		if set, ok := strategy(fragments, spec); ok {
			return set
		}
	}
	set, _ := FromDefaults(fragments, spec)
	return set
}

// FromHeaders locates each declared header label by exact case-insensitive
// match. HeaderY comes from the first header found in template order.
func FromHeaders(fragments []TextFragment, spec Spec) (BoundarySet, bool) {
	set := BoundarySet{
		Positions:   make(map[string]ColumnBoundary, len(spec.Headers)),
		Order:       append([]string(nil), spec.Headers...),
		FromHeaders: true,
	}
	found := false

	for _, label := range spec.Headers {
		frag, ok := findHeader(fragments, label)
		if !ok {
			continue
		}
		if !found {
			set.HeaderY = frag.Y
			found = true
		}

		b := ColumnBoundary{Label: label, Start: frag.X, Width: frag.Width}
		if adj, ok := spec.Adjustments[label]; ok {
			b.Start = adj.Start
			if adj.Width > 0 {
				b.Width = adj.Width
			}
		}
		set.Positions[label] = b
	}

	if !found {
		return BoundarySet{}, false
	}

	// A header that failed to render as a single fragment still gets a column
	// when the template declares a default for it.
	for _, label := range spec.Headers {
		if _, ok := set.Positions[label]; ok {
			continue
		}
		if def, ok := spec.Defaults[label]; ok {
			set.Positions[label] = ColumnBoundary{Label: label, Start: def.Start, Width: def.Width}
		}
	}
	return set, true
}

// FromDefaults builds the boundary set from template defaults. When the
// template has no default header y, everything below TopMargin (measured
// down from the topmost fragment) is treated as data.
func FromDefaults(fragments []TextFragment, spec Spec) (BoundarySet, bool) {
	set := BoundarySet{
		Positions: make(map[string]ColumnBoundary, len(spec.Defaults)),
		Order:     append([]string(nil), spec.Headers...),
	}
	for _, label := range spec.Headers {
		if def, ok := spec.Defaults[label]; ok {
			set.Positions[label] = ColumnBoundary{Label: label, Start: def.Start, Width: def.Width}
		}
	}
	// Defaults for labels outside the header list still take part, after
	// the declared ones.
	extra := make([]string, 0)
	for label := range spec.Defaults {
		if _, ok := set.Positions[label]; !ok {
			extra = append(extra, label)
		}
	}
	sort.Strings(extra)
	for _, label := range extra {
		def := spec.Defaults[label]
		set.Positions[label] = ColumnBoundary{Label: label, Start: def.Start, Width: def.Width}
		set.Order = append(set.Order, label)
	}

	switch {
	case spec.DefaultHeaderY > 0:
		set.HeaderY = spec.DefaultHeaderY
	default:
		set.HeaderY = topOf(fragments) - spec.TopMargin
		if spec.TopMargin == 0 {
			set.HeaderY = math.Inf(1)
		}
	}
	return set, true
}

func findHeader(fragments []TextFragment, label string) (TextFragment, bool) {
	want := strings.TrimSpace(label)
	for _, f := range fragments {
		if strings.EqualFold(strings.TrimSpace(f.Text), want) {
			return f, true
		}
	}
	return TextFragment{}, false
}

func topOf(fragments []TextFragment) float64 {
	top := math.Inf(-1)
	for _, f := range fragments {
		if f.Y > top {
			top = f.Y
		}
	}
	if math.IsInf(top, -1) {
		return 0
	}
	return top
}
