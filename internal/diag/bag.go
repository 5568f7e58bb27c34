package diag

import (
	"slices"
)

// Bag collects diagnostics up to a limit and counts what it had to drop.
type Bag struct {
	items   []Diagnostic
	limit   int
	dropped int
}

// NewBag returns a Bag that keeps at most limit diagnostics.
func NewBag(limit int) *Bag {
	return &Bag{items: make([]Diagnostic, 0, min(limit, 16)), limit: limit}
}

// Add stores d and reports false once the limit is reached.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= b.limit {
		b.dropped++
		return false
	}
	b.items = append(b.items, d)
	return true
}

func (b *Bag) Len() int { return len(b.items) }

// Dropped is the number of diagnostics rejected by the limit.
func (b *Bag) Dropped() int { return b.dropped }

// HasErrors reports whether any stored diagnostic is an error.
func (b *Bag) HasErrors() bool {
	return slices.ContainsFunc(b.items, func(d Diagnostic) bool { return d.Severity == SevError })
}

// Items returns a copy of the stored diagnostics.
func (b *Bag) Items() []Diagnostic {
	return slices.Clone(b.items)
}

// Sort orders by file and start offset, errors before warnings on a tie.
func (b *Bag) Sort() {
	slices.SortStableFunc(b.items, func(x, y Diagnostic) int {
		switch {
		case x.Primary.File != y.Primary.File:
			return int(x.Primary.File) - int(y.Primary.File)
		case x.Primary.Start != y.Primary.Start:
			return int(x.Primary.Start) - int(y.Primary.Start)
		case x.Primary.End != y.Primary.End:
			return int(x.Primary.End) - int(y.Primary.End)
		case x.Severity != y.Severity:
			return int(y.Severity) - int(x.Severity)
		}
		return int(x.Code) - int(y.Code)
	})
}
