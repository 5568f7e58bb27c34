package assist

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"refit/internal/diag"
	"refit/internal/fix"
	"refit/internal/source"
)

// ErrStaleDocument is returned by Apply when the document no longer holds
// the text the proposal was computed against.
var ErrStaleDocument = errors.New("assist: stale document")

// Status is OK, or a warning with the reason shown next to the label.
type Status struct {
	OK     bool
	Reason string
}

func (s Status) String() string {
	if s.OK {
		return "ok"
	}
	return "warning: " + s.Reason
}

// Proposal is one ranked rewrite. It is immutable; Apply writes to an
// external document.
type Proposal struct {
	RuleID    string
	Label     string
	Status    Status
	Relevance int
	Edits     []diag.TextEdit

	file *source.File
}

// Preview returns the full source after the proposal's edits.
func (p Proposal) Preview() (string, error) {
	if p.file == nil {
		return "", ErrNoSnapshot
	}
	out, err := fix.Splice(p.file.Content, p.Edits)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Apply splices the edits into doc. doc must still hold the snapshot's text;
// applying the same proposal twice therefore fails.
func (p Proposal) Apply(doc Document) error {
	if doc == nil {
		return errors.New("assist: nil document")
	}
	content := doc.Content()
	if p.file != nil && !bytes.Equal(content, p.file.Content) {
		return ErrStaleDocument
	}
	out, err := fix.Splice(content, p.Edits)
	if err != nil {
		if errors.Is(err, fix.ErrStale) || errors.Is(err, fix.ErrConflict) {
			return fmt.Errorf("%w: %w", ErrStaleDocument, err)
		}
		return err
	}
	return doc.Replace(out)
}

// Diagnostics wraps each proposal into an info diagnostic carrying one fix,
// so the fix engine can write them to disk. Fix IDs are the 1-based
// positions in props.
func Diagnostics(props []Proposal) []diag.Diagnostic {
	out := make([]diag.Diagnostic, 0, len(props))
	for i, p := range props {
		if len(p.Edits) == 0 {
			continue
		}
		code, app := diag.RuleInfo, diag.FixApplicabilityAlwaysSafe
		if !p.Status.OK {
			code, app = diag.RuleWarning, diag.FixApplicabilityManualReview
		}
		d := diag.New(diag.SevInfo, code, p.Edits[0].Span, p.Label).WithFix(diag.Fix{
			ID:            strconv.Itoa(i + 1),
			Title:         p.Label,
			Kind:          diag.FixKindRewrite,
			Applicability: app,
			IsPreferred:   i == 0,
			Edits:         p.Edits,
		})
		if !p.Status.OK {
			d = d.WithNote(p.Edits[0].Span, p.Status.Reason)
		}
		out = append(out, d)
	}
	return out
}

// Document is the editable buffer a proposal is applied to.
type Document interface {
	Content() []byte
	Replace(content []byte) error
}

// Buffer is an in-memory Document. Each Replace bumps the generation.
type Buffer struct {
	mu         sync.Mutex
	content    []byte
	generation int
}

// NewBuffer copies content into a new buffer.
func NewBuffer(content []byte) *Buffer {
	return &Buffer{content: append([]byte(nil), content...)}
}

// Content returns a copy of the current text.
func (b *Buffer) Content() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.content...)
}

// Replace swaps the whole text.
func (b *Buffer) Replace(content []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.content = append([]byte(nil), content...)
	b.generation++
	return nil
}

// Generation counts the replacements so far.
func (b *Buffer) Generation() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}
