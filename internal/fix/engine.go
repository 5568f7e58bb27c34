package fix

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"refit/internal/diag"
	"refit/internal/source"
)

// ErrNoFixes is returned when no fixes were applied.
var ErrNoFixes = errors.New("no applicable fixes found")

// ApplyMode determines selection strategy for fixes.
type ApplyMode uint8

const (
	// ApplyModeOnce applies the first safe fix, or the first fix at all.
	ApplyModeOnce ApplyMode = iota
	// ApplyModeAll applies every always-safe fix that does not conflict.
	ApplyModeAll
	// ApplyModeID applies the fix with TargetID.
	ApplyModeID
)

// ApplyOptions configures how fixes are selected.
type ApplyOptions struct {
	Mode     ApplyMode
	TargetID string
	DryRun   bool // compute results without writing files
}

// AppliedFix records a successfully applied fix.
type AppliedFix struct {
	ID            string
	Title         string
	Code          diag.Code
	Applicability diag.FixApplicability
	Path          string
	EditCount     int
}

// SkippedFix captures a skipped or failed fix with a reason.
type SkippedFix struct {
	ID     string
	Title  string
	Reason string
}

// FileChange summarises modifications performed on a file.
type FileChange struct {
	Path      string
	EditCount int
	Content   []byte
}

// ApplyResult aggregates applied fixes, skipped ones, and file changes.
type ApplyResult struct {
	Applied     []AppliedFix
	Skipped     []SkippedFix
	FileChanges []FileChange
}

type candidate struct {
	diag  diag.Diagnostic
	fix   diag.Fix
	order int
}

// Apply selects fixes from diagnostics according to opts and writes the
// edited files. Fixes that conflict with an already selected one, target a
// virtual file or fail their guard are skipped, never partially applied.
func Apply(fs *source.FileSet, diagnostics []diag.Diagnostic, opts ApplyOptions) (*ApplyResult, error) {
	result := &ApplyResult{}
	if fs == nil {
		return result, fmt.Errorf("fix: FileSet is nil")
	}

	candidates, skips := gatherCandidates(diagnostics)
	result.Skipped = append(result.Skipped, skips...)
	if len(candidates) == 0 {
		return result, ErrNoFixes
	}
	sortCandidates(candidates)

	selected, skips := selectCandidates(candidates, opts)
	result.Skipped = append(result.Skipped, skips...)
	if len(selected) == 0 {
		return result, ErrNoFixes
	}

	st := newStaging(fs)
	for _, cand := range selected {
		if reason := st.stage(cand.fix); reason != "" {
			result.Skipped = append(result.Skipped, SkippedFix{ID: cand.fix.ID, Title: cand.fix.Title, Reason: reason})
			continue
		}
		result.Applied = append(result.Applied, AppliedFix{
			ID:            cand.fix.ID,
			Title:         cand.fix.Title,
			Code:          cand.diag.Code,
			Applicability: cand.fix.Applicability,
			Path:          formatFilePath(fs, cand.diag.Primary.File),
			EditCount:     len(cand.fix.Edits),
		})
	}
	if len(result.Applied) == 0 {
		return result, ErrNoFixes
	}

	changes, err := st.commit(opts.DryRun)
	result.FileChanges = changes
	return result, err
}

// gatherCandidates flattens the fixes of diagnostics. Fixes without edits and
// repeated IDs are skipped; missing IDs are synthesised from the diagnostic.
func gatherCandidates(diagnostics []diag.Diagnostic) ([]candidate, []SkippedFix) {
	var (
		cands []candidate
		skips []SkippedFix
	)
	seen := make(map[string]bool)
	order := 0
	for _, d := range diagnostics {
		for idx, f := range d.Fixes {
			if len(f.Edits) == 0 {
				skips = append(skips, SkippedFix{ID: f.ID, Title: f.Title, Reason: "fix has no edits"})
				continue
			}
			if f.ID == "" {
				f.ID = fmt.Sprintf("%s-%d-%d-%d", d.Code.ID(), d.Primary.File, d.Primary.Start, idx)
			}
			if seen[f.ID] {
				skips = append(skips, SkippedFix{ID: f.ID, Title: f.Title, Reason: "duplicate fix id"})
				continue
			}
			seen[f.ID] = true
			cands = append(cands, candidate{diag: d, fix: f, order: order})
			order++
		}
	}
	return cands, skips
}

// sortCandidates orders by file, span, insertion order and then preference.
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := candidates[i].diag, candidates[j].diag
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		if di.Primary.Start != dj.Primary.Start {
			return di.Primary.Start < dj.Primary.Start
		}
		if di.Primary.End != dj.Primary.End {
			return di.Primary.End < dj.Primary.End
		}
		if candidates[i].fix.IsPreferred != candidates[j].fix.IsPreferred {
			return candidates[i].fix.IsPreferred
		}
		return candidates[i].order < candidates[j].order
	})
}

func selectCandidates(candidates []candidate, opts ApplyOptions) ([]candidate, []SkippedFix) {
	switch opts.Mode {
	case ApplyModeID:
		for _, cand := range candidates {
			if cand.fix.ID == opts.TargetID {
				return []candidate{cand}, nil
			}
		}
		return nil, []SkippedFix{{ID: opts.TargetID, Reason: "fix id not found"}}
	case ApplyModeAll:
		var (
			selected []candidate
			skipped  []SkippedFix
		)
		for _, cand := range candidates {
			if cand.fix.Applicability == diag.FixApplicabilityAlwaysSafe {
				selected = append(selected, cand)
				continue
			}
			skipped = append(skipped, SkippedFix{
				ID:     cand.fix.ID,
				Title:  cand.fix.Title,
				Reason: fmt.Sprintf("applicability is %s", cand.fix.Applicability),
			})
		}
		return selected, skipped
	case ApplyModeOnce:
		for _, cand := range candidates {
			if cand.fix.Applicability == diag.FixApplicabilityAlwaysSafe {
				return []candidate{cand}, nil
			}
		}
		return candidates[:1], nil
	}
	return nil, nil
}

// staging accumulates accepted edits per file; every edit keeps its
// original-content offsets until commit splices them all at once.
type staging struct {
	fs    *source.FileSet
	edits map[source.FileID][]diag.TextEdit
	count map[source.FileID]int
}

func newStaging(fs *source.FileSet) *staging {
	return &staging{
		fs:    fs,
		edits: make(map[source.FileID][]diag.TextEdit),
		count: make(map[source.FileID]int),
	}
}

// stage accepts f or returns why it cannot be applied.
func (s *staging) stage(f diag.Fix) string {
	buckets := make(map[source.FileID][]diag.TextEdit)
	for _, e := range f.Edits {
		buckets[e.Span.File] = append(buckets[e.Span.File], e)
	}
	for id, edits := range buckets {
		file := s.fs.Get(id)
		if file == nil {
			return "target file is unknown"
		}
		if file.Flags&source.FileVirtual != 0 {
			return "target file is virtual"
		}
		if Conflicts(s.edits[id], edits) {
			return fmt.Sprintf("conflicts with previously applied edits in %s", file.FormatPath("auto", s.fs.BaseDir()))
		}
		// guard and overlap check against the original content
		if _, err := Splice(file.Content, append(append([]diag.TextEdit(nil), s.edits[id]...), edits...)); err != nil {
			return err.Error()
		}
	}
	for id, edits := range buckets {
		s.edits[id] = append(s.edits[id], edits...)
		s.count[id] += len(edits)
	}
	return ""
}

func (s *staging) commit(dryRun bool) ([]FileChange, error) {
	ids := make([]source.FileID, 0, len(s.edits))
	for id := range s.edits {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	changes := make([]FileChange, 0, len(ids))
	for _, id := range ids {
		file := s.fs.Get(id)
		buf, err := Splice(file.Content, s.edits[id])
		if err != nil {
			return changes, fmt.Errorf("%s: %w", file.Path, err)
		}
		if !dryRun {
			mode := os.FileMode(0o644)
			if info, err := os.Stat(file.Path); err == nil {
				mode = info.Mode()
			}
			if err := os.WriteFile(file.Path, restoreLineEndings(file, buf), mode); err != nil {
				return changes, fmt.Errorf("write %s: %w", file.Path, err)
			}
		}
		changes = append(changes, FileChange{
			Path:      file.FormatPath("relative", s.fs.BaseDir()),
			EditCount: s.count[id],
			Content:   buf,
		})
	}
	return changes, nil
}

// restoreLineEndings undoes the load-time normalisation so a rewrite does not
// touch every line of a CRLF file.
func restoreLineEndings(file *source.File, buf []byte) []byte {
	if file.Flags&source.FileNormalizedCRLF == 0 && file.Flags&source.FileHadBOM == 0 {
		return buf
	}
	out := make([]byte, 0, len(buf)+len(buf)/32+3)
	if file.Flags&source.FileHadBOM != 0 {
		out = append(out, 0xEF, 0xBB, 0xBF)
	}
	for _, b := range buf {
		if b == '\n' && file.Flags&source.FileNormalizedCRLF != 0 {
			out = append(out, '\r')
		}
		out = append(out, b)
	}
	return out
}

func formatFilePath(fs *source.FileSet, fileID source.FileID) string {
	file := fs.Get(fileID)
	if file == nil {
		return ""
	}
	return file.FormatPath("auto", fs.BaseDir())
}
