// Package driver scans directory trees of Java sources for applicable
// rewrites, in parallel and with an on-disk result cache.
package driver

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"refit/internal/assist"
	"refit/internal/binding"
	"refit/internal/javaparse"
	"refit/internal/observ"
	"refit/internal/render"
	"refit/internal/source"
	"refit/internal/syntax"
	"refit/internal/trace"
)

// Finding is one proposal found at a site of a scanned file.
type Finding struct {
	Line      uint32 `msgpack:"line" json:"line"`
	Col       uint32 `msgpack:"col" json:"col"`
	Offset    uint32 `msgpack:"offset" json:"offset"`
	RuleID    string `msgpack:"rule" json:"rule"`
	Label     string `msgpack:"label" json:"label"`
	Relevance int    `msgpack:"relevance" json:"relevance"`
	Warning   string `msgpack:"warning,omitempty" json:"warning,omitempty"`
}

// FileReport is the scan result of one file.
type FileReport struct {
	Path     string    `msgpack:"path" json:"path"`
	Findings []Finding `msgpack:"findings" json:"findings"`
	Syntax   int       `msgpack:"syntax_errors" json:"syntax_errors"`
	Cached   bool      `msgpack:"-" json:"cached"`
	Err      string    `msgpack:"error,omitempty" json:"error,omitempty"`
}

// ScanOptions configures Scan.
type ScanOptions struct {
	Jobs    int // 0 means GOMAXPROCS
	Engine  assist.Engine
	Format  render.FormattingOptions
	Cache   *DiskCache // nil disables caching
	Catalog *binding.Catalog
	// Progress receives per-file events; nil disables reporting.
	Progress ProgressSink
}

// ScanResult holds one report per Java file, sorted by path.
type ScanResult struct {
	Root    string
	Files   []FileReport
	Timings observ.Report
}

// Count returns the total number of findings.
func (r *ScanResult) Count() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Findings)
	}
	return n
}

// ListJavaFiles returns the sorted *.java files under root; root may also
// be a single file.
func ListJavaFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".java") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}

// Scan parses every Java file under root in parallel and collects the
// proposals available at each candidate site.
func Scan(ctx context.Context, root string, opt ScanOptions) (*ScanResult, error) {
	timer := observ.NewTimer()
	phase := timer.Begin("list")
	files, err := ListJavaFiles(root)
	if err != nil {
		return nil, err
	}
	timer.End(phase, fmt.Sprintf("%d files", len(files)))
	res := &ScanResult{Root: root, Files: make([]FileReport, len(files))}
	if len(files) == 0 {
		res.Timings = timer.Report()
		return res, nil
	}
	if opt.Catalog == nil {
		if opt.Catalog, err = binding.DefaultCatalog(); err != nil {
			return nil, err
		}
	}
	parseCache, err := javaparse.NewCache(len(files))
	if err != nil {
		return nil, err
	}

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeRequest, "scan", trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)

	jobs := opt.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	// FileSet не потокобезопасен: загружаем всё заранее
	phase = timer.Begin("load")
	fileSet := source.NewFileSetWithBase(root)
	loaded := make([]*source.File, len(files))
	loadErrors := make([]error, len(files))
	for i, path := range files {
		emit(opt.Progress, Event{File: path, Stage: StageParse, Status: StatusQueued})
		if id, ok := fileSet.GetLatest(path); ok {
			loaded[i] = fileSet.Get(id)
			continue
		}
		id, err := fileSet.Load(path)
		if err != nil {
			loadErrors[i] = err
			continue
		}
		loaded[i] = fileSet.Get(id)
	}
	timer.End(phase, "")

	phase = timer.Begin("analyze")
	// индексы уникальны для каждой горутины, мьютекс не нужен
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))
	for i, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			start := time.Now()
			rep, err := FileReport{}, loadErrors[i]
			if err == nil {
				rep, err = scanFile(gctx, parseCache, loaded[i], opt)
			}
			done := Event{File: path, Stage: StageAssist, Status: StatusDone, Findings: len(rep.Findings)}
			if err != nil {
				// файл с ошибкой не останавливает остальные
				trace.Failure(tracer, trace.ScopeRule, "scan:"+path, err, span.ID())
				rep = FileReport{Path: path, Err: err.Error()}
				done.Status, done.Err = StatusError, err
			} else if rep.Cached {
				done.Status = StatusCached
			}
			done.Elapsed = time.Since(start)
			emit(opt.Progress, done)
			res.Files[i] = rep
			return nil
		})
	}
	err = g.Wait()
	cached := 0
	for _, f := range res.Files {
		if f.Cached {
			cached++
		}
	}
	timer.End(phase, fmt.Sprintf("%d jobs, %d cached", min(jobs, len(files)), cached))
	res.Timings = timer.Report()
	if err != nil {
		span.End(err.Error())
		return res, err
	}
	span.End(fmt.Sprintf("%d files, %d findings", len(files), res.Count()))
	return res, nil
}

func scanFile(ctx context.Context, parseCache *javaparse.Cache, file *source.File, opt ScanOptions) (FileReport, error) {
	path := file.Path
	key := scanKey(file.Hash, opt.Format, opt.Engine.Disabled)
	var cached FilePayload
	if hit, err := opt.Cache.Get(key, &cached); err == nil && hit {
		return FileReport{Path: path, Findings: cached.Findings, Syntax: cached.Syntax, Cached: true}, nil
	}

	emit(opt.Progress, Event{File: path, Stage: StageParse, Status: StatusWorking})
	snap, err := assist.NewSnapshot(ctx, parseCache, opt.Catalog, file, opt.Format)
	if err != nil {
		return FileReport{}, err
	}
	emit(opt.Progress, Event{File: path, Stage: StageAssist, Status: StatusWorking})
	findings, err := findAll(ctx, &opt.Engine, snap)
	if err != nil {
		return FileReport{}, err
	}
	rep := FileReport{Path: path, Findings: findings, Syntax: len(snap.Tree.Errors)}
	if err := opt.Cache.Put(key, &FilePayload{Path: path, Findings: findings, Syntax: rep.Syntax}); err != nil {
		trace.Failure(trace.FromContext(ctx), trace.ScopeRule, "cache:"+path, err, trace.CurrentSpan(ctx))
	}
	return rep, nil
}

// findAll asks the engine at every candidate site and keeps one finding per
// rule, label and edit position.
func findAll(ctx context.Context, e *assist.Engine, snap *assist.Snapshot) ([]Finding, error) {
	seen := map[string]bool{}
	var out []Finding
	for _, off := range candidateSites(snap.Tree) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		props, err := e.ComputeProposals(ctx, snap, int(off), 0)
		if err != nil {
			return nil, err
		}
		for _, p := range props {
			if len(p.Edits) == 0 {
				continue
			}
			key := fmt.Sprintf("%s\x00%s\x00%d", p.RuleID, p.Label, p.Edits[0].Span.Start)
			if seen[key] {
				continue
			}
			seen[key] = true
			pos := snap.File.Position(off)
			out = append(out, Finding{
				Line:      pos.Line,
				Col:       pos.Col,
				Offset:    off,
				RuleID:    p.RuleID,
				Label:     p.Label,
				Relevance: p.Relevance,
				Warning:   p.Status.Reason,
			})
		}
	}
	return out, nil
}

// candidateSites returns the sorted start offsets of the nodes a rule may
// fire on: conversions start at their own node, handlers at a statement.
func candidateSites(t *syntax.Tree) []uint32 {
	set := map[uint32]bool{}
	t.Walk(t.Root, func(id syntax.NodeID) bool {
		if t.InError(id) {
			return false
		}
		switch t.Kind(id) {
		case syntax.KindNew, syntax.KindLambda, syntax.KindSwitch, syntax.KindFor,
			syntax.KindCatch, syntax.KindClass, syntax.KindMethodRef:
			set[t.Span(id).Start] = true
		case syntax.KindBinary:
			if t.Text(t.Field(id, "operator")) == "+" && t.Kind(t.Parent(id)) != syntax.KindBinary {
				set[t.Span(id).Start] = true
			}
		case syntax.KindExprStmt, syntax.KindLocalVar, syntax.KindReturn:
			if t.IsStatement(id) {
				set[t.Span(id).Start] = true
			}
		}
		if p := t.Parent(id); t.Kind(p) == syntax.KindLambda && t.Node(id).Field == "body" {
			set[t.Span(id).Start] = true
		}
		return true
	})
	out := make([]uint32, 0, len(set))
	for off := range set {
		out = append(out, off)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
