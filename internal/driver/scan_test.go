package driver

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refit/internal/assist"
	"refit/internal/render"
)

const throwingSrc = `import java.io.IOException;

class A {
    void info(String msg) throws IOException {
    }

    void test() {
        Runnable r = () -> info("x");
    }
}
`

const plainSrc = `class B {
    int twice(int x) {
        return x * 2;
    }
}
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return root
}

func ruleIDs(rep FileReport) []string {
	var ids []string
	for _, f := range rep.Findings {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func TestListJavaFilesSkipsHiddenDirs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"b/B.java":      plainSrc,
		"A.java":        throwingSrc,
		".git/X.java":   plainSrc,
		"notes.txt":     "nope",
		"b/c/Deep.java": plainSrc,
	})
	files, err := ListJavaFiles(root)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(root, "A.java"), files[0])
	assert.Equal(t, filepath.Join(root, "b", "B.java"), files[1])
	assert.Equal(t, filepath.Join(root, "b", "c", "Deep.java"), files[2])
}

func TestScanFindsProposals(t *testing.T) {
	root := writeTree(t, map[string]string{
		"A.java": throwingSrc,
		"B.java": plainSrc,
	})
	res, err := Scan(context.Background(), root, ScanOptions{Jobs: 2, Format: render.DefaultOptions()})
	require.NoError(t, err)
	require.Len(t, res.Files, 2)

	a := res.Files[0]
	assert.Empty(t, a.Err)
	assert.Zero(t, a.Syntax)
	assert.Contains(t, ruleIDs(a), "uncaught-exception")
	assert.Contains(t, ruleIDs(a), "lambda-to-anon")
	for _, f := range a.Findings {
		if f.RuleID == "uncaught-exception" {
			assert.Equal(t, uint32(8), f.Line)
		}
	}

	assert.Empty(t, res.Files[1].Findings)
	assert.Equal(t, len(a.Findings), res.Count())

	var phases []string
	for _, p := range res.Timings.Phases {
		phases = append(phases, p.Name)
	}
	assert.Equal(t, []string{"list", "load", "analyze"}, phases)
	assert.Equal(t, "2 files", res.Timings.Phases[0].Note)
}

func TestScanDisabledRules(t *testing.T) {
	root := writeTree(t, map[string]string{"A.java": throwingSrc})
	opt := ScanOptions{
		Format: render.DefaultOptions(),
		Engine: assist.Engine{Disabled: map[string]bool{"uncaught-exception": true}},
	}
	res, err := Scan(context.Background(), root, opt)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.NotContains(t, ruleIDs(res.Files[0]), "uncaught-exception")
}

func TestScanUsesDiskCache(t *testing.T) {
	root := writeTree(t, map[string]string{"A.java": throwingSrc})
	cache, err := OpenDiskCache(t.TempDir())
	require.NoError(t, err)
	opt := ScanOptions{Format: render.DefaultOptions(), Cache: cache}

	first, err := Scan(context.Background(), root, opt)
	require.NoError(t, err)
	require.Len(t, first.Files, 1)
	assert.False(t, first.Files[0].Cached)

	second, err := Scan(context.Background(), root, opt)
	require.NoError(t, err)
	require.Len(t, second.Files, 1)
	assert.True(t, second.Files[0].Cached)
	assert.Equal(t, first.Files[0].Findings, second.Files[0].Findings)

	// изменённый файл промахивается мимо кэша
	require.NoError(t, os.WriteFile(filepath.Join(root, "A.java"), []byte(plainSrc), 0o600))
	third, err := Scan(context.Background(), root, opt)
	require.NoError(t, err)
	assert.False(t, third.Files[0].Cached)
	assert.Empty(t, third.Files[0].Findings)
}

func TestScanEmptyTree(t *testing.T) {
	res, err := Scan(context.Background(), t.TempDir(), ScanOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Zero(t, res.Count())
}

func TestScanCanceled(t *testing.T) {
	root := writeTree(t, map[string]string{"A.java": throwingSrc})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Scan(ctx, root, ScanOptions{Format: render.DefaultOptions()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiskCacheRoundTrip(t *testing.T) {
	cache, err := OpenDiskCache(t.TempDir())
	require.NoError(t, err)
	key := scanKey([32]byte{1}, render.DefaultOptions(), nil)

	var out FilePayload
	hit, err := cache.Get(key, &out)
	require.NoError(t, err)
	assert.False(t, hit)

	in := &FilePayload{Path: "A.java", Syntax: 1, Findings: []Finding{{Line: 3, Col: 5, RuleID: "text-block", Label: "Convert to text block", Relevance: 50}}}
	require.NoError(t, cache.Put(key, in))
	hit, err = cache.Get(key, &out)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, in.Findings, out.Findings)
	assert.Equal(t, 1, out.Syntax)

	require.NoError(t, cache.DropAll())
	hit, err = cache.Get(key, &FilePayload{})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNilDiskCache(t *testing.T) {
	var cache *DiskCache
	assert.Empty(t, cache.Dir())
	assert.NoError(t, cache.Put(Digest{}, &FilePayload{}))
	hit, err := cache.Get(Digest{}, &FilePayload{})
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, cache.DropAll())
}

func TestScanKeyCoversInputs(t *testing.T) {
	opt := render.DefaultOptions()
	base := scanKey([32]byte{1}, opt, nil)
	assert.Equal(t, base, scanKey([32]byte{1}, opt, map[string]bool{"text-block": false}))
	assert.NotEqual(t, base, scanKey([32]byte{2}, opt, nil))

	tabs := opt
	tabs.UseTabs = true
	assert.NotEqual(t, base, scanKey([32]byte{1}, tabs, nil))
	assert.NotEqual(t, base, scanKey([32]byte{1}, opt, map[string]bool{"text-block": true}))

	a := scanKey([32]byte{1}, opt, map[string]bool{"x": true, "y": true})
	b := scanKey([32]byte{1}, opt, map[string]bool{"y": true, "x": true})
	assert.Equal(t, a, b)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) final() map[string]Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]Event{}
	for _, ev := range r.events {
		if ev.Status != StatusWorking {
			out[filepath.Base(ev.File)] = ev
		}
	}
	return out
}

func TestScanReportsProgress(t *testing.T) {
	root := writeTree(t, map[string]string{
		"A.java": throwingSrc,
		"B.java": plainSrc,
	})
	cache, err := OpenDiskCache(t.TempDir())
	require.NoError(t, err)

	rec := &recorder{}
	opt := ScanOptions{Format: render.DefaultOptions(), Cache: cache, Progress: rec}
	res, err := Scan(context.Background(), root, opt)
	require.NoError(t, err)

	last := rec.final()
	require.Len(t, last, 2)
	assert.Equal(t, StatusDone, last["A.java"].Status)
	assert.Equal(t, len(res.Files[0].Findings), last["A.java"].Findings)
	assert.Equal(t, StatusDone, last["B.java"].Status)

	rec = &recorder{}
	opt.Progress = rec
	_, err = Scan(context.Background(), root, opt)
	require.NoError(t, err)
	assert.Equal(t, StatusCached, rec.final()["A.java"].Status)
}

func TestChannelSink(t *testing.T) {
	ch := make(chan Event, 1)
	ChannelSink{Ch: ch}.OnEvent(Event{File: "x", Status: StatusQueued})
	assert.Equal(t, "x", (<-ch).File)
	// без канала событие просто теряется
	ChannelSink{}.OnEvent(Event{})
}
