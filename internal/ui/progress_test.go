package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refit/internal/driver"
)

func TestScanModelCountsFinishedFiles(t *testing.T) {
	files := []string{"a/A.java", "b/B.java", "C.java"}
	m := NewScanModel("scan", files, nil).(*scanModel)

	m.applyEvent(driver.Event{File: "a/A.java", Stage: driver.StageParse, Status: driver.StatusWorking})
	assert.Zero(t, m.finished)
	m.applyEvent(driver.Event{File: "a/A.java", Stage: driver.StageAssist, Status: driver.StatusDone, Findings: 3})
	m.applyEvent(driver.Event{File: "b/B.java", Stage: driver.StageAssist, Status: driver.StatusCached, Findings: 1})
	// повторное финальное событие не считается дважды
	m.applyEvent(driver.Event{File: "b/B.java", Stage: driver.StageAssist, Status: driver.StatusCached, Findings: 1})
	m.applyEvent(driver.Event{File: "unknown.java", Status: driver.StatusDone, Findings: 9})

	assert.Equal(t, 2, m.finished)
	assert.Equal(t, 4, m.findings)

	view := m.View()
	assert.Contains(t, view, "(2/3 files, 4 findings)")
	assert.Contains(t, view, "a/A.java [3]")
	assert.NotContains(t, view, "C.java")
}

func TestScanModelWindow(t *testing.T) {
	var files []string
	for i := 0; i < maxRows+5; i++ {
		files = append(files, strings.Repeat("x", i+1)+".java")
	}
	m := NewScanModel("scan", files, nil).(*scanModel)
	for _, f := range files {
		m.applyEvent(driver.Event{File: f, Stage: driver.StageAssist, Status: driver.StatusDone})
	}
	require.Len(t, m.recent, maxRows)
	assert.Equal(t, len(files)-1, m.recent[maxRows-1])
}

func TestDoneMsgQuits(t *testing.T) {
	m := NewScanModel("scan", []string{"A.java"}, nil)
	next, cmd := m.Update(doneMsg{})
	require.NotNil(t, cmd)
	assert.True(t, next.(*scanModel).done)
	assert.Contains(t, next.View(), "done: scan")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "any", truncate("any", 0))
}
