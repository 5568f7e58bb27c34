package driver

import "time"

// Stage is the step a file is in.
type Stage string

const (
	// StageParse covers reading and parsing the file.
	StageParse Stage = "parse"
	// StageAssist covers asking the rules at every candidate site.
	StageAssist Stage = "assist"
)

// Status describes the progress of one file.
type Status string

const (
	// StatusQueued indicates the file is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates a worker is on the file.
	StatusWorking Status = "working"
	// StatusCached indicates the findings came from the disk cache.
	StatusCached Status = "cached"
	// StatusDone indicates the file is finished.
	StatusDone Status = "done"
	// StatusError indicates the file failed.
	StatusError Status = "error"
)

// Event reports progress of a scan. An empty File is a whole-scan event.
type Event struct {
	File     string
	Stage    Stage
	Status   Status
	Findings int
	Err      error
	Elapsed  time.Duration
}

// ProgressSink consumes progress events. OnEvent is called from worker
// goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

func emit(sink ProgressSink, evt Event) {
	if sink == nil {
		return
	}
	sink.OnEvent(evt)
}
