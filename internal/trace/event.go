package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1 // span start
	KindSpanEnd                   // span end
	KindPoint                     // instant event
	KindFailure                   // dropped or failed work, emitted from LevelError up
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event; smaller is coarser.
type Scope uint8

const (
	ScopeRequest Scope = iota + 1 // one ComputeProposals call or CLI command
	ScopeRule                     // one rule run
	ScopeNode                     // per node decisions inside a rule
)

func (s Scope) String() string {
	switch s {
	case ScopeRequest:
		return "request"
	case ScopeRule:
		return "rule"
	case ScopeNode:
		return "node"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // global, monotonic
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	Name     string // e.g. "compute", "rule:surround-try"
	Detail   string
	Elapsed  time.Duration // set on span end
	Extra    map[string]string
}
