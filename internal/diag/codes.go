package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Синтаксис (от парсера)
	SynInfo    Code = 2000
	SynError   Code = 2001
	SynMissing Code = 2002

	// Связывание имён и типов
	BindInfo          Code = 3000
	BindUnknownType   Code = 3001
	BindUnknownMethod Code = 3002
	BindAmbiguous     Code = 3003

	// Применение правок
	FixInfo     Code = 4000
	FixConflict Code = 4001
	FixStale    Code = 4002
	FixNoEdits  Code = 4003

	// Правила переписывания
	RuleInfo    Code = 5000
	RuleFailed  Code = 5001
	RuleTimeout Code = 5002
	RuleWarning Code = 5003
)

var (
	codeDescription = map[Code]string{
		UnknownCode:       "Unknown error",
		SynInfo:           "Syntax information",
		SynError:          "Syntax error",
		SynMissing:        "Missing token",
		BindInfo:          "Binding information",
		BindUnknownType:   "Unknown type",
		BindUnknownMethod: "Unknown method",
		BindAmbiguous:     "Ambiguous method call",
		FixInfo:           "Fix information",
		FixConflict:       "Edits overlap",
		FixStale:          "Document changed since proposals were computed",
		FixNoEdits:        "Fix has no edits",
		RuleInfo:          "Rule information",
		RuleFailed:        "Rule failed",
		RuleTimeout:       "Rule timed out",
		RuleWarning:       "Rewrite may change behaviour",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("BND%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("FIX%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("RUL%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
