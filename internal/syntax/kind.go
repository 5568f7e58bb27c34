package syntax

// Kind classifies nodes the rewrite rules care about. Grammar node types that
// no rule distinguishes map to KindOther and keep their raw type in Node.Type.
type Kind uint8

const (
	KindOther Kind = iota
	KindProgram
	KindError

	// декларации
	KindClass
	KindInterface
	KindEnum
	KindRecord
	KindClassBody
	KindEnumConstant
	KindMethod
	KindConstructor
	KindField
	KindParams
	KindParam
	KindInferredParams
	KindModifiers
	KindAnnotation
	KindThrows
	KindTypeParams

	// операторы
	KindBlock
	KindLocalVar
	KindDeclarator
	KindExprStmt
	KindReturn
	KindThrow
	KindIf
	KindFor
	KindForEach
	KindWhile
	KindDo
	KindTry
	KindCatch
	KindCatchParam
	KindCatchType
	KindFinally
	KindSwitch
	KindSwitchBlock
	KindSwitchGroup
	KindSwitchLabel
	KindSwitchRule
	KindBreak
	KindContinue
	KindYield

	// выражения
	KindLambda
	KindNew
	KindArgs
	KindCall
	KindMethodRef
	KindAssign
	KindUpdate
	KindBinary
	KindUnary
	KindTernary
	KindCast
	KindParens
	KindFieldAccess
	KindArrayAccess
	KindString
	KindLiteral
	KindIdent
	KindThis
	KindSuper
	KindType
)

var kindNames = [...]string{
	KindOther:          "other",
	KindProgram:        "program",
	KindError:          "error",
	KindClass:          "class",
	KindInterface:      "interface",
	KindEnum:           "enum",
	KindRecord:         "record",
	KindClassBody:      "class_body",
	KindEnumConstant:   "enum_constant",
	KindMethod:         "method",
	KindConstructor:    "constructor",
	KindField:          "field",
	KindParams:         "params",
	KindParam:          "param",
	KindInferredParams: "inferred_params",
	KindModifiers:      "modifiers",
	KindAnnotation:     "annotation",
	KindThrows:         "throws",
	KindTypeParams:     "type_params",
	KindBlock:          "block",
	KindLocalVar:       "local_var",
	KindDeclarator:     "declarator",
	KindExprStmt:       "expr_stmt",
	KindReturn:         "return",
	KindThrow:          "throw",
	KindIf:             "if",
	KindFor:            "for",
	KindForEach:        "for_each",
	KindWhile:          "while",
	KindDo:             "do",
	KindTry:            "try",
	KindCatch:          "catch",
	KindCatchParam:     "catch_param",
	KindCatchType:      "catch_type",
	KindFinally:        "finally",
	KindSwitch:         "switch",
	KindSwitchBlock:    "switch_block",
	KindSwitchGroup:    "switch_group",
	KindSwitchLabel:    "switch_label",
	KindSwitchRule:     "switch_rule",
	KindBreak:          "break",
	KindContinue:       "continue",
	KindYield:          "yield",
	KindLambda:         "lambda",
	KindNew:            "new",
	KindArgs:           "args",
	KindCall:           "call",
	KindMethodRef:      "method_ref",
	KindAssign:         "assign",
	KindUpdate:         "update",
	KindBinary:         "binary",
	KindUnary:          "unary",
	KindTernary:        "ternary",
	KindCast:           "cast",
	KindParens:         "parens",
	KindFieldAccess:    "field_access",
	KindArrayAccess:    "array_access",
	KindString:         "string",
	KindLiteral:        "literal",
	KindIdent:          "ident",
	KindThis:           "this",
	KindSuper:          "super",
	KindType:           "type",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// IsStatement reports whether nodes of this kind appear in statement position.
func (k Kind) IsStatement() bool {
	switch k {
	case KindBlock, KindLocalVar, KindExprStmt, KindReturn, KindThrow, KindIf, KindFor,
		KindForEach, KindWhile, KindDo, KindTry, KindSwitch, KindBreak, KindContinue, KindYield:
		return true
	}
	return false
}

// IsTypeDecl reports whether the kind declares a type.
func (k Kind) IsTypeDecl() bool {
	switch k {
	case KindClass, KindInterface, KindEnum, KindRecord:
		return true
	}
	return false
}
