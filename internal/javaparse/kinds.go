package javaparse

import "refit/internal/syntax"

// kindOf maps tree-sitter-java node types onto syntax kinds.
var kindOf = map[string]syntax.Kind{
	"program": syntax.KindProgram,
	"ERROR":   syntax.KindError,

	"class_declaration":               syntax.KindClass,
	"interface_declaration":           syntax.KindInterface,
	"enum_declaration":                syntax.KindEnum,
	"record_declaration":              syntax.KindRecord,
	"class_body":                      syntax.KindClassBody,
	"interface_body":                  syntax.KindClassBody,
	"enum_body":                       syntax.KindClassBody,
	"enum_body_declarations":          syntax.KindClassBody,
	"enum_constant":                   syntax.KindEnumConstant,
	"method_declaration":              syntax.KindMethod,
	"constructor_declaration":         syntax.KindConstructor,
	"compact_constructor_declaration": syntax.KindConstructor,
	"field_declaration":               syntax.KindField,
	"constant_declaration":            syntax.KindField,
	"formal_parameters":               syntax.KindParams,
	"formal_parameter":                syntax.KindParam,
	"spread_parameter":                syntax.KindParam,
	"inferred_parameters":             syntax.KindInferredParams,
	"modifiers":                       syntax.KindModifiers,
	"marker_annotation":               syntax.KindAnnotation,
	"annotation":                      syntax.KindAnnotation,
	"throws":                          syntax.KindThrows,
	"type_parameters":                 syntax.KindTypeParams,

	"block":                        syntax.KindBlock,
	"constructor_body":             syntax.KindBlock,
	"local_variable_declaration":   syntax.KindLocalVar,
	"variable_declarator":          syntax.KindDeclarator,
	"expression_statement":         syntax.KindExprStmt,
	"return_statement":             syntax.KindReturn,
	"throw_statement":              syntax.KindThrow,
	"if_statement":                 syntax.KindIf,
	"for_statement":                syntax.KindFor,
	"enhanced_for_statement":       syntax.KindForEach,
	"while_statement":              syntax.KindWhile,
	"do_statement":                 syntax.KindDo,
	"try_statement":                syntax.KindTry,
	"try_with_resources_statement": syntax.KindTry,
	"catch_clause":                 syntax.KindCatch,
	"catch_formal_parameter":       syntax.KindCatchParam,
	"catch_type":                   syntax.KindCatchType,
	"finally_clause":               syntax.KindFinally,
	"switch_expression":            syntax.KindSwitch,
	"switch_statement":             syntax.KindSwitch,
	"switch_block":                 syntax.KindSwitchBlock,
	"switch_block_statement_group": syntax.KindSwitchGroup,
	"switch_label":                 syntax.KindSwitchLabel,
	"switch_rule":                  syntax.KindSwitchRule,
	"break_statement":              syntax.KindBreak,
	"continue_statement":           syntax.KindContinue,
	"yield_statement":              syntax.KindYield,

	"lambda_expression":              syntax.KindLambda,
	"object_creation_expression":     syntax.KindNew,
	"argument_list":                  syntax.KindArgs,
	"method_invocation":              syntax.KindCall,
	"method_reference":               syntax.KindMethodRef,
	"assignment_expression":          syntax.KindAssign,
	"update_expression":              syntax.KindUpdate,
	"binary_expression":              syntax.KindBinary,
	"unary_expression":               syntax.KindUnary,
	"ternary_expression":             syntax.KindTernary,
	"cast_expression":                syntax.KindCast,
	"parenthesized_expression":       syntax.KindParens,
	"field_access":                   syntax.KindFieldAccess,
	"array_access":                   syntax.KindArrayAccess,
	"string_literal":                 syntax.KindString,
	"decimal_integer_literal":        syntax.KindLiteral,
	"hex_integer_literal":            syntax.KindLiteral,
	"decimal_floating_point_literal": syntax.KindLiteral,
	"character_literal":              syntax.KindLiteral,
	"true":                           syntax.KindLiteral,
	"false":                          syntax.KindLiteral,
	"null_literal":                   syntax.KindLiteral,
	"identifier":                     syntax.KindIdent,
	"this":                           syntax.KindThis,
	"super":                          syntax.KindSuper,

	"type_identifier":        syntax.KindType,
	"scoped_type_identifier": syntax.KindType,
	"generic_type":           syntax.KindType,
	"array_type":             syntax.KindType,
	"integral_type":          syntax.KindType,
	"floating_point_type":    syntax.KindType,
	"boolean_type":           syntax.KindType,
	"void_type":              syntax.KindType,
}
