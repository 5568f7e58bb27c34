package binding

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"refit/internal/syntax"
)

//go:embed catalog.toml
var catalogData string

// TypeKind tells classes from interfaces and friends.
type TypeKind uint8

const (
	TypeClass TypeKind = iota
	TypeInterface
	TypeEnum
	TypeRecord
)

func (k TypeKind) String() string {
	switch k {
	case TypeClass:
		return "class"
	case TypeInterface:
		return "interface"
	case TypeEnum:
		return "enum"
	case TypeRecord:
		return "record"
	}
	return "unknown"
}

func parseTypeKind(s string) (TypeKind, error) {
	switch s {
	case "class", "":
		return TypeClass, nil
	case "interface":
		return TypeInterface, nil
	case "enum":
		return TypeEnum, nil
	case "record":
		return TypeRecord, nil
	}
	return TypeClass, fmt.Errorf("unknown type kind %q", s)
}

// Param is one formal parameter.
type Param struct {
	Name string
	Type string
}

// Method describes a method or constructor (Name "<init>").
type Method struct {
	Owner      string
	Name       string
	TypeParams []string
	Params     []Param
	Result     string
	Throws     []string
	Abstract   bool
	Static     bool
	Varargs    bool
	Decl       syntax.NodeID
}

// Arity returns the number of declared parameters.
func (m Method) Arity() int {
	return len(m.Params)
}

// IsConstructor reports whether m is a constructor.
func (m Method) IsConstructor() bool {
	return m.Name == "<init>"
}

// TypeInfo describes a class, interface, enum or record.
type TypeInfo struct {
	Name       string
	Kind       TypeKind
	TypeParams []string
	Supers     []string
	Methods    []Method
	Fields     map[string]string
	Constants  []string
	Decl       syntax.NodeID
}

// Catalog is a read-only set of library types.
type Catalog struct {
	types map[string]*TypeInfo
}

type catalogFile struct {
	Types []catalogType `toml:"types"`
}

type catalogType struct {
	Name       string          `toml:"name"`
	Kind       string          `toml:"kind"`
	TypeParams []string        `toml:"type_params"`
	Supers     []string        `toml:"supers"`
	Fields     []string        `toml:"fields"`
	Methods    []catalogMethod `toml:"methods"`
}

type catalogMethod struct {
	Name       string   `toml:"name"`
	TypeParams []string `toml:"type_params"`
	Params     []string `toml:"params"`
	Result     string   `toml:"result"`
	Throws     []string `toml:"throws"`
	Abstract   bool     `toml:"abstract"`
	Static     bool     `toml:"static"`
}

// ParseCatalog decodes a TOML catalog.
func ParseCatalog(data string) (*Catalog, error) {
	var raw catalogFile
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	cat := &Catalog{types: make(map[string]*TypeInfo, len(raw.Types))}
	for _, rt := range raw.Types {
		kind, err := parseTypeKind(rt.Kind)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", rt.Name, err)
		}
		ti := &TypeInfo{
			Name:       rt.Name,
			Kind:       kind,
			TypeParams: rt.TypeParams,
			Supers:     rt.Supers,
			Fields:     make(map[string]string, len(rt.Fields)),
		}
		for _, f := range rt.Fields {
			p, err := parseParam(f)
			if err != nil {
				return nil, fmt.Errorf("type %s field: %w", rt.Name, err)
			}
			ti.Fields[key(p.Name)] = p.Type
		}
		for _, rm := range rt.Methods {
			m := Method{
				Owner:      rt.Name,
				Name:       rm.Name,
				TypeParams: rm.TypeParams,
				Result:     rm.Result,
				Throws:     rm.Throws,
				Abstract:   rm.Abstract,
				Static:     rm.Static,
			}
			for _, ps := range rm.Params {
				p, err := parseParam(ps)
				if err != nil {
					return nil, fmt.Errorf("method %s.%s: %w", rt.Name, rm.Name, err)
				}
				if strings.HasSuffix(p.Type, "...") {
					m.Varargs = true
				}
				m.Params = append(m.Params, p)
			}
			ti.Methods = append(ti.Methods, m)
		}
		cat.types[key(rt.Name)] = ti
	}
	return cat, nil
}

func parseParam(s string) (Param, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, ' ')
	if i <= 0 {
		return Param{}, fmt.Errorf("malformed parameter %q", s)
	}
	return Param{Type: strings.TrimSpace(s[:i]), Name: s[i+1:]}, nil
}

// Lookup returns the type with the given simple name.
func (c *Catalog) Lookup(name string) (*TypeInfo, bool) {
	if c == nil {
		return nil, false
	}
	ti, ok := c.types[Erasure(name)]
	return ti, ok
}

// Len returns the number of types in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.types)
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(catalogData)
})

// DefaultCatalog returns the embedded JDK catalog, decoded once.
func DefaultCatalog() (*Catalog, error) {
	return loadDefault()
}
