// Package schema validates and sanitizes configuration values against
// declarative type descriptions. Types are plain data: build them with the
// constructors in this package and pass them to Validate or Check.
package schema

import (
	"fmt"
	"regexp"
)

// Kind identifies a primitive or composite schema type.
type Kind string

const (
	KindAny          Kind = "any"
	KindBoolean      Kind = "boolean"
	KindInteger      Kind = "integer"
	KindNull         Kind = "null"
	KindNumber       Kind = "number"
	KindString       Kind = "string"
	KindID           Kind = "id"
	KindURL          Kind = "url"
	KindImageURL     Kind = "image_url"
	KindButtonURL    Kind = "button_url"
	KindEmailAddress Kind = "email_address"
	KindHTML         Kind = "html"
	KindMarkdown     Kind = "markdown"
	KindJSONPath     Kind = "json_path"
	KindUUID         Kind = "uuid"
	KindTitle        Kind = "title"
	KindImageAlt     Kind = "image_alt"
	KindButtonText   Kind = "button_text"
	KindCurrency     Kind = "currency"

	KindObject   Kind = "object"
	KindRecord   Kind = "record"
	KindList     Kind = "list_of"
	KindOneOf    Kind = "one_of"
	KindEnum     Kind = "enum"
	KindConst    Kind = "const"
	KindMatching Kind = "string_matching"
)

var primitiveKinds = map[Kind]bool{
	KindAny: true, KindBoolean: true, KindInteger: true, KindNull: true,
	KindNumber: true, KindString: true, KindID: true, KindURL: true,
	KindImageURL: true, KindButtonURL: true, KindEmailAddress: true,
	KindHTML: true, KindMarkdown: true, KindJSONPath: true, KindUUID: true,
	KindTitle: true, KindImageAlt: true, KindButtonText: true, KindCurrency: true,
}

// IsPrimitiveKind reports whether k names a leaf type.
func IsPrimitiveKind(k Kind) bool { return primitiveKinds[k] }

// Property is a named member of an Object type. Order is preserved.
type Property struct {
	Name string
	Type *Type
}

// Type describes the expected shape of a value.
type Type struct {
	Kind         Kind
	Nullable     bool
	SkipSanitize bool
	HasDefault   bool
	Default      any

	properties []Property
	elem       *Type
	key        *Type
	members    []*Type
	values     []string
	constant   any
	pattern    *regexp.Regexp
}

func primitive(k Kind) *Type { return &Type{Kind: k} }

func Any() *Type          { return &Type{Kind: KindAny, SkipSanitize: true} }
func Boolean() *Type      { return primitive(KindBoolean) }
func Integer() *Type      { return primitive(KindInteger) }
func Null() *Type         { return primitive(KindNull) }
func Number() *Type       { return primitive(KindNumber) }
func String() *Type       { return primitive(KindString) }
func ID() *Type           { return primitive(KindID) }
func URL() *Type          { return primitive(KindURL) }
func ImageURL() *Type     { return primitive(KindImageURL) }
func ButtonURL() *Type    { return primitive(KindButtonURL) }
func EmailAddress() *Type { return primitive(KindEmailAddress) }
func HTML() *Type         { return primitive(KindHTML) }
func Markdown() *Type     { return primitive(KindMarkdown) }
func JSONPath() *Type     { return primitive(KindJSONPath) }
func UUID() *Type         { return primitive(KindUUID) }
func Title() *Type        { return primitive(KindTitle) }
func ImageAlt() *Type     { return primitive(KindImageAlt) }
func ButtonText() *Type   { return primitive(KindButtonText) }
func Currency() *Type     { return primitive(KindCurrency) }

// Primitive returns the leaf type for k, or nil when k is not a leaf kind.
func Primitive(k Kind) *Type {
	if !primitiveKinds[k] {
		return nil
	}
	if k == KindAny {
		return Any()
	}
	return primitive(k)
}

// Object returns a type whose value is a string-keyed map with the given
// properties. Keys outside the property list are rejected.
func Object(props ...Property) *Type {
	return &Type{Kind: KindObject, properties: props}
}

// Field is shorthand for building a Property.
func Field(name string, t *Type) Property { return Property{Name: name, Type: t} }

// Record returns a map type whose keys and values match the given types.
func Record(key, value *Type) *Type {
	return &Type{Kind: KindRecord, key: key, elem: value}
}

// ListOf returns a list type with elements of type elem.
func ListOf(elem *Type) *Type { return &Type{Kind: KindList, elem: elem} }

// OneOf matches the first member type that accepts the value.
func OneOf(members ...*Type) *Type { return &Type{Kind: KindOneOf, members: members} }

// Enum accepts one of the listed strings.
func Enum(values ...string) *Type { return &Type{Kind: KindEnum, values: values} }

// Const accepts exactly v.
func Const(v any) *Type { return &Type{Kind: KindConst, constant: v} }

// Matching accepts strings matching the regular expression. It panics when
// the expression does not compile.
func Matching(expr string) *Type {
	return &Type{Kind: KindMatching, pattern: regexp.MustCompile(expr)}
}

// Nullable returns a copy of t that also accepts null or a missing key.
func Nullable(t *Type) *Type {
	c := *t
	c.Nullable = true
	return &c
}

// SkipSanitize returns a copy of t whose value is passed through Check
// unchanged. Only leaf types can skip sanitization.
func SkipSanitize(t *Type) *Type {
	if !IsPrimitiveKind(t.Kind) {
		panic(fmt.Sprintf("schema: SkipSanitize called on non-primitive type %q", t.Kind))
	}
	c := *t
	c.SkipSanitize = true
	return &c
}

// WithDefault returns a copy of t that substitutes v when the value is
// missing or null.
func WithDefault(t *Type, v any) *Type {
	c := *t
	c.HasDefault = true
	c.Default = v
	return &c
}

// MergeObjects concatenates the properties of object types. Later
// properties replace earlier ones with the same name in place.
func MergeObjects(types ...*Type) *Type {
	var props []Property
	idx := map[string]int{}
	for _, t := range types {
		if t.Kind != KindObject {
			panic(fmt.Sprintf("schema: MergeObjects called with %q", t.Kind))
		}
		for _, p := range t.properties {
			if i, ok := idx[p.Name]; ok {
				props[i] = p
				continue
			}
			idx[p.Name] = len(props)
			props = append(props, p)
		}
	}
	return Object(props...)
}

// Properties returns the ordered properties of an object type.
func (t *Type) Properties() []Property { return t.properties }

// Property looks up an object property by name.
func (t *Type) Property(name string) (*Type, bool) {
	for _, p := range t.properties {
		if p.Name == name {
			return p.Type, true
		}
	}
	return nil, false
}

// Elem returns the element type of a list or the value type of a record.
func (t *Type) Elem() *Type { return t.elem }

// Key returns the key type of a record.
func (t *Type) Key() *Type { return t.key }

// Members returns the alternatives of a one_of type.
func (t *Type) Members() []*Type { return t.members }

// Values returns the allowed values of an enum type.
func (t *Type) Values() []string { return t.values }
