// Package edm holds the entity data model: primitive, enum, complex and entity
// types, entity sets, functions, literal parsing and the CSDL $metadata writer.
package edm

import "strings"

// PrimitiveKind names an Edm primitive type
type PrimitiveKind string

const (
	String         PrimitiveKind = "Edm.String"
	Int32          PrimitiveKind = "Edm.Int32"
	Int64          PrimitiveKind = "Edm.Int64"
	Double         PrimitiveKind = "Edm.Double"
	Decimal        PrimitiveKind = "Edm.Decimal"
	Boolean        PrimitiveKind = "Edm.Boolean"
	Guid           PrimitiveKind = "Edm.Guid"
	Duration       PrimitiveKind = "Edm.Duration"
	DateTimeOffset PrimitiveKind = "Edm.DateTimeOffset"
	Date           PrimitiveKind = "Edm.Date"
)

var primitiveKinds = map[string]PrimitiveKind{
	string(String):         String,
	string(Int32):          Int32,
	string(Int64):          Int64,
	string(Double):         Double,
	string(Decimal):        Decimal,
	string(Boolean):        Boolean,
	string(Guid):           Guid,
	string(Duration):       Duration,
	string(DateTimeOffset): DateTimeOffset,
	string(Date):           Date,
}

// IsNumeric reports whether values of the kind take part in arithmetic
func (k PrimitiveKind) IsNumeric() bool {
	switch k {
	case Int32, Int64, Double, Decimal:
		return true
	}
	return false
}

// IsIntegral reports whether the kind holds whole numbers
func (k PrimitiveKind) IsIntegral() bool {
	return k == Int32 || k == Int64
}

// TypeKind classifies a TypeRef
type TypeKind int

const (
	KindPrimitive TypeKind = iota
	KindEnum
	KindComplex
	KindEntity
)

func (k TypeKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindEnum:
		return "enum"
	case KindComplex:
		return "complex"
	case KindEntity:
		return "entity"
	}
	return "unknown"
}

// TypeRef references a type by qualified name, optionally as a collection.
// Collections never nest.
type TypeRef struct {
	Kind       TypeKind
	Name       string
	Collection bool
}

// Primitive returns a reference to a primitive type
func Primitive(k PrimitiveKind) TypeRef {
	return TypeRef{Kind: KindPrimitive, Name: string(k)}
}

// CollectionOf returns the collection form of t
func CollectionOf(t TypeRef) TypeRef {
	t.Collection = true
	return t
}

// Elem returns the element type of a collection, or t itself
func (t TypeRef) Elem() TypeRef {
	t.Collection = false
	return t
}

// PrimitiveKind returns the kind of a primitive reference
func (t TypeRef) PrimitiveKind() PrimitiveKind {
	if t.Kind != KindPrimitive {
		return ""
	}
	return PrimitiveKind(t.Name)
}

// IsZero reports an unset reference
func (t TypeRef) IsZero() bool {
	return t.Name == ""
}

func (t TypeRef) String() string {
	if t.Collection {
		return "Collection(" + t.Name + ")"
	}
	return t.Name
}

// SplitQualifiedName splits "Ns.Sub.Name" into "Ns.Sub" and "Name"
func SplitQualifiedName(qualified string) (namespace, name string) {
	i := strings.LastIndex(qualified, ".")
	if i < 0 {
		return "", qualified
	}
	return qualified[:i], qualified[i+1:]
}

// ParseTypeName parses "Collection(Ns.T)" or "Ns.T" into its element name and cardinality
func ParseTypeName(s string) (name string, collection bool) {
	if strings.HasPrefix(s, "Collection(") && strings.HasSuffix(s, ")") {
		return s[len("Collection(") : len(s)-1], true
	}
	return s, false
}
