// Package uri resolves OData resource paths against an edm.Model.
package uri

import (
	"strings"

	"github.com/kasuganosora/odatacount/pkg/edm"
)

// SegmentKind classifies a resolved segment
type SegmentKind int

const (
	SegmentEntitySet SegmentKind = iota
	SegmentKey
	SegmentTypeCast
	SegmentProperty
	SegmentNavigation
	SegmentFunction
	SegmentCount
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentEntitySet:
		return "entityset"
	case SegmentKey:
		return "key"
	case SegmentTypeCast:
		return "cast"
	case SegmentProperty:
		return "property"
	case SegmentNavigation:
		return "navigation"
	case SegmentFunction:
		return "function"
	case SegmentCount:
		return "$count"
	}
	return "unknown"
}

// Segment one resolved path segment. Type is the type of the resource the
// path addresses after this segment.
type Segment struct {
	Kind SegmentKind
	Name string
	Type edm.TypeRef

	// EntitySet is set when the resource is made of entities of a known set
	EntitySet  *edm.EntitySet
	EntityType *edm.EntityType
	Key        map[string]interface{}
	Property   *edm.Property
	Navigation *edm.NavigationProperty
	Function   *edm.Function
	Args       map[string]interface{}
}

// Path a resolved resource path
type Path struct {
	Segments []Segment
	// Target is the type of the addressed resource, excluding a trailing $count
	Target  edm.TypeRef
	IsCount bool
	// EntitySet of the addressed entities, if any
	EntitySet *edm.EntitySet
}

// Last returns the last resource segment, skipping $count
func (p *Path) Last() Segment {
	for i := len(p.Segments) - 1; i >= 0; i-- {
		if p.Segments[i].Kind != SegmentCount {
			return p.Segments[i]
		}
	}
	return Segment{}
}

// CheckCountable returns an ErrNotCountable error when the addressed
// collection is annotated as not countable, either through /$count or $count=true.
func (p *Path) CheckCountable() error {
	// casts narrow the collection of the segment they follow
	var prev Segment
	for i := len(p.Segments) - 1; i >= 0; i-- {
		if prev = p.Segments[i]; prev.Kind != SegmentTypeCast && prev.Kind != SegmentCount {
			break
		}
	}
	switch prev.Kind {
	case SegmentEntitySet:
		if prev.EntitySet != nil && !prev.EntitySet.Countable {
			return notCountable(prev.EntitySet.Name)
		}
	case SegmentProperty:
		if !prev.Property.Countable {
			return notCountable(prev.Property.Name)
		}
	case SegmentNavigation:
		if !prev.Navigation.Countable {
			return notCountable(prev.Navigation.Name)
		}
	}
	return nil
}

// ElementEntityType returns the entity type of the addressed entities, or nil
func (p *Path) ElementEntityType() *edm.EntityType {
	return p.Last().EntityType
}

// IsCollection reports whether the target is a collection
func (p *Path) IsCollection() bool {
	return p.Target.Collection
}

func (p *Path) String() string {
	parts := make([]string, 0, len(p.Segments))
	for _, s := range p.Segments {
		parts = append(parts, s.Name)
	}
	return strings.Join(parts, "/")
}
