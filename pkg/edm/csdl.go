package edm

import (
	"encoding/xml"
	"io"
	"sort"
	"strconv"
)

const (
	edmxNamespace = "http://docs.oasis-open.org/odata/ns/edmx"
	edmNamespace  = "http://docs.oasis-open.org/odata/ns/edm"

	countRestrictionsTerm = "Org.OData.Capabilities.V1.CountRestrictions"
)

// ContainerName is the entity container name in $metadata
const ContainerName = "Container"

type csdlEdmx struct {
	XMLName      xml.Name         `xml:"edmx:Edmx"`
	Version      string           `xml:"Version,attr"`
	Xmlns        string           `xml:"xmlns:edmx,attr"`
	DataServices csdlDataServices `xml:"edmx:DataServices"`
}

type csdlDataServices struct {
	Schemas []csdlSchema `xml:"Schema"`
}

type csdlSchema struct {
	Xmlns        string               `xml:"xmlns,attr"`
	Namespace    string               `xml:"Namespace,attr"`
	EnumTypes    []csdlEnumType       `xml:"EnumType"`
	ComplexTypes []csdlComplexType    `xml:"ComplexType"`
	EntityTypes  []csdlEntityType     `xml:"EntityType"`
	Functions    []csdlFunction       `xml:"Function"`
	Container    *csdlEntityContainer `xml:"EntityContainer,omitempty"`
}

type csdlEnumType struct {
	Name    string       `xml:"Name,attr"`
	IsFlags bool         `xml:"IsFlags,attr,omitempty"`
	Members []csdlMember `xml:"Member"`
}

type csdlMember struct {
	Name  string `xml:"Name,attr"`
	Value string `xml:"Value,attr"`
}

type csdlProperty struct {
	Name     string `xml:"Name,attr"`
	Type     string `xml:"Type,attr"`
	Nullable string `xml:"Nullable,attr,omitempty"`
}

type csdlComplexType struct {
	Name       string         `xml:"Name,attr"`
	Properties []csdlProperty `xml:"Property"`
}

type csdlPropertyRef struct {
	Name string `xml:"Name,attr"`
}

type csdlKey struct {
	PropertyRefs []csdlPropertyRef `xml:"PropertyRef"`
}

type csdlNavigationProperty struct {
	Name string `xml:"Name,attr"`
	Type string `xml:"Type,attr"`
}

type csdlEntityType struct {
	Name       string                   `xml:"Name,attr"`
	BaseType   string                   `xml:"BaseType,attr,omitempty"`
	Abstract   bool                     `xml:"Abstract,attr,omitempty"`
	Key        *csdlKey                 `xml:"Key,omitempty"`
	Properties []csdlProperty           `xml:"Property"`
	Navigation []csdlNavigationProperty `xml:"NavigationProperty"`
}

type csdlParameter struct {
	Name     string `xml:"Name,attr"`
	Type     string `xml:"Type,attr"`
	Nullable string `xml:"Nullable,attr,omitempty"`
}

type csdlReturnType struct {
	Type string `xml:"Type,attr"`
}

type csdlFunction struct {
	Name         string          `xml:"Name,attr"`
	IsBound      bool            `xml:"IsBound,attr,omitempty"`
	IsComposable bool            `xml:"IsComposable,attr,omitempty"`
	Parameters   []csdlParameter `xml:"Parameter"`
	ReturnType   csdlReturnType  `xml:"ReturnType"`
}

type csdlEntityContainer struct {
	Name            string               `xml:"Name,attr"`
	EntitySets      []csdlEntitySet      `xml:"EntitySet"`
	FunctionImports []csdlFunctionImport `xml:"FunctionImport"`
}

type csdlBinding struct {
	Path   string `xml:"Path,attr"`
	Target string `xml:"Target,attr"`
}

type csdlEntitySet struct {
	Name        string           `xml:"Name,attr"`
	EntityType  string           `xml:"EntityType,attr"`
	Bindings    []csdlBinding    `xml:"NavigationPropertyBinding"`
	Annotations []csdlAnnotation `xml:"Annotation"`
}

type csdlFunctionImport struct {
	Name                     string `xml:"Name,attr"`
	Function                 string `xml:"Function,attr"`
	EntitySet                string `xml:"EntitySet,attr,omitempty"`
	IncludeInServiceDocument bool   `xml:"IncludeInServiceDocument,attr"`
}

type csdlAnnotation struct {
	Term   string     `xml:"Term,attr"`
	Record csdlRecord `xml:"Record"`
}

type csdlRecord struct {
	PropertyValues []csdlPropertyValue `xml:"PropertyValue"`
}

type csdlPropertyValue struct {
	Property   string          `xml:"Property,attr"`
	Bool       string          `xml:"Bool,attr,omitempty"`
	Collection *csdlCollection `xml:"Collection,omitempty"`
}

type csdlCollection struct {
	PropertyPaths []string `xml:"PropertyPath"`
}

func nullableAttr(nullable bool) string {
	if nullable {
		return ""
	}
	return "false"
}

// WriteCSDL writes the model as an EDMX 4.0 CSDL document
func WriteCSDL(w io.Writer, m *Model) error {
	schemas := map[string]*csdlSchema{}
	schemaFor := func(ns string) *csdlSchema {
		s, ok := schemas[ns]
		if !ok {
			s = &csdlSchema{Xmlns: edmNamespace, Namespace: ns}
			schemas[ns] = s
		}
		return s
	}
	schemaFor(m.Namespace)

	for _, e := range m.EnumTypes() {
		out := csdlEnumType{Name: e.Name, IsFlags: e.IsFlags}
		for _, mem := range e.Members {
			out.Members = append(out.Members, csdlMember{Name: mem.Name, Value: strconv.FormatInt(mem.Value, 10)})
		}
		s := schemaFor(e.Namespace)
		s.EnumTypes = append(s.EnumTypes, out)
	}

	for _, c := range m.ComplexTypes() {
		out := csdlComplexType{Name: c.Name}
		for _, p := range c.Properties {
			out.Properties = append(out.Properties, csdlProperty{Name: p.Name, Type: p.Type.String(), Nullable: nullableAttr(p.Nullable)})
		}
		s := schemaFor(c.Namespace)
		s.ComplexTypes = append(s.ComplexTypes, out)
	}

	for _, e := range m.EntityTypes() {
		out := csdlEntityType{Name: e.Name, Abstract: e.Abstract}
		if e.BaseType != nil {
			out.BaseType = e.BaseType.QualifiedName()
		} else {
			out.Key = &csdlKey{}
			for _, k := range e.Key {
				out.Key.PropertyRefs = append(out.Key.PropertyRefs, csdlPropertyRef{Name: k})
			}
		}
		for _, p := range e.Properties {
			out.Properties = append(out.Properties, csdlProperty{Name: p.Name, Type: p.Type.String(), Nullable: nullableAttr(p.Nullable)})
		}
		for _, n := range e.NavigationProperties {
			out.Navigation = append(out.Navigation, csdlNavigationProperty{Name: n.Name, Type: n.Type().String()})
		}
		s := schemaFor(e.Namespace)
		s.EntityTypes = append(s.EntityTypes, out)
	}

	container := &csdlEntityContainer{Name: ContainerName}
	for _, f := range m.Functions() {
		out := csdlFunction{Name: f.Name, IsBound: f.Bound, IsComposable: f.Composable, ReturnType: csdlReturnType{Type: f.ReturnType.String()}}
		if f.Bound {
			out.Parameters = append(out.Parameters, csdlParameter{Name: "bindingParameter", Type: f.BindingType.String()})
		} else {
			container.FunctionImports = append(container.FunctionImports, csdlFunctionImport{
				Name:                     f.Name,
				Function:                 f.QualifiedName(),
				EntitySet:                f.EntitySet,
				IncludeInServiceDocument: true,
			})
		}
		for _, p := range f.Parameters {
			out.Parameters = append(out.Parameters, csdlParameter{Name: p.Name, Type: p.Type.String(), Nullable: nullableAttr(p.Nullable)})
		}
		s := schemaFor(f.Namespace)
		s.Functions = append(s.Functions, out)
	}

	for _, set := range m.EntitySets() {
		out := csdlEntitySet{Name: set.Name, EntityType: set.EntityType.QualifiedName()}
		if ann, ok := countRestrictions(m, set); ok {
			out.Annotations = append(out.Annotations, ann)
		}
		for _, t := range m.DerivedTypes(set.EntityType) {
			for _, n := range t.NavigationProperties {
				if n.TargetSet == "" {
					continue
				}
				path := n.Name
				if t != set.EntityType {
					path = t.QualifiedName() + "/" + n.Name
				}
				out.Bindings = append(out.Bindings, csdlBinding{Path: path, Target: n.TargetSet})
			}
		}
		container.EntitySets = append(container.EntitySets, out)
	}
	schemaFor(m.Namespace).Container = container

	doc := csdlEdmx{Version: "4.0", Xmlns: edmxNamespace}
	namespaces := make([]string, 0, len(schemas))
	for ns := range schemas {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	for _, ns := range namespaces {
		doc.DataServices.Schemas = append(doc.DataServices.Schemas, *schemas[ns])
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Flush()
}

// countRestrictions annotates a non-countable set or its non-countable properties
func countRestrictions(m *Model, set *EntitySet) (csdlAnnotation, bool) {
	var rec csdlRecord
	if !set.Countable {
		rec.PropertyValues = append(rec.PropertyValues, csdlPropertyValue{Property: "Countable", Bool: "false"})
	}

	var paths []string
	for _, t := range m.DerivedTypes(set.EntityType) {
		prefix := ""
		if t != set.EntityType {
			prefix = t.QualifiedName() + "/"
		}
		for _, p := range t.Properties {
			if p.Type.Collection && !p.Countable {
				paths = append(paths, prefix+p.Name)
			}
		}
		for _, n := range t.NavigationProperties {
			if n.Collection && !n.Countable {
				paths = append(paths, prefix+n.Name)
			}
		}
	}
	if len(paths) > 0 {
		rec.PropertyValues = append(rec.PropertyValues, csdlPropertyValue{
			Property:   "NonCountableProperties",
			Collection: &csdlCollection{PropertyPaths: paths},
		})
	}
	if len(rec.PropertyValues) == 0 {
		return csdlAnnotation{}, false
	}
	return csdlAnnotation{Term: countRestrictionsTerm, Record: rec}, true
}
