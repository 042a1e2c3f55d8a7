package bacnet

import (
	"encoding/json"
	"fmt"
	"slices"
)

// ObjectParams holds the inputs for NewObject.
type ObjectParams struct {
	// Name is "{type}_{instance}", for example "analogValue_12".
	Name string

	// Href overrides the REST path derived from type and instance.
	Href string

	// Properties seeds the object. When empty, the three static metadata
	// properties (propertyList, objectName, description) are created.
	Properties []PropertyRecord
}

// ObjectRecord is the persisted form of an Object.
type ObjectRecord struct {
	Name       string                    `json:"name" mapstructure:"name"`
	Href       string                    `json:"href" mapstructure:"href"`
	Properties map[string]PropertyRecord `json:"properties" mapstructure:"-"`
}

// Object is a named BACnet entity owning a set of properties.
type Object struct {
	name       string
	objectType string
	instance   int
	href       string

	properties map[string]*Property
	order      []string
}

// NewObject parses the object's identity from its name and seeds its
// properties.
func NewObject(params ObjectParams) (*Object, error) {
	objectType, instance, err := ParseObjectName(params.Name)
	if err != nil {
		return nil, err
	}

	href := params.Href
	if href == "" {
		if href, err = DefaultHref(objectType, instance); err != nil {
			return nil, err
		}
	}

	obj := &Object{
		name:       params.Name,
		objectType: objectType,
		instance:   instance,
		href:       href,
		properties: make(map[string]*Property),
	}

	seed := params.Properties
	if len(seed) == 0 {
		seed = defaultProperties(objectType, instance)
	}
	for _, rec := range seed {
		if err := obj.AddProperty(rec); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func defaultProperties(objectType string, instance int) []PropertyRecord {
	return []PropertyRecord{
		StaticPropertyRecord(objectType, instance, PropPropertyList),
		StaticPropertyRecord(objectType, instance, PropObjectName),
		StaticPropertyRecord(objectType, instance, PropDescription),
	}
}

func (o *Object) Name() string  { return o.name }
func (o *Object) Type() string  { return o.objectType }
func (o *Object) Instance() int { return o.instance }
func (o *Object) Href() string  { return o.href }

// AddProperty inserts or replaces the property named rec.Name. A replaced
// property keeps its position in request order.
func (o *Object) AddProperty(rec PropertyRecord) error {
	if rec.ObjectType == "" {
		rec.ObjectType = o.objectType
		rec.Instance = o.instance
	}
	if rec.ObjectType != o.objectType || rec.Instance != o.instance {
		return fmt.Errorf("%w: %s_%d does not belong to %s",
			ErrInvalidProperty, rec.ObjectType, rec.Instance, o.name)
	}

	p, err := NewProperty(rec)
	if err != nil {
		return err
	}
	if _, exists := o.properties[p.name]; !exists {
		o.order = append(o.order, p.name)
	}
	o.properties[p.name] = p
	return nil
}

// Property returns the named property.
func (o *Object) Property(name string) (*Property, bool) {
	p, ok := o.properties[name]
	return p, ok
}

// PropertyNames returns property names in insertion order.
func (o *Object) PropertyNames() []string {
	return slices.Clone(o.order)
}

// Value returns the cached value of the named property.
func (o *Object) Value(name string) (any, bool) {
	p, ok := o.properties[name]
	if !ok {
		return nil, false
	}
	return p.value, true
}

// ListedProperties returns the cached propertyList, or nil before it has
// been read.
func (o *Object) ListedProperties() []string {
	v, _ := o.Value(PropPropertyList)
	list, _ := v.([]string)
	return list
}

// BuildReadRequest collects read descriptors for this object.
//
// names restricts the candidates to the listed properties; nil means every
// property. With includeAll false only due properties are emitted (see
// Property.RequestRead). With includeAll true every candidate is emitted,
// including settled static ones.
func (o *Object) BuildReadRequest(names []string, includeAll bool) []ReadDescriptor {
	var out []ReadDescriptor
	for _, name := range o.order {
		if names != nil && !slices.Contains(names, name) {
			continue
		}
		p := o.properties[name]
		if includeAll {
			out = append(out, p.forceRead())
			continue
		}
		if d, ok := p.RequestRead(); ok {
			out = append(out, d)
		}
	}
	return out
}

// BuildWriteRequest collects write descriptors for every dirty property,
// restricted to names when non-nil. Flushed properties are committed.
func (o *Object) BuildWriteRequest(names []string) []WriteDescriptor {
	var out []WriteDescriptor
	for _, name := range o.order {
		if names != nil && !slices.Contains(names, name) {
			continue
		}
		if d, ok := o.properties[name].RequestWrite(); ok {
			out = append(out, d)
		}
	}
	return out
}

// Export returns the persisted form of the object.
func (o *Object) Export() ObjectRecord {
	rec := ObjectRecord{
		Name:       o.name,
		Href:       o.href,
		Properties: make(map[string]PropertyRecord, len(o.properties)),
	}
	for name, p := range o.properties {
		rec.Properties[name] = p.Export()
	}
	return rec
}

// Values returns a copy of every cached value keyed by property name.
func (o *Object) Values() map[string]any {
	out := make(map[string]any, len(o.properties))
	for name, p := range o.properties {
		out[name] = p.value
	}
	return out
}

// String renders the object and its current values as JSON.
func (o *Object) String() string {
	data, err := json.Marshal(struct {
		Object     string         `json:"object"`
		Type       string         `json:"type"`
		Href       string         `json:"href"`
		Properties map[string]any `json:"properties"`
	}{o.name, o.objectType, o.href, o.Values()})
	if err != nil {
		return fmt.Sprintf(`{"object":%q,"error":%q}`, o.name, err.Error())
	}
	return string(data)
}

// clone returns a deep copy of the object's structure. Values themselves
// are shared.
func (o *Object) clone() *Object {
	c := &Object{
		name:       o.name,
		objectType: o.objectType,
		instance:   o.instance,
		href:       o.href,
		properties: make(map[string]*Property, len(o.properties)),
		order:      slices.Clone(o.order),
	}
	for name, p := range o.properties {
		cp := *p
		c.properties[name] = &cp
	}
	return c
}
