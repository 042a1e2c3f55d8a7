package bacnet

import "fmt"

// PropertyRecord is the flat, persisted form of a Property. It doubles as
// the constructor parameter struct; use NewPropertyRecord for defaults.
type PropertyRecord struct {
	ObjectType     string `json:"property_type" mapstructure:"property_type"`
	Instance       int    `json:"instance" mapstructure:"instance"`
	Name           string `json:"property_name" mapstructure:"property_name"`
	Value          any    `json:"value" mapstructure:"value"`
	Priority       int    `json:"priority" mapstructure:"priority"`
	ArrayIndex     int    `json:"arrayIndex" mapstructure:"arrayIndex"`
	Static         bool   `json:"static" mapstructure:"static"`
	UpdateRequired bool   `json:"update_required" mapstructure:"update_required"`
}

// NewPropertyRecord returns a record with no priority, whole-value array
// index, and a pending first read.
func NewPropertyRecord(objectType string, instance int, name string) PropertyRecord {
	return PropertyRecord{
		ObjectType:     objectType,
		Instance:       instance,
		Name:           name,
		Priority:       NoPriority,
		ArrayIndex:     WholeValue,
		UpdateRequired: true,
	}
}

// StaticPropertyRecord is NewPropertyRecord with Static set.
func StaticPropertyRecord(objectType string, instance int, name string) PropertyRecord {
	rec := NewPropertyRecord(objectType, instance, name)
	rec.Static = true
	return rec
}

// ReadDescriptor is one entry of a read-property-multiple request.
type ReadDescriptor struct {
	Type       string `json:"type"`
	Instance   int    `json:"instance"`
	Property   string `json:"property"`
	ArrayIndex int    `json:"arrayIndex"`
}

// WriteDescriptor is one entry of a write-property-multiple request.
type WriteDescriptor struct {
	Type     string `json:"type"`
	Instance int    `json:"instance"`
	Property string `json:"property"`
	Priority int    `json:"priority"`
	Value    any    `json:"value"`
}

// ObjectName returns the registry key of the object the write targets.
func (d WriteDescriptor) ObjectName() string { return ObjectName(d.Type, d.Instance) }

// Property is a single cached attribute of a BACnet object.
type Property struct {
	objectType string
	instance   int
	name       string

	value      any
	writeValue any
	priority   int
	arrayIndex int

	static         bool
	updateRequired bool
	writeRequired  bool
}

// NewProperty validates rec and builds a Property from it.
func NewProperty(rec PropertyRecord) (*Property, error) {
	if rec.ObjectType == "" || rec.Name == "" {
		return nil, fmt.Errorf("%w: type and name are required", ErrInvalidProperty)
	}
	if rec.Instance < 0 {
		return nil, fmt.Errorf("%w: negative instance %d", ErrInvalidProperty, rec.Instance)
	}

	p := &Property{
		objectType:     rec.ObjectType,
		instance:       rec.Instance,
		name:           rec.Name,
		priority:       rec.Priority,
		arrayIndex:     rec.ArrayIndex,
		static:         rec.Static,
		updateRequired: rec.UpdateRequired,
	}
	p.setValue(rec.Value)
	p.writeValue = p.value
	return p, nil
}

// setValue stores v, normalising property lists into []string.
func (p *Property) setValue(v any) {
	p.value = normalizeValue(p.name, v)
}

func normalizeValue(name string, v any) any {
	if name != PropPropertyList {
		return v
	}
	switch list := v.(type) {
	case string:
		return ParsePropertyList(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return v
			}
			out = append(out, s)
		}
		return out
	}
	return v
}

func (p *Property) Name() string       { return p.name }
func (p *Property) ObjectType() string { return p.objectType }
func (p *Property) Instance() int      { return p.instance }
func (p *Property) ObjectName() string { return ObjectName(p.objectType, p.instance) }
func (p *Property) Value() any         { return p.value }
func (p *Property) Priority() int      { return p.priority }
func (p *Property) Static() bool       { return p.static }

// UpdateRequired reports whether the property will be part of the next read.
func (p *Property) UpdateRequired() bool { return p.updateRequired }

// WriteRequired reports whether a write is pending.
func (p *Property) WriteRequired() bool { return p.writeRequired }

// Update queues v as a pending write. Nothing is sent until RequestWrite.
func (p *Property) Update(v any) {
	p.writeValue = v
	p.writeRequired = true
}

// SetPriority changes the BACnet priority used for subsequent writes.
func (p *Property) SetPriority(priority int) {
	p.priority = priority
}

// RequestRead returns a read descriptor when the property is due. A static
// property is due exactly once.
func (p *Property) RequestRead() (ReadDescriptor, bool) {
	if !p.updateRequired {
		return ReadDescriptor{}, false
	}
	if p.static {
		p.updateRequired = false
	}
	return p.readDescriptor(), true
}

// forceRead emits a descriptor regardless of the due flag. Static
// properties still settle.
func (p *Property) forceRead() ReadDescriptor {
	if p.static {
		p.updateRequired = false
	}
	return p.readDescriptor()
}

func (p *Property) readDescriptor() ReadDescriptor {
	return ReadDescriptor{
		Type:       p.objectType,
		Instance:   p.instance,
		Property:   p.name,
		ArrayIndex: p.arrayIndex,
	}
}

// RequestWrite commits the pending write into the cached value and returns
// its descriptor. It returns false when nothing is pending.
func (p *Property) RequestWrite() (WriteDescriptor, bool) {
	if !p.writeRequired {
		return WriteDescriptor{}, false
	}
	p.setValue(p.writeValue)
	p.writeRequired = false
	return WriteDescriptor{
		Type:     p.objectType,
		Instance: p.instance,
		Property: p.name,
		Priority: p.priority,
		Value:    p.writeValue,
	}, true
}

// Export returns the persisted form of the property.
func (p *Property) Export() PropertyRecord {
	return PropertyRecord{
		ObjectType:     p.objectType,
		Instance:       p.instance,
		Name:           p.name,
		Value:          p.value,
		Priority:       p.priority,
		ArrayIndex:     p.arrayIndex,
		Static:         p.static,
		UpdateRequired: p.updateRequired,
	}
}

func (p *Property) String() string {
	return fmt.Sprintf("%s.%s=%v", p.ObjectName(), p.name, p.value)
}
