package bacnet

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Selection narrows a registry-wide read or write request.
type Selection struct {
	// Objects restricts the request to these object names. Nil means all.
	Objects []string

	// Properties restricts the request to these property names. Nil means all.
	Properties []string

	// IncludeAll forces a read of every selected property, due or not.
	IncludeAll bool
}

// PropertyValue is one tuple of a read-property-multiple response.
type PropertyValue struct {
	Type     string `json:"type"`
	Instance int    `json:"instance"`
	Property string `json:"property"`
	Value    any    `json:"value"`
}

// wireValue is a response tuple as sent. Value stays raw so a missing key
// can be told apart from an explicit null.
type wireValue struct {
	Type     string          `json:"type"`
	Instance int             `json:"instance"`
	Property string          `json:"property"`
	Value    json.RawMessage `json:"value"`
}

// DecodeValues decodes a read-property-multiple response body.
//
// Each array element is decoded on its own. Elements that are not complete
// {type, instance, property, value} tuples are skipped and counted in
// malformed. An error is returned only when the body is not a JSON array.
func DecodeValues(data []byte) (values []PropertyValue, malformed int, err error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, 0, err
	}
	values = make([]PropertyValue, 0, len(elems))
	for _, elem := range elems {
		v, ok := decodeValue(elem)
		if !ok {
			malformed++
			continue
		}
		values = append(values, v)
	}
	return values, malformed, nil
}

func decodeValue(elem json.RawMessage) (PropertyValue, bool) {
	var w wireValue
	if err := json.Unmarshal(elem, &w); err != nil {
		return PropertyValue{}, false
	}
	if w.Type == "" || w.Property == "" || w.Value == nil {
		return PropertyValue{}, false
	}
	var value any
	if err := json.Unmarshal(w.Value, &value); err != nil {
		return PropertyValue{}, false
	}
	return PropertyValue{Type: w.Type, Instance: w.Instance, Property: w.Property, Value: value}, true
}

// ObjectName returns the registry key the tuple addresses.
func (v PropertyValue) ObjectName() string { return ObjectName(v.Type, v.Instance) }

// Change describes a reconciled value that differs from the cached one.
type Change struct {
	Object   string `json:"object"`
	Property string `json:"property"`
	Previous any    `json:"previous"`
	Value    any    `json:"value"`
}

// ReconcileResult summarises one Reconcile call.
type ReconcileResult struct {
	Matched int
	Dropped int
	Changes []Change
}

// Registry is the authoritative set of tracked objects.
type Registry struct {
	mu      sync.RWMutex
	objects map[string]*Object
	order   []string
	dropped uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{objects: make(map[string]*Object)}
}

// Add inserts obj, replacing any object with the same name.
func (r *Registry) Add(obj *Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(obj)
}

func (r *Registry) addLocked(obj *Object) {
	if _, exists := r.objects[obj.name]; !exists {
		r.order = append(r.order, obj.name)
	}
	r.objects[obj.name] = obj
}

// Remove deletes the named object. It reports whether it was present.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[name]; !ok {
		return false
	}
	delete(r.objects, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return true
}

// Has reports whether the named object is tracked.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.objects[name]
	return ok
}

// Len returns the number of tracked objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Names returns object names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Dropped returns the number of response tuples discarded by Reconcile
// since the registry was created.
func (r *Registry) Dropped() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// AddProperty adds a property to a tracked object.
func (r *Registry) AddProperty(objectName string, rec PropertyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[objectName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, objectName)
	}
	return obj.AddProperty(rec)
}

// Snapshot returns the persisted form of one object.
func (r *Registry) Snapshot(name string) (ObjectRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[name]
	if !ok {
		return ObjectRecord{}, false
	}
	return obj.Export(), true
}

// Value returns the cached value of one property.
func (r *Registry) Value(objectName, property string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[objectName]
	if !ok {
		return nil, false
	}
	return obj.Value(property)
}

// Describe returns the JSON display form of one object.
func (r *Registry) Describe(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[name]
	if !ok {
		return "", false
	}
	return obj.String(), true
}

// Each calls fn for every object in insertion order while holding the read
// lock. fn must not call back into the registry.
func (r *Registry) Each(fn func(obj *Object)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		fn(r.objects[name])
	}
}

// BuildReadRequest gathers read descriptors across the selected objects.
// Unknown object names are ignored.
func (r *Registry) BuildReadRequest(sel Selection) []ReadDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ReadDescriptor
	for _, obj := range r.selectLocked(sel.Objects) {
		out = append(out, obj.BuildReadRequest(sel.Properties, sel.IncludeAll)...)
	}
	return out
}

// BuildWriteRequest gathers write descriptors across the selected objects
// and commits them into the cache.
func (r *Registry) BuildWriteRequest(sel Selection) []WriteDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []WriteDescriptor
	for _, obj := range r.selectLocked(sel.Objects) {
		out = append(out, obj.BuildWriteRequest(sel.Properties)...)
	}
	return out
}

func (r *Registry) selectLocked(names []string) []*Object {
	if names == nil {
		names = r.order
	}
	out := make([]*Object, 0, len(names))
	for _, name := range names {
		if obj, ok := r.objects[name]; ok {
			out = append(out, obj)
		}
	}
	return out
}

// Rearm marks the properties behind refs as due again. A poll that fails
// after BuildReadRequest uses it so one-shot static reads are not lost.
func (r *Registry) Rearm(refs []ReadDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range refs {
		obj, ok := r.objects[ObjectName(ref.Type, ref.Instance)]
		if !ok {
			continue
		}
		if p, ok := obj.Property(ref.Property); ok {
			p.updateRequired = true
		}
	}
}

// Update queues a write of value to one property. A priority of NoPriority
// keeps the property's current priority.
func (r *Registry) Update(objectName, property string, value any, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.objects[objectName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, objectName)
	}
	p, ok := obj.Property(property)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrPropertyNotFound, objectName, property)
	}
	if priority != NoPriority {
		p.SetPriority(priority)
	}
	p.Update(value)
	return nil
}

// Reconcile merges response tuples into the cache by exact object and
// property name. Tuples that match nothing are dropped and counted.
func (r *Registry) Reconcile(values []PropertyValue) ReconcileResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res ReconcileResult
	for _, v := range values {
		obj, ok := r.objects[v.ObjectName()]
		if !ok {
			res.Dropped++
			continue
		}
		p, ok := obj.Property(v.Property)
		if !ok {
			res.Dropped++
			continue
		}

		prev := p.value
		p.setValue(v.Value)
		res.Matched++
		if !reflect.DeepEqual(prev, p.value) {
			res.Changes = append(res.Changes, Change{
				Object:   obj.name,
				Property: p.name,
				Previous: prev,
				Value:    p.value,
			})
		}
	}
	r.dropped += uint64(res.Dropped)
	return res
}

// ReconcileResponse decodes a read-property-multiple response body and
// reconciles it. Malformed tuples are dropped and counted with the
// unmatched ones. If the body is not a JSON array the cache is left
// untouched and the decode error is returned.
func (r *Registry) ReconcileResponse(data []byte) ([]PropertyValue, ReconcileResult, error) {
	values, malformed, err := DecodeValues(data)
	if err != nil {
		return nil, ReconcileResult{}, err
	}
	res := r.Reconcile(values)

	if malformed > 0 {
		r.mu.Lock()
		r.dropped += uint64(malformed)
		r.mu.Unlock()
		res.Dropped += malformed
	}
	return values, res, nil
}

// Export returns the persisted form of every tracked object.
func (r *Registry) Export() map[string]ObjectRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ObjectRecord, len(r.objects))
	for name, obj := range r.objects {
		out[name] = obj.Export()
	}
	return out
}

// Clone returns an independent copy of the registry structure. The dropped
// counter starts at zero.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewRegistry()
	for _, name := range r.order {
		c.addLocked(r.objects[name].clone())
	}
	return c
}
