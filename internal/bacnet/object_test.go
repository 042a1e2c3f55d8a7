package bacnet

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseObjectName(t *testing.T) {
	tests := []struct {
		name         string
		wantType     string
		wantInstance int
		wantErr      bool
	}{
		{name: "analogValue_12", wantType: "analogValue", wantInstance: 12},
		{name: "binaryInput_7", wantType: "binaryInput", wantInstance: 7},
		{name: "vendor_type_3", wantType: "vendor_type", wantInstance: 3},
		{name: "analogValue", wantErr: true},
		{name: "analogValue_", wantErr: true},
		{name: "_12", wantErr: true},
		{name: "analogValue_x", wantErr: true},
		{name: "analogValue_-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotInstance, err := ParseObjectName(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidObjectName) {
					t.Errorf("error = %v, want ErrInvalidObjectName", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotType != tt.wantType || gotInstance != tt.wantInstance {
				t.Errorf("got (%q, %d), want (%q, %d)", gotType, gotInstance, tt.wantType, tt.wantInstance)
			}
		})
	}
}

func TestNewObject_Defaults(t *testing.T) {
	obj, err := NewObject(ObjectParams{Name: "multiStateValue_15"})
	if err != nil {
		t.Fatalf("NewObject() error = %v", err)
	}

	if obj.Type() != TypeMultiStateValue || obj.Instance() != 15 {
		t.Errorf("identity = (%s, %d)", obj.Type(), obj.Instance())
	}
	if want := "/api/rest/v1/protocols/bacnet/local/objects/multi-state-value/15"; obj.Href() != want {
		t.Errorf("Href() = %q, want %q", obj.Href(), want)
	}

	wantProps := []string{PropPropertyList, PropObjectName, PropDescription}
	if diff := cmp.Diff(wantProps, obj.PropertyNames()); diff != "" {
		t.Errorf("default properties mismatch (-want +got):\n%s", diff)
	}
	for _, name := range wantProps {
		p, _ := obj.Property(name)
		if !p.Static() {
			t.Errorf("default property %s should be static", name)
		}
	}
}

func TestNewObject_ExplicitHref(t *testing.T) {
	obj, err := NewObject(ObjectParams{Name: "customThing_4", Href: "/custom/4"})
	if err != nil {
		t.Fatalf("NewObject() error = %v", err)
	}
	if obj.Href() != "/custom/4" {
		t.Errorf("Href() = %q", obj.Href())
	}
}

func TestNewObject_UnknownTypeWithoutHref(t *testing.T) {
	_, err := NewObject(ObjectParams{Name: "customThing_4"})
	if !errors.Is(err, ErrUnknownObjectType) {
		t.Errorf("error = %v, want ErrUnknownObjectType", err)
	}
}

func TestObject_AddProperty(t *testing.T) {
	obj, _ := NewObject(ObjectParams{Name: "analogValue_12"})

	if err := obj.AddProperty(NewPropertyRecord(TypeAnalogValue, 12, PropPresentValue)); err != nil {
		t.Fatalf("AddProperty() error = %v", err)
	}

	// Overwrite keeps position.
	rec := StaticPropertyRecord(TypeAnalogValue, 12, PropObjectName)
	rec.Value = "Zone Temp"
	if err := obj.AddProperty(rec); err != nil {
		t.Fatalf("AddProperty() overwrite error = %v", err)
	}

	want := []string{PropPropertyList, PropObjectName, PropDescription, PropPresentValue}
	if diff := cmp.Diff(want, obj.PropertyNames()); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if v, _ := obj.Value(PropObjectName); v != "Zone Temp" {
		t.Errorf("objectName = %v, want overwritten value", v)
	}

	// Type and instance are filled in when omitted.
	if err := obj.AddProperty(PropertyRecord{Name: PropUnits, Static: true, UpdateRequired: true}); err != nil {
		t.Fatalf("AddProperty() bare record error = %v", err)
	}
	p, _ := obj.Property(PropUnits)
	if p.ObjectName() != "analogValue_12" {
		t.Errorf("bare record bound to %s", p.ObjectName())
	}

	if err := obj.AddProperty(NewPropertyRecord(TypeAnalogInput, 12, PropPresentValue)); !errors.Is(err, ErrInvalidProperty) {
		t.Errorf("foreign property error = %v, want ErrInvalidProperty", err)
	}
}

func newPolledObject(t *testing.T) *Object {
	t.Helper()
	obj, err := NewObject(ObjectParams{Name: "analogValue_12"})
	if err != nil {
		t.Fatal(err)
	}
	if err := obj.AddProperty(NewPropertyRecord(TypeAnalogValue, 12, PropPresentValue)); err != nil {
		t.Fatal(err)
	}
	if err := obj.AddProperty(StaticPropertyRecord(TypeAnalogValue, 12, PropUnits)); err != nil {
		t.Fatal(err)
	}
	return obj
}

func propertiesOf(reqs []ReadDescriptor) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Property)
	}
	return out
}

func TestObject_BuildReadRequest(t *testing.T) {
	obj := newPolledObject(t)

	first := propertiesOf(obj.BuildReadRequest(nil, false))
	want := []string{PropPropertyList, PropObjectName, PropDescription, PropPresentValue, PropUnits}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("first cycle mismatch (-want +got):\n%s", diff)
	}

	second := propertiesOf(obj.BuildReadRequest(nil, false))
	if diff := cmp.Diff([]string{PropPresentValue}, second); diff != "" {
		t.Errorf("second cycle should only carry dynamic properties (-want +got):\n%s", diff)
	}
}

func TestObject_BuildReadRequest_NameFilter(t *testing.T) {
	obj := newPolledObject(t)

	got := propertiesOf(obj.BuildReadRequest([]string{PropPresentValue, PropObjectName}, false))
	if diff := cmp.Diff([]string{PropObjectName, PropPresentValue}, got); diff != "" {
		t.Errorf("filtered request mismatch (-want +got):\n%s", diff)
	}

	// Unfiltered static properties are still due.
	p, _ := obj.Property(PropDescription)
	if !p.UpdateRequired() {
		t.Error("filtered-out static property must stay due")
	}
}

func TestObject_BuildReadRequest_IncludeAll(t *testing.T) {
	obj := newPolledObject(t)
	obj.BuildReadRequest(nil, false) // settle statics

	got := propertiesOf(obj.BuildReadRequest(nil, true))
	want := []string{PropPropertyList, PropObjectName, PropDescription, PropPresentValue, PropUnits}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("forced request mismatch (-want +got):\n%s", diff)
	}

	if got := obj.BuildReadRequest(nil, false); len(got) != 1 {
		t.Errorf("forced read must not re-arm statics, got %d descriptors", len(got))
	}
}

func TestObject_BuildWriteRequest(t *testing.T) {
	obj := newPolledObject(t)
	pv, _ := obj.Property(PropPresentValue)
	units, _ := obj.Property(PropUnits)
	pv.Update(70.0)
	units.Update("degrees-fahrenheit")

	got := obj.BuildWriteRequest([]string{PropPresentValue})
	if len(got) != 1 || got[0].Property != PropPresentValue {
		t.Fatalf("filtered write = %+v, want presentValue only", got)
	}
	if !units.WriteRequired() {
		t.Error("filtered-out property must stay dirty")
	}

	got = obj.BuildWriteRequest(nil)
	if len(got) != 1 || got[0].Property != PropUnits {
		t.Fatalf("unfiltered write = %+v, want units only", got)
	}
	if got := obj.BuildWriteRequest(nil); len(got) != 0 {
		t.Errorf("clean object produced writes: %+v", got)
	}
}

func TestObject_String(t *testing.T) {
	obj := newPolledObject(t)
	pv, _ := obj.Property(PropPresentValue)
	pv.Update(71.0)
	pv.RequestWrite()

	var got map[string]any
	if err := json.Unmarshal([]byte(obj.String()), &got); err != nil {
		t.Fatalf("String() is not JSON: %v", err)
	}
	if got["object"] != "analogValue_12" || got["type"] != TypeAnalogValue {
		t.Errorf("identity fields = %v / %v", got["object"], got["type"])
	}
	props, _ := got["properties"].(map[string]any)
	if props[PropPresentValue] != 71.0 {
		t.Errorf("presentValue = %v, want 71", props[PropPresentValue])
	}
}

func TestObject_Export(t *testing.T) {
	obj := newPolledObject(t)
	rec := obj.Export()

	if rec.Name != "analogValue_12" || rec.Href != obj.Href() {
		t.Errorf("record identity = %s %s", rec.Name, rec.Href)
	}
	if len(rec.Properties) != 5 {
		t.Errorf("exported %d properties, want 5", len(rec.Properties))
	}
	if rec.Properties[PropUnits].Name != PropUnits || !rec.Properties[PropUnits].Static {
		t.Errorf("units record = %+v", rec.Properties[PropUnits])
	}
}
