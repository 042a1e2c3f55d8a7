package bacnet

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParsePropertyList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "three entries",
			input: "{Object Name, Present Value, Units}",
			want:  []string{"objectName", "presentValue", "units"},
		},
		{
			name:  "single entry",
			input: "{Description}",
			want:  []string{"description"},
		},
		{
			name:  "already camel case",
			input: "{statusFlags,outOfService}",
			want:  []string{"statusFlags", "outOfService"},
		},
		{
			name:  "inner spacing removed",
			input: "{ Alarm  Values }",
			want:  []string{"alarmValues"},
		},
		{
			name:  "empty",
			input: "{}",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParsePropertyList(tt.input)); diff != "" {
				t.Errorf("ParsePropertyList(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestNewProperty_PropertyListNormalised(t *testing.T) {
	rec := StaticPropertyRecord(TypeAnalogValue, 12, PropPropertyList)
	rec.Value = "{Object Name, Present Value, Units}"

	p, err := NewProperty(rec)
	if err != nil {
		t.Fatalf("NewProperty() error = %v", err)
	}

	want := []string{"objectName", "presentValue", "units"}
	if diff := cmp.Diff(want, p.Value()); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
}

func TestNewProperty_OtherValuesUntouched(t *testing.T) {
	for _, v := range []any{72.5, "{not a list}", []any{1.0, 2.0}, nil} {
		rec := NewPropertyRecord(TypeAnalogValue, 1, PropPresentValue)
		rec.Value = v
		p, err := NewProperty(rec)
		if err != nil {
			t.Fatalf("NewProperty() error = %v", err)
		}
		if diff := cmp.Diff(v, p.Value()); diff != "" {
			t.Errorf("value %v altered (-want +got):\n%s", v, diff)
		}
	}
}

func TestNewProperty_Validation(t *testing.T) {
	tests := []struct {
		name string
		rec  PropertyRecord
	}{
		{name: "missing type", rec: NewPropertyRecord("", 1, PropPresentValue)},
		{name: "missing name", rec: NewPropertyRecord(TypeAnalogValue, 1, "")},
		{name: "negative instance", rec: NewPropertyRecord(TypeAnalogValue, -1, PropPresentValue)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProperty(tt.rec); !errors.Is(err, ErrInvalidProperty) {
				t.Errorf("NewProperty() error = %v, want ErrInvalidProperty", err)
			}
		})
	}
}

func TestProperty_StaticReadIsOneShot(t *testing.T) {
	p, _ := NewProperty(StaticPropertyRecord(TypeBinaryInput, 7, PropObjectName))

	d, ok := p.RequestRead()
	if !ok {
		t.Fatal("first RequestRead() of a static property should emit a descriptor")
	}
	want := ReadDescriptor{Type: TypeBinaryInput, Instance: 7, Property: PropObjectName, ArrayIndex: WholeValue}
	if d != want {
		t.Errorf("descriptor = %+v, want %+v", d, want)
	}

	for i := range 3 {
		if _, ok := p.RequestRead(); ok {
			t.Errorf("RequestRead() call %d emitted a descriptor for a settled static property", i+2)
		}
	}
	if p.UpdateRequired() {
		t.Error("UpdateRequired() should be false after the first read")
	}
}

func TestProperty_DynamicReadRepeats(t *testing.T) {
	p, _ := NewProperty(NewPropertyRecord(TypeAnalogInput, 3, PropPresentValue))

	for i := range 3 {
		if _, ok := p.RequestRead(); !ok {
			t.Errorf("RequestRead() call %d should emit for a dynamic property", i+1)
		}
	}
}

func TestProperty_NotDueEmitsNothing(t *testing.T) {
	rec := NewPropertyRecord(TypeAnalogInput, 3, PropPresentValue)
	rec.UpdateRequired = false
	p, _ := NewProperty(rec)

	if _, ok := p.RequestRead(); ok {
		t.Error("RequestRead() should emit nothing when update is not required")
	}
}

func TestProperty_WriteCycle(t *testing.T) {
	rec := NewPropertyRecord(TypeAnalogValue, 12, PropPresentValue)
	rec.Value = 68.0
	rec.Priority = 8
	p, _ := NewProperty(rec)

	if _, ok := p.RequestWrite(); ok {
		t.Fatal("RequestWrite() on a clean property should emit nothing")
	}

	p.Update(72.5)
	if !p.WriteRequired() {
		t.Fatal("WriteRequired() should be true after Update")
	}
	if p.Value() != 68.0 {
		t.Errorf("Update must not change the cached value before flush, got %v", p.Value())
	}

	d, ok := p.RequestWrite()
	if !ok {
		t.Fatal("RequestWrite() should emit after Update")
	}
	want := WriteDescriptor{Type: TypeAnalogValue, Instance: 12, Property: PropPresentValue, Priority: 8, Value: 72.5}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
	if p.Value() != 72.5 {
		t.Errorf("Value() after flush = %v, want 72.5", p.Value())
	}
	if p.WriteRequired() {
		t.Error("WriteRequired() should be false after flush")
	}
	if _, ok := p.RequestWrite(); ok {
		t.Error("second RequestWrite() should emit nothing")
	}
}

func TestProperty_Export(t *testing.T) {
	rec := StaticPropertyRecord(TypeMultiStateValue, 15, PropDescription)
	rec.Value = "Occupancy"
	p, _ := NewProperty(rec)
	p.RequestRead()

	want := PropertyRecord{
		ObjectType:     TypeMultiStateValue,
		Instance:       15,
		Name:           PropDescription,
		Value:          "Occupancy",
		Priority:       NoPriority,
		ArrayIndex:     WholeValue,
		Static:         true,
		UpdateRequired: false,
	}
	if diff := cmp.Diff(want, p.Export()); diff != "" {
		t.Errorf("Export() mismatch (-want +got):\n%s", diff)
	}
}
