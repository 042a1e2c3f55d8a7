package bacnet

import "testing"

func TestNumeric(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{72.5, 72.5, true},
		{3, 3, true},
		{true, 1, true},
		{false, 0, true},
		{"active", 1, true},
		{"inactive", 0, true},
		{"21.25", 21.25, true},
		{"no-fault-detected", 0, false},
		{nil, 0, false},
		{[]string{"a"}, 0, false},
	}

	for _, tt := range tests {
		got, ok := Numeric(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Numeric(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
