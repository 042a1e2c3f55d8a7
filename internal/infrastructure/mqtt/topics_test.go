package mqtt

import (
	"errors"
	"testing"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"State", topics.State("office", "analogValue_1001", "presentValue"), "eclypse/state/office/analogValue_1001/presentValue"},
		{"Command", topics.Command("office", "multiStateValue_15", "presentValue"), "eclypse/command/office/multiStateValue_15/presentValue"},
		{"Ack", topics.Ack("office", "binaryValue_3", "presentValue"), "eclypse/ack/office/binaryValue_3/presentValue"},
		{"Health", topics.Health("office"), "eclypse/health/office"},
		{"Status", topics.Status("eclypse-bridge"), "eclypse/status/eclypse-bridge"},
		{"CommandSubscription", topics.CommandSubscription("office"), "eclypse/command/office/+/+"},
		{"StateSubscription", topics.StateSubscription("office"), "eclypse/state/office/#"},
		{"Discovery", topics.Discovery("homeassistant", "sensor", "eclypse_office_analogValue_1001"), "homeassistant/sensor/eclypse_office_analogValue_1001/config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParsePropertyTopic(t *testing.T) {
	addr, err := ParsePropertyTopic("eclypse/command/office/analogValue_12/presentValue")
	if err != nil {
		t.Fatalf("ParsePropertyTopic() error = %v", err)
	}
	want := PropertyAddress{Category: "command", Device: "office", Object: "analogValue_12", Property: "presentValue"}
	if addr != want {
		t.Errorf("got %+v, want %+v", addr, want)
	}

	for _, bad := range []string{
		"",
		"eclypse/command/office",
		"other/command/office/analogValue_12/presentValue",
		"eclypse/command/office/+/presentValue",
		"eclypse/command/office/analogValue_12/presentValue/extra",
		"eclypse/command//analogValue_12/presentValue",
	} {
		if _, err := ParsePropertyTopic(bad); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ParsePropertyTopic(%q) error = %v, want ErrInvalidTopic", bad, err)
		}
	}
}
