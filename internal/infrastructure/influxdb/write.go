package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementProperty = "bacnet_property"
	MeasurementPoll     = "eclypse_poll"
)

// PollSample is one poll cycle's statistics.
type PollSample struct {
	Duration      time.Duration
	RequestVolume int
	Matched       int
	Dropped       int
	Changed       int
	Failed        bool
}

// WriteProperty records one numeric property value.
func (c *Client) WriteProperty(device, object, property string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(propertyPoint(device, object, property, value, at))
}

// WritePoll records the statistics of one poll cycle.
func (c *Client) WritePoll(device string, s PollSample, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(pollPoint(device, s, at))
}

func propertyPoint(device, object, property string, value float64, at time.Time) *write.Point {
	tags := map[string]string{
		"device":   device,
		"object":   object,
		"property": property,
	}
	// Object names are {type}_{instance}; the type is a useful low-cardinality tag.
	for i := len(object) - 1; i > 0; i-- {
		if object[i] == '_' {
			tags["object_type"] = object[:i]
			break
		}
	}
	return write.NewPoint(MeasurementProperty, tags, map[string]any{"value": value}, at)
}

func pollPoint(device string, s PollSample, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementPoll,
		map[string]string{"device": device},
		map[string]any{
			"duration_seconds": s.Duration.Seconds(),
			"request_volume":   s.RequestVolume,
			"matched":          s.Matched,
			"dropped":          s.Dropped,
			"changed":          s.Changed,
			"failed":           s.Failed,
		},
		at,
	)
}
