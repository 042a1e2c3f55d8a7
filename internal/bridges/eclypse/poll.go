package eclypse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

// PollRequest narrows a poll cycle. The zero value polls every due
// property of every tracked object.
type PollRequest struct {
	Objects    []string
	Properties []string

	// ForceAll reads every selected property whether due or not.
	ForceAll bool
}

// PollResult describes one completed poll cycle.
type PollResult struct {
	// Requested is the number of property references sent. Zero means no
	// request was made.
	Requested int

	Values    []bacnet.PropertyValue
	Reconcile bacnet.ReconcileResult
	Duration  time.Duration
}

// WriteResult describes one completed write flush.
type WriteResult struct {
	Written  []bacnet.WriteDescriptor
	Duration time.Duration
}

// Stats are cumulative client counters plus the most recent poll's size
// and duration.
type Stats struct {
	RequestVolume  int       `json:"request_volume"`
	RequestSeconds float64   `json:"request_seconds"`
	LastPoll       time.Time `json:"last_poll,omitzero"`
	Polls          uint64    `json:"polls"`
	PollFailures   uint64    `json:"poll_failures"`
	Writes         uint64    `json:"writes"`
	WriteFailures  uint64    `json:"write_failures"`
	Dropped        uint64    `json:"dropped"`
}

type readRequest struct {
	Encode             string                  `json:"encode"`
	PropertyReferences []bacnet.ReadDescriptor `json:"propertyReferences"`
}

type writeRequest struct {
	Encode             string                   `json:"encode"`
	PropertyReferences []bacnet.WriteDescriptor `json:"propertyReferences"`
}

// PollProperties reads every due property in one read-property-multiple
// request and reconciles the response into the registry.
//
// The cycle:
//  1. Builds read descriptors for the selected, due properties
//  2. Posts them in a single request (retried per RetryPolicy)
//  3. Decodes each response tuple on its own and merges the valid ones
//
// Tuples that are malformed or match no tracked property are dropped and
// counted in Reconcile.Dropped; they never clear a cached value.
//
// Parameters:
//   - ctx: Bounds the whole cycle including retries
//   - req: Object and property selection; the zero value polls everything due
//
// Returns:
//   - *PollResult: Empty (Requested == 0) when nothing was due
//   - error: ErrRequestFailed, ErrUnexpectedStatus or ErrDecodeFailed. The
//     cache is then unchanged and static properties consumed by this cycle
//     are re-armed for the next one.
func (c *Client) PollProperties(ctx context.Context, req PollRequest) (*PollResult, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	refs := c.registry.BuildReadRequest(bacnet.Selection{
		Objects:    req.Objects,
		Properties: req.Properties,
		IncludeAll: req.ForceAll,
	})
	if len(refs) == 0 {
		return &PollResult{}, nil
	}

	c.logDebug("polling controller", "references", len(refs))

	start := time.Now()
	var (
		values []bacnet.PropertyValue
		res    bacnet.ReconcileResult
	)
	data, err := c.readMultiple(ctx, refs)
	if err == nil {
		values, res, err = c.registry.ReconcileResponse(data)
		if err != nil {
			err = fmt.Errorf("%w: read-property-multiple: %w", ErrDecodeFailed, err)
		}
	}
	elapsed := time.Since(start)

	c.statsMu.Lock()
	c.stats.RequestVolume = len(refs)
	c.stats.RequestSeconds = elapsed.Seconds()
	c.stats.LastPoll = start
	c.stats.Polls++
	if err != nil {
		c.stats.PollFailures++
	}
	c.statsMu.Unlock()

	if err != nil {
		c.registry.Rearm(refs)
		return nil, err
	}

	if res.Dropped > 0 {
		c.logWarn("dropped unmatched or malformed property values", "count", res.Dropped)
	}
	c.logDebug("poll complete",
		"requested", len(refs),
		"matched", res.Matched,
		"changed", len(res.Changes),
		"duration", elapsed)

	return &PollResult{
		Requested: len(refs),
		Values:    values,
		Reconcile: res,
		Duration:  elapsed,
	}, nil
}

// readMultiple posts refs to read-property-multiple and returns the raw
// response body of {type, instance, property, value} tuples.
func (c *Client) readMultiple(ctx context.Context, refs []bacnet.ReadDescriptor) ([]byte, error) {
	return c.do(ctx, http.MethodPost, readPropertyMultiple, readRequest{
		Encode:             "text",
		PropertyReferences: refs,
	})
}

// FlushWrites sends every pending write of the selected objects and
// properties in one write-property-multiple request.
//
// Pending values are committed to the cache when the request is built, as
// the controller echoes them back on the next poll anyway. The request is
// sent once; a failed write is not retried.
//
// Parameters:
//   - ctx: Bounds the request
//   - objects, properties: Selection; nil selects all
//
// Returns:
//   - *WriteResult: The descriptors sent, empty when nothing was pending
//   - error: ErrRequestFailed or ErrUnexpectedStatus
func (c *Client) FlushWrites(ctx context.Context, objects, properties []string) (*WriteResult, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	writes := c.registry.BuildWriteRequest(bacnet.Selection{Objects: objects, Properties: properties})
	if len(writes) == 0 {
		return &WriteResult{}, nil
	}

	c.logInfo("writing properties", "count", len(writes))

	start := time.Now()
	_, err := c.doOnce(ctx, http.MethodPost, writePropertyMultiple, writeRequest{
		Encode:             "text",
		PropertyReferences: writes,
	})

	c.statsMu.Lock()
	if err != nil {
		c.stats.WriteFailures++
	} else {
		c.stats.Writes += uint64(len(writes))
	}
	c.statsMu.Unlock()

	if err != nil {
		return nil, err
	}
	return &WriteResult{Written: writes, Duration: time.Since(start)}, nil
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	c.statsMu.RLock()
	s := c.stats
	c.statsMu.RUnlock()
	s.Dropped = c.registry.Dropped()
	return s
}
