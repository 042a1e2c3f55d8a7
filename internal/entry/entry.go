// Package entry persists controller configurations ("config entries").
//
// An entry is what the setup wizard produces: where the controller lives,
// how to authenticate, and which objects and properties to track. The
// bridge loads one entry at startup and rebuilds its registry from it.
package entry

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

// Entry is one persisted controller configuration.
type Entry struct {
	ID         string                         `json:"id"`
	Host       string                         `json:"host"`
	DeviceName string                         `json:"device_name"`
	Username   string                         `json:"username"`
	Password   string                         `json:"-"`
	DeviceInfo map[string]string              `json:"device_info,omitempty"`
	Objects    map[string]bacnet.ObjectRecord `json:"objects"`
	CreatedAt  time.Time                      `json:"created_at"`
	UpdatedAt  time.Time                      `json:"updated_at"`
}

// Validate checks the fields every entry needs.
func (e *Entry) Validate() error {
	var errs []string
	if strings.TrimSpace(e.Host) == "" {
		errs = append(errs, "host is required")
	}
	if strings.TrimSpace(e.DeviceName) == "" {
		errs = append(errs, "device name is required")
	}
	if e.Username == "" {
		errs = append(errs, "username is required")
	}
	for key, obj := range e.Objects {
		if obj.Name != "" && obj.Name != key {
			errs = append(errs, fmt.Sprintf("object key %q does not match name %q", key, obj.Name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEntry, strings.Join(errs, "; "))
	}
	return nil
}

// Registry rebuilds the object registry described by the entry.
func (e *Entry) Registry() (*bacnet.Registry, error) {
	reg, err := bacnet.FromRecords(e.Objects)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	return reg, nil
}
