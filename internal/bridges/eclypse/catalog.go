package eclypse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

// catalogEntry is one element of an object collection listing.
type catalogEntry struct {
	Name string `json:"name"`
	Href string `json:"href"`
}

// DeviceInfo is the controller identity returned by info/device.
type DeviceInfo struct {
	ControllerName  string `json:"controllerName"`
	HostName        string `json:"hostName"`
	ModelName       string `json:"modelName"`
	SoftwareVersion string `json:"softwareVersion"`
}

// Map returns the non-empty fields keyed by their JSON names.
func (d DeviceInfo) Map() map[string]string {
	out := make(map[string]string, 4)
	for k, v := range map[string]string{
		"controllerName":  d.ControllerName,
		"hostName":        d.HostName,
		"modelName":       d.ModelName,
		"softwareVersion": d.SoftwareVersion,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// DeviceInfoFromMap is the inverse of DeviceInfo.Map.
func DeviceInfoFromMap(m map[string]string) DeviceInfo {
	return DeviceInfo{
		ControllerName:  m["controllerName"],
		HostName:        m["hostName"],
		ModelName:       m["modelName"],
		SoftwareVersion: m["softwareVersion"],
	}
}

// DeviceInfo fetches the controller's identity.
func (c *Client) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	var info DeviceInfo
	if err := c.getJSON(ctx, deviceInfoPath, &info); err != nil {
		return DeviceInfo{}, err
	}
	return info, nil
}

// FetchObjectCatalog lists the controller's objects of the given types
// (all supported types when none are given) and returns one bare object per
// name. Names that are not {type}_{instance} are skipped.
func (c *Client) FetchObjectCatalog(ctx context.Context, types ...string) (map[string]*bacnet.Object, error) {
	if len(types) == 0 {
		types = bacnet.SupportedTypes()
	}

	out := make(map[string]*bacnet.Object)
	for _, t := range types {
		slug, ok := bacnet.Slug(t)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
		}

		var entries []catalogEntry
		if err := c.getJSON(ctx, objectsRoot+"/"+slug, &entries); err != nil {
			return nil, fmt.Errorf("listing %s objects: %w", t, err)
		}

		for _, e := range entries {
			obj, err := bacnet.NewObject(bacnet.ObjectParams{Name: e.Name})
			if err != nil {
				c.logWarn("skipping catalog entry", "name", e.Name, "error", err)
				continue
			}
			out[obj.Name()] = obj
		}
	}

	c.logInfo("fetched object catalog", "types", len(types), "objects", len(out))
	return out, nil
}

// LoadMetadata fetches the catalog and reads the static metadata
// (propertyList, objectName, description) of every object it returns. The
// result is a standalone registry; the client's own registry is untouched.
func (c *Client) LoadMetadata(ctx context.Context, types ...string) (*bacnet.Registry, error) {
	catalog, err := c.FetchObjectCatalog(ctx, types...)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	slices.Sort(names)

	reg := bacnet.NewRegistry()
	for _, name := range names {
		reg.Add(catalog[name])
	}

	refs := reg.BuildReadRequest(bacnet.Selection{})
	if len(refs) == 0 {
		return reg, nil
	}
	data, err := c.readMultiple(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("reading object metadata: %w", err)
	}
	if _, _, err := reg.ReconcileResponse(data); err != nil {
		return nil, fmt.Errorf("%w: object metadata: %w", ErrDecodeFailed, err)
	}
	return reg, nil
}

// GetObject fetches the full REST representation of one object.
func (c *Client) GetObject(ctx context.Context, name string) (map[string]any, error) {
	href, err := c.objectHref(name)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := c.getJSON(ctx, href, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Trend fetches an object's trend log records by sequence number range.
// The body is returned as sent by the controller.
func (c *Client) Trend(ctx context.Context, name string, start, end int) (json.RawMessage, error) {
	href, err := c.objectHref(name)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("bySequenceNumber", "true")
	q.Set("start", strconv.Itoa(start))
	q.Set("end", strconv.Itoa(end))

	var out json.RawMessage
	if err := c.getJSON(ctx, href+"/trend?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// objectHref prefers the href of a tracked object and falls back to the
// derived default for untracked names.
func (c *Client) objectHref(name string) (string, error) {
	if rec, ok := c.registry.Snapshot(name); ok && rec.Href != "" {
		return rec.Href, nil
	}
	t, inst, err := bacnet.ParseObjectName(name)
	if err != nil {
		return "", err
	}
	href, err := bacnet.DefaultHref(t, inst)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return href, nil
}
