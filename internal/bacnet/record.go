package bacnet

import (
	"fmt"
	"slices"

	"github.com/mitchellh/mapstructure"
)

// FromRecords rebuilds a registry from exported object records.
func FromRecords(records map[string]ObjectRecord) (*Registry, error) {
	reg := NewRegistry()
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, key := range names {
		rec := records[key]
		name := rec.Name
		if name == "" {
			name = key
		}

		propNames := make([]string, 0, len(rec.Properties))
		for pn := range rec.Properties {
			propNames = append(propNames, pn)
		}
		slices.Sort(propNames)

		props := make([]PropertyRecord, 0, len(propNames))
		for _, pn := range propNames {
			pr := rec.Properties[pn]
			if pr.Name == "" {
				pr.Name = pn
			}
			props = append(props, pr)
		}

		obj, err := NewObject(ObjectParams{Name: name, Href: rec.Href, Properties: props})
		if err != nil {
			return nil, fmt.Errorf("importing object %q: %w", key, err)
		}
		reg.Add(obj)
	}
	return reg, nil
}

// ImportObjects rebuilds a registry from the generic map form of an export,
// as produced by decoding persisted JSON into map[string]any.
//
// Missing property fields take their constructor defaults: no priority,
// whole-value array index, not static, update required.
func ImportObjects(raw map[string]any) (*Registry, error) {
	records := make(map[string]ObjectRecord, len(raw))
	for key, v := range raw {
		rec, err := DecodeObjectRecord(v)
		if err != nil {
			return nil, fmt.Errorf("importing object %q: %w", key, err)
		}
		records[key] = rec
	}
	return FromRecords(records)
}

// DecodeObjectRecord decodes one object from its generic map form.
func DecodeObjectRecord(raw any) (ObjectRecord, error) {
	var shell struct {
		Name       string         `mapstructure:"name"`
		Href       string         `mapstructure:"href"`
		Properties map[string]any `mapstructure:"properties"`
	}
	if err := decode(raw, &shell); err != nil {
		return ObjectRecord{}, err
	}

	rec := ObjectRecord{
		Name:       shell.Name,
		Href:       shell.Href,
		Properties: make(map[string]PropertyRecord, len(shell.Properties)),
	}
	for name, rp := range shell.Properties {
		pr, err := DecodePropertyRecord(rp)
		if err != nil {
			return ObjectRecord{}, fmt.Errorf("property %q: %w", name, err)
		}
		rec.Properties[name] = pr
	}
	return rec, nil
}

// DecodePropertyRecord decodes one property from its generic map form on
// top of the constructor defaults.
func DecodePropertyRecord(raw any) (PropertyRecord, error) {
	rec := NewPropertyRecord("", 0, "")
	if err := decode(raw, &rec); err != nil {
		return PropertyRecord{}, err
	}
	return rec, nil
}

func decode(input, result any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return nil
}
