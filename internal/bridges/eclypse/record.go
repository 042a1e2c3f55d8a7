package eclypse

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

// Credentials are the controller login.
type Credentials struct {
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
}

// EntryRecord is the persisted form of a client:
// {ip, creds:{user,password}, objects:{name: ObjectRecord}}.
type EntryRecord struct {
	IP      string                         `json:"ip" mapstructure:"ip"`
	Creds   Credentials                    `json:"creds" mapstructure:"creds"`
	Objects map[string]bacnet.ObjectRecord `json:"objects" mapstructure:"-"`
}

// Export captures the client's address, credentials and registry.
func (c *Client) Export() EntryRecord {
	return EntryRecord{
		IP:      c.host,
		Creds:   Credentials{User: c.username, Password: c.password},
		Objects: c.registry.Export(),
	}
}

// Import rebuilds a client from an exported record. Address, credentials
// and registry come from rec; everything else from opts.
func Import(rec EntryRecord, opts ClientOptions) (*Client, error) {
	reg, err := bacnet.FromRecords(rec.Objects)
	if err != nil {
		return nil, err
	}
	opts.Host = rec.IP
	opts.Username = rec.Creds.User
	opts.Password = rec.Creds.Password
	opts.Registry = reg
	return NewClient(opts)
}

// DecodeEntryRecord decodes the generic map form of an EntryRecord, as
// read back from JSON or YAML.
func DecodeEntryRecord(raw map[string]any) (EntryRecord, error) {
	var rec EntryRecord
	if err := mapstructure.WeakDecode(raw, &rec); err != nil {
		return EntryRecord{}, fmt.Errorf("%w: entry record: %w", ErrDecodeFailed, err)
	}

	objects, _ := raw["objects"].(map[string]any)
	rec.Objects = make(map[string]bacnet.ObjectRecord, len(objects))
	for name, v := range objects {
		obj, err := bacnet.DecodeObjectRecord(v)
		if err != nil {
			return EntryRecord{}, fmt.Errorf("object %q: %w", name, err)
		}
		rec.Objects[name] = obj
	}
	return rec, nil
}
