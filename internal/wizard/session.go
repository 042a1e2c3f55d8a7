package wizard

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
	"github.com/nerrad567/eclypse-bridge/internal/bridges/eclypse"
	"github.com/nerrad567/eclypse-bridge/internal/entry"
)

// State is a wizard step.
type State string

const (
	StateCollectingCredentials State = "collecting-credentials"
	StateSelectingObjects      State = "selecting-objects"
	StateSelectingProperties   State = "selecting-properties"
	StateDone                  State = "done"
	StateFailed                State = "failed"
)

// maxDiscoveryAttempts is how many failed controller discoveries a session
// tolerates before it fails.
const maxDiscoveryAttempts = 3

// optionalProperty is a property offered in the properties step when the
// object lists it.
type optionalProperty struct {
	name   string
	static bool
}

var optionalProperties = []optionalProperty{
	{bacnet.PropPresentValue, false},
	{"reliability", false},
	{"statusFlags", false},
	{bacnet.PropUnits, true},
	{"alarmValue", false},
	{"alarmValues", false},
}

// Discoverer reads what the credentials step needs from a controller.
// *eclypse.Client satisfies it.
type Discoverer interface {
	DeviceInfo(ctx context.Context) (eclypse.DeviceInfo, error)
	LoadMetadata(ctx context.Context, types ...string) (*bacnet.Registry, error)
}

// Credentials are the first step's input.
type Credentials struct {
	Host       string `json:"host"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name"`
}

// DiscovererFactory builds a Discoverer for submitted credentials.
type DiscovererFactory func(Credentials) (Discoverer, error)

// ClientFactory returns a DiscovererFactory that builds eclypse clients
// from base, with address and login taken from the credentials.
func ClientFactory(base eclypse.ClientOptions) DiscovererFactory {
	return func(c Credentials) (Discoverer, error) {
		opts := base
		opts.Host = c.Host
		opts.Username = c.Username
		opts.Password = c.Password
		client, err := eclypse.NewClient(opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Input carries the fields of whichever step is current; the others are
// ignored.
type Input struct {
	Credentials

	// Objects selects discovered objects by name. Empty selects all.
	Objects []string `json:"objects,omitempty"`

	// Properties selects, per object, which offered properties to track.
	// Objects without a key get every offered property.
	Properties map[string][]string `json:"properties,omitempty"`
}

// View is the client-facing state of a session.
type View struct {
	ID         string              `json:"id"`
	State      State               `json:"state"`
	Error      string              `json:"error,omitempty"`
	DeviceInfo *eclypse.DeviceInfo `json:"device_info,omitempty"`

	// Objects lists discovered object names while selecting objects.
	Objects []string `json:"objects,omitempty"`

	// Offered lists the selectable properties per object while selecting
	// properties.
	Offered map[string][]string `json:"offered,omitempty"`

	Entry     *entry.Entry `json:"entry,omitempty"`
	ExpiresAt time.Time    `json:"expires_at,omitzero"`
}

// Session is one run of the setup flow.
type Session struct {
	mu sync.Mutex

	id       string
	state    State
	lastErr  error
	attempts int

	factory DiscovererFactory
	onDone  func(ctx context.Context, e *entry.Entry) error

	creds      Credentials
	info       eclypse.DeviceInfo
	discovered *bacnet.Registry
	selected   []string
	result     *entry.Entry
}

func newSession(id string, factory DiscovererFactory, onDone func(context.Context, *entry.Entry) error) *Session {
	return &Session{
		id:      id,
		state:   StateCollectingCredentials,
		factory: factory,
		onDone:  onDone,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current step.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns a snapshot of the session for display.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{ID: s.id, State: s.state}
	if s.lastErr != nil {
		v.Error = s.lastErr.Error()
	}
	if s.state != StateCollectingCredentials && s.state != StateFailed {
		info := s.info
		v.DeviceInfo = &info
	}
	switch s.state {
	case StateSelectingObjects:
		v.Objects = s.discovered.Names()
	case StateSelectingProperties:
		v.Offered = s.offeredLocked()
	case StateDone:
		v.Entry = s.result
	}
	return v
}

// Submit validates in against the current step and advances. On error the
// session keeps its state, except that repeated discovery failures fail it.
func (s *Session) Submit(ctx context.Context, in Input) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch s.state {
	case StateCollectingCredentials:
		err = s.submitCredentials(ctx, in.Credentials)
	case StateSelectingObjects:
		err = s.submitObjects(in.Objects)
	case StateSelectingProperties:
		err = s.submitProperties(ctx, in.Properties)
	default:
		err = fmt.Errorf("%w: %s", ErrFinished, s.state)
	}
	s.lastErr = err
	return s.viewLocked(), err
}

func (s *Session) submitCredentials(ctx context.Context, c Credentials) error {
	c.Host = strings.TrimSpace(c.Host)
	c.DeviceName = strings.TrimSpace(c.DeviceName)

	var missing []string
	if c.Host == "" {
		missing = append(missing, "host is required")
	}
	if c.Username == "" {
		missing = append(missing, "username is required")
	}
	if c.Password == "" {
		missing = append(missing, "password is required")
	}
	if c.DeviceName == "" {
		missing = append(missing, "device name is required")
	} else if strings.ContainsAny(c.DeviceName, "/+#") {
		missing = append(missing, "device name must not contain '/', '+' or '#'")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(missing, "; "))
	}

	d, err := s.factory(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	info, reg, err := discover(ctx, d)
	if err != nil {
		s.attempts++
		if s.attempts >= maxDiscoveryAttempts {
			s.state = StateFailed
		}
		return err
	}

	s.creds = c
	s.info = info
	s.discovered = reg
	s.state = StateSelectingObjects
	return nil
}

func discover(ctx context.Context, d Discoverer) (eclypse.DeviceInfo, *bacnet.Registry, error) {
	info, err := d.DeviceInfo(ctx)
	if err != nil {
		return eclypse.DeviceInfo{}, nil, fmt.Errorf("%w: device info: %w", ErrDiscoveryFailed, err)
	}
	reg, err := d.LoadMetadata(ctx)
	if err != nil {
		return eclypse.DeviceInfo{}, nil, fmt.Errorf("%w: object metadata: %w", ErrDiscoveryFailed, err)
	}
	return info, reg, nil
}

func (s *Session) submitObjects(names []string) error {
	if len(names) == 0 {
		s.selected = s.discovered.Names()
		s.state = StateSelectingProperties
		return nil
	}

	var unknown []string
	selected := make([]string, 0, len(names))
	for _, name := range names {
		if !s.discovered.Has(name) {
			unknown = append(unknown, name)
			continue
		}
		if !slices.Contains(selected, name) {
			selected = append(selected, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: unknown objects %s", ErrInvalidInput, strings.Join(unknown, ", "))
	}

	s.selected = selected
	s.state = StateSelectingProperties
	return nil
}

// offeredLocked lists, per selected object, the optional properties its
// propertyList contains.
func (s *Session) offeredLocked() map[string][]string {
	listed := make(map[string][]string, len(s.selected))
	s.discovered.Each(func(obj *bacnet.Object) {
		listed[obj.Name()] = obj.ListedProperties()
	})

	out := make(map[string][]string, len(s.selected))
	for _, name := range s.selected {
		offered := []string{}
		for _, p := range optionalProperties {
			if slices.Contains(listed[name], p.name) {
				offered = append(offered, p.name)
			}
		}
		out[name] = offered
	}
	return out
}

func (s *Session) submitProperties(ctx context.Context, chosen map[string][]string) error {
	offered := s.offeredLocked()

	var problems []string
	for name, props := range chosen {
		avail, ok := offered[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("object %s is not selected", name))
			continue
		}
		for _, p := range props {
			if !slices.Contains(avail, p) {
				problems = append(problems, fmt.Sprintf("property %s is not offered for %s", p, name))
			}
		}
	}
	if len(problems) > 0 {
		slices.Sort(problems)
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}

	reg, err := s.buildRegistry(offered, chosen)
	if err != nil {
		return err
	}

	e := &entry.Entry{
		Host:       s.creds.Host,
		DeviceName: s.creds.DeviceName,
		Username:   s.creds.Username,
		Password:   s.creds.Password,
		DeviceInfo: s.info.Map(),
		Objects:    reg.Export(),
	}
	if s.onDone != nil {
		if err := s.onDone(ctx, e); err != nil {
			return err
		}
	}

	s.result = e
	s.state = StateDone
	return nil
}

// buildRegistry copies the selected discovered objects and adds the chosen
// optional properties to each.
func (s *Session) buildRegistry(offered, chosen map[string][]string) (*bacnet.Registry, error) {
	reg := s.discovered.Clone()
	for _, name := range reg.Names() {
		if _, ok := offered[name]; !ok {
			reg.Remove(name)
		}
	}

	for _, name := range s.selected {
		props, ok := chosen[name]
		if !ok {
			props = offered[name]
		}
		t, inst, err := bacnet.ParseObjectName(name)
		if err != nil {
			return nil, err
		}
		for _, p := range optionalProperties {
			if !slices.Contains(props, p.name) {
				continue
			}
			rec := bacnet.NewPropertyRecord(t, inst, p.name)
			if p.static {
				rec = bacnet.StaticPropertyRecord(t, inst, p.name)
			}
			if err := reg.AddProperty(name, rec); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}
