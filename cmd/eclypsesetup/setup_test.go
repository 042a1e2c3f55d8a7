package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/c-bata/go-prompt"
	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
	"github.com/nerrad567/eclypse-bridge/internal/bridges/eclypse"
	"github.com/nerrad567/eclypse-bridge/internal/entry"
	"github.com/nerrad567/eclypse-bridge/internal/wizard"
)

// scriptedUI answers prompts from a fixed list and records what it printed.
type scriptedUI struct {
	answers   []string
	passwords []string
	labels    []string
	out       strings.Builder
}

func (u *scriptedUI) Input(label, def string, _ []prompt.Suggest) string {
	u.labels = append(u.labels, label)
	if len(u.answers) == 0 {
		return def
	}
	a := u.answers[0]
	u.answers = u.answers[1:]
	if a == "" {
		return def
	}
	return a
}

func (u *scriptedUI) Password(string) (string, error) {
	if len(u.passwords) == 0 {
		return "", errors.New("no password scripted")
	}
	p := u.passwords[0]
	u.passwords = u.passwords[1:]
	return p, nil
}

func (u *scriptedUI) Printf(format string, args ...any) {
	fmt.Fprintf(&u.out, format, args...)
}

type fakeDiscoverer struct {
	failures int
}

func (f *fakeDiscoverer) DeviceInfo(context.Context) (eclypse.DeviceInfo, error) {
	if f.failures > 0 {
		f.failures--
		return eclypse.DeviceInfo{}, errors.New("connection refused")
	}
	return eclypse.DeviceInfo{ControllerName: "ECY-1", ModelName: "ECY-S1000", SoftwareVersion: "1.18"}, nil
}

func (f *fakeDiscoverer) LoadMetadata(context.Context, ...string) (*bacnet.Registry, error) {
	reg := bacnet.NewRegistry()
	for _, name := range []string{"analogValue_1001", "binaryInput_7"} {
		obj, err := bacnet.NewObject(bacnet.ObjectParams{Name: name})
		if err != nil {
			return nil, err
		}
		reg.Add(obj)
	}
	reg.BuildReadRequest(bacnet.Selection{})
	reg.Reconcile([]bacnet.PropertyValue{
		{Type: bacnet.TypeAnalogValue, Instance: 1001, Property: bacnet.PropPropertyList, Value: "{Object Name, Present Value, Units}"},
		{Type: bacnet.TypeBinaryInput, Instance: 7, Property: bacnet.PropPropertyList, Value: "{Object Name, Present Value}"},
	})
	return reg, nil
}

type memStore struct {
	created []*entry.Entry
	err     error
}

func (m *memStore) Create(_ context.Context, e *entry.Entry) error {
	if m.err != nil {
		return m.err
	}
	e.ID = fmt.Sprintf("ent-%d", len(m.created)+1)
	m.created = append(m.created, e)
	return nil
}

func newSetup(t *testing.T, u *scriptedUI, d *fakeDiscoverer, store *memStore) *setup {
	t.Helper()
	mgr, err := wizard.NewManager(wizard.ManagerOptions{
		Factory: func(wizard.Credentials) (wizard.Discoverer, error) { return d, nil },
		Store:   store,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return &setup{ui: u, mgr: mgr, defaults: wizard.Credentials{Host: "10.0.0.5", Username: "admin"}}
}

func TestSetup_SelectsObjectsAndProperties(t *testing.T) {
	u := &scriptedUI{
		// host, username (defaults), device name, objects, properties of analogValue_1001
		answers:   []string{"", "", "office", "analogValue_1001", "presentValue, units"},
		passwords: []string{"secret"},
	}
	store := &memStore{}
	s := newSetup(t, u, &fakeDiscoverer{}, store)

	e, err := s.run(context.Background())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if e.ID != "ent-1" || e.Host != "10.0.0.5" || e.DeviceName != "office" || e.Password != "secret" {
		t.Errorf("entry = %+v", e)
	}
	if _, ok := e.Objects["binaryInput_7"]; ok {
		t.Error("unselected object stored")
	}
	props := e.Objects["analogValue_1001"].Properties
	for _, p := range []string{bacnet.PropPresentValue, bacnet.PropUnits} {
		if _, ok := props[p]; !ok {
			t.Errorf("property %s missing from entry", p)
		}
	}
	if !strings.Contains(u.out.String(), "Found ECY-1 (ECY-S1000, firmware 1.18) with 2 objects.") {
		t.Errorf("device summary missing from output:\n%s", u.out.String())
	}
	if len(store.created) != 1 {
		t.Errorf("stored %d entries, want 1", len(store.created))
	}
	if s.mgr.Len() != 0 {
		t.Error("session left open after run")
	}
}

func TestSetup_BlankAnswersTrackEverything(t *testing.T) {
	u := &scriptedUI{
		answers:   []string{"", "", "office"},
		passwords: []string{"secret"},
	}
	s := newSetup(t, u, &fakeDiscoverer{}, &memStore{})

	e, err := s.run(context.Background())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(e.Objects) != 2 {
		t.Errorf("entry tracks %d objects, want 2", len(e.Objects))
	}
	if _, ok := e.Objects["binaryInput_7"].Properties[bacnet.PropPresentValue]; !ok {
		t.Error("offered presentValue should be tracked by default")
	}
}

func TestSetup_RetriesAfterDiscoveryFailure(t *testing.T) {
	u := &scriptedUI{
		answers:   []string{"10.0.0.6", "", "office", "", "", "", "", ""},
		passwords: []string{"wrong", "secret"},
	}
	s := newSetup(t, u, &fakeDiscoverer{failures: 1}, &memStore{})

	e, err := s.run(context.Background())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if e.Host != "10.0.0.6" || e.Password != "secret" {
		t.Errorf("entry = %s/%s, want second attempt's answers", e.Host, e.Password)
	}
	if !strings.Contains(u.out.String(), "connection refused") {
		t.Errorf("discovery error not shown:\n%s", u.out.String())
	}
}

func TestSetup_FailsAfterRepeatedDiscoveryFailures(t *testing.T) {
	u := &scriptedUI{passwords: []string{"a", "b", "c"}, answers: []string{"", "", "office"}}
	s := newSetup(t, u, &fakeDiscoverer{failures: 3}, &memStore{})

	_, err := s.run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "setup failed") {
		t.Errorf("error = %v, want setup failed", err)
	}
}

func TestSetup_InvalidObjectIsAskedAgain(t *testing.T) {
	u := &scriptedUI{
		answers:   []string{"", "", "office", "analogValue_9", "binaryInput_7", ""},
		passwords: []string{"secret"},
	}
	s := newSetup(t, u, &fakeDiscoverer{}, &memStore{})

	e, err := s.run(context.Background())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, ok := e.Objects["binaryInput_7"]; !ok || len(e.Objects) != 1 {
		t.Errorf("objects = %v, want binaryInput_7 only", e.Objects)
	}
}

func TestSetup_EntryExists(t *testing.T) {
	u := &scriptedUI{answers: []string{"", "", "office"}, passwords: []string{"secret"}}
	s := newSetup(t, u, &fakeDiscoverer{}, &memStore{err: entry.ErrEntryExists})

	_, err := s.run(context.Background())
	if !errors.Is(err, entry.ErrEntryExists) {
		t.Errorf("error = %v, want ErrEntryExists", err)
	}
}

func TestSetup_PasswordError(t *testing.T) {
	u := &scriptedUI{}
	s := newSetup(t, u, &fakeDiscoverer{}, &memStore{})

	if _, err := s.run(context.Background()); err == nil {
		t.Fatal("run() should fail when the password cannot be read")
	}
}

func TestSetup_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newSetup(t, &scriptedUI{}, &fakeDiscoverer{}, &memStore{})

	if _, err := s.run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestSplitNames(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{}},
		{in: "presentValue", want: []string{"presentValue"}},
		{in: "presentValue, units", want: []string{"presentValue", "units"}},
		{in: " a,,b\tc ", want: []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := splitNames(tt.in)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("splitNames(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}
