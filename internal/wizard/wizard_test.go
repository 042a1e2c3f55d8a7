package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
	"github.com/nerrad567/eclypse-bridge/internal/bridges/eclypse"
	"github.com/nerrad567/eclypse-bridge/internal/entry"
)

type fakeDiscoverer struct {
	infoErr error
	metaErr error
}

func (f *fakeDiscoverer) DeviceInfo(context.Context) (eclypse.DeviceInfo, error) {
	if f.infoErr != nil {
		return eclypse.DeviceInfo{}, f.infoErr
	}
	return eclypse.DeviceInfo{ControllerName: "ECY-1", ModelName: "ECY-S1000", SoftwareVersion: "1.18"}, nil
}

func (f *fakeDiscoverer) LoadMetadata(context.Context, ...string) (*bacnet.Registry, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
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
		{Type: bacnet.TypeAnalogValue, Instance: 1001, Property: bacnet.PropPropertyList, Value: "{Object Name, Present Value, Units, Status Flags}"},
		{Type: bacnet.TypeAnalogValue, Instance: 1001, Property: bacnet.PropObjectName, Value: "Zone Temperature"},
		{Type: bacnet.TypeBinaryInput, Instance: 7, Property: bacnet.PropPropertyList, Value: "{Object Name, Present Value, Alarm Value}"},
	})
	return reg, nil
}

type fakeStore struct {
	created []*entry.Entry
	err     error
}

func (s *fakeStore) Create(_ context.Context, e *entry.Entry) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, e)
	return nil
}

var goodCreds = Credentials{Host: "10.0.0.5", Username: "admin", Password: "secret", DeviceName: "office"}

func newTestManager(t *testing.T, d *fakeDiscoverer, store EntryStore) *Manager {
	t.Helper()
	m, err := NewManager(ManagerOptions{
		Factory: func(Credentials) (Discoverer, error) { return d, nil },
		Store:   store,
	})
	require.NoError(t, err)
	return m
}

func TestNewManager_RequiresFactory(t *testing.T) {
	_, err := NewManager(ManagerOptions{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestWizard_FullFlow(t *testing.T) {
	store := &fakeStore{}
	var created *entry.Entry
	m, err := NewManager(ManagerOptions{
		Factory:   func(Credentials) (Discoverer, error) { return &fakeDiscoverer{}, nil },
		Store:     store,
		OnCreated: func(e *entry.Entry) { created = e },
	})
	require.NoError(t, err)
	ctx := context.Background()

	v := m.Begin()
	require.Equal(t, StateCollectingCredentials, v.State)
	require.NotEmpty(t, v.ID)
	require.False(t, v.ExpiresAt.IsZero())

	v, err = m.Submit(ctx, v.ID, Input{Credentials: goodCreds})
	require.NoError(t, err)
	require.Equal(t, StateSelectingObjects, v.State)
	assert.Equal(t, []string{"analogValue_1001", "binaryInput_7"}, v.Objects)
	require.NotNil(t, v.DeviceInfo)
	assert.Equal(t, "ECY-S1000", v.DeviceInfo.ModelName)

	v, err = m.Submit(ctx, v.ID, Input{Objects: []string{"analogValue_1001"}})
	require.NoError(t, err)
	require.Equal(t, StateSelectingProperties, v.State)
	assert.Equal(t, map[string][]string{
		"analogValue_1001": {"presentValue", "statusFlags", "units"},
	}, v.Offered)

	v, err = m.Submit(ctx, v.ID, Input{Properties: map[string][]string{
		"analogValue_1001": {"presentValue", "units"},
	}})
	require.NoError(t, err)
	require.Equal(t, StateDone, v.State)
	require.NotNil(t, v.Entry)

	require.Len(t, store.created, 1)
	assert.Same(t, store.created[0], created)

	e := store.created[0]
	assert.Equal(t, "10.0.0.5", e.Host)
	assert.Equal(t, "office", e.DeviceName)
	assert.Equal(t, "secret", e.Password)
	assert.Equal(t, "ECY-1", e.DeviceInfo["controllerName"])

	require.Len(t, e.Objects, 1)
	props := e.Objects["analogValue_1001"].Properties
	assert.Contains(t, props, "presentValue")
	assert.Contains(t, props, "units")
	assert.NotContains(t, props, "statusFlags")
	assert.True(t, props["units"].Static)
	assert.False(t, props["presentValue"].Static)
	assert.Equal(t, "Zone Temperature", props["objectName"].Value)

	_, err = m.Submit(ctx, v.ID, Input{})
	require.ErrorIs(t, err, ErrFinished)
}

func TestWizard_DefaultsSelectEverything(t *testing.T) {
	m := newTestManager(t, &fakeDiscoverer{}, nil)
	ctx := context.Background()

	v := m.Begin()
	v, err := m.Submit(ctx, v.ID, Input{Credentials: goodCreds})
	require.NoError(t, err)
	v, err = m.Submit(ctx, v.ID, Input{})
	require.NoError(t, err)
	v, err = m.Submit(ctx, v.ID, Input{})
	require.NoError(t, err)

	require.Equal(t, StateDone, v.State)
	require.Len(t, v.Entry.Objects, 2)
	assert.Contains(t, v.Entry.Objects["binaryInput_7"].Properties, "alarmValue")
	assert.Contains(t, v.Entry.Objects["analogValue_1001"].Properties, "statusFlags")
}

func TestWizard_InvalidCredentialsKeepState(t *testing.T) {
	m := newTestManager(t, &fakeDiscoverer{}, nil)
	v := m.Begin()

	tests := []struct {
		name  string
		creds Credentials
	}{
		{name: "empty", creds: Credentials{}},
		{name: "missing password", creds: Credentials{Host: "h", Username: "u", DeviceName: "d"}},
		{name: "wildcard in device", creds: Credentials{Host: "h", Username: "u", Password: "p", DeviceName: "a/#"}},
		{name: "blank host", creds: Credentials{Host: "  ", Username: "u", Password: "p", DeviceName: "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Submit(context.Background(), v.ID, Input{Credentials: tt.creds})
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, StateCollectingCredentials, got.State)
			assert.NotEmpty(t, got.Error)
		})
	}
}

func TestWizard_DiscoveryFailures(t *testing.T) {
	d := &fakeDiscoverer{infoErr: errors.New("connection refused")}
	m := newTestManager(t, d, nil)
	ctx := context.Background()
	v := m.Begin()

	for i := 1; i < maxDiscoveryAttempts; i++ {
		got, err := m.Submit(ctx, v.ID, Input{Credentials: goodCreds})
		require.ErrorIs(t, err, ErrDiscoveryFailed)
		require.Equal(t, StateCollectingCredentials, got.State, "attempt %d", i)
	}

	got, err := m.Submit(ctx, v.ID, Input{Credentials: goodCreds})
	require.ErrorIs(t, err, ErrDiscoveryFailed)
	assert.Equal(t, StateFailed, got.State)

	_, err = m.Submit(ctx, v.ID, Input{Credentials: goodCreds})
	require.ErrorIs(t, err, ErrFinished)
}

func TestWizard_DiscoveryRecovers(t *testing.T) {
	d := &fakeDiscoverer{metaErr: errors.New("timeout")}
	m := newTestManager(t, d, nil)
	ctx := context.Background()
	v := m.Begin()

	_, err := m.Submit(ctx, v.ID, Input{Credentials: goodCreds})
	require.ErrorIs(t, err, ErrDiscoveryFailed)

	d.metaErr = nil
	got, err := m.Submit(ctx, v.ID, Input{Credentials: goodCreds})
	require.NoError(t, err)
	assert.Equal(t, StateSelectingObjects, got.State)
	assert.Empty(t, got.Error)
}

func TestWizard_SelectionValidation(t *testing.T) {
	m := newTestManager(t, &fakeDiscoverer{}, nil)
	ctx := context.Background()
	v := m.Begin()
	v, err := m.Submit(ctx, v.ID, Input{Credentials: goodCreds})
	require.NoError(t, err)

	got, err := m.Submit(ctx, v.ID, Input{Objects: []string{"analogValue_1001", "analogValue_9"}})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, StateSelectingObjects, got.State)

	_, err = m.Submit(ctx, v.ID, Input{Objects: []string{"binaryInput_7", "binaryInput_7"}})
	require.NoError(t, err)

	got, err = m.Submit(ctx, v.ID, Input{Properties: map[string][]string{"binaryInput_7": {"units"}}})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, StateSelectingProperties, got.State)

	_, err = m.Submit(ctx, v.ID, Input{Properties: map[string][]string{"analogValue_1001": {"presentValue"}}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestWizard_StoreFailureKeepsState(t *testing.T) {
	store := &fakeStore{err: entry.ErrEntryExists}
	m := newTestManager(t, &fakeDiscoverer{}, store)
	ctx := context.Background()
	v := m.Begin()
	v, _ = m.Submit(ctx, v.ID, Input{Credentials: goodCreds})
	v, _ = m.Submit(ctx, v.ID, Input{})

	got, err := m.Submit(ctx, v.ID, Input{})
	require.ErrorIs(t, err, entry.ErrEntryExists)
	assert.Equal(t, StateSelectingProperties, got.State)

	store.err = nil
	got, err = m.Submit(ctx, v.ID, Input{})
	require.NoError(t, err)
	assert.Equal(t, StateDone, got.State)
}

func TestManager_Expiry(t *testing.T) {
	m := newTestManager(t, &fakeDiscoverer{}, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	a := m.Begin()
	b := m.Begin()
	require.Equal(t, 2, m.Len())

	now = now.Add(DefaultSessionTTL / 2)
	_, err := m.Get(a.ID)
	require.NoError(t, err)

	now = now.Add(DefaultSessionTTL/2 + time.Second)
	m.Cleanup()
	require.Equal(t, 1, m.Len())

	_, err = m.Get(b.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(a.ID)
	require.NoError(t, err)

	require.True(t, m.Cancel(a.ID))
	require.False(t, m.Cancel(a.ID))
	_, err = m.Submit(context.Background(), a.ID, Input{})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClientFactory(t *testing.T) {
	f := ClientFactory(eclypse.ClientOptions{Timeout: time.Second})
	d, err := f(goodCreds)
	require.NoError(t, err)
	c, ok := d.(*eclypse.Client)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.5", c.Host())

	_, err = f(Credentials{Host: "h"})
	require.Error(t, err)
}
