package entry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/config"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/database"
	"github.com/nerrad567/eclypse-bridge/migrations"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "entries.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if _, err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func testEntry(t *testing.T, host string) *Entry {
	t.Helper()
	obj, err := bacnet.NewObject(bacnet.ObjectParams{Name: "analogValue_1001"})
	if err != nil {
		t.Fatal(err)
	}
	pv := bacnet.NewPropertyRecord(bacnet.TypeAnalogValue, 1001, bacnet.PropPresentValue)
	pv.Value = 71.5
	if err := obj.AddProperty(pv); err != nil {
		t.Fatal(err)
	}
	return &Entry{
		Host:       host,
		DeviceName: "AHU-1",
		Username:   "admin",
		Password:   "secret",
		DeviceInfo: map[string]string{"modelName": "ECY-S1000"},
		Objects:    map[string]bacnet.ObjectRecord{obj.Name(): obj.Export()},
	}
}

func TestSQLiteRepository_CreateGet(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	e := testEntry(t, "192.168.1.50")

	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.ID == "" {
		t.Fatal("Create() should assign an ID")
	}

	got, err := repo.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Host != e.Host || got.Password != "secret" || got.DeviceInfo["modelName"] != "ECY-S1000" {
		t.Errorf("Get() = %+v", got)
	}
	if diff := cmp.Diff(e.Objects, got.Objects); diff != "" {
		t.Errorf("objects mismatch (-want +got):\n%s", diff)
	}

	byHost, err := repo.GetByHost(ctx, "192.168.1.50")
	if err != nil || byHost.ID != e.ID {
		t.Errorf("GetByHost() = %v, %v", byHost, err)
	}

	reg, err := got.Registry()
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	if v, _ := reg.Value("analogValue_1001", bacnet.PropPresentValue); v != 71.5 {
		t.Errorf("registry presentValue = %v, want 71.5", v)
	}
}

func TestSQLiteRepository_DuplicateHost(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testEntry(t, "10.0.0.2")); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, testEntry(t, "10.0.0.2")); !errors.Is(err, ErrEntryExists) {
		t.Errorf("Create() duplicate error = %v, want ErrEntryExists", err)
	}
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "ent-missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Get() error = %v", err)
	}
	if err := repo.Delete(ctx, "ent-missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Delete() error = %v", err)
	}
	e := testEntry(t, "10.0.0.3")
	e.ID = "ent-missing"
	if err := repo.Update(ctx, e); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Update() error = %v", err)
	}
}

func TestSQLiteRepository_UpdateListDelete(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	a := testEntry(t, "10.0.0.2")
	a.DeviceName = "Zulu"
	b := testEntry(t, "10.0.0.3")
	b.DeviceName = "Alpha"
	for _, e := range []*Entry{a, b} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	a.Objects = nil
	a.Password = "rotated"
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].DeviceName != "Alpha" {
		t.Fatalf("List() order = %+v", list)
	}
	if list[1].Password != "rotated" || len(list[1].Objects) != 0 {
		t.Errorf("updated entry = %+v", list[1])
	}

	if err := repo.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	list, _ = repo.List(ctx)
	if len(list) != 1 {
		t.Errorf("List() after delete = %d entries", len(list))
	}
}

func TestEntry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Entry)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Entry) {}},
		{name: "missing host", mutate: func(e *Entry) { e.Host = " " }, wantErr: true},
		{name: "missing device name", mutate: func(e *Entry) { e.DeviceName = "" }, wantErr: true},
		{name: "missing username", mutate: func(e *Entry) { e.Username = "" }, wantErr: true},
		{
			name: "mismatched object key",
			mutate: func(e *Entry) {
				e.Objects["analogValue_1"] = bacnet.ObjectRecord{Name: "analogValue_2"}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEntry(t, "10.0.0.9")
			tt.mutate(e)
			err := e.Validate()
			if tt.wantErr != (err != nil) {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Validate() error %v is not ErrInvalidEntry", err)
			}
		})
	}
}
