package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/config"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/database"
	"github.com/nerrad567/eclypse-bridge/migrations"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "audit.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if _, err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	logs := []*Log{
		{Action: ActionWrite, Object: "analogValue_12", Property: "presentValue", Source: SourceMQTT,
			Details: map[string]any{"value": 70.0, "priority": 8.0}, CreatedAt: base},
		{Action: ActionWrite, Object: "binaryValue_3", Property: "presentValue", Source: SourceAPI, CreatedAt: base.Add(time.Minute)},
		{Action: ActionEntryCreated, Source: SourceWizard, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, l := range logs {
		if err := repo.Create(ctx, l); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if l.ID == "" {
			t.Error("Create() should assign an ID")
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || len(all.Logs) != 3 || all.Limit != defaultLimit {
		t.Fatalf("List() = total %d, %d logs, limit %d", all.Total, len(all.Logs), all.Limit)
	}
	if all.Logs[0].Action != ActionEntryCreated {
		t.Errorf("first log = %s, want most recent first", all.Logs[0].Action)
	}
	last := all.Logs[2]
	if last.Details["value"] != 70.0 || last.Object != "analogValue_12" {
		t.Errorf("oldest log = %+v", last)
	}

	writes, err := repo.List(ctx, Filter{Action: ActionWrite, Object: "binaryValue_3"})
	if err != nil {
		t.Fatal(err)
	}
	if writes.Total != 1 || writes.Logs[0].Source != SourceAPI {
		t.Errorf("filtered List() = %+v", writes)
	}
}

func TestSQLiteRepository_ListClampsPaging(t *testing.T) {
	repo := setupRepo(t)

	res, err := repo.List(context.Background(), Filter{Limit: 1000, Offset: -5})
	if err != nil {
		t.Fatal(err)
	}
	if res.Limit != maxLimit || res.Offset != 0 {
		t.Errorf("paging = limit %d offset %d", res.Limit, res.Offset)
	}
	if res.Logs == nil {
		t.Error("Logs should be an empty slice, not nil")
	}
}
