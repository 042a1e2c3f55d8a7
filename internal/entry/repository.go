package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

// Repository defines persistence operations for config entries.
type Repository interface {
	// Get retrieves an entry by ID. Returns ErrEntryNotFound if absent.
	Get(ctx context.Context, id string) (*Entry, error)

	// GetByHost retrieves the entry for a controller address.
	GetByHost(ctx context.Context, host string) (*Entry, error)

	// List returns every entry ordered by device name.
	List(ctx context.Context) ([]Entry, error)

	// Create inserts a new entry, assigning an ID when empty.
	// Returns ErrEntryExists if the host already has an entry.
	Create(ctx context.Context, e *Entry) error

	// Update replaces an existing entry.
	Update(ctx context.Context, e *Entry) error

	// Delete removes an entry by ID.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the config_entries table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
	SELECT id, host, device_name, username, password, device_info, objects, created_at, updated_at
	FROM config_entries`

// Get retrieves an entry by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Entry, error) {
	return r.getOne(ctx, selectColumns+" WHERE id = ?", id)
}

// GetByHost retrieves the entry for a controller address.
func (r *SQLiteRepository) GetByHost(ctx context.Context, host string) (*Entry, error) {
	return r.getOne(ctx, selectColumns+" WHERE host = ?", host)
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg string) (*Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying entry: %w", err)
	}
	return e, nil
}

// List returns every entry ordered by device name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" ORDER BY device_name, id")
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// Create inserts a new entry.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = "ent-" + uuid.NewString()[:8]
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	info, objects, err := marshalJSONColumns(e)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO config_entries (id, host, device_name, username, password, device_info, objects, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Host, e.DeviceName, e.Username, e.Password, info, objects,
		e.CreatedAt.Format(time.RFC3339), e.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEntryExists
		}
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// Update replaces an existing entry.
func (r *SQLiteRepository) Update(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.UpdatedAt = time.Now().UTC()

	info, objects, err := marshalJSONColumns(e)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE config_entries
		SET host = ?, device_name = ?, username = ?, password = ?, device_info = ?, objects = ?, updated_at = ?
		WHERE id = ?`,
		e.Host, e.DeviceName, e.Username, e.Password, info, objects,
		e.UpdatedAt.Format(time.RFC3339), e.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEntryExists
		}
		return fmt.Errorf("updating entry: %w", err)
	}
	return requireAffected(result)
}

// Delete removes an entry by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM config_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func marshalJSONColumns(e *Entry) (info any, objects string, err error) {
	if len(e.DeviceInfo) > 0 {
		b, err := json.Marshal(e.DeviceInfo)
		if err != nil {
			return nil, "", fmt.Errorf("marshalling device info: %w", err)
		}
		info = string(b)
	}

	recs := e.Objects
	if recs == nil {
		recs = map[string]bacnet.ObjectRecord{}
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return nil, "", fmt.Errorf("marshalling objects: %w", err)
	}
	return info, string(b), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var info sql.NullString
	var objects, createdAt, updatedAt string

	if err := row.Scan(&e.ID, &e.Host, &e.DeviceName, &e.Username, &e.Password,
		&info, &objects, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if info.Valid && info.String != "" {
		if err := json.Unmarshal([]byte(info.String), &e.DeviceInfo); err != nil {
			return nil, fmt.Errorf("decoding device info: %w", err)
		}
	}

	// Decode through the generic form so missing fields get constructor defaults.
	var raw map[string]any
	if err := json.Unmarshal([]byte(objects), &raw); err != nil {
		return nil, fmt.Errorf("decoding objects: %w", err)
	}
	e.Objects = make(map[string]bacnet.ObjectRecord, len(raw))
	for name, v := range raw {
		rec, err := bacnet.DecodeObjectRecord(v)
		if err != nil {
			return nil, fmt.Errorf("decoding object %q: %w", name, err)
		}
		e.Objects[name] = rec
	}

	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is ours
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is ours
	return &e, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
