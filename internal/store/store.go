// Package store persists plans and per-user memory in a local SQLite
// database. Plans are immutable JSON documents keyed by id; memory is a
// versioned document updated with compare-and-swap so concurrent reflections
// cannot clobber each other's pattern upserts.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mpalmer/goalplan/internal/memory"
	"github.com/mpalmer/goalplan/internal/plan"
)

var (
	// ErrNotFound is returned when a requested plan does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a memory write lost a
	// compare-and-swap race. Callers should re-read and retry.
	ErrVersionConflict = errors.New("memory version conflict")
)

const schema = `
CREATE TABLE IF NOT EXISTS plans (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	data       BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plans_user ON plans(user_id, created_at);

CREATE TABLE IF NOT EXISTS memories (
	user_id    TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates the database (and its parent directory) if needed and applies
// the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SavePlan writes a plan, replacing any existing row with the same id.
func (s *Store) SavePlan(p *plan.Plan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO plans (id, user_id, created_at, data) VALUES (?, ?, ?, ?)`,
		p.ID, p.UserID, p.CreatedAt.UTC().Format(time.RFC3339Nano), data,
	)
	if err != nil {
		return fmt.Errorf("saving plan: %w", err)
	}
	return nil
}

// GetPlan loads one plan by id.
func (s *Store) GetPlan(id string) (*plan.Plan, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM plans WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading plan: %w", err)
	}
	return decodePlan(data)
}

// LatestPlan loads the most recently created plan for a user.
func (s *Store) LatestPlan(userID string) (*plan.Plan, error) {
	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM plans WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`,
		userID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no plans for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest plan: %w", err)
	}
	return decodePlan(data)
}

// ListPlans returns all of a user's plans, newest first.
func (s *Store) ListPlans(userID string) ([]*plan.Plan, error) {
	rows, err := s.db.Query(
		`SELECT data FROM plans WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var plans []*plan.Plan
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning plan row: %w", err)
		}
		p, err := decodePlan(data)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plans: %w", err)
	}
	return plans, nil
}

// DeletePlan removes a plan by id.
func (s *Store) DeletePlan(id string) error {
	res, err := s.db.Exec(`DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting plan: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	return nil
}

func decodePlan(data []byte) (*plan.Plan, error) {
	var p plan.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	return &p, nil
}

// GetMemory loads a user's memory and its current version. A user with no
// stored memory gets a fresh one at version 0.
func (s *Store) GetMemory(userID string) (*memory.UserMemory, int64, error) {
	var (
		version int64
		data    []byte
	)
	err := s.db.QueryRow(`SELECT version, data FROM memories WHERE user_id = ?`, userID).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.New(), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("loading memory: %w", err)
	}

	var mem memory.UserMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		return nil, 0, fmt.Errorf("decoding memory: %w", err)
	}
	return &mem, version, nil
}

// PutMemory writes a user's memory if it is still at the given version,
// bumping the version on success. Version 0 means "create": it fails with
// ErrVersionConflict if another writer created the row first.
func (s *Store) PutMemory(userID string, mem *memory.UserMemory, version int64) error {
	data, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("encoding memory: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if version == 0 {
		_, err := s.db.Exec(
			`INSERT INTO memories (user_id, version, data, updated_at) VALUES (?, 1, ?, ?)`,
			userID, data, now,
		)
		if err != nil {
			// A unique-constraint failure means someone else created it.
			return fmt.Errorf("%w: %v", ErrVersionConflict, err)
		}
		return nil
	}

	res, err := s.db.Exec(
		`UPDATE memories SET version = version + 1, data = ?, updated_at = ? WHERE user_id = ? AND version = ?`,
		data, now, userID, version,
	)
	if err != nil {
		return fmt.Errorf("updating memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating memory: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("memory for user %s changed underneath: %w", userID, ErrVersionConflict)
	}
	return nil
}
