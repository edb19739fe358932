package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements HistoryStore backed by an embedded SQLite database.
// The history table is insert-only; there are no update or delete paths.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the history database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		recorded_at DATETIME NOT NULL,
		device TEXT NOT NULL,
		category TEXT NOT NULL,
		rule_id TEXT,
		cause TEXT,
		fix_id TEXT,
		template_id TEXT,
		outcome TEXT NOT NULL,
		success INTEGER NOT NULL,
		entry JSON NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_rule ON history(rule_id);
	CREATE INDEX IF NOT EXISTS idx_history_device ON history(device);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append inserts one history entry. Duplicate IDs are rejected by the
// primary key, preserving immutability.
func (s *SQLiteStore) Append(ctx context.Context, entry *HistoryEntry) error {
	blob, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO history (id, recorded_at, device, category, rule_id, cause, fix_id, template_id, outcome, success, entry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.RecordedAt, entry.Problem.Device, string(entry.Problem.Category),
		entry.RuleID, entry.Cause, entry.FixID, entry.TemplateID, entry.Outcome,
		boolToInt(entry.Success), string(blob),
	)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// List returns all entries in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry FROM history ORDER BY recorded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		var e HistoryEntry
		if err := json.Unmarshal([]byte(blob), &e); err != nil {
			return nil, fmt.Errorf("failed to decode history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RuleStats aggregates attempts and successes per rule.
func (s *SQLiteStore) RuleStats(ctx context.Context) (map[string]RuleStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, COUNT(*), SUM(success)
		FROM history
		WHERE rule_id != ''
		GROUP BY rule_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate rule stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]RuleStats)
	for rows.Next() {
		var ruleID string
		var attempts, successes int
		if err := rows.Scan(&ruleID, &attempts, &successes); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats[ruleID] = RuleStats{Attempts: attempts, Successes: successes}
	}
	return stats, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
