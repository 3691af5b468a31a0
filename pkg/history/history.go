// Package history records every accepted opt-out message in a local SQLite
// database so an interrupted or rate-limited run can resume where it stopped.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Entry is one message the relay accepted.
type Entry struct {
	RunID      string    `json:"runId" yaml:"runId"`
	Profile    string    `json:"profile" yaml:"profile"`
	BrokerID   int       `json:"brokerId" yaml:"brokerId"`
	BrokerName string    `json:"brokerName" yaml:"brokerName"`
	Address    string    `json:"address" yaml:"address"`
	SentAt     time.Time `json:"sentAt" yaml:"sentAt"`
}

type Store struct {
	db *sql.DB
}

// Open creates the database file and its parent directory if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	// _pragma is applied by the driver to every connection it opens.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sends(run_id, profile, broker_id, broker_name, address, sent_at) VALUES(?,?,?,?,?,?)`,
		e.RunID, e.Profile, e.BrokerID, e.BrokerName, e.Address, e.SentAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record send to broker %d: %w", e.BrokerID, err)
	}
	return nil
}

// LastSent returns the broker id of the most recent send for profile.
// ok is false when the profile has never sent anything.
func (s *Store) LastSent(ctx context.Context, profile string) (id int, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT broker_id FROM sends WHERE profile = ? ORDER BY id DESC LIMIT 1`, profile,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// List returns up to limit entries, newest first. An empty profile lists
// every profile; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, profile string, limit int) ([]Entry, error) {
	query := `SELECT run_id, profile, broker_id, broker_name, address, sent_at FROM sends`
	var args []any
	if profile != "" {
		query += ` WHERE profile = ?`
		args = append(args, profile)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			sentAt string
		)
		if err := rows.Scan(&e.RunID, &e.Profile, &e.BrokerID, &e.BrokerName, &e.Address, &sentAt); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, sentAt); err == nil {
			e.SentAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
