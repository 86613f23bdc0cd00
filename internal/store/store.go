// Package store persists the card stack in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/cards"
	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound    = errors.New("card not found")
	ErrSingleton   = errors.New("card type allows only one instance")
	ErrNeedsConfig = errors.New("card type needs a config value")
)

type Publisher interface {
	Publish(evt events.Event) bool
}

// Store holds the configured cards. Every mutation publishes
// card_config_changed so a running stack rebuilds itself.
type Store struct {
	db *sql.DB
	mu sync.Mutex
	q  Publisher
}

// Open creates the database file and schema if needed. q may be nil.
func Open(path string, q Publisher) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS cards (
			id       TEXT    PRIMARY KEY,
			type     TEXT    NOT NULL,
			config   TEXT    NOT NULL DEFAULT '',
			name     TEXT    NOT NULL DEFAULT '',
			position INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_position ON cards(position)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	telemetry.Infof("store: opened %s", path)
	return &Store{db: db, q: q}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) changed() {
	if s.q == nil {
		return
	}
	if !s.q.Publish(events.New(events.KindCardConfigChanged, "")) {
		telemetry.Warnf("store: card_config_changed not queued")
	}
}

// List returns the cards in display order.
func (s *Store) List(ctx context.Context) ([]config.CardConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx, s.db)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) list(ctx context.Context, q querier) ([]config.CardConfig, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, type, config, name, position FROM cards ORDER BY position, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []config.CardConfig
	for rows.Next() {
		var c config.CardConfig
		var typ string
		if err := rows.Scan(&c.ID, &typ, &c.Config, &c.Name, &c.Order); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		c.Type = config.CardType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Add appends a card to the end of the stack and returns it with its new id.
func (s *Store) Add(ctx context.Context, c config.CardConfig) (config.CardConfig, error) {
	t, err := config.ParseCardType(string(c.Type))
	if err != nil {
		return config.CardConfig{}, err
	}
	c.Type = t

	s.mu.Lock()
	defer s.mu.Unlock()

	if def, ok := cards.DefinitionFor(t); ok {
		if def.NeedsConfig && c.Config == "" && t != config.CardClock {
			return config.CardConfig{}, fmt.Errorf("%s: %w (%s)", t, ErrNeedsConfig, def.ConfigLabel)
		}
		if !def.AllowMultiple {
			var n int
			if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE type = ?`, string(t)).Scan(&n); err != nil {
				return config.CardConfig{}, fmt.Errorf("count cards: %w", err)
			}
			if n > 0 {
				return config.CardConfig{}, fmt.Errorf("%s: %w", t, ErrSingleton)
			}
		}
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM cards`).Scan(&c.Order); err != nil {
		return config.CardConfig{}, fmt.Errorf("next position: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO cards (id, type, config, name, position) VALUES (?, ?, ?, ?, ?)`,
		c.ID, string(c.Type), c.Config, c.Name, c.Order,
	); err != nil {
		return config.CardConfig{}, fmt.Errorf("insert card: %w", err)
	}

	s.changed()
	return c, nil
}

func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	s.changed()
	return nil
}

// SetConfig changes a card's config value, and its name unless name is empty.
func (s *Store) SetConfig(ctx context.Context, id, value, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE cards SET config = ?, name = COALESCE(NULLIF(?, ''), name) WHERE id = ?`, value, name, id)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	s.changed()
	return nil
}

// Move puts card id at index (clamped to the stack) and renumbers the rest.
func (s *Store) Move(ctx context.Context, id string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	all, err := s.list(ctx, tx)
	if err != nil {
		return err
	}
	from := -1
	for i, c := range all {
		if c.ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	moving := all[from]
	rest := append(all[:from:from], all[from+1:]...)
	index = max(0, min(index, len(rest)))
	ordered := make([]config.CardConfig, 0, len(all))
	ordered = append(ordered, rest[:index]...)
	ordered = append(ordered, moving)
	ordered = append(ordered, rest[index:]...)

	for pos, c := range ordered {
		if _, err := tx.ExecContext(ctx, `UPDATE cards SET position = ? WHERE id = ?`, pos, c.ID); err != nil {
			return fmt.Errorf("renumber: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.changed()
	return nil
}

// Seed fills an empty store. It reports how many cards were inserted; a
// store that already has cards is left alone.
func (s *Store) Seed(ctx context.Context, seed []config.CardConfig) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for pos, c := range seed {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cards (id, type, config, name, position) VALUES (?, ?, ?, ?, ?)`,
			id, string(c.Type), c.Config, c.Name, pos,
		); err != nil {
			return 0, fmt.Errorf("seed card %d: %w", pos, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	if len(seed) > 0 {
		telemetry.Infof("store: seeded %d cards", len(seed))
		s.changed()
	}
	return len(seed), nil
}
