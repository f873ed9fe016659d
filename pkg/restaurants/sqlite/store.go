// Package sqlite stores restaurants in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-go-golems/tablebot/pkg/restaurants"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const schemaV1 = `
CREATE TABLE IF NOT EXISTS restaurants (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    cuisine_type TEXT NOT NULL DEFAULT '',
    price_range INTEGER NOT NULL DEFAULT 0,
    average_rating REAL NOT NULL DEFAULT 0,
    dietary_options TEXT NOT NULL DEFAULT '[]',
    ambiance_tags TEXT NOT NULL DEFAULT '[]',
    outdoor_seating INTEGER NOT NULL DEFAULT 0,
    ai_featured INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS restaurants_cuisine_type ON restaurants (cuisine_type COLLATE NOCASE);
`

const columns = "id, name, description, address, tags, cuisine_type, price_range, average_rating, dietary_options, ambiance_tags, outdoor_seating, ai_featured"

// Store reads restaurants from SQLite. List columns are stored as JSON arrays.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

var _ restaurants.Store = (*Store)(nil)

// DSNForFile returns a DSN for a database file with WAL journaling and a busy timeout.
func DSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

// Open opens the database and migrates its schema.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlite store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: open")
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaV1); err != nil {
		return errors.Wrap(err, "sqlite store: migrate")
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) ensureOpen() error {
	if s.closed {
		return errors.New("sqlite store closed")
	}
	return nil
}

// Import upserts restaurants in a single transaction and returns how many rows it wrote.
func (s *Store) Import(ctx context.Context, rs []restaurants.Restaurant) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "sqlite store: begin")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO restaurants (`+columns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description,
    address = excluded.address,
    tags = excluded.tags,
    cuisine_type = excluded.cuisine_type,
    price_range = excluded.price_range,
    average_rating = excluded.average_rating,
    dietary_options = excluded.dietary_options,
    ambiance_tags = excluded.ambiance_tags,
    outdoor_seating = excluded.outdoor_seating,
    ai_featured = excluded.ai_featured`)
	if err != nil {
		return 0, errors.Wrap(err, "sqlite store: prepare import")
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return 0, err
		}
		tags, err := encodeList(r.Tags)
		if err != nil {
			return 0, err
		}
		dietary, err := encodeList(r.DietaryOptions)
		if err != nil {
			return 0, err
		}
		ambiance, err := encodeList(r.AmbianceTags)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Name, r.Description, r.Address, tags, r.CuisineType,
			r.PriceRange, r.AverageRating, dietary, ambiance,
			r.OutdoorSeating, r.AIFeatured,
		); err != nil {
			return 0, errors.Wrapf(err, "sqlite store: import %s", r.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "sqlite store: commit")
	}
	log.Debug().Int("restaurants", len(rs)).Msg("imported restaurants")
	return len(rs), nil
}

func (s *Store) ListCuisineTypes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT cuisine_type FROM restaurants WHERE TRIM(cuisine_type) != ''`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: list cuisine types")
	}
	defer func() {
		_ = rows.Close()
	}()

	var names []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		names = append(names, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return restaurants.DistinctCuisines(names), nil
}

func (s *Store) ListByCuisine(ctx context.Context, cuisine string) ([]restaurants.Restaurant, error) {
	return s.query(ctx, `SELECT `+columns+` FROM restaurants WHERE cuisine_type = ? COLLATE NOCASE ORDER BY rowid`, cuisine)
}

func (s *Store) ListAll(ctx context.Context) ([]restaurants.Restaurant, error) {
	return s.query(ctx, `SELECT `+columns+` FROM restaurants ORDER BY rowid`)
}

func (s *Store) query(ctx context.Context, q string, args ...interface{}) ([]restaurants.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: query restaurants")
	}
	defer func() {
		_ = rows.Close()
	}()

	var ret []restaurants.Restaurant
	for rows.Next() {
		var (
			r                       restaurants.Restaurant
			tags, dietary, ambiance string
		)
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Description, &r.Address, &tags, &r.CuisineType,
			&r.PriceRange, &r.AverageRating, &dietary, &ambiance,
			&r.OutdoorSeating, &r.AIFeatured,
		); err != nil {
			return nil, errors.Wrap(err, "sqlite store: scan restaurant")
		}
		if r.Tags, err = decodeList(tags); err != nil {
			return nil, errors.Wrapf(err, "restaurant %s: tags", r.ID)
		}
		if r.DietaryOptions, err = decodeList(dietary); err != nil {
			return nil, errors.Wrapf(err, "restaurant %s: dietary_options", r.ID)
		}
		if r.AmbianceTags, err = decodeList(ambiance); err != nil {
			return nil, errors.Wrapf(err, "restaurant %s: ambiance_tags", r.ID)
		}
		ret = append(ret, r)
	}
	return ret, rows.Err()
}

func encodeList(l []string) (string, error) {
	if l == nil {
		l = []string{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var l []string
	if err := json.Unmarshal([]byte(s), &l); err != nil {
		return nil, err
	}
	if len(l) == 0 {
		return nil, nil
	}
	return l, nil
}
