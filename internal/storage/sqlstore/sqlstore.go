// Package sqlstore keeps days in a SQL table. The same statements run on the
// embedded SQLite driver and on PostgreSQL through pgx.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/storage"
)

// Supported drivers.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// columns maps each punch to its column.
var columns = map[model.Field]string{
	model.MorningEntry:   "morning_entry",
	model.MorningExit:    "morning_exit",
	model.AfternoonEntry: "afternoon_entry",
	model.AfternoonExit:  "afternoon_exit",
}

// Store is a storage.Store backed by database/sql.
type Store struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open connects to the database and creates the schema if needed. For SQLite
// dsn is a file path; for Postgres it is a connection string.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case SQLite:
		db, err = openSQLite(dsn)
	case Postgres:
		db, err = openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown sql driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, postgres: driver == Postgres, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", driver, err)
	}
	return s, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS days (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			morning_entry TEXT NOT NULL DEFAULT '',
			morning_exit TEXT NOT NULL DEFAULT '',
			afternoon_entry TEXT NOT NULL DEFAULT '',
			afternoon_exit TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL,
			UNIQUE (user_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_days_user_date ON days(user_id, date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const selectDay = `SELECT user_id, date, morning_entry, morning_exit, afternoon_entry, afternoon_exit FROM days`

func (s *Store) Find(ctx context.Context, userID, date string) (*model.Day, error) {
	if _, err := storage.CheckKey(userID, date); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, s.rebind(selectDay+` WHERE user_id = ? AND date = ?`), userID, date)
	day, err := scanDay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", userID, date, err)
	}
	return &day, nil
}

func (s *Store) FindRange(ctx context.Context, userID, from, to string) ([]model.Day, error) {
	if _, err := storage.CheckKey(userID, from); err != nil {
		return nil, err
	}
	if _, err := storage.CheckKey(userID, to); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(selectDay+` WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date`),
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("find range %s %s..%s: %w", userID, from, to, err)
	}
	defer rows.Close()

	days := []model.Day{}
	for rows.Next() {
		day, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

// Upsert inserts the day or updates only the columns present in vals.
func (s *Store) Upsert(ctx context.Context, userID, date string, vals model.FieldValues) error {
	if _, err := storage.CheckKey(userID, date); err != nil {
		return err
	}

	cols := []string{"id", "user_id", "date"}
	args := []any{uuid.NewString(), userID, date}
	var sets []string
	for _, f := range model.Fields {
		v, ok := vals[f]
		if !ok {
			continue
		}
		cols = append(cols, columns[f])
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", columns[f], columns[f]))
	}
	cols = append(cols, "updated_at")
	args = append(args, s.now().UTC().Format(time.RFC3339Nano))
	sets = append(sets, "updated_at = excluded.updated_at")

	query := fmt.Sprintf(
		`INSERT INTO days (%s) VALUES (%s) ON CONFLICT (user_id, date) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(sets, ", "),
	)
	if _, err := s.db.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", userID, date, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDay(r scanner) (model.Day, error) {
	var d model.Day
	err := r.Scan(&d.UserID, &d.Date, &d.MorningEntry, &d.MorningExit, &d.AfternoonEntry, &d.AfternoonExit)
	return d, err
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
