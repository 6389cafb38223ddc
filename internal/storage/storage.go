package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

// Store is the document store holding one record per user and date.
type Store interface {
	// Find returns the day for userID and date, or nil when none is stored.
	Find(ctx context.Context, userID, date string) (*model.Day, error)
	// FindRange returns every stored day in [from, to], ascending by date.
	FindRange(ctx context.Context, userID, from, to string) ([]model.Day, error)
	// Upsert creates the day if absent, otherwise merges only vals into it.
	Upsert(ctx context.Context, userID, date string, vals model.FieldValues) error
	Close() error
}

var (
	// ErrInvalidDate is returned for a date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidUser is returned for an empty or path-unsafe user id.
	ErrInvalidUser = errors.New("invalid user id")
)

// CheckKey validates a (userID, date) record key and returns the parsed date.
func CheckKey(userID, date string) (time.Time, error) {
	if userID == "" || userID == "." || userID == ".." || strings.ContainsAny(userID, `/\`) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	t, err := timecalc.ParseDate(date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}

// BaseDir returns the root data directory (~/.punch).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".punch"), nil
}

// FileStore keeps each day as a JSON document under
// <base>/<userId>/YYYY/MM/DD.json.
type FileStore struct {
	base string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore rooted at base.
func NewFileStore(base string) *FileStore {
	return &FileStore{base: base}
}

// Base returns the root directory of the store.
func (s *FileStore) Base() string { return s.base }

// dayFilePath returns the path for the given user's day document.
func dayFilePath(base, userID string, t time.Time) string {
	return filepath.Join(base, userID, t.Format("2006"), t.Format("01"), t.Format("02")+".json")
}

func (s *FileStore) Find(ctx context.Context, userID, date string) (*model.Day, error) {
	t, err := CheckKey(userID, date)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadDay(dayFilePath(s.base, userID, t))
}

func (s *FileStore) FindRange(ctx context.Context, userID, from, to string) ([]model.Day, error) {
	start, err := CheckKey(userID, from)
	if err != nil {
		return nil, err
	}
	end, err := CheckKey(userID, to)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	days := []model.Day{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		day, err := loadDay(dayFilePath(s.base, userID, d))
		if err != nil {
			return nil, err
		}
		if day != nil {
			days = append(days, *day)
		}
	}
	return days, nil
}

func (s *FileStore) Upsert(ctx context.Context, userID, date string, vals model.FieldValues) error {
	t, err := CheckKey(userID, date)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := dayFilePath(s.base, userID, t)
	day, err := loadDay(path)
	if err != nil {
		return err
	}
	if day == nil {
		day = &model.Day{UserID: userID, Date: timecalc.DateKey(t)}
	}
	day.Merge(vals)
	return saveDay(path, *day)
}

// Close is a no-op; documents are written synchronously.
func (s *FileStore) Close() error { return nil }

// loadDay reads one day document. A missing file yields nil.
func loadDay(path string) (*model.Day, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage error reading %s: %w", path, err)
	}

	var day model.Day
	if err := json.Unmarshal(data, &day); err != nil {
		// Back up corrupt file and abort.
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return nil, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", path, backupPath, err)
	}
	return &day, nil
}

// saveDay atomically writes a day document.
func saveDay(path string, day model.Day) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}

	data, err := json.MarshalIndent(day, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}

	// Atomic write: write to temp file then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}
