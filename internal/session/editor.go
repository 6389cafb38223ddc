package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/persist"
	"github.com/Tiliavir/punch-clock/internal/rules"
	"github.com/Tiliavir/punch-clock/internal/storage"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

var (
	// ErrNotOpen is returned for edits before Open.
	ErrNotOpen = errors.New("no day open")
	// ErrLoading is returned for edits while the day is still loading.
	ErrLoading = errors.New("day is still loading")
	// ErrNotLoaded is returned for edits after the load of the open day
	// failed. Open the day again to retry.
	ErrNotLoaded = errors.New("day failed to load")
)

// Finder loads a stored day; nil means nothing is stored yet.
type Finder interface {
	Find(ctx context.Context, userID, date string) (*model.Day, error)
}

// Scheduler is the debounced write side of an Editor.
type Scheduler interface {
	Schedule(key persist.Key, vals model.FieldValues) error
	Cancel(key persist.Key)
	Err(key persist.Key) error
}

// View is the read model handed to the presentation layer.
type View struct {
	Day       model.Day `json:"day"`
	Flags     Flags     `json:"flags"`
	Gate      bool      `json:"morningExitWasSet"`
	IsLoading bool      `json:"isLoading"`
	Error     string    `json:"error,omitempty"`
}

// Editor binds a Session to one stored day and persists accepted edits
// through the debounced writer. It is safe for concurrent use.
type Editor struct {
	rules  rules.Rules
	store  Finder
	writer Scheduler
	log    zerolog.Logger

	mu      sync.Mutex
	key     persist.Key
	sess    *Session
	loading bool
	loadErr error
	gen     uint64
}

// NewEditor returns an Editor with no day open.
func NewEditor(r rules.Rules, store Finder, writer Scheduler, log zerolog.Logger) *Editor {
	return &Editor{
		rules:  r,
		store:  store,
		writer: writer,
		log:    log.With().Str("component", "editor").Logger(),
	}
}

// Open starts editing the day of userID at date and loads it from the
// store. Switching to another user or date abandons the pending write of
// the previous day. Re-opening the day already open keeps its state.
func (e *Editor) Open(ctx context.Context, userID, date string) error {
	if _, err := storage.CheckKey(userID, date); err != nil {
		return err
	}
	key := persist.Key{UserID: userID, Date: date}

	e.mu.Lock()
	if e.sess != nil && e.key == key && e.loadErr == nil {
		e.mu.Unlock()
		return nil
	}
	if e.sess != nil && e.key != key {
		e.writer.Cancel(e.key)
	}
	e.key = key
	e.gen++
	gen := e.gen
	e.sess = New(e.rules, model.Day{UserID: userID, Date: date})
	e.loading = true
	e.loadErr = nil
	e.mu.Unlock()

	day, err := e.store.Find(ctx, userID, date)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		// Superseded by a later Open.
		return nil
	}
	e.loading = false
	if err != nil {
		e.loadErr = fmt.Errorf("load %s: %w", key, err)
		e.log.Error().Stack().Err(err).Str("key", key.String()).Msg("load failed")
		return e.loadErr
	}
	if day != nil {
		d := *day
		d.UserID, d.Date = userID, date
		e.sess.Load(d)
	}
	return nil
}

// Key returns the day currently open.
func (e *Editor) Key() persist.Key {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.key
}

// Type feeds keystroke-level input for f.
func (e *Editor) Type(f model.Field, raw string) (View, error) {
	return e.apply(func(s *Session) Change { return s.Type(f, raw) })
}

// Commit applies a whole value for f.
func (e *Editor) Commit(f model.Field, value string) (View, error) {
	return e.apply(func(s *Session) Change { return s.Commit(f, value) })
}

func (e *Editor) apply(edit func(*Session) Change) (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return View{}, ErrNotOpen
	}
	if e.loading {
		return e.viewLocked(), ErrLoading
	}
	if e.loadErr != nil {
		return e.viewLocked(), ErrNotLoaded
	}
	ch := edit(e.sess)
	e.persistLocked(ch)
	return e.viewLocked(), nil
}

// persistLocked schedules a write of every valid punch when the edit made
// at least one punch valid. Edits leaving only partial input are not
// persisted.
func (e *Editor) persistLocked(ch Change) {
	day := e.sess.Day()
	wrote := false
	for _, f := range ch {
		if timecalc.IsValidTime(day.Get(f)) {
			wrote = true
			break
		}
	}
	if !wrote {
		return
	}
	if err := e.writer.Schedule(e.key, Valid(day)); err != nil {
		e.log.Warn().Err(err).Str("key", e.key.String()).Msg("write not scheduled")
	}
}

// View returns the current read model.
func (e *Editor) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

func (e *Editor) viewLocked() View {
	if e.sess == nil {
		return View{}
	}
	v := View{
		Day:       e.sess.Day(),
		Flags:     e.sess.Flags(),
		Gate:      e.sess.Gate(),
		IsLoading: e.loading,
	}
	switch {
	case e.loadErr != nil:
		v.Error = e.loadErr.Error()
	default:
		if err := e.writer.Err(e.key); err != nil {
			v.Error = fmt.Sprintf("save %s: %v", e.key, err)
		}
	}
	return v
}

// Close detaches the open day. A pending write still runs.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess = nil
	e.key = persist.Key{}
	e.loading = false
	e.loadErr = nil
	e.gen++
}
