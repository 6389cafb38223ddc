// Package persist coalesces rapid punch edits into debounced store upserts.
//
// Writes are keyed by (userId, date). Each Schedule merges its values into the
// pending write for the key and restarts the quiet interval. When the interval
// elapses the merged values are upserted. At most one upsert per key is in
// flight; values scheduled meanwhile are written right after it.
package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/storage"
)

// ErrClosed is returned by Schedule after Close.
var ErrClosed = errors.New("writer closed")

// Key identifies one stored day.
type Key struct {
	UserID string
	Date   string
}

func (k Key) String() string { return k.UserID + "/" + k.Date }

// Upserter is the store side of the writer.
type Upserter interface {
	Upsert(ctx context.Context, userID, date string, vals model.FieldValues) error
}

// Config groups the writer tunables. Zero values fall back to defaults.
type Config struct {
	// Delay is the quiet interval after the last Schedule for a key.
	Delay time.Duration
	// Timeout bounds a single upsert attempt.
	Timeout time.Duration

	MaxAttempts int
	BaseBackoff time.Duration
	MaxInterval time.Duration

	// ErrorHandler is called after the final failed attempt of a write.
	ErrorHandler func(Key, error)
}

type slot struct {
	vals     model.FieldValues // pending values, nil when nothing is pending
	gen      uint64
	timer    *time.Timer
	due      bool // quiet interval elapsed while a write was in flight
	inflight bool
	err      error // result of the last write
}

// Writer is a keyed debounced write queue. It is safe for concurrent use.
type Writer struct {
	cfg   Config
	store Upserter
	log   zerolog.Logger

	mu     sync.Mutex
	idle   *sync.Cond // signalled when active drops to zero
	slots  map[Key]*slot
	active int
	closed bool
}

// NewWriter returns a Writer upserting into store.
func NewWriter(store Upserter, cfg Config, log zerolog.Logger) *Writer {
	if cfg.Delay <= 0 {
		cfg.Delay = 100 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	w := &Writer{
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "writer").Logger(),
		slots: make(map[Key]*slot),
	}
	w.idle = sync.NewCond(&w.mu)
	return w
}

// Schedule merges vals into the pending write for key and restarts its quiet
// interval. Empty vals are ignored.
func (w *Writer) Schedule(key Key, vals model.FieldValues) error {
	if len(vals) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	s := w.slot(key)
	if s.vals == nil {
		s.vals = model.FieldValues{}
	} else {
		coalescedTotal.Inc()
	}
	for f, v := range vals {
		s.vals[f] = v
	}
	scheduledTotal.Inc()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(w.cfg.Delay, func() { w.fire(key, gen) })
	return nil
}

// Cancel abandons the pending write for key. A write already in flight is
// not interrupted.
func (w *Writer) Cancel(key Key) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.slots[key]
	if !ok || s.vals == nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.vals = nil
	s.due = false
	s.gen++
	cancelledTotal.Inc()
	w.log.Debug().Str("key", key.String()).Msg("pending write cancelled")
}

// Pending reports whether a write for key is waiting or in flight.
func (w *Writer) Pending(key Key) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.slots[key]
	return ok && (s.vals != nil || s.inflight)
}

// Err returns the error of the last completed write for key, or nil.
func (w *Writer) Err(key Key) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.slots[key]; ok {
		return s.err
	}
	return nil
}

// Flush starts every pending write immediately and waits until all writes
// have finished or ctx is done.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	for key, s := range w.slots {
		if s.vals == nil {
			continue
		}
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.gen++
		w.startLocked(key, s)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.mu.Lock()
		for w.active > 0 {
			w.idle.Wait()
		}
		w.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending writes and rejects further scheduling.
func (w *Writer) Close() error {
	err := w.Flush(context.Background())
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return err
}

func (w *Writer) slot(key Key) *slot {
	s, ok := w.slots[key]
	if !ok {
		s = &slot{}
		w.slots[key] = s
	}
	return s
}

// fire runs when the quiet interval of generation gen elapses.
func (w *Writer) fire(key Key, gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.slots[key]
	if !ok || s.gen != gen || s.vals == nil {
		return
	}
	s.timer = nil
	w.startLocked(key, s)
}

// startLocked hands the pending values of s to a drain goroutine, or marks
// them due when a write for key is already running.
func (w *Writer) startLocked(key Key, s *slot) {
	if s.inflight {
		s.due = true
		return
	}
	vals := s.vals
	s.vals = nil
	s.inflight = true
	w.active++
	go w.drain(key, vals)
}

func (w *Writer) drain(key Key, vals model.FieldValues) {
	for {
		err := w.write(key, vals)

		w.mu.Lock()
		s := w.slots[key]
		s.err = err
		if s.due && s.vals != nil {
			vals = s.vals
			s.vals = nil
			s.due = false
			w.mu.Unlock()
			continue
		}
		s.due = false
		s.inflight = false
		if s.vals == nil && err == nil {
			delete(w.slots, key)
		}
		w.active--
		if w.active == 0 {
			w.idle.Broadcast()
		}
		w.mu.Unlock()
		return
	}
}

// write upserts vals, retrying transient failures with exponential backoff.
func (w *Writer) write(key Key, vals model.FieldValues) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = w.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = w.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()
	policy := backoff.WithMaxRetries(exp, uint64(w.cfg.MaxAttempts-1))

	attempt := 0
	start := time.Now()
	err := backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			retriesTotal.Inc()
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
		defer cancel()
		err := w.store.Upsert(ctx, key.UserID, key.Date, vals)
		if errors.Is(err, storage.ErrInvalidDate) || errors.Is(err, storage.ErrInvalidUser) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	writeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		writesTotal.WithLabelValues("error").Inc()
		w.log.Error().Stack().Err(err).
			Str("key", key.String()).
			Int("attempts", attempt).
			Msg("write failed")
		w.handleError(key, err)
		return err
	}
	writesTotal.WithLabelValues("ok").Inc()
	w.log.Debug().
		Str("key", key.String()).
		Int("fields", len(vals)).
		Int("attempts", attempt).
		Msg("day written")
	return nil
}

func (w *Writer) handleError(key Key, err error) {
	if w.cfg.ErrorHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msg("write error handler panicked")
		}
	}()
	w.cfg.ErrorHandler(key, err)
}
