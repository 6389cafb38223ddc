package persist_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/persist"
	"github.com/Tiliavir/punch-clock/internal/storage"
)

type call struct {
	key  persist.Key
	vals model.FieldValues
}

// fakeStore records upserts; fail, when set, decides the outcome of each one.
type fakeStore struct {
	mu       sync.Mutex
	calls    []call
	attempts int
	fail     func(attempt int) error
	block    chan struct{}
	started  chan struct{}
	running  int32
	overlap  int32
}

func (f *fakeStore) Upsert(ctx context.Context, userID, date string, vals model.FieldValues) error {
	if atomic.AddInt32(&f.running, 1) > 1 {
		atomic.StoreInt32(&f.overlap, 1)
	}
	defer atomic.AddInt32(&f.running, -1)

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.fail != nil {
		if err := f.fail(f.attempts); err != nil {
			return err
		}
	}
	cp := model.FieldValues{}
	for k, v := range vals {
		cp[k] = v
	}
	f.calls = append(f.calls, call{persist.Key{UserID: userID, Date: date}, cp})
	return nil
}

func (f *fakeStore) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

var key = persist.Key{UserID: "u1", Date: "2026-03-02"}

func newWriter(store persist.Upserter, cfg persist.Config) *persist.Writer {
	if cfg.Delay == 0 {
		cfg.Delay = 20 * time.Millisecond
	}
	cfg.BaseBackoff = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	return persist.NewWriter(store, cfg, zerolog.Nop())
}

func TestRapidEditsCoalesceIntoOneWrite(t *testing.T) {
	store := &fakeStore{}
	w := newWriter(store, persist.Config{Delay: 50 * time.Millisecond})

	require.NoError(t, w.Schedule(key, model.FieldValues{model.MorningEntry: "08:00"}))
	require.NoError(t, w.Schedule(key, model.FieldValues{model.MorningExit: "12:00"}))
	require.NoError(t, w.Schedule(key, model.FieldValues{model.AfternoonEntry: "12:30"}))
	require.NoError(t, w.Schedule(key, model.FieldValues{model.MorningExit: "12:15"}))

	require.Eventually(t, func() bool { return len(store.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	calls := store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, key, calls[0].key)
	assert.Equal(t, model.FieldValues{
		model.MorningEntry:   "08:00",
		model.MorningExit:    "12:15",
		model.AfternoonEntry: "12:30",
	}, calls[0].vals)
	assert.False(t, w.Pending(key))
}

func TestKeysAreIndependent(t *testing.T) {
	store := &fakeStore{}
	w := newWriter(store, persist.Config{})
	other := persist.Key{UserID: "u1", Date: "2026-03-03"}

	require.NoError(t, w.Schedule(key, model.FieldValues{model.MorningEntry: "08:00"}))
	require.NoError(t, w.Schedule(other, model.FieldValues{model.MorningEntry: "09:00"}))
	require.NoError(t, w.Flush(context.Background()))

	calls := store.Calls()
	require.Len(t, calls, 2)
	byKey := map[persist.Key]string{}
	for _, c := range calls {
		byKey[c.key] = c.vals[model.MorningEntry]
	}
	assert.Equal(t, "08:00", byKey[key])
	assert.Equal(t, "09:00", byKey[other])
}

func TestCancelAbandonsPendingWrite(t *testing.T) {
	store := &fakeStore{}
	w := newWriter(store, persist.Config{})

	require.NoError(t, w.Schedule(key, model.FieldValues{model.MorningEntry: "08:00"}))
	assert.True(t, w.Pending(key))
	w.Cancel(key)
	assert.False(t, w.Pending(key))

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, store.Calls())
}

func TestFlushWritesImmediately(t *testing.T) {
	store := &fakeStore{}
	w := newWriter(store, persist.Config{Delay: time.Hour})

	require.NoError(t, w.Schedule(key, model.FieldValues{model.AfternoonExit: "17:00"}))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Flush(ctx))

	calls := store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "17:00", calls[0].vals[model.AfternoonExit])
}

func TestEmptyScheduleIsSkipped(t *testing.T) {
	store := &fakeStore{}
	w := newWriter(store, persist.Config{})
	require.NoError(t, w.Schedule(key, model.FieldValues{}))
	assert.False(t, w.Pending(key))
	require.NoError(t, w.Flush(context.Background()))
	assert.Empty(t, store.Calls())
}

func TestTransientFailuresRetried(t *testing.T) {
	store := &fakeStore{fail: func(attempt int) error {
		if attempt < 3 {
			return errors.New("connection reset")
		}
		return nil
	}}
	w := newWriter(store, persist.Config{MaxAttempts: 4})

	require.NoError(t, w.Schedule(key, model.FieldValues{model.MorningEntry: "08:00"}))
	require.NoError(t, w.Flush(context.Background()))

	assert.Len(t, store.Calls(), 1)
	assert.NoError(t, w.Err(key))
}

func TestFinalFailureReported(t *testing.T) {
	boom := errors.New("store down")
	store := &fakeStore{fail: func(int) error { return boom }}

	var (
		mu       sync.Mutex
		reported []persist.Key
	)
	w := newWriter(store, persist.Config{
		MaxAttempts: 3,
		ErrorHandler: func(k persist.Key, err error) {
			mu.Lock()
			defer mu.Unlock()
			assert.ErrorIs(t, err, boom)
			reported = append(reported, k)
		},
	})

	require.NoError(t, w.Schedule(key, model.FieldValues{model.MorningEntry: "08:00"}))
	require.NoError(t, w.Flush(context.Background()))

	assert.ErrorIs(t, w.Err(key), boom)
	store.mu.Lock()
	assert.Equal(t, 3, store.attempts)
	store.mu.Unlock()
	mu.Lock()
	assert.Equal(t, []persist.Key{key}, reported)
	mu.Unlock()
}

func TestInvalidKeyNotRetried(t *testing.T) {
	store := &fakeStore{fail: func(int) error { return storage.ErrInvalidDate }}
	w := newWriter(store, persist.Config{MaxAttempts: 5})

	require.NoError(t, w.Schedule(key, model.FieldValues{model.MorningEntry: "08:00"}))
	require.NoError(t, w.Flush(context.Background()))

	store.mu.Lock()
	assert.Equal(t, 1, store.attempts)
	store.mu.Unlock()
	assert.ErrorIs(t, w.Err(key), storage.ErrInvalidDate)
}

func TestOneWriteInFlightPerKey(t *testing.T) {
	store := &fakeStore{block: make(chan struct{}), started: make(chan struct{}, 1)}
	w := newWriter(store, persist.Config{Delay: 5 * time.Millisecond})

	require.NoError(t, w.Schedule(key, model.FieldValues{model.MorningEntry: "08:00"}))
	select {
	case <-store.started:
	case <-time.After(time.Second):
		t.Fatal("first write did not start")
	}

	// Scheduled while the first write is blocked.
	require.NoError(t, w.Schedule(key, model.FieldValues{model.MorningExit: "12:00"}))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, w.Schedule(key, model.FieldValues{model.MorningExit: "12:10"}))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, w.Pending(key))

	close(store.block)
	require.NoError(t, w.Flush(context.Background()))

	calls := store.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, model.FieldValues{model.MorningEntry: "08:00"}, calls[0].vals)
	assert.Equal(t, model.FieldValues{model.MorningExit: "12:10"}, calls[1].vals)
	assert.Zero(t, atomic.LoadInt32(&store.overlap))
}

func TestScheduleAfterClose(t *testing.T) {
	w := newWriter(&fakeStore{}, persist.Config{})
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Schedule(key, model.FieldValues{model.MorningEntry: "08:00"}), persist.ErrClosed)
}
