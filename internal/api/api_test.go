package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/punch-clock/internal/account"
	"github.com/Tiliavir/punch-clock/internal/api"
	"github.com/Tiliavir/punch-clock/internal/history"
	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/persist"
	"github.com/Tiliavir/punch-clock/internal/rules"
	"github.com/Tiliavir/punch-clock/internal/session"
	"github.com/Tiliavir/punch-clock/internal/storage"
)

// tokenProvider accepts the bearer token "good" only.
type tokenProvider struct{}

func (tokenProvider) CurrentUser(ctx context.Context) (model.User, error) {
	if tok, ok := account.TokenFrom(ctx); ok && tok == "good" {
		return model.User{ID: "tok-user"}, nil
	}
	return model.User{}, account.ErrNotAuthenticated
}

type panicProvider struct{}

func (panicProvider) CurrentUser(context.Context) (model.User, error) { panic("boom") }

type fixture struct {
	srv    *httptest.Server
	store  *storage.FileStore
	writer *persist.Writer
}

func newFixture(t *testing.T, accounts account.Provider) fixture {
	t.Helper()
	store := storage.NewFileStore(t.TempDir())
	w := persist.NewWriter(store, persist.Config{Delay: 20 * time.Millisecond}, zerolog.Nop())
	s := api.New(rules.Default(), store, w, accounts, zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
		_ = w.Close()
	})
	return fixture{srv: srv, store: store, writer: w}
}

func do(t *testing.T, method, url string, body any, header http.Header) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeView(t *testing.T, data []byte) session.View {
	t.Helper()
	var v session.View
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func input(field model.Field, value, mode string) map[string]string {
	return map[string]string{"field": string(field), "value": value, "mode": mode}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	f := newFixture(t, account.Static{})

	resp, body := do(t, http.MethodGet, f.srv.URL+"/api/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var e api.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, http.StatusUnauthorized, e.Code)

	resp, _ = do(t, http.MethodGet, f.srv.URL+"/api/days/2026-03-02", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, f.srv.URL+"/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBearerTokenAuthentication(t *testing.T) {
	f := newFixture(t, tokenProvider{})

	resp, _ := do(t, http.MethodGet, f.srv.URL+"/api/me", nil, http.Header{"Authorization": {"Token good"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, f.srv.URL+"/api/me", nil, http.Header{"Authorization": {"Bearer bad"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := do(t, http.MethodGet, f.srv.URL+"/api/me", nil, http.Header{"Authorization": {"Bearer good"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var u model.User
	require.NoError(t, json.Unmarshal(body, &u))
	assert.Equal(t, "tok-user", u.ID)
}

func TestEditDayAndPersist(t *testing.T) {
	f := newFixture(t, account.Static{User: model.User{ID: "u1"}})
	dayURL := f.srv.URL + "/api/days/2026-03-02"

	resp, body := do(t, http.MethodGet, dayURL, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decodeView(t, body)
	assert.Equal(t, "2026-03-02", v.Day.Date)
	assert.False(t, v.Gate)

	resp, body = do(t, http.MethodPost, dayURL+"/input", input(model.MorningEntry, "08:00", "commit"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v = decodeView(t, body)
	assert.Equal(t, "11:30", v.Day.MorningExit)
	assert.Empty(t, v.Day.AfternoonEntry)

	resp, body = do(t, http.MethodPost, dayURL+"/input", input(model.MorningExit, "12:00", ""), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v = decodeView(t, body)
	assert.True(t, v.Gate)
	assert.Equal(t, "12:30", v.Day.AfternoonEntry)
	assert.Equal(t, "16:30", v.Day.AfternoonExit)

	require.NoError(t, f.writer.Flush(context.Background()))
	day, err := f.store.Find(context.Background(), "u1", "2026-03-02")
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.Equal(t, "16:30", day.AfternoonExit)

	resp, body = do(t, http.MethodGet, f.srv.URL+"/api/history?month=2026-03", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m history.Month
	require.NoError(t, json.Unmarshal(body, &m))
	require.Len(t, m.Days, 1)
	assert.Equal(t, 480, m.Days[0].WorkedMinutes)
	assert.Equal(t, 480, m.TotalMinutes)
}

func TestTypeModeKeepsPartialInput(t *testing.T) {
	f := newFixture(t, account.Static{User: model.User{ID: "u1"}})
	resp, body := do(t, http.MethodPost, f.srv.URL+"/api/days/2026-03-02/input", input(model.MorningEntry, "083", "type"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decodeView(t, body)
	assert.Equal(t, "08:3", v.Day.MorningEntry)
	assert.Empty(t, v.Day.MorningExit)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, account.Static{User: model.User{ID: "u1"}})
	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"bad date", http.MethodGet, "/api/days/03-02-2026", nil},
		{"unknown field", http.MethodPost, "/api/days/2026-03-02/input", input("lunch", "12:00", "")},
		{"unknown mode", http.MethodPost, "/api/days/2026-03-02/input", input(model.MorningEntry, "08:00", "paste")},
		{"bad json", http.MethodPost, "/api/days/2026-03-02/input", "not an object"},
		{"bad month", http.MethodGet, "/api/history?month=March", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, tt.method, f.srv.URL+tt.path, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestPanicRecovered(t *testing.T) {
	f := newFixture(t, panicProvider{})
	resp, body := do(t, http.MethodGet, f.srv.URL+"/api/me", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, body)
}

func TestMetricsExposed(t *testing.T) {
	f := newFixture(t, account.Static{User: model.User{ID: "u1"}})
	do(t, http.MethodGet, f.srv.URL+"/api/health", nil, nil)

	resp, body := do(t, http.MethodGet, f.srv.URL+"/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "punch_http_requests_total")
}
