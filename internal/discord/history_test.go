package discord

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"modlog-archive/internal/ingest"
	"modlog-archive/internal/resolver"
	"modlog-archive/internal/storage/memory"
)

type fakeMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Author  struct {
		Bot bool `json:"bot"`
	} `json:"author"`
}

func msg(id, content string, bot bool) fakeMessage {
	m := fakeMessage{ID: id, Content: content}
	m.Author.Bot = bot
	return m
}

func newTestFetcher(t *testing.T, store *memory.Store, pages map[string][]fakeMessage) *HistoryFetcher {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bot test-token" {
			t.Errorf("expected bot authorization header, got %q", got)
		}
		page := pages[r.URL.Query().Get("after")]
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(page); err != nil {
			t.Errorf("encode page: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	res := resolver.New(log, store, nil, resolver.DefaultOptions())
	p := ingest.New(log, store, res, nil)

	f := NewHistoryFetcher(log, p, "test-token")
	f.baseURL = srv.URL
	return f
}

func TestFetchChannel_IngestsHistory(t *testing.T) {
	store := memory.New()
	// newest-first page, the way the API returns them
	pages := map[string][]fakeMessage{
		"": {
			msg("103", "Ban @ 8/27/2025, 11:22:37 PM srv [pit] Erol1600 outside the pit 2 hours", false),
			msg("102", "bot housekeeping notice", true),
			msg("101", "Kick @ 8/25/2025, 11:08:52 PM srv [pit] Swungbyjack6849 flourish first", false),
		},
	}
	f := newTestFetcher(t, store, pages)

	sum, err := f.FetchChannel(context.Background(), "555", FetchOptions{MaxMessages: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sum.Parsed != 2 {
		t.Errorf("expected 2 parsed lines, got %d", sum.Parsed)
	}
	if sum.NewPlayers != 2 {
		t.Errorf("expected 2 new players, got %d", sum.NewPlayers)
	}
	if store.EventCount() != 2 {
		t.Errorf("expected 2 stored events, got %d", store.EventCount())
	}
}

func TestFetchChannel_WalksWholeBacklog(t *testing.T) {
	// 250 messages with ascending snowflake-style ids: three pages
	const total = 250
	all := make([]fakeMessage, 0, total)
	for i := 0; i < total; i++ {
		id := strconv.Itoa(100000 + i)
		content := "Kick @ 8/25/2025, 11:08:52 PM srv [pit] player" + strconv.Itoa(i) + " spam"
		all = append(all, msg(id, content, false))
	}

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		after := r.URL.Query().Get("after")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		// mirror the API: no after param serves the newest messages,
		// with a cursor it serves the oldest ones past it
		var window []fakeMessage
		if after == "" {
			start := len(all) - limit
			if start < 0 {
				start = 0
			}
			window = all[start:]
		} else {
			for _, m := range all {
				if m.ID > after {
					window = append(window, m)
					if len(window) == limit {
						break
					}
				}
			}
		}
		// newest first
		page := make([]fakeMessage, 0, len(window))
		for i := len(window) - 1; i >= 0; i-- {
			page = append(page, window[i])
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(page); err != nil {
			t.Errorf("encode page: %v", err)
		}
	}))
	defer srv.Close()

	store := memory.New()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	res := resolver.New(log, store, nil, resolver.DefaultOptions())
	f := NewHistoryFetcher(log, ingest.New(log, store, res, nil), "test-token")
	f.baseURL = srv.URL

	// no After cursor: the walk must still start at the channel beginning
	sum, err := f.FetchChannel(context.Background(), "555", FetchOptions{MaxMessages: 2000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Parsed != total {
		t.Errorf("expected %d parsed across the whole backlog, got %d", total, sum.Parsed)
	}
	if requests != 3 {
		t.Errorf("expected pages of 100, 100 and 50, got %d requests", requests)
	}
	if store.EventCount() != total {
		t.Errorf("expected %d stored events, got %d", total, store.EventCount())
	}
}

func TestFetchChannel_ResumesFromAfterCursor(t *testing.T) {
	all := []fakeMessage{
		msg("100001", "Kick @ 8/24/2025, 11:08:52 PM srv [pit] player1 spam", false),
		msg("100002", "Kick @ 8/25/2025, 11:08:52 PM srv [pit] player2 spam", false),
		msg("100003", "Kick @ 8/26/2025, 11:08:52 PM srv [pit] player3 spam", false),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		after := r.URL.Query().Get("after")
		var window []fakeMessage
		for _, m := range all {
			if after == "" || m.ID > after {
				window = append(window, m)
			}
		}
		page := make([]fakeMessage, 0, len(window))
		for i := len(window) - 1; i >= 0; i-- {
			page = append(page, window[i])
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(page); err != nil {
			t.Errorf("encode page: %v", err)
		}
	}))
	defer srv.Close()

	store := memory.New()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	res := resolver.New(log, store, nil, resolver.DefaultOptions())
	f := NewHistoryFetcher(log, ingest.New(log, store, res, nil), "test-token")
	f.baseURL = srv.URL

	sum, err := f.FetchChannel(context.Background(), "555", FetchOptions{MaxMessages: 100, After: "100001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Parsed != 2 {
		t.Errorf("expected only messages past the cursor, got %d parsed", sum.Parsed)
	}
}

func TestFetchChannel_NoToken(t *testing.T) {
	store := memory.New()
	f := newTestFetcher(t, store, nil)
	f.token = ""

	if _, err := f.FetchChannel(context.Background(), "555", FetchOptions{}); err != ErrNoBotToken {
		t.Errorf("expected ErrNoBotToken, got %v", err)
	}
}

func TestFetchChannel_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := memory.New()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	res := resolver.New(log, store, nil, resolver.DefaultOptions())
	f := NewHistoryFetcher(log, ingest.New(log, store, res, nil), "test-token")
	f.baseURL = srv.URL
	f.retry.MaxRetries = 0

	if _, err := f.FetchChannel(context.Background(), "555", FetchOptions{MaxMessages: 5}); err == nil {
		t.Error("expected an error after exhausting retries")
	}
}

func TestFetchChannel_RetriesAfterRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		page := []fakeMessage{msg("101", "Kick @ 8/25/2025, 11:08:52 PM srv [pit] player1 spam", false)}
		if err := json.NewEncoder(w).Encode(page); err != nil {
			t.Errorf("encode page: %v", err)
		}
	}))
	defer srv.Close()

	store := memory.New()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	res := resolver.New(log, store, nil, resolver.DefaultOptions())
	f := NewHistoryFetcher(log, ingest.New(log, store, res, nil), "test-token")
	f.baseURL = srv.URL
	f.retry.InitialBackoff = 0
	f.retry.Jitter = false

	sum, err := f.FetchChannel(context.Background(), "555", FetchOptions{MaxMessages: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected one retry, got %d calls", calls)
	}
	if sum.Parsed != 1 {
		t.Errorf("expected the retried page to ingest, got %d parsed", sum.Parsed)
	}
}
