package resolver

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"modlog-archive/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func at(day int) time.Time {
	return time.Date(2025, 8, day, 12, 0, 0, 0, time.UTC)
}

func TestResolve_StableIDAccumulatesAliases(t *testing.T) {
	store := memory.New()
	r := New(testLogger(), store, nil, DefaultOptions())
	ctx := context.Background()

	first, err := r.Resolve(ctx, "DarkKnight", "6F26F3A5D9A2C314", at(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Created {
		t.Error("first sighting should create the player")
	}

	second, err := r.Resolve(ctx, "ShadowBlade", "6F26F3A5D9A2C314", at(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Created {
		t.Error("same stable id must not create a second player")
	}
	if second.Player.ID != first.Player.ID {
		t.Error("sightings under one stable id must resolve to one player")
	}
	if !second.AliasAdded {
		t.Error("new display name should be recorded as an alias")
	}
	if len(second.Player.Aliases) != 2 {
		t.Errorf("expected 2 aliases, got %v", second.Player.Aliases)
	}
	if !second.Player.LastSeenAt.Equal(at(2)) {
		t.Errorf("last seen should advance, got %v", second.Player.LastSeenAt)
	}

	repeat, err := r.Resolve(ctx, "DarkKnight", "6F26F3A5D9A2C314", at(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repeat.AliasAdded {
		t.Error("known alias should not be re-added")
	}
}

func TestResolve_ExactAliasNamespace(t *testing.T) {
	store := memory.New()
	r := New(testLogger(), store, nil, DefaultOptions())
	ctx := context.Background()

	a, err := r.Resolve(ctx, "player1", "", at(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Created {
		t.Error("unseen alias should create a player")
	}

	b, err := r.Resolve(ctx, "player1", "", at(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Created || b.Player.ID != a.Player.ID {
		t.Error("exact alias repeat should resolve to the same player")
	}

	// near-identical names stay separate with fuzzy disabled
	c, err := r.Resolve(ctx, "player2", "", at(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Created || c.Player.ID == a.Player.ID {
		t.Error("distinct alias must create a distinct player when fuzzy is off")
	}
}

func TestResolve_AliasAndStableIDNamespacesAreSeparate(t *testing.T) {
	store := memory.New()
	r := New(testLogger(), store, nil, DefaultOptions())
	ctx := context.Background()

	withID, err := r.Resolve(ctx, "player1", "6F26F3A5D9A2C314", at(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	withoutID, err := r.Resolve(ctx, "player1", "", at(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withoutID.Player.ID == withID.Player.ID {
		t.Error("anonymous sighting must not attach to a stable-id player by name alone")
	}
}

func TestResolveFuzzy_MergesNearMatch(t *testing.T) {
	store := memory.New()
	opts := Options{FuzzyEnabled: true, Threshold: 0.8, Margin: 0.05}
	r := New(testLogger(), store, nil, opts)
	ctx := context.Background()

	orig, err := r.Resolve(ctx, "Swungbyjack6849", "", at(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// one character off, well above threshold
	merged, err := r.Resolve(ctx, "Swungbyjack6848", "", at(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged.Created {
		t.Error("near match should merge, not create")
	}
	if merged.Player.ID != orig.Player.ID {
		t.Error("near match should resolve to the existing player")
	}
	if !merged.AliasAdded {
		t.Error("merged name should be recorded as an alias")
	}
	if store.PlayerCount() != 1 {
		t.Errorf("expected 1 player, got %d", store.PlayerCount())
	}
}

func TestResolveFuzzy_BelowThresholdCreates(t *testing.T) {
	store := memory.New()
	opts := Options{FuzzyEnabled: true, Threshold: 0.8, Margin: 0.05}
	r := New(testLogger(), store, nil, opts)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "Swungbyjack6849", "", at(1)); err != nil {
		t.Fatal(err)
	}
	res, err := r.Resolve(ctx, "Erol1600", "", at(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created {
		t.Error("unrelated name should create a new player")
	}
	if store.PlayerCount() != 2 {
		t.Errorf("expected 2 players, got %d", store.PlayerCount())
	}
}

func TestResolveFuzzy_AmbiguityCreatesNewPlayer(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	// seed two equidistant candidates for "player13" directly, so the
	// second is not itself fuzzy-merged into the first
	if _, err := store.ResolveByAlias(ctx, "player11", at(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ResolveByAlias(ctx, "player12", at(2)); err != nil {
		t.Fatal(err)
	}

	opts := Options{FuzzyEnabled: true, Threshold: 0.7, Margin: 0.05}
	r := New(testLogger(), store, nil, opts)

	res, err := r.Resolve(ctx, "player13", "", at(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created {
		t.Error("ambiguous match must fall back to creating a new player")
	}
	if store.PlayerCount() != 3 {
		t.Errorf("expected 3 players, got %d", store.PlayerCount())
	}

	// both candidates keep their single alias
	for _, alias := range []string{"player11", "player12"} {
		players, err := store.SearchPlayersByAlias(ctx, alias, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(players) != 1 || len(players[0].Aliases) != 1 {
			t.Errorf("candidate %s must be untouched by the ambiguous sighting", alias)
		}
	}
}

func TestResolveFuzzy_SkipsStableIDPlayers(t *testing.T) {
	store := memory.New()
	opts := Options{FuzzyEnabled: true, Threshold: 0.8, Margin: 0.05}
	r := New(testLogger(), store, nil, opts)
	ctx := context.Background()

	identified, err := r.Resolve(ctx, "Swungbyjack6849", "6F26F3A5D9A2C314", at(1))
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Resolve(ctx, "Swungbyjack6848", "", at(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Player.ID == identified.Player.ID {
		t.Error("fuzzy merge must only consider players without a stable id")
	}
	if !res.Created {
		t.Error("expected a new anonymous player")
	}
}

func TestLevenshteinScorer(t *testing.T) {
	s := LevenshteinScorer{}
	cases := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 1},
		{"abc", "ABC", 1},
		{"", "", 1},
		{"abc", "", 0},
		{"abcd", "abcx", 0.75},
	}
	for _, tc := range cases {
		if got := s.Score(tc.a, tc.b); got != tc.want {
			t.Errorf("Score(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
