package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"modlog-archive/internal/models"
	"modlog-archive/internal/storage"
)

// Scorer rates the similarity of two display names in [0, 1].
type Scorer interface {
	Score(a, b string) float64
}

// Options gates the fuzzy fallback used when a line carries no stable id.
type Options struct {
	FuzzyEnabled bool
	Threshold    float64
	Margin       float64
}

// DefaultOptions mirrors the ingester's conservative defaults: fuzzy off,
// and when enabled, a near-exact bar with a clear winner required.
func DefaultOptions() Options {
	return Options{
		FuzzyEnabled: false,
		Threshold:    0.92,
		Margin:       0.03,
	}
}

// Result is the outcome of resolving one observed (username, stable id) pair.
type Result struct {
	Player     *models.Player
	Created    bool
	AliasAdded bool
}

// Resolver maps observed names to durable players. The atomic create-or-get
// per identity key lives in the store; the resolver owns the policy.
type Resolver struct {
	store  storage.Store
	scorer Scorer
	opts   Options
	log    *slog.Logger
}

func New(log *slog.Logger, store storage.Store, scorer Scorer, opts Options) *Resolver {
	if scorer == nil {
		scorer = LevenshteinScorer{}
	}
	return &Resolver{store: store, scorer: scorer, opts: opts, log: log}
}

// Resolve finds or creates the player for a sighting. stableID may be empty;
// seenAt advances the player's last_seen_at.
func (r *Resolver) Resolve(ctx context.Context, username, stableID string, seenAt time.Time) (Result, error) {
	if stableID != "" {
		res, err := r.store.ResolveByStableID(ctx, stableID, username, seenAt)
		if err != nil {
			return Result{}, fmt.Errorf("resolve by stable id: %w", err)
		}
		return Result(res), nil
	}

	if r.opts.FuzzyEnabled {
		if res, ok, err := r.resolveFuzzy(ctx, username, seenAt); err != nil {
			return Result{}, err
		} else if ok {
			return res, nil
		}
	}

	res, err := r.store.ResolveByAlias(ctx, username, seenAt)
	if err != nil {
		return Result{}, fmt.Errorf("resolve by alias: %w", err)
	}
	return Result(res), nil
}

type candidate struct {
	player *models.Player
	score  float64
}

// resolveFuzzy scores username against every alias of every anonymous
// player. It merges only when the best candidate clears the threshold and
// beats the runner-up by the configured margin; anything murkier falls
// through to exact-alias resolution.
func (r *Resolver) resolveFuzzy(ctx context.Context, username string, seenAt time.Time) (Result, bool, error) {
	players, err := r.store.ListAnonymousPlayers(ctx)
	if err != nil {
		return Result{}, false, fmt.Errorf("list fuzzy candidates: %w", err)
	}

	cands := make([]candidate, 0, len(players))
	for _, p := range players {
		best := 0.0
		for _, a := range p.Aliases {
			if s := r.scorer.Score(username, a); s > best {
				best = s
			}
		}
		cands = append(cands, candidate{player: p, score: best})
	}

	// deterministic: score desc, then earliest created, then lexical id
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if !cands[i].player.CreatedAt.Equal(cands[j].player.CreatedAt) {
			return cands[i].player.CreatedAt.Before(cands[j].player.CreatedAt)
		}
		return cands[i].player.ID < cands[j].player.ID
	})

	if len(cands) == 0 || cands[0].score <= r.opts.Threshold {
		return Result{}, false, nil
	}
	if len(cands) > 1 && cands[0].score-cands[1].score < r.opts.Margin {
		r.log.Debug("fuzzy_resolution_ambiguous",
			"username", username,
			"best", cands[0].score,
			"second", cands[1].score,
		)
		return Result{}, false, nil
	}

	winner := cands[0].player
	added, err := r.store.AddAlias(ctx, winner.ID, username, seenAt)
	if err != nil {
		return Result{}, false, fmt.Errorf("merge fuzzy alias: %w", err)
	}
	p, err := r.store.GetPlayer(ctx, winner.ID)
	if err != nil {
		return Result{}, false, fmt.Errorf("reload merged player: %w", err)
	}

	r.log.Info("fuzzy_resolution_merged",
		"username", username,
		"player_id", winner.ID,
		"score", cands[0].score,
	)
	return Result{Player: p, AliasAdded: added}, true, nil
}
