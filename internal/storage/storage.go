package storage

import (
	"context"
	"errors"
	"time"

	"modlog-archive/internal/models"
)

var (
	// ErrDuplicateEvent signals a fingerprint collision on insert.
	ErrDuplicateEvent = errors.New("duplicate event")
	// ErrPlayerNotFound signals a lookup miss by surrogate id.
	ErrPlayerNotFound = errors.New("player not found")
)

// Resolution is the outcome of an atomic create-or-get on a player.
type Resolution struct {
	Player     *models.Player
	Created    bool
	AliasAdded bool
}

// Store is the persistence collaborator for players, aliases and events.
// ResolveByStableID and ResolveByAlias must be atomic per identity key:
// two concurrent calls for the same key never create two players.
type Store interface {
	// ResolveByStableID creates or fetches the player owning stableID,
	// records alias if new, and advances last_seen_at.
	ResolveByStableID(ctx context.Context, stableID, alias string, seenAt time.Time) (Resolution, error)

	// ResolveByAlias creates or fetches the anonymous player keyed by the
	// exact alias string. Anonymous players live in a separate namespace
	// and are never merged with stable-id players.
	ResolveByAlias(ctx context.Context, alias string, seenAt time.Time) (Resolution, error)

	// AddAlias appends alias to an existing player if not already present
	// and advances last_seen_at. Reports whether the alias was new.
	AddAlias(ctx context.Context, playerID, alias string, seenAt time.Time) (bool, error)

	// ListAnonymousPlayers returns every player without a stable id,
	// aliases in first-seen order, for fuzzy candidate scoring.
	ListAnonymousPlayers(ctx context.Context) ([]*models.Player, error)

	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	SearchPlayersByAlias(ctx context.Context, q string, limit int) ([]*models.Player, error)

	// EventExists reports whether an event with the fingerprint is stored.
	EventExists(ctx context.Context, fingerprint string) (bool, error)

	// InsertEvent stores an immutable event. Returns ErrDuplicateEvent when
	// the fingerprint is already present.
	InsertEvent(ctx context.Context, ev *models.ModerationEvent) error

	ListEventsByPlayer(ctx context.Context, playerID string, limit int) ([]*models.ModerationEvent, error)

	Ping(ctx context.Context) error
}
