package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"modlog-archive/internal/db"
	"modlog-archive/internal/models"
	"modlog-archive/internal/storage"
)

// Store persists players, aliases and moderation events in Postgres.
// Create-or-get atomicity rides on the unique constraints over
// players.stable_id and players.alias_key.
type Store struct {
	db *db.DB
}

func New(dbConn *db.DB) *Store {
	return &Store{db: dbConn}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) ResolveByStableID(ctx context.Context, stableID, alias string, seenAt time.Time) (storage.Resolution, error) {
	var (
		playerID string
		inserted bool
	)
	// xmax = 0 distinguishes a fresh insert from a conflict-update
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO players (id, stable_id, created_at, last_seen_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (stable_id) DO UPDATE
		   SET last_seen_at = GREATEST(players.last_seen_at, EXCLUDED.last_seen_at)
		 RETURNING id, (xmax = 0)`,
		uuid.NewString(), stableID, seenAt,
	).Scan(&playerID, &inserted)
	if err != nil {
		return storage.Resolution{}, fmt.Errorf("upsert player by stable_id: %w", err)
	}

	return s.finishResolution(ctx, playerID, alias, seenAt, inserted)
}

func (s *Store) ResolveByAlias(ctx context.Context, alias string, seenAt time.Time) (storage.Resolution, error) {
	var (
		playerID string
		inserted bool
	)
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO players (id, alias_key, created_at, last_seen_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (alias_key) DO UPDATE
		   SET last_seen_at = GREATEST(players.last_seen_at, EXCLUDED.last_seen_at)
		 RETURNING id, (xmax = 0)`,
		uuid.NewString(), alias, seenAt,
	).Scan(&playerID, &inserted)
	if err != nil {
		return storage.Resolution{}, fmt.Errorf("upsert player by alias: %w", err)
	}

	return s.finishResolution(ctx, playerID, alias, seenAt, inserted)
}

func (s *Store) finishResolution(ctx context.Context, playerID, alias string, seenAt time.Time, created bool) (storage.Resolution, error) {
	added, err := s.insertAlias(ctx, playerID, alias, seenAt)
	if err != nil {
		return storage.Resolution{}, err
	}
	p, err := s.GetPlayer(ctx, playerID)
	if err != nil {
		return storage.Resolution{}, err
	}
	return storage.Resolution{Player: p, Created: created, AliasAdded: added}, nil
}

func (s *Store) AddAlias(ctx context.Context, playerID, alias string, seenAt time.Time) (bool, error) {
	added, err := s.insertAlias(ctx, playerID, alias, seenAt)
	if err != nil {
		return false, err
	}
	_, err = s.db.Pool.Exec(ctx,
		`UPDATE players SET last_seen_at = GREATEST(last_seen_at, $2) WHERE id = $1`,
		playerID, seenAt,
	)
	if err != nil {
		return added, fmt.Errorf("touch player: %w", err)
	}
	return added, nil
}

func (s *Store) insertAlias(ctx context.Context, playerID, alias string, seenAt time.Time) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx,
		`INSERT INTO player_aliases (player_id, alias, first_seen_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (player_id, alias) DO NOTHING`,
		playerID, alias, seenAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert alias: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const playerColumns = `
	p.id,
	p.stable_id,
	p.created_at,
	p.last_seen_at,
	COALESCE(
		(SELECT json_agg(a.alias ORDER BY a.id)
		 FROM player_aliases a
		 WHERE a.player_id = p.id), '[]'::json
	) AS aliases`

func (s *Store) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players p WHERE p.id = $1`, id)
	p, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrPlayerNotFound
	}
	return p, err
}

func (s *Store) ListAnonymousPlayers(ctx context.Context) ([]*models.Player, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+playerColumns+`
		 FROM players p
		 WHERE p.stable_id IS NULL
		 ORDER BY p.created_at, p.id`)
	if err != nil {
		return nil, fmt.Errorf("list anonymous players: %w", err)
	}
	defer rows.Close()
	return collectPlayers(rows)
}

func (s *Store) SearchPlayersByAlias(ctx context.Context, q string, limit int) ([]*models.Player, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+playerColumns+`
		 FROM players p
		 WHERE EXISTS (
			SELECT 1 FROM player_aliases a
			WHERE a.player_id = p.id AND a.alias ILIKE '%' || $1 || '%'
		 )
		 ORDER BY p.last_seen_at DESC
		 LIMIT $2`,
		q, limit)
	if err != nil {
		return nil, fmt.Errorf("search players: %w", err)
	}
	defer rows.Close()
	return collectPlayers(rows)
}

func (s *Store) EventExists(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM moderation_events WHERE fingerprint = $1)`,
		fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("event exists: %w", err)
	}
	return exists, nil
}

func (s *Store) InsertEvent(ctx context.Context, ev *models.ModerationEvent) error {
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	var amount *int
	var unit *string
	if ev.Duration != nil {
		amount = &ev.Duration.Amount
		u := string(ev.Duration.Unit)
		unit = &u
	}

	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO moderation_events
		   (id, action, occurred_at, server, location, player_id, reason,
		    duration_amount, duration_unit, raw_text, fingerprint)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, string(ev.Action), ev.OccurredAt, ev.Server, ev.Location,
		ev.PlayerID, ev.Reason, amount, unit, ev.RawText, ev.Fingerprint,
	)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) ListEventsByPlayer(ctx context.Context, playerID string, limit int) ([]*models.ModerationEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, action, occurred_at, server, location, player_id, reason,
		        duration_amount, duration_unit, raw_text, fingerprint
		 FROM moderation_events
		 WHERE player_id = $1
		 ORDER BY occurred_at DESC NULLS LAST, id
		 LIMIT $2`,
		playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ModerationEvent, 0)
	for rows.Next() {
		var (
			ev     models.ModerationEvent
			action string
			amount *int
			unit   *string
		)
		if err := rows.Scan(&ev.ID, &action, &ev.OccurredAt, &ev.Server,
			&ev.Location, &ev.PlayerID, &ev.Reason, &amount, &unit,
			&ev.RawText, &ev.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Action = models.Action(action)
		if amount != nil && unit != nil {
			ev.Duration = &models.Duration{Amount: *amount, Unit: models.DurationUnit(*unit)}
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Pool.Ping(ctx)
}

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var (
		p          models.Player
		aliasesRaw []byte
	)
	if err := row.Scan(&p.ID, &p.StableID, &p.CreatedAt, &p.LastSeenAt, &aliasesRaw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(aliasesRaw, &p.Aliases); err != nil {
		return nil, fmt.Errorf("decode aliases: %w", err)
	}
	return &p, nil
}

func collectPlayers(rows pgx.Rows) ([]*models.Player, error) {
	out := make([]*models.Player, 0)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
