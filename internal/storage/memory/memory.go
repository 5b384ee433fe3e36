package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"modlog-archive/internal/models"
	"modlog-archive/internal/storage"
)

// Store is an in-memory implementation of the storage interface, used by
// tests and dry-run ingestion. The single mutex makes every create-or-get
// atomic per identity key.
type Store struct {
	mu sync.RWMutex

	players       map[string]*models.Player
	byStableID    map[string]string
	byAliasKey    map[string]string
	events        map[string]*models.ModerationEvent
	byFingerprint map[string]string
	eventOrder    []string
}

func New() *Store {
	return &Store{
		players:       make(map[string]*models.Player),
		byStableID:    make(map[string]string),
		byAliasKey:    make(map[string]string),
		events:        make(map[string]*models.ModerationEvent),
		byFingerprint: make(map[string]string),
	}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) ResolveByStableID(ctx context.Context, stableID, alias string, seenAt time.Time) (storage.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byStableID[stableID]; ok {
		p := s.players[id]
		added := s.appendAlias(p, alias)
		s.touch(p, seenAt)
		return storage.Resolution{Player: clonePlayer(p), AliasAdded: added}, nil
	}

	p := s.newPlayer(alias, seenAt)
	p.StableID = &stableID
	s.byStableID[stableID] = p.ID
	return storage.Resolution{Player: clonePlayer(p), Created: true, AliasAdded: true}, nil
}

func (s *Store) ResolveByAlias(ctx context.Context, alias string, seenAt time.Time) (storage.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byAliasKey[alias]; ok {
		p := s.players[id]
		s.touch(p, seenAt)
		return storage.Resolution{Player: clonePlayer(p)}, nil
	}

	p := s.newPlayer(alias, seenAt)
	s.byAliasKey[alias] = p.ID
	return storage.Resolution{Player: clonePlayer(p), Created: true, AliasAdded: true}, nil
}

func (s *Store) AddAlias(ctx context.Context, playerID, alias string, seenAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return false, storage.ErrPlayerNotFound
	}
	added := s.appendAlias(p, alias)
	s.touch(p, seenAt)
	return added, nil
}

func (s *Store) ListAnonymousPlayers(ctx context.Context) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Player, 0)
	for _, p := range s.players {
		if p.StableID == nil {
			out = append(out, clonePlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, storage.ErrPlayerNotFound
	}
	return clonePlayer(p), nil
}

func (s *Store) SearchPlayersByAlias(ctx context.Context, q string, limit int) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q = strings.ToLower(q)
	out := make([]*models.Player, 0)
	for _, p := range s.players {
		for _, a := range p.Aliases {
			if strings.Contains(strings.ToLower(a), q) {
				out = append(out, clonePlayer(p))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) EventExists(ctx context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byFingerprint[fingerprint]
	return ok, nil
}

func (s *Store) InsertEvent(ctx context.Context, ev *models.ModerationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byFingerprint[ev.Fingerprint]; ok {
		return storage.ErrDuplicateEvent
	}
	cp := *ev
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	s.events[cp.ID] = &cp
	s.byFingerprint[cp.Fingerprint] = cp.ID
	s.eventOrder = append(s.eventOrder, cp.ID)
	return nil
}

func (s *Store) ListEventsByPlayer(ctx context.Context, playerID string, limit int) ([]*models.ModerationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ModerationEvent, 0)
	for i := len(s.eventOrder) - 1; i >= 0; i-- {
		ev := s.events[s.eventOrder[i]]
		if ev.PlayerID != nil && *ev.PlayerID == playerID {
			cp := *ev
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

// EventCount reports the number of stored events; test helper.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// PlayerCount reports the number of stored players; test helper.
func (s *Store) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

func (s *Store) newPlayer(alias string, seenAt time.Time) *models.Player {
	p := &models.Player{
		ID:         uuid.NewString(),
		Aliases:    []string{alias},
		CreatedAt:  seenAt,
		LastSeenAt: seenAt,
	}
	s.players[p.ID] = p
	return p
}

func (s *Store) appendAlias(p *models.Player, alias string) bool {
	if p.HasAlias(alias) {
		return false
	}
	p.Aliases = append(p.Aliases, alias)
	return true
}

func (s *Store) touch(p *models.Player, seenAt time.Time) {
	if seenAt.After(p.LastSeenAt) {
		p.LastSeenAt = seenAt
	}
}

func clonePlayer(p *models.Player) *models.Player {
	cp := *p
	cp.Aliases = append([]string(nil), p.Aliases...)
	return &cp
}
