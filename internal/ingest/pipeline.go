package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modlog-archive/internal/models"
	"modlog-archive/internal/parser"
	"modlog-archive/internal/redis"
	"modlog-archive/internal/resolver"
	"modlog-archive/internal/storage"
)

const dedupKeyTTL = 24 * time.Hour

// Pipeline turns a pasted block of moderation log text into stored events.
// Processing is line-by-line and failure-isolated: a bad line is counted
// and the rest of the batch continues. The redis client is an optional
// dedup fast-path; the durable idempotence guarantee is the fingerprint
// unique constraint in the store.
type Pipeline struct {
	log   *slog.Logger
	store storage.Store
	res   *resolver.Resolver
	rdb   *redis.Client
	now   func() time.Time
}

func New(log *slog.Logger, store storage.Store, res *resolver.Resolver, rdb *redis.Client) *Pipeline {
	return &Pipeline{
		log:   log,
		store: store,
		res:   res,
		rdb:   rdb,
		now:   time.Now,
	}
}

// Fingerprint derives the dedup key for a line: SHA-256 over the raw text
// and the parsed timestamp (empty when the timestamp was malformed).
func Fingerprint(rawText string, occurredAt *time.Time) string {
	ts := ""
	if occurredAt != nil {
		ts = occurredAt.UTC().Format(time.RFC3339)
	}
	sum := sha256.Sum256([]byte(rawText + "|" + ts))
	return hex.EncodeToString(sum[:])
}

// Ingest processes one raw text block and returns the per-call summary.
// It fails as a whole only when storage is unreachable outright.
func (p *Pipeline) Ingest(ctx context.Context, raw string) (models.Summary, error) {
	if err := p.store.Ping(ctx); err != nil {
		return models.Summary{}, fmt.Errorf("storage unreachable: %w", err)
	}

	var sum models.Summary
	for _, rawLine := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(rawLine, "\r"))
		if line == "" {
			continue
		}
		p.ingestLine(ctx, line, &sum)
	}

	p.log.Info("ingest_complete",
		"parsed", sum.Parsed,
		"malformed_timestamp", sum.MalformedTimestamp,
		"unknown_ignored", sum.UnknownIgnored,
		"duplicates", sum.Duplicates,
		"new_players", sum.NewPlayers,
		"updated_aliases", sum.UpdatedAliases,
		"storage_failures", sum.StorageFailures,
	)
	return sum, nil
}

func (p *Pipeline) ingestLine(ctx context.Context, line string, sum *models.Summary) {
	parsed, err := parser.ParseLine(line)
	if err != nil {
		sum.UnknownIgnored++
		return
	}

	fp := Fingerprint(parsed.Raw, parsed.OccurredAt)

	if p.seenRecently(ctx, fp) {
		sum.Duplicates++
		return
	}
	exists, err := p.store.EventExists(ctx, fp)
	if err != nil {
		p.fail(sum, line, fmt.Errorf("dedup check: %w", err))
		return
	}
	if exists {
		sum.Duplicates++
		p.markSeen(ctx, fp)
		return
	}

	// duplicates never reach the resolver; only a fresh line may teach us
	// a new alias
	seenAt := p.now()
	if parsed.OccurredAt != nil {
		seenAt = *parsed.OccurredAt
	}

	ev := &models.ModerationEvent{
		Action:      parsed.Action,
		OccurredAt:  parsed.OccurredAt,
		Server:      parsed.Server,
		Location:    parsed.Location,
		Reason:      parsed.Reason,
		Duration:    parsed.Duration,
		RawText:     parsed.Raw,
		Fingerprint: fp,
	}

	ident, resolveErr := p.res.Resolve(ctx, parsed.Username, parsed.StableID, seenAt)
	if resolveErr != nil {
		// keep the raw text: persist the event without a player reference
		p.fail(sum, line, fmt.Errorf("identity resolution: %w", resolveErr))
	} else {
		ev.PlayerID = &ident.Player.ID
	}

	if err := p.store.InsertEvent(ctx, ev); err != nil {
		if errors.Is(err, storage.ErrDuplicateEvent) {
			// lost a race with a concurrent ingest of the same line
			sum.Duplicates++
			p.markSeen(ctx, fp)
			return
		}
		if resolveErr == nil {
			p.fail(sum, line, err)
		}
		return
	}

	if parsed.TimestampMalformed {
		sum.MalformedTimestamp++
	} else {
		sum.Parsed++
	}
	if resolveErr == nil {
		if ident.Created {
			sum.NewPlayers++
		} else if ident.AliasAdded {
			sum.UpdatedAliases++
		}
	}
	p.markSeen(ctx, fp)
}

func (p *Pipeline) fail(sum *models.Summary, line string, err error) {
	sum.StorageFailures++
	sum.Failures = append(sum.Failures, models.LineFailure{RawText: line, Reason: err.Error()})
	p.log.Warn("line_persist_failed", "error", err)
}

func (p *Pipeline) seenRecently(ctx context.Context, fp string) bool {
	if p.rdb == nil {
		return false
	}
	v, err := p.rdb.Get(ctx, dedupKey(fp))
	return err == nil && v != ""
}

func (p *Pipeline) markSeen(ctx context.Context, fp string) {
	if p.rdb == nil {
		return
	}
	if err := p.rdb.Set(ctx, dedupKey(fp), "1", dedupKeyTTL); err != nil {
		p.log.Debug("dedup_cache_set_failed", "error", err)
	}
}

func dedupKey(fp string) string {
	return "ingest:fp:" + fp
}
