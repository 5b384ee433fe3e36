package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"modlog-archive/internal/ingest"
	"modlog-archive/internal/models"
	"modlog-archive/internal/security"
)

const defaultBaseURL = "https://discord.com/api/v10"

// ErrNoBotToken is returned when a fetch is attempted without DISCORD_TOKEN.
var ErrNoBotToken = errors.New("no bot token configured")

// HistoryFetcher pulls message history from a Discord channel and feeds
// every message body through the ingestion pipeline. It is the
// backfill counterpart of pasting logs by hand; there is no live gateway.
type HistoryFetcher struct {
	log      *slog.Logger
	pipeline *ingest.Pipeline
	token    string

	httpClient *http.Client
	breaker    *CircuitBreaker
	limiter    *security.LimiterStore
	retry      RetryConfig
	baseURL    string
}

func NewHistoryFetcher(log *slog.Logger, pipeline *ingest.Pipeline, token string) *HistoryFetcher {
	return &HistoryFetcher{
		log:      log,
		pipeline: pipeline,
		token:    token,

		httpClient: NewHTTPClient(),
		breaker:    NewCircuitBreaker(),
		// Discord allows ~50 req/s per bot; stay far under it
		limiter: security.NewLimiterStore(rate.Limit(2), 2, 10*time.Minute),
		retry:   DefaultRetryConfig(),
		baseURL: defaultBaseURL,
	}
}

// FetchOptions bound one history walk.
type FetchOptions struct {
	// MaxMessages caps the walk; <= 0 means the default of 2000.
	MaxMessages int
	// After / Before are message id cursors, both optional.
	After  string
	Before string
}

type message struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Author  struct {
		Bot bool `json:"bot"`
	} `json:"author"`
}

// FetchChannel walks a channel's history oldest-first from the After
// cursor and ingests every non-bot message body. Summaries are folded
// across messages; the error is non-nil only when the walk itself dies.
func (f *HistoryFetcher) FetchChannel(ctx context.Context, channelID string, opts FetchOptions) (models.Summary, error) {
	var total models.Summary

	if f.token == "" {
		return total, ErrNoBotToken
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 2000
	}

	f.log.Info("history_fetch_started",
		"channel_id", channelID,
		"max_messages", opts.MaxMessages,
	)

	cursor := opts.After
	if cursor == "" {
		// without an after cursor the API serves the newest page; start
		// at the channel beginning so the whole backlog is walked
		cursor = "0"
	}
	fetched := 0
	for fetched < opts.MaxMessages {
		pageSize := opts.MaxMessages - fetched
		if pageSize > 100 {
			pageSize = 100
		}

		msgs, err := f.fetchPage(ctx, channelID, cursor, opts.Before, pageSize)
		if err != nil {
			return total, err
		}
		if len(msgs) == 0 {
			break
		}

		// the API returns newest first; walk the page in reverse so
		// aliases accumulate in true first-seen order
		for i := len(msgs) - 1; i >= 0; i-- {
			m := msgs[i]
			fetched++
			if m.Author.Bot || m.Content == "" {
				continue
			}
			sum, err := f.pipeline.Ingest(ctx, m.Content)
			if err != nil {
				return total, fmt.Errorf("ingest message %s: %w", m.ID, err)
			}
			total.Fold(sum)
		}

		// snowflake ids ascend; the first entry of a newest-first page
		// is the next cursor
		cursor = msgs[0].ID

		if len(msgs) < pageSize {
			break
		}
	}

	f.log.Info("history_fetch_complete",
		"channel_id", channelID,
		"messages", fetched,
		"inserted", total.Inserted(),
		"duplicates", total.Duplicates,
	)
	return total, nil
}

func (f *HistoryFetcher) fetchPage(ctx context.Context, channelID, after, before string, limit int) ([]message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if after != "" {
		q.Set("after", after)
	}
	if before != "" {
		q.Set("before", before)
	}
	endpoint := fmt.Sprintf("%s/channels/%s/messages?%s", f.baseURL, channelID, q.Encode())

	var lastErr error
	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		if !f.breaker.Allow() {
			return nil, fmt.Errorf("discord circuit breaker %s", f.breaker.StateString())
		}
		if err := f.limiter.Wait(ctx, channelID); err != nil {
			return nil, err
		}

		msgs, retryAfter, err := f.doRequest(ctx, endpoint)
		if err == nil {
			f.breaker.RecordSuccess()
			return msgs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		f.breaker.RecordFailure()
		lastErr = err
		if attempt < f.retry.MaxRetries {
			wait := CalculateBackoff(f.retry, attempt, retryAfter)
			f.log.Warn("history_page_retry",
				"channel_id", channelID,
				"attempt", attempt+1,
				"wait", wait.String(),
				"error", err,
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("fetch history page: %w", lastErr)
}

func (f *HistoryFetcher) doRequest(ctx context.Context, endpoint string) ([]message, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bot "+f.token)
	req.Header.Set("User-Agent", "modlog-archive (history backfill)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.ParseFloat(v, 64); err == nil {
				retryAfter = time.Duration(secs * float64(time.Second))
			}
		}
		return nil, retryAfter, fmt.Errorf("rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("discord api status %d: %s", resp.StatusCode, string(body))
	}

	var msgs []message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, 0, fmt.Errorf("decode messages: %w", err)
	}
	return msgs, 0, nil
}
