package parser

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"modlog-archive/internal/models"
)

// ErrUnknownLine marks a line that is not a moderation log entry at all:
// no Kick/Ban head or no bracketed location. Callers skip these silently.
var ErrUnknownLine = errors.New("unknown line")

// timestampLayout matches the source format "8/25/2025, 11:08:52 PM".
const timestampLayout = "1/2/2006, 3:04:05 PM"

var (
	headRe          = regexp.MustCompile(`^(Kick|Ban)\s*@\s*(.*)$`)
	timestampRe     = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{4},\s*\d{1,2}:\d{2}:\d{2}\s*(?:AM|PM))\s*(.*)$`)
	bracketRe       = regexp.MustCompile(`\[([^\]]*)\]`)
	stableIDRe      = regexp.MustCompile(`^\(\s*([0-9A-Fa-f]{16})\s*\)\s*(.*)$`)
	stableIDGroupRe = regexp.MustCompile(`\(\s*[0-9A-Fa-f]{16}\s*\)`)
)

// Line is one decomposed moderation log line.
type Line struct {
	Action             models.Action
	OccurredAt         *time.Time
	TimestampMalformed bool
	Server             string
	Location           string
	Username           string
	StableID           string
	Reason             string
	Duration           *models.Duration
	Raw                string
}

// ParseLine decomposes a single physical line into a Line or rejects it
// with ErrUnknownLine. The action token is case-sensitive and the first
// bracketed span on the line is mandatory; the timestamp segment is not:
// a line whose timestamp fails to parse is still accepted, with
// OccurredAt nil and TimestampMalformed set.
func ParseLine(raw string) (*Line, error) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return nil, ErrUnknownLine
	}

	head := headRe.FindStringSubmatch(line)
	if head == nil {
		return nil, ErrUnknownLine
	}

	out := &Line{
		Action: models.Action(head[1]),
		Raw:    line,
	}

	body := head[2]
	if ts := timestampRe.FindStringSubmatch(body); ts != nil {
		when, err := time.ParseInLocation(timestampLayout, normalizeTimestamp(ts[1]), time.UTC)
		if err != nil {
			out.TimestampMalformed = true
		} else {
			out.OccurredAt = &when
		}
		body = ts[2]
	} else {
		out.TimestampMalformed = true
	}

	loc := bracketRe.FindStringSubmatchIndex(body)
	if loc == nil {
		return nil, ErrUnknownLine
	}
	out.Server = strings.TrimSpace(body[:loc[0]])
	out.Location = strings.TrimSpace(body[loc[2]:loc[3]])

	rest := strings.TrimSpace(body[loc[1]:])
	if rest == "" {
		return nil, ErrUnknownLine
	}

	out.Username, rest = splitIdentity(rest)
	if id := stableIDRe.FindStringSubmatch(rest); id != nil {
		out.StableID = strings.ToUpper(id[1])
		rest = id[2]
	}

	out.Reason, out.Duration = ExtractDuration(rest)
	return out, nil
}

func normalizeTimestamp(s string) string {
	// collapse the source's variable spacing so one layout string fits
	return strings.Join(strings.Fields(s), " ")
}

// splitIdentity takes the username off the front of the post-bracket text.
// A username is a single token, except that a valid parenthesized stable id
// further along claims everything before it, so display names with spaces
// keep their id.
func splitIdentity(s string) (username, rest string) {
	if loc := stableIDGroupRe.FindStringIndex(s); loc != nil {
		if name := strings.TrimSpace(s[:loc[0]]); name != "" {
			return name, strings.TrimSpace(s[loc[0]:])
		}
	}
	return splitToken(s)
}

func splitToken(s string) (token, rest string) {
	if i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' }); i >= 0 {
		return s[:i], strings.TrimSpace(s[i:])
	}
	return s, ""
}
