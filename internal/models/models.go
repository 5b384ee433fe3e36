package models

import "time"

// Action is a recognized moderation action.
type Action string

const (
	ActionKick Action = "Kick"
	ActionBan  Action = "Ban"
)

// DurationUnit is the unit of a trailing duration clause.
type DurationUnit string

const (
	UnitMinute DurationUnit = "minute"
	UnitHour   DurationUnit = "hour"
	UnitDay    DurationUnit = "day"
	UnitWeek   DurationUnit = "week"
)

// Duration is the canonical form of a trailing duration clause.
// A nil *Duration means the action's length was unspecified.
type Duration struct {
	Amount int          `json:"amount"`
	Unit   DurationUnit `json:"unit"`
}

// Minutes returns the duration normalized to minutes.
func (d Duration) Minutes() int {
	switch d.Unit {
	case UnitHour:
		return d.Amount * 60
	case UnitDay:
		return d.Amount * 60 * 24
	case UnitWeek:
		return d.Amount * 60 * 24 * 7
	default:
		return d.Amount
	}
}

// Player is a durable identity observed across one or more display names.
// StableID is nil for players only ever seen without an id in parentheses;
// those are keyed by their single alias instead.
type Player struct {
	ID         string    `json:"id"`
	StableID   *string   `json:"stable_id,omitempty"`
	Aliases    []string  `json:"aliases"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// HasAlias reports whether name is already recorded for the player.
func (p *Player) HasAlias(name string) bool {
	for _, a := range p.Aliases {
		if a == name {
			return true
		}
	}
	return false
}

// ModerationEvent is one parsed log line. Immutable once stored;
// Fingerprint uniqueness is the dedup guarantee.
type ModerationEvent struct {
	ID          string     `json:"id"`
	Action      Action     `json:"action"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
	Server      string     `json:"server,omitempty"`
	Location    string     `json:"location"`
	PlayerID    *string    `json:"player_id,omitempty"`
	Reason      string     `json:"reason"`
	Duration    *Duration  `json:"duration,omitempty"`
	RawText     string     `json:"raw_text"`
	Fingerprint string     `json:"fingerprint"`
}

// LineFailure records a line that could not be persisted.
type LineFailure struct {
	RawText string `json:"raw_text"`
	Reason  string `json:"reason"`
}

// Summary aggregates the outcome of one ingestion call.
type Summary struct {
	Parsed             int           `json:"parsed"`
	MalformedTimestamp int           `json:"malformed_timestamp"`
	UnknownIgnored     int           `json:"unknown_ignored"`
	Duplicates         int           `json:"duplicates"`
	NewPlayers         int           `json:"new_players"`
	UpdatedAliases     int           `json:"updated_aliases"`
	StorageFailures    int           `json:"storage_failures"`
	Failures           []LineFailure `json:"failures,omitempty"`
}

// Fold accumulates another summary into s.
func (s *Summary) Fold(other Summary) {
	s.Parsed += other.Parsed
	s.MalformedTimestamp += other.MalformedTimestamp
	s.UnknownIgnored += other.UnknownIgnored
	s.Duplicates += other.Duplicates
	s.NewPlayers += other.NewPlayers
	s.UpdatedAliases += other.UpdatedAliases
	s.StorageFailures += other.StorageFailures
	s.Failures = append(s.Failures, other.Failures...)
}

// Inserted is the number of events actually written this call.
// Parsed and MalformedTimestamp only count lines that were persisted.
func (s Summary) Inserted() int {
	return s.Parsed + s.MalformedTimestamp
}
