package parser

import (
	"regexp"
	"strconv"
	"strings"

	"modlog-archive/internal/models"
)

var (
	durationTailRe  = regexp.MustCompile(`(?i)(?:^|\s)((?:\d+\s*(?:minutes?|hours?|days?|weeks?)\s*)+)$`)
	durationGroupRe = regexp.MustCompile(`(?i)(\d+)\s*(minute|hour|day|week)s?`)
)

var unitMinutes = map[models.DurationUnit]int{
	models.UnitMinute: 1,
	models.UnitHour:   60,
	models.UnitDay:    60 * 24,
	models.UnitWeek:   60 * 24 * 7,
}

// ExtractDuration strips a trailing duration clause from a reason tail.
// Only a clause anchored at the end of the tail is recognized; numbers in
// the middle of the reason are never read as durations. A clause with
// several groups ("1 day 2 hours") folds into one value expressed in the
// smallest unit present. No clause means the returned duration is nil.
func ExtractDuration(tail string) (string, *models.Duration) {
	tail = strings.TrimSpace(tail)

	m := durationTailRe.FindStringSubmatchIndex(tail)
	if m == nil {
		return tail, nil
	}
	clause := tail[m[2]:m[3]]

	total := 0
	smallest := models.UnitWeek
	for _, g := range durationGroupRe.FindAllStringSubmatch(clause, -1) {
		amount, err := strconv.Atoi(g[1])
		if err != nil {
			return tail, nil
		}
		unit := models.DurationUnit(strings.ToLower(g[2]))
		total += amount * unitMinutes[unit]
		if unitMinutes[unit] < unitMinutes[smallest] {
			smallest = unit
		}
	}
	if total == 0 {
		// "0 minutes" style tails carry no usable length
		return strings.TrimSpace(tail[:m[2]]), nil
	}

	return strings.TrimSpace(tail[:m[2]]), &models.Duration{
		Amount: total / unitMinutes[smallest],
		Unit:   smallest,
	}
}
