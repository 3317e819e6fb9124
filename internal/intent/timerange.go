package intent

import (
	"strings"
	"time"
)

// TimeRange is a days-back search window anchored at analysis time.
type TimeRange struct {
	Days  int       `json:"days"`
	Since time.Time `json:"since"`
}

// Ordered most specific first so "今天的总结和最近的计划" resolves to
// today, not the 30-day window.
var timePhrases = []struct {
	phrase string
	days   int
}{
	{"今天", 1}, {"today", 1},
	{"昨天", 2}, {"yesterday", 2},
	{"前天", 3},
	{"这周", 7}, {"本周", 7}, {"这一周", 7}, {"this week", 7},
	{"上周", 7}, {"上一周", 7}, {"last week", 7}, {"past week", 7},
	{"这个月", 30}, {"本月", 30}, {"this month", 30},
	{"上个月", 30}, {"last month", 30}, {"past month", 30},
	{"最近", 30}, {"recently", 30}, {"recent", 30},
}

// DetectTimeRange scans text for the first matching time phrase and
// converts it into a window. Returns nil when no phrase matches.
func DetectTimeRange(text string, now time.Time) *TimeRange {
	lower := strings.ToLower(text)
	for _, tp := range timePhrases {
		if strings.Contains(lower, tp.phrase) {
			return &TimeRange{Days: tp.days, Since: now.AddDate(0, 0, -tp.days)}
		}
	}
	return nil
}
