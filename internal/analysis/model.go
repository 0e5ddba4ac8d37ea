// Package analysis turns activity records into daily and multi-day
// productivity reports.
package analysis

import "math"

const (
	LevelExcellent        = "excellent"
	LevelGood             = "good"
	LevelNeedsImprovement = "needs-improvement"

	// NotAvailable stands in for start and end times that are unknown or
	// not computed.
	NotAvailable = "N/A"
)

// DailyAnalysis is the report for one date. Hours are rounded to two
// decimals and the rate to one; AFK time is part of inactive time.
type DailyAnalysis struct {
	Date              string  `json:"date"`
	TotalHours        float64 `json:"totalHours"`
	ActiveHours       float64 `json:"activeHours"`
	InactiveHours     float64 `json:"inactiveHours"`
	AFKHours          float64 `json:"afkHours"`
	ActivityRate      float64 `json:"activityRate"`
	StartTime         string  `json:"startTime"`
	EndTime           string  `json:"endTime"`
	ProductivityLevel string  `json:"productivity"`
	ProductivityEmoji string  `json:"productivityEmoji"`
}

// DayBreakdown is one entry of a multi-day report.
type DayBreakdown struct {
	Date          string  `json:"date"`
	ActiveHours   float64 `json:"activeHours"`
	InactiveHours float64 `json:"inactiveHours"`
	TotalHours    float64 `json:"totalHours"`
	ActivityRate  float64 `json:"activityRate"`
}

// MultiDayAnalysis rolls up several dates. Dates without records are left
// out and not counted in TotalDays.
type MultiDayAnalysis struct {
	TotalDays            int            `json:"totalDays"`
	TotalActiveHours     float64        `json:"totalActiveHours"`
	TotalTrackedHours    float64        `json:"totalTrackedHours"`
	TotalInactiveHours   float64        `json:"totalInactiveHours"`
	AverageActiveHours   float64        `json:"averageActiveHours"`
	AverageTotalHours    float64        `json:"averageTotalHours"`
	AverageInactiveHours float64        `json:"averageInactiveHours"`
	OverallActivityRate  float64        `json:"overallActivityRate"`
	DailyBreakdown       []DayBreakdown `json:"dailyBreakdown"`
}

// Productivity is a classification level and its display glyph.
type Productivity struct {
	Level string
	Emoji string
}

// Classify applies the productivity rule to an unrounded rate and total.
func Classify(rate, totalHours float64) Productivity {
	switch {
	case rate >= 80 && totalHours >= 6:
		return Productivity{Level: LevelExcellent, Emoji: "🟢"}
	case rate >= 60 && totalHours >= 4:
		return Productivity{Level: LevelGood, Emoji: "🟡"}
	default:
		return Productivity{Level: LevelNeedsImprovement, Emoji: "🔴"}
	}
}

// Round2 rounds half up to two decimals.
func Round2(x float64) float64 { return math.Floor(x*100+0.5) / 100 }

// Round1 rounds half up to one decimal.
func Round1(x float64) float64 { return math.Floor(x*10+0.5) / 10 }

// Rate returns 100*part/whole, or 0 when whole is not positive.
func Rate(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}
