package grading

import (
	"sort"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

// CalculateGrade returns the letter of the highest band whose minimum the
// percentage meets. A nil or empty scale uses the default A-F scale.
// Percentages below every band get the lowest band's letter.
func CalculateGrade(percentage float64, scale model.GradingScale) string {
	if len(scale) == 0 {
		scale = model.DefaultGradingScale()
	}
	bands := make(model.GradingScale, len(scale))
	copy(bands, scale)
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].Min > bands[j].Min })

	for _, b := range bands {
		if percentage >= b.Min {
			return b.Letter
		}
	}
	return bands[len(bands)-1].Letter
}

// Performance category names. They are shown to users and are part of the
// result record.
const (
	CategoryExcellent        = "Excellent"
	CategoryVeryGood         = "Very Good"
	CategoryGood             = "Good"
	CategorySatisfactory     = "Satisfactory"
	CategoryPass             = "Pass"
	CategoryNeedsImprovement = "Needs Improvement"
)

var performanceBands = []struct {
	min  float64
	perf model.Performance
}{
	{90, model.Performance{Category: CategoryExcellent, Color: "#4CAF50", Emoji: "🌟"}},
	{80, model.Performance{Category: CategoryVeryGood, Color: "#8BC34A", Emoji: "✨"}},
	{70, model.Performance{Category: CategoryGood, Color: "#FFC107", Emoji: "👍"}},
	{60, model.Performance{Category: CategorySatisfactory, Color: "#FF9800", Emoji: "📝"}},
	{40, model.Performance{Category: CategoryPass, Color: "#FF5722", Emoji: "✓"}},
}

var needsImprovement = model.Performance{Category: CategoryNeedsImprovement, Color: "#F44336", Emoji: "📚"}

// PerformanceCategory returns the display band for a percentage.
func PerformanceCategory(percentage float64) model.Performance {
	for _, b := range performanceBands {
		if percentage >= b.min {
			return b.perf
		}
	}
	return needsImprovement
}

// HasPassed reports whether percentage meets the passing threshold.
func HasPassed(percentage, passingPercentage float64) bool {
	return percentage >= passingPercentage
}
