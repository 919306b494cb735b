package grading

import (
	"fmt"
	"math"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

// ClassStatistics aggregates the summaries of one exam. A summary counts as
// a pass when its percentage meets passingPercentage. Empty input yields
// all-zero statistics.
func ClassStatistics(summaries []model.GradingSummary, passingPercentage float64) model.ClassStatistics {
	if len(summaries) == 0 {
		return model.ClassStatistics{}
	}

	stats := model.ClassStatistics{
		TotalStudents: len(summaries),
		HighestScore:  math.Inf(-1),
		LowestScore:   math.Inf(1),
	}
	var scoreSum, pctSum float64
	for _, s := range summaries {
		scoreSum += s.TotalScore
		pctSum += s.Percentage
		stats.HighestScore = math.Max(stats.HighestScore, s.TotalScore)
		stats.LowestScore = math.Min(stats.LowestScore, s.TotalScore)
		if HasPassed(s.Percentage, passingPercentage) {
			stats.PassCount++
		}
	}

	n := float64(len(summaries))
	stats.AverageScore = scoreSum / n
	stats.AveragePercentage = pctSum / n
	stats.FailCount = stats.TotalStudents - stats.PassCount
	stats.PassPercentage = float64(stats.PassCount) / n * 100
	return stats
}

// AnalyzeQuestionDifficulty groups question results across students.
// Percentages are relative to the number of students passed in, not to
// the number of attempts on that question.
func AnalyzeQuestionDifficulty(results []model.GradeResult) map[string]model.QuestionDifficulty {
	stats := make(map[string]model.QuestionDifficulty)
	if len(results) == 0 {
		return stats
	}

	for _, res := range results {
		for _, qr := range res.Results {
			qs := stats[qr.Question]
			qs.Question = qr.Question
			qs.TotalAttempts++
			switch qr.Status {
			case model.StatusCorrect:
				qs.CorrectCount++
			case model.StatusIncorrect:
				qs.IncorrectCount++
			default:
				qs.UnansweredCount++
			}
			stats[qr.Question] = qs
		}
	}

	students := float64(len(results))
	for q, qs := range stats {
		qs.CorrectPercentage = float64(qs.CorrectCount) / students * 100
		qs.IncorrectPercentage = float64(qs.IncorrectCount) / students * 100
		qs.UnansweredPercentage = float64(qs.UnansweredCount) / students * 100
		qs.Difficulty = difficultyFor(qs.CorrectPercentage)
		stats[q] = qs
	}
	return stats
}

func difficultyFor(correctPercentage float64) model.Difficulty {
	switch {
	case correctPercentage >= 80:
		return model.DifficultyEasy
	case correctPercentage >= 50:
		return model.DifficultyMedium
	default:
		return model.DifficultyHard
	}
}

// CompareWithClass compares a student's percentage with the class average.
func CompareWithClass(studentPercentage, classAverage float64) model.Comparison {
	diff := studentPercentage - classAverage
	c := model.Comparison{Difference: round2(diff)}
	switch {
	case diff > 0:
		c.Status = model.ComparisonAbove
		c.Message = fmt.Sprintf("%.1f%% above class average", diff)
	case diff < 0:
		c.Status = model.ComparisonBelow
		c.Message = fmt.Sprintf("%.1f%% below class average", -diff)
	default:
		c.Status = model.ComparisonEqual
		c.Message = "Equal to class average"
	}
	return c
}
