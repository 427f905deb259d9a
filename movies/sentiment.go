package movies

import (
	"fmt"
	"strings"
)

var (
	positiveWords = []string{
		"excellent", "amazing", "great", "wonderful", "fantastic",
		"love", "loved", "perfect", "best", "brilliant", "outstanding",
		"masterpiece", "incredible", "superb", "awesome",
	}
	negativeWords = []string{
		"terrible", "awful", "horrible", "worst", "bad", "poor",
		"disappointing", "waste", "boring", "dull", "hate", "hated",
	}
)

// SuggestRating scores review text from 1 to 10 by counting positive and
// negative keywords. Text without either scores 5.
func SuggestRating(text string) int {
	lower := strings.ToLower(text)
	positive, negative := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			positive++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			negative++
		}
	}

	switch {
	case positive > negative:
		return 7 + min(positive, 3)
	case negative > positive:
		return 4 - min(negative, 3)
	default:
		return 5
	}
}

// RatingLabel describes a 1 to 10 rating.
func RatingLabel(rating float64) string {
	switch {
	case rating < 1:
		return "No Rating"
	case rating >= 9:
		return "Exceptional"
	case rating >= 8:
		return "Excellent"
	case rating >= 7:
		return "Very Good"
	case rating >= 6:
		return "Good"
	case rating >= 5:
		return "Average"
	case rating >= 4:
		return "Below Average"
	case rating >= 3:
		return "Poor"
	case rating >= 2:
		return "Very Poor"
	default:
		return "Terrible"
	}
}

// RatingDescription summarises a movie's reviews, e.g. "Very Good (3 reviews)".
func RatingDescription(m Movie) string {
	if m.AverageRating < 1 || m.ReviewCount == 0 {
		return "No reviews yet"
	}
	noun := "reviews"
	if m.ReviewCount == 1 {
		noun = "review"
	}
	return fmt.Sprintf("%s (%d %s)", RatingLabel(m.AverageRating), m.ReviewCount, noun)
}
