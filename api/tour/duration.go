package tour

import (
	"math"
	"strings"
)

// Spoken-word pacing used for every duration estimate. Durations are
// derived from word counts, never from decoding audio.
const wordsPerMinute = 150.0

// Tour length clamp in minutes.
const (
	MinTourMinutes = 5
	MaxTourMinutes = 90
)

// CountWords counts whitespace-separated words in narration text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// EstimateDurationMinutes converts a word count to an estimated spoken
// duration, clamped to the supported tour-length range.
func EstimateDurationMinutes(wordCount int) int {
	minutes := int(math.Round(float64(wordCount) / wordsPerMinute))
	if minutes < MinTourMinutes {
		return MinTourMinutes
	}
	if minutes > MaxTourMinutes {
		return MaxTourMinutes
	}
	return minutes
}

// EstimateDurationSeconds estimates the spoken duration of rendered audio
// from its word count. Approximate; may drift from the true duration.
func EstimateDurationSeconds(wordCount int) int {
	return int(math.Round(float64(wordCount) / wordsPerMinute * 60))
}
