// Package progress holds the pure typing-statistics math. Everything in
// here is derived from raw keystroke telemetry: the caller supplies the
// cursor position, elapsed time and error count, and gets back the
// figures that go out in progress broadcasts.
package progress

import (
	"errors"
	"math"
)

var ErrInvalidInput = errors.New("invalid progress input")

// charsPerWord is the standard typing-test convention: one word is five
// characters, regardless of actual word boundaries.
const charsPerWord = 5

// PercentComplete returns how far through the sentence the cursor is, as
// a percentage clamped to [0,100].
func PercentComplete(position, totalLength int) (float64, error) {
	if totalLength <= 0 {
		return 0, ErrInvalidInput
	}
	pct := float64(position) / float64(totalLength) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// WordsPerMinute converts a cursor position and elapsed time into WPM.
// A zero elapsed time means the first keystroke hasn't registered any
// duration yet, so the rate is reported as 0 rather than dividing by it.
func WordsPerMinute(elapsedMs int64, position int) int {
	if elapsedMs <= 0 {
		return 0
	}
	minutes := float64(elapsedMs) / 60000
	words := float64(position) / charsPerWord
	return int(math.Round(words / minutes))
}

// Accuracy returns the percentage of correct keystrokes in [0,100].
// With nothing typed yet the participant is considered fully accurate.
// Malformed telemetry can report more errors than keystrokes; the result
// is clamped instead of going negative.
func Accuracy(errorCount, totalTyped int) int {
	if totalTyped == 0 {
		return 100
	}
	acc := int(math.Round(float64(totalTyped-errorCount) / float64(totalTyped) * 100))
	if acc < 0 {
		acc = 0
	}
	if acc > 100 {
		acc = 100
	}
	return acc
}
