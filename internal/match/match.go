// Package match compares a live gesture attempt against a stored template.
//
// Two interchangeable strategies share one contract: the interval matcher
// scores rhythm-of-taps similarity with graded tolerance bands, the grid
// matcher requires exact cell-sequence equality (tolerance is baked into
// the grid resolution instead).
//
// Both matchers fold every element comparison into the result with no
// early return after the equal-length check, so the comparison count does
// not depend on where a mismatch occurs.
package match

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"tapgate/internal/capture"
	"tapgate/internal/quantize"
)

var (
	ErrUnknownStrategy = errors.New("match: unknown strategy")
	ErrQualityTooLow   = errors.New("match: pattern quality too low")
	ErrNodesTooClose   = errors.New("match: pattern taps too close together")
)

// Interval matcher tuning. Deviation buckets are relative to the stored
// interval; weights decrease as the attempt drifts further.
const (
	// DefaultThreshold is the confidence needed for a match.
	DefaultThreshold = 0.75

	// DefaultPositionWeight blends the coarse-zone score into the
	// interval score.
	DefaultPositionWeight = 0.15
)

// Registration quality gate (grid strategy).
const (
	// MinQualityScore is the minimum pattern quality accepted at
	// registration, out of 100.
	MinQualityScore = 50

	// MinPairwiseFraction is the minimum distance between any two taps,
	// as a fraction of the field diagonal.
	MinPairwiseFraction = 0.10
)

// fieldDiagonal is the diagonal length of the unit field.
const fieldDiagonal = 1.4142135623730951

// Result is a match decision with a continuous similarity score.
type Result struct {
	Confidence float32
	IsMatch    bool
}

// Matcher compares a stored template against an attempt.
type Matcher interface {
	Match(stored, attempt *quantize.Template) Result
}

// ForStrategy returns the matcher for a template strategy. The strategy
// set is closed: templates carry the tag so unlock knows which comparator
// to invoke.
func ForStrategy(s capture.Strategy) (Matcher, error) {
	switch s {
	case capture.StrategyInterval:
		return NewIntervalMatcher(), nil
	case capture.StrategyGrid:
		return GridMatcher{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, s)
	}
}

// IntervalMatcher scores rhythm similarity between two interval templates.
type IntervalMatcher struct {
	Threshold      float32
	PositionWeight float32
}

// NewIntervalMatcher returns an interval matcher with default tuning.
func NewIntervalMatcher() IntervalMatcher {
	return IntervalMatcher{
		Threshold:      DefaultThreshold,
		PositionWeight: DefaultPositionWeight,
	}
}

// Match compares two interval templates. Mismatched event counts fail
// immediately; otherwise every interval and zone pair is evaluated.
func (m IntervalMatcher) Match(stored, attempt *quantize.Template) Result {
	if stored == nil || attempt == nil ||
		stored.Strategy != capture.StrategyInterval ||
		attempt.Strategy != capture.StrategyInterval ||
		len(stored.Intervals) != len(attempt.Intervals) ||
		len(stored.Zones) != len(attempt.Zones) {
		return Result{Confidence: 0, IsMatch: false}
	}

	var intervalSum float64
	for i := range stored.Intervals {
		intervalSum += deviationWeight(stored.Intervals[i], attempt.Intervals[i])
	}
	intervalScore := intervalSum / float64(len(stored.Intervals))

	var zoneHits int
	for i := range stored.Zones {
		// Folded equality: no branch on the comparison outcome.
		zoneHits += subtle.ConstantTimeByteEq(stored.Zones[i], attempt.Zones[i])
	}
	positionScore := float64(zoneHits) / float64(len(stored.Zones))

	w := float64(m.PositionWeight)
	confidence := intervalScore*(1-w) + positionScore*w

	return Result{
		Confidence: float32(confidence),
		IsMatch:    float32(confidence) >= m.Threshold,
	}
}

// deviationWeight buckets the relative deviation of an attempt interval
// from the stored one into decreasing tolerance bands.
func deviationWeight(stored, attempt uint32) float64 {
	if stored == 0 {
		if attempt == 0 {
			return 1.0
		}
		return 0.0
	}

	var diff float64
	if attempt > stored {
		diff = float64(attempt - stored)
	} else {
		diff = float64(stored - attempt)
	}
	rel := diff / float64(stored)

	switch {
	case rel <= 0.50:
		return 1.0
	case rel <= 1.00:
		return 0.85
	case rel <= 1.50:
		return 0.5
	case rel <= 2.00:
		return 0.25
	default:
		return 0.0
	}
}

// GridMatcher requires exact equality of ordered cell sequences.
// Confidence is binary: the grid resolution already absorbs tolerance.
type GridMatcher struct{}

// Match compares two grid templates cell by cell. Every pair is folded
// into the decision regardless of earlier mismatches.
func (GridMatcher) Match(stored, attempt *quantize.Template) Result {
	if stored == nil || attempt == nil ||
		stored.Strategy != capture.StrategyGrid ||
		attempt.Strategy != capture.StrategyGrid ||
		len(stored.Cells) != len(attempt.Cells) {
		return Result{Confidence: 0, IsMatch: false}
	}

	equal := 1
	for i := range stored.Cells {
		equal &= subtle.ConstantTimeEq(int32(stored.Cells[i]), int32(attempt.Cells[i]))
	}

	return Result{
		Confidence: float32(equal),
		IsMatch:    equal == 1,
	}
}

// CheckRegistrationQuality gates a candidate template at registration
// time. Grid patterns must keep taps apart and avoid trivially guessable
// shapes; interval patterns have no geometric gate.
func CheckRegistrationQuality(t *quantize.Template) error {
	if t == nil {
		return ErrUnknownStrategy
	}
	if t.Strategy != capture.StrategyGrid {
		return nil
	}

	if quantize.MinPairwiseDistance(t.Cells) < MinPairwiseFraction*fieldDiagonal {
		return ErrNodesTooClose
	}
	if int(t.Quality) < MinQualityScore {
		return fmt.Errorf("%w: scored %d, need %d", ErrQualityTooLow, t.Quality, MinQualityScore)
	}
	return nil
}
