// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

package tracker

const (
	// DefaultLargestInaccuracyM is the accuracy radius at which a fix is
	// considered too noisy to be useful.
	DefaultLargestInaccuracyM = 150.0
	// DefaultVeryFastWalkMPS caps the speed a pedestrian can plausibly
	// sustain; anything faster is treated as a glitch.
	DefaultVeryFastWalkMPS = 2.0

	// minElapsedMS keeps the implied speed calculation away from a
	// division by zero when two fixes share a timestamp.
	minElapsedMS = 1
)

// Reason describes why a candidate fix was accepted or rejected.
type Reason int

const (
	Accepted Reason = iota
	RejectedInvalid
	RejectedInaccurate
	RejectedTooFast
	RejectedImpliedSpeed
)

func (r Reason) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectedInvalid:
		return "invalid fix"
	case RejectedInaccurate:
		return "accuracy too low"
	case RejectedTooFast:
		return "reported speed too fast"
	case RejectedImpliedSpeed:
		return "implied speed too fast"
	}
	return "unknown"
}

// Decision is the outcome of filtering a single candidate fix.
type Decision struct {
	Accept bool
	Reason Reason
	// ImpliedSpeedMPS is the speed derived from the distance to the
	// previous fix; only set when a previous fix was available.
	ImpliedSpeedMPS float64
}

// Filter holds the thresholds for the fix acceptance decision.
type Filter struct {
	LargestInaccuracyM float64
	VeryFastWalkMPS    float64
}

// NewFilter returns a Filter with the default pedestrian thresholds.
func NewFilter() Filter {
	return Filter{
		LargestInaccuracyM: DefaultLargestInaccuracyM,
		VeryFastWalkMPS:    DefaultVeryFastWalkMPS,
	}
}

// ShouldAccept decides whether cand should replace the previously accepted
// fix. prev is nil if no fix has been accepted yet; prevTimeMS is the time
// at which prev was accepted and nowMS the time of the decision, both in
// Unix milliseconds. The decision is pure and has no side effects.
func (f Filter) ShouldAccept(prev *Fix, prevTimeMS int64, cand Fix, nowMS int64) Decision {
	if !cand.Valid() {
		return Decision{Reason: RejectedInvalid}
	}
	if cand.AccuracyMeters >= f.LargestInaccuracyM {
		return Decision{Reason: RejectedInaccurate}
	}
	if cand.SpeedMPS > f.VeryFastWalkMPS {
		return Decision{Reason: RejectedTooFast}
	}
	if prev != nil {
		elapsedMS := nowMS - prevTimeMS
		if elapsedMS < minElapsedMS {
			elapsedMS = minElapsedMS
		}
		implied := prev.DistanceTo(cand) / (float64(elapsedMS) / 1000)
		if implied > f.VeryFastWalkMPS {
			return Decision{Reason: RejectedImpliedSpeed, ImpliedSpeedMPS: implied}
		}
		return Decision{Accept: true, Reason: Accepted, ImpliedSpeedMPS: implied}
	}

	return Decision{Accept: true, Reason: Accepted}
}
