// Package intent classifies free-text chat messages into the assistant's
// fixed set of intents.
package intent

import "strings"

// Intent is a classified user goal.
type Intent string

const (
	Emergency    Intent = "emergency"
	Booking      Intent = "booking"
	Pricing      Intent = "pricing"
	Aftercare    Intent = "aftercare"
	Consultation Intent = "consultation"
	General      Intent = "general"
)

// All lists every intent in classification priority order.
var All = []Intent{Emergency, Booking, Pricing, Aftercare, Consultation, General}

// Parse maps model output to an intent; anything unrecognized is General.
func Parse(raw string) Intent {
	candidate := Intent(strings.ToLower(strings.Trim(strings.TrimSpace(raw), ".!\"'`")))
	for _, known := range All {
		if candidate == known {
			return known
		}
	}
	return General
}

// Threshold is the minimum rule confidence accepted without a model call.
func (i Intent) Threshold() float64 {
	switch i {
	case Emergency:
		return 0.3
	case Booking, Pricing:
		return 0.4
	case Aftercare:
		return 0.5
	case Consultation:
		return 0
	default:
		return 0.5
	}
}
