package app

import (
	"fmt"
	"strings"
)

// tripBits describes the request in short phrases, shared by the LLM prompt
// and the offline fallback.
func tripBits(req RecommendRequest, quote bool) []string {
	q := req.Context
	wrap := func(s string) string {
		if quote {
			return "'" + s + "'"
		}
		return s
	}
	var bits []string
	loc := strings.TrimSpace(req.LocationContains)
	if loc == "" && len(q.Locations) > 0 {
		loc = strings.Join(q.Locations, ", ")
	}
	if loc != "" {
		bits = append(bits, "in or near "+wrap(loc))
	}
	if env := strings.TrimSpace(q.Environment); env != "" {
		bits = append(bits, fmt.Sprintf("with a %s vibe", wrap(env)))
	}
	if q.GroupSize > 0 {
		bits = append(bits, fmt.Sprintf("for %d guests", q.GroupSize))
	}
	if q.BudgetMin > 0 || q.BudgetMax > 0 {
		lo, hi := q.BudgetMin, q.BudgetMax
		if lo > hi && hi > 0 {
			lo, hi = hi, lo
		}
		bits = append(bits, fmt.Sprintf("around $%.0f-$%.0f/night", lo, hi))
	}
	return bits
}

func guestName(req RecommendRequest) string {
	if n := strings.TrimSpace(req.FirstName); n != "" {
		return n
	}
	return "Guest"
}

// BlurbPrompt builds the user message for the blurb model. Free text wins
// over the structured fields.
func BlurbPrompt(req RecommendRequest) string {
	if q := strings.TrimSpace(req.Context.Query); q != "" {
		return fmt.Sprintf("%s\n\nTraveler first name: %s.", q, guestName(req))
	}
	tail := "."
	if bits := tripBits(req, true); len(bits) > 0 {
		tail = strings.Join(bits, ", ") + "."
	}
	return fmt.Sprintf("Write a short, upbeat travel blurb addressed to %s about suitable vacation rentals %s",
		guestName(req), tail)
}

// FallbackBlurb is the deterministic text used when no model is reachable.
func FallbackBlurb(req RecommendRequest) string {
	tail := "."
	if bits := tripBits(req, false); len(bits) > 0 {
		tail = " " + strings.Join(bits, ", ") + "."
	}
	return fmt.Sprintf("Hi %s, here are places that fit what you asked for%s I prioritized capacity, price fit, and your setting.",
		guestName(req), tail)
}
