// Package intent implements the routing classifier: pure, deterministic
// text predicates that decide when the primary hands the conversation to a
// specialist. Matching is deliberately simple substring work so every
// routing decision is auditable and reproducible from the phrase lists.
package intent

import (
	"strings"

	"socroom/internal/roster"
)

// handoffPhrases mark an explicit delegation by the primary.
var handoffPhrases = []string{
	"let me check with",
	"let me bring in",
	"consult",
	"transfer you to",
	"bring in",
	"defer to",
	"hand you over",
	"connect you with",
	"loop in",
}

// uncertaintyPhrases mark a turn where the speaker needs backup.
var uncertaintyPhrases = []string{
	"i'm not sure",
	"i am not sure",
	"unclear",
	"let me consult",
	"i don't know",
	"hard to say",
	"can't confirm",
}

// MinTopicMatches is the number of distinct topic keywords a turn must hit
// before a specialist counts as relevant.
const MinTopicMatches = 2

// Classifier evaluates dialogue turns against a fixed roster.
type Classifier struct {
	reg *roster.Registry
}

// NewClassifier returns a classifier bound to the given registry.
func NewClassifier(reg *roster.Registry) *Classifier {
	return &Classifier{reg: reg}
}

// HandoffTarget reports the specialist an explicit handoff phrase points
// at, or false if the turn is not a handoff. Only turns spoken by the
// primary can signal a handoff; for any other speaker the answer is
// always false. Trigger sets are scanned in roster declaration order and
// the first hit wins.
func (c *Classifier) HandoffTarget(text string, from roster.Role) (roster.Role, bool) {
	if from != roster.Primary {
		return "", false
	}
	lower := strings.ToLower(text)

	phrased := false
	for _, p := range handoffPhrases {
		if strings.Contains(lower, p) {
			phrased = true
			break
		}
	}
	if !phrased {
		return "", false
	}

	for _, s := range c.reg.Specialists() {
		for _, kw := range s.Triggers {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return s.Role, true
			}
		}
	}
	return "", false
}

// RelevantSpecialists returns every specialist whose topic keywords hit the
// text at least MinTopicMatches times, in roster declaration order, with no
// duplicates.
func (c *Classifier) RelevantSpecialists(text string) []roster.Role {
	lower := strings.ToLower(text)

	var out []roster.Role
	for _, s := range c.reg.Specialists() {
		matches := 0
		for _, kw := range s.Topics {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matches++
			}
		}
		if matches >= MinTopicMatches {
			out = append(out, s.Role)
		}
	}
	return out
}

// IsUncertain reports whether the turn contains an uncertainty phrase.
func IsUncertain(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range uncertaintyPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
