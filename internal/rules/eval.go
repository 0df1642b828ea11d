package rules

import (
	"strings"
	"time"

	"github.com/tomarrell/mailsift/internal/store"
)

// Matches evaluates the predicate against one record. now is threaded in
// explicitly so callers (and tests) control the reference instant for date
// predicates.
func (p Predicate) Matches(rec store.Record, now time.Time) bool {
	if p.Field == FieldDate {
		if rec.ReceivedAt.IsZero() {
			return false // undated records never satisfy an age test
		}
		return rec.ReceivedAt.After(p.Age.Threshold(now))
	}

	value := textValue(rec, p.Field)
	switch p.Text {
	case PredContains:
		return contains(value, p.Value)
	case PredDoesNotContain:
		return !contains(value, p.Value)
	case PredEquals:
		return equals(value, p.Value)
	case PredDoesNotEqual:
		return !equals(value, p.Value)
	default:
		return false
	}
}

// Matches reports whether the group's combinator holds over its predicates.
// A group with no predicates matches nothing, for either combinator.
func (g Group) Matches(rec store.Record, now time.Time) bool {
	if len(g.Predicates) == 0 {
		return false
	}
	switch g.Combinator {
	case CombinatorAll:
		for _, p := range g.Predicates {
			if !p.Matches(rec, now) {
				return false
			}
		}
		return true
	case CombinatorAny:
		for _, p := range g.Predicates {
			if p.Matches(rec, now) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func textValue(rec store.Record, field Field) string {
	switch field {
	case FieldSender:
		return rec.Sender
	case FieldRecipient:
		return rec.Recipient
	case FieldSubject:
		return rec.Subject
	case FieldMessage:
		return rec.BodySnippet
	default:
		return ""
	}
}

func contains(value, expected string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(expected))
}

func equals(value, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(expected))
}
