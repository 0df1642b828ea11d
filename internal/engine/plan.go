package engine

import (
	"strings"
	"time"

	"github.com/tomarrell/mailsift/internal/rules"
	"github.com/tomarrell/mailsift/internal/store"
)

// Plan evaluates every rule group against the record and returns the
// normalized action list, in rule-set order. Matching is unioned across
// groups; conflicts are resolved here so the executor only ever sees a
// coherent sequence:
//
//   - mark_as_read and mark_as_unread are mutually exclusive; the last
//     matching group's read-state action wins.
//   - move_to targets are deduplicated; move_to:trash suppresses every
//     other move_to for the record.
//   - actions the record state already reflects are dropped, which makes a
//     repeated pass over an updated record a no-op.
func Plan(rec store.Record, set rules.RuleSet, now time.Time) []rules.Action {
	var collected []rules.Action
	for _, group := range set.Groups {
		if group.Matches(rec, now) {
			collected = append(collected, group.Actions...)
		}
	}
	return normalize(rec, collected)
}

func normalize(rec store.Record, collected []rules.Action) []rules.Action {
	var (
		readState *rules.Action
		moves     []rules.Action
		trashed   bool
	)
	for _, action := range collected {
		action := action
		switch action.Kind {
		case rules.ActionMarkRead, rules.ActionMarkUnread:
			readState = &action
		case rules.ActionMoveTo:
			if action.IsTrash() {
				trashed = true
				continue
			}
			moves = appendMove(moves, action)
		}
	}

	out := make([]rules.Action, 0, len(moves)+2)
	if readState != nil && !readStateApplied(rec, *readState) {
		out = append(out, *readState)
	}
	if trashed {
		// A trashed message does not simultaneously get relabeled.
		return append(out, rules.Action{Kind: rules.ActionMoveTo, Target: rules.TargetTrash})
	}
	for _, mv := range moves {
		if !rec.HasLabel(mv.Target) {
			out = append(out, mv)
		}
	}
	return out
}

func appendMove(moves []rules.Action, action rules.Action) []rules.Action {
	for _, existing := range moves {
		if strings.EqualFold(existing.Target, action.Target) {
			return moves
		}
	}
	return append(moves, action)
}

func readStateApplied(rec store.Record, action rules.Action) bool {
	if action.Kind == rules.ActionMarkRead {
		return rec.IsRead
	}
	return !rec.IsRead
}
