package rules

import (
	"errors"
	"strings"
	"testing"
)

const sampleDocument = `{
  "all_rules": [
    {
      "description": "file invoices",
      "predicate": "all",
      "rules": [
        {"field": "sender", "predicate": "contains", "value": "@domain.com"},
        {"field": "subject", "predicate": "contains", "value": "Invoice"},
        {"field": "date", "predicate": "less_than", "value": "7_days"}
      ],
      "actions": ["mark_as_read", "move_to:Invoices"]
    },
    {
      "predicate": "any",
      "rules": [
        {"field": "message", "predicate": "does_not_contain", "value": "unsubscribe"}
      ],
      "actions": ["move_to:starred"]
    }
  ]
}`

func TestParseSampleDocument(t *testing.T) {
	set, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(set.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(set.Groups))
	}

	first := set.Groups[0]
	if first.Description != "file invoices" {
		t.Fatalf("unexpected description %q", first.Description)
	}
	if first.Combinator != CombinatorAll {
		t.Fatalf("expected all combinator, got %v", first.Combinator)
	}
	if len(first.Predicates) != 3 {
		t.Fatalf("expected 3 predicates, got %d", len(first.Predicates))
	}
	if first.Predicates[2].Field != FieldDate {
		t.Fatalf("expected date field, got %v", first.Predicates[2].Field)
	}
	if first.Predicates[2].Age != (RelativeDuration{Count: 7, Unit: UnitDays}) {
		t.Fatalf("unexpected age %v", first.Predicates[2].Age)
	}
	if len(first.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(first.Actions))
	}
	if first.Actions[0].Kind != ActionMarkRead {
		t.Fatalf("expected mark_as_read, got %v", first.Actions[0])
	}
	if first.Actions[1].Kind != ActionMoveTo || first.Actions[1].Target != "Invoices" {
		t.Fatalf("move_to target not taken verbatim: %+v", first.Actions[1])
	}

	second := set.Groups[1]
	if second.Combinator != CombinatorAny {
		t.Fatalf("expected any combinator, got %v", second.Combinator)
	}
	if second.Description != "rule #2" {
		t.Fatalf("unexpected fallback description %q", second.Description)
	}
}

func TestParseValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown field",
			doc:  groupDoc(`{"field": "cc", "predicate": "contains", "value": "x"}`, `"mark_as_read"`),
			want: "unknown field",
		},
		{
			name: "unknown predicate",
			doc:  groupDoc(`{"field": "subject", "predicate": "matches", "value": "x"}`, `"mark_as_read"`),
			want: "unknown predicate",
		},
		{
			name: "date with text predicate",
			doc:  groupDoc(`{"field": "date", "predicate": "contains", "value": "7_days"}`, `"mark_as_read"`),
			want: "date field does not support",
		},
		{
			name: "bad date value",
			doc:  groupDoc(`{"field": "date", "predicate": "less_than", "value": "week_2"}`, `"mark_as_read"`),
			want: "bad date value",
		},
		{
			name: "unknown action",
			doc:  groupDoc(`{"field": "subject", "predicate": "contains", "value": "x"}`, `"archive"`),
			want: "unknown action",
		},
		{
			name: "case sensitive action verb",
			doc:  groupDoc(`{"field": "subject", "predicate": "contains", "value": "x"}`, `"Mark_As_Read"`),
			want: "unknown action",
		},
		{
			name: "empty move target",
			doc:  groupDoc(`{"field": "subject", "predicate": "contains", "value": "x"}`, `"move_to: "`),
			want: "move_to target is empty",
		},
		{
			name: "unknown combinator",
			doc: `{"all_rules": [{"predicate": "none",
				"rules": [{"field": "subject", "predicate": "contains", "value": "x"}],
				"actions": ["mark_as_read"]}]}`,
			want: "unknown combinator",
		},
		{
			name: "empty rules",
			doc:  `{"all_rules": [{"predicate": "all", "rules": [], "actions": ["mark_as_read"]}]}`,
			want: "empty rules list",
		},
		{
			name: "empty actions",
			doc: `{"all_rules": [{"predicate": "all",
				"rules": [{"field": "subject", "predicate": "contains", "value": "x"}],
				"actions": []}]}`,
			want: "empty actions list",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q missing %q", err.Error(), tc.want)
			}
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	set, err := Parse([]byte(`{"all_rules": []}`))
	if err != nil {
		t.Fatalf("empty rule list should parse: %v", err)
	}
	if len(set.Groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(set.Groups))
	}
}

func TestParseMalformedJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"all_rules": [`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestActionString(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{Action{Kind: ActionMarkRead}, "mark_as_read"},
		{Action{Kind: ActionMarkUnread}, "mark_as_unread"},
		{Action{Kind: ActionMoveTo, Target: "Invoices"}, "move_to:Invoices"},
	}
	for _, tc := range tests {
		if got := tc.action.String(); got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
	}
}

func TestActionIsTrash(t *testing.T) {
	if !(Action{Kind: ActionMoveTo, Target: "Trash"}).IsTrash() {
		t.Fatalf("trash recognition should ignore target case")
	}
	if (Action{Kind: ActionMoveTo, Target: "Invoices"}).IsTrash() {
		t.Fatalf("label move misread as trash")
	}
	if (Action{Kind: ActionMarkRead}).IsTrash() {
		t.Fatalf("read-state action misread as trash")
	}
}

func groupDoc(rule, action string) string {
	return `{"all_rules": [{"predicate": "all", "rules": [` + rule + `], "actions": [` + action + `]}]}`
}
