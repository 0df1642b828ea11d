package engine

import (
	"reflect"
	"testing"
	"time"

	"github.com/tomarrell/mailsift/internal/rules"
	"github.com/tomarrell/mailsift/internal/store"
)

var planNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func matchAll(actions ...rules.Action) rules.Group {
	return rules.Group{
		Combinator: rules.CombinatorAll,
		Predicates: []rules.Predicate{
			{Field: rules.FieldSubject, Text: rules.PredContains, Value: "invoice"},
		},
		Actions: actions,
	}
}

func matchNone(actions ...rules.Action) rules.Group {
	return rules.Group{
		Combinator: rules.CombinatorAll,
		Predicates: []rules.Predicate{
			{Field: rules.FieldSubject, Text: rules.PredContains, Value: "no-such-subject"},
		},
		Actions: actions,
	}
}

func planRecord() store.Record {
	return store.Record{
		ID:         "msg-1",
		Sender:     "billing@domain.com",
		Subject:    "Invoice #42",
		ReceivedAt: planNow.AddDate(0, 0, -2),
	}
}

func TestPlanUnionAcrossGroups(t *testing.T) {
	set := rules.RuleSet{Groups: []rules.Group{
		matchAll(rules.Action{Kind: rules.ActionMarkRead}),
		matchNone(rules.Action{Kind: rules.ActionMoveTo, Target: "Ignored"}),
		matchAll(rules.Action{Kind: rules.ActionMoveTo, Target: "Invoices"}),
	}}
	got := Plan(planRecord(), set, planNow)
	want := []rules.Action{
		{Kind: rules.ActionMarkRead},
		{Kind: rules.ActionMoveTo, Target: "Invoices"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPlanReadStateConflictLastGroupWins(t *testing.T) {
	set := rules.RuleSet{Groups: []rules.Group{
		matchAll(rules.Action{Kind: rules.ActionMarkUnread}),
		matchAll(rules.Action{Kind: rules.ActionMarkRead}),
	}}
	rec := planRecord()
	rec.IsRead = false
	got := Plan(rec, set, planNow)
	want := []rules.Action{{Kind: rules.ActionMarkRead}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPlanTrashSuppressesOtherMoves(t *testing.T) {
	set := rules.RuleSet{Groups: []rules.Group{
		matchAll(rules.Action{Kind: rules.ActionMoveTo, Target: "Invoices"}),
		matchAll(rules.Action{Kind: rules.ActionMoveTo, Target: "trash"}),
		matchAll(rules.Action{Kind: rules.ActionMoveTo, Target: "Archive"}),
	}}
	got := Plan(planRecord(), set, planNow)
	want := []rules.Action{{Kind: rules.ActionMoveTo, Target: rules.TargetTrash}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPlanTrashKeepsReadState(t *testing.T) {
	set := rules.RuleSet{Groups: []rules.Group{
		matchAll(
			rules.Action{Kind: rules.ActionMarkRead},
			rules.Action{Kind: rules.ActionMoveTo, Target: "trash"},
		),
	}}
	got := Plan(planRecord(), set, planNow)
	want := []rules.Action{
		{Kind: rules.ActionMarkRead},
		{Kind: rules.ActionMoveTo, Target: rules.TargetTrash},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPlanDeduplicatesMoveTargets(t *testing.T) {
	set := rules.RuleSet{Groups: []rules.Group{
		matchAll(rules.Action{Kind: rules.ActionMoveTo, Target: "Invoices"}),
		matchAll(rules.Action{Kind: rules.ActionMoveTo, Target: "invoices"}),
	}}
	got := Plan(planRecord(), set, planNow)
	want := []rules.Action{{Kind: rules.ActionMoveTo, Target: "Invoices"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

// Re-planning against the updated record must be a no-op for anything
// already applied.
func TestPlanIdempotence(t *testing.T) {
	set := rules.RuleSet{Groups: []rules.Group{
		matchAll(
			rules.Action{Kind: rules.ActionMarkRead},
			rules.Action{Kind: rules.ActionMoveTo, Target: "Invoices"},
		),
	}}

	rec := planRecord()
	first := Plan(rec, set, planNow)
	if len(first) != 2 {
		t.Fatalf("expected 2 planned actions, got %v", first)
	}

	// simulate successful application
	rec.IsRead = true
	rec.Labels = []string{"Invoices"}

	second := Plan(rec, set, planNow)
	if len(second) != 0 {
		t.Fatalf("expected empty plan after apply, got %v", second)
	}
}

func TestPlanAlreadyUnreadSkipsMarkUnread(t *testing.T) {
	set := rules.RuleSet{Groups: []rules.Group{
		matchAll(rules.Action{Kind: rules.ActionMarkUnread}),
	}}
	rec := planRecord()
	rec.IsRead = false
	if got := Plan(rec, set, planNow); len(got) != 0 {
		t.Fatalf("expected empty plan for already-unread record, got %v", got)
	}
}

func TestPlanNoMatchingGroups(t *testing.T) {
	set := rules.RuleSet{Groups: []rules.Group{
		matchNone(rules.Action{Kind: rules.ActionMarkRead}),
	}}
	if got := Plan(planRecord(), set, planNow); len(got) != 0 {
		t.Fatalf("expected empty plan, got %v", got)
	}
}
