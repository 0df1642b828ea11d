// Package rules models the declarative rule document: parsing, validation,
// and predicate evaluation against stored mail records.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Field names a mail record attribute a predicate tests.
type Field int

const (
	FieldSender Field = iota
	FieldRecipient
	FieldSubject
	FieldMessage // body snippet
	FieldDate
)

var fieldNames = map[string]Field{
	"sender":    FieldSender,
	"recipient": FieldRecipient,
	"subject":   FieldSubject,
	"message":   FieldMessage,
	"date":      FieldDate,
}

func (f Field) String() string {
	for name, field := range fieldNames {
		if field == f {
			return name
		}
	}
	return "unknown"
}

// TextPredicate is a comparison verb for text fields. The date field has a
// single fixed verb ("less_than", meaning record age below the threshold)
// and does not use this type.
type TextPredicate int

const (
	PredContains TextPredicate = iota
	PredDoesNotContain
	PredEquals
	PredDoesNotEqual
)

var textPredicateNames = map[string]TextPredicate{
	"contains":         PredContains,
	"does_not_contain": PredDoesNotContain,
	"equals":           PredEquals,
	"does_not_equal":   PredDoesNotEqual,
}

// datePredicateName is the only verb accepted for the date field.
const datePredicateName = "less_than"

// Combinator joins a group's predicates.
type Combinator int

const (
	CombinatorAll Combinator = iota // conjunction
	CombinatorAny                   // disjunction
)

var combinatorNames = map[string]Combinator{
	"all": CombinatorAll,
	"any": CombinatorAny,
}

func (c Combinator) String() string {
	if c == CombinatorAny {
		return "any"
	}
	return "all"
}

// ActionKind tags an action verb.
type ActionKind int

const (
	ActionMarkRead ActionKind = iota
	ActionMarkUnread
	ActionMoveTo
)

// Action verbs as they appear in the document. Verb recognition is
// case-sensitive.
const (
	verbMarkRead   = "mark_as_read"
	verbMarkUnread = "mark_as_unread"
	verbMoveTo     = "move_to"
)

// Reserved move targets that map to Gmail system behavior rather than a
// user label.
const (
	TargetStarred   = "starred"
	TargetImportant = "important"
	TargetTrash     = "trash"
)

// Action is one parsed, idempotent mutating operation.
type Action struct {
	Kind   ActionKind
	Target string // label or reserved target; set only for ActionMoveTo
}

func (a Action) String() string {
	switch a.Kind {
	case ActionMarkRead:
		return verbMarkRead
	case ActionMarkUnread:
		return verbMarkUnread
	case ActionMoveTo:
		return verbMoveTo + ":" + a.Target
	default:
		return "unknown"
	}
}

// IsTrash reports whether the action moves the record to trash.
func (a Action) IsTrash() bool {
	return a.Kind == ActionMoveTo && strings.EqualFold(a.Target, TargetTrash)
}

// Predicate is a single field test.
type Predicate struct {
	Field Field
	Text  TextPredicate    // valid for text fields
	Age   RelativeDuration // valid for FieldDate
	Value string           // raw document value, kept for diagnostics
}

// Group is a named rule: a combinator over predicates plus the actions to
// apply when it matches.
type Group struct {
	Description string
	Combinator  Combinator
	Predicates  []Predicate
	Actions     []Action
}

// RuleSet is the parsed document, group order preserved.
type RuleSet struct {
	Groups []Group
}

// ValidationError reports a malformed rule document. It is fatal to the
// run and carries enough context to point at the offending group.
type ValidationError struct {
	Group  string // description or ordinal of the group
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Group == "" {
		return "invalid rule document: " + e.Detail
	}
	return fmt.Sprintf("invalid rule %q: %s", e.Group, e.Detail)
}

// Document wire format.
type ruleDocument struct {
	AllRules []groupDocument `json:"all_rules"`
}

type groupDocument struct {
	Description string              `json:"description,omitempty"`
	Predicate   string              `json:"predicate"`
	Rules       []predicateDocument `json:"rules"`
	Actions     []string            `json:"actions"`
}

type predicateDocument struct {
	Field     string `json:"field"`
	Predicate string `json:"predicate"`
	Value     string `json:"value"`
}

// Load reads and parses the rule document at path.
func Load(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a rule document. Everything unrecognized is
// rejected here so evaluation never sees a raw string.
func Parse(data []byte) (RuleSet, error) {
	var doc ruleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return RuleSet{}, fmt.Errorf("decode rules document: %w", err)
	}
	set := RuleSet{Groups: make([]Group, 0, len(doc.AllRules))}
	for i, gd := range doc.AllRules {
		group, err := parseGroup(gd, i)
		if err != nil {
			return RuleSet{}, err
		}
		set.Groups = append(set.Groups, group)
	}
	return set, nil
}

func parseGroup(gd groupDocument, index int) (Group, error) {
	name := strings.TrimSpace(gd.Description)
	if name == "" {
		name = fmt.Sprintf("rule #%d", index+1)
	}
	combinator, ok := combinatorNames[strings.ToLower(strings.TrimSpace(gd.Predicate))]
	if !ok {
		return Group{}, &ValidationError{
			Group:  name,
			Detail: fmt.Sprintf("unknown combinator %q", gd.Predicate),
		}
	}
	if len(gd.Rules) == 0 {
		return Group{}, &ValidationError{Group: name, Detail: "empty rules list"}
	}
	if len(gd.Actions) == 0 {
		return Group{}, &ValidationError{Group: name, Detail: "empty actions list"}
	}

	predicates := make([]Predicate, 0, len(gd.Rules))
	for _, pd := range gd.Rules {
		pred, err := parsePredicate(pd, name)
		if err != nil {
			return Group{}, err
		}
		predicates = append(predicates, pred)
	}

	actions := make([]Action, 0, len(gd.Actions))
	for _, raw := range gd.Actions {
		action, err := parseAction(raw, name)
		if err != nil {
			return Group{}, err
		}
		actions = append(actions, action)
	}

	return Group{
		Description: name,
		Combinator:  combinator,
		Predicates:  predicates,
		Actions:     actions,
	}, nil
}

func parsePredicate(pd predicateDocument, group string) (Predicate, error) {
	field, ok := fieldNames[strings.ToLower(strings.TrimSpace(pd.Field))]
	if !ok {
		return Predicate{}, &ValidationError{
			Group:  group,
			Detail: fmt.Sprintf("unknown field %q", pd.Field),
		}
	}
	verb := strings.ToLower(strings.TrimSpace(pd.Predicate))

	if field == FieldDate {
		if verb != datePredicateName {
			return Predicate{}, &ValidationError{
				Group:  group,
				Detail: fmt.Sprintf("date field does not support predicate %q", pd.Predicate),
			}
		}
		age, err := ParseRelativeDuration(pd.Value)
		if err != nil {
			return Predicate{}, &ValidationError{
				Group:  group,
				Detail: fmt.Sprintf("bad date value %q: %v", pd.Value, err),
			}
		}
		return Predicate{Field: field, Age: age, Value: pd.Value}, nil
	}

	text, ok := textPredicateNames[verb]
	if !ok {
		return Predicate{}, &ValidationError{
			Group:  group,
			Detail: fmt.Sprintf("unknown predicate %q", pd.Predicate),
		}
	}
	return Predicate{Field: field, Text: text, Value: pd.Value}, nil
}

func parseAction(raw string, group string) (Action, error) {
	switch {
	case raw == verbMarkRead:
		return Action{Kind: ActionMarkRead}, nil
	case raw == verbMarkUnread:
		return Action{Kind: ActionMarkUnread}, nil
	case strings.HasPrefix(raw, verbMoveTo+":"):
		target := raw[len(verbMoveTo)+1:]
		if strings.TrimSpace(target) == "" {
			return Action{}, &ValidationError{Group: group, Detail: "move_to target is empty"}
		}
		return Action{Kind: ActionMoveTo, Target: target}, nil
	default:
		return Action{}, &ValidationError{
			Group:  group,
			Detail: fmt.Sprintf("unknown action %q", raw),
		}
	}
}
