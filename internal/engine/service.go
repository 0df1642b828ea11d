// Package engine plans and executes rule actions against stored mail
// records.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tomarrell/mailsift/internal/gmail"
	"github.com/tomarrell/mailsift/internal/rate"
	"github.com/tomarrell/mailsift/internal/rules"
	"github.com/tomarrell/mailsift/internal/store"
)

const defaultWorkers = 4

// RecordStore is the store surface the engine needs.
type RecordStore interface {
	ListRecords(ctx context.Context) ([]store.Record, error)
	UpdateRecord(ctx context.Context, id gmail.MessageID, isRead bool, labels []string) error
	DeleteRecord(ctx context.Context, id gmail.MessageID) error
}

// Service runs one evaluation pass: plan per record, dispatch through the
// Gmail client, report outcomes.
type Service struct {
	Client  gmail.Client
	Store   RecordStore
	Limiter rate.Limiter
	Logger  *slog.Logger
	Clock   func() time.Time
	Workers int
}

// NewService constructs a Service with sane defaults.
func NewService(
	client gmail.Client,
	recs RecordStore,
	limiter rate.Limiter,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Client:  client,
		Store:   recs,
		Limiter: limiter,
		Logger:  logger,
		Clock:   time.Now,
		Workers: defaultWorkers,
	}
}

// Options controls a single pass.
type Options struct {
	DryRun bool
}

// Run evaluates the rule set against every stored record. Validation has
// already happened at rule load; from here on no failure is fatal to the
// batch — per-record outcomes are aggregated into the report.
func (s *Service) Run(ctx context.Context, set rules.RuleSet, opts Options) (Report, error) {
	now := s.Clock()
	recs, err := s.Store.ListRecords(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list records: %w", err)
	}
	s.Logger.InfoContext(ctx, "starting pass",
		"records", len(recs), "rules", len(set.Groups), "dry_run", opts.DryRun)

	rep := Report{GeneratedAt: now, Total: len(recs), DryRun: opts.DryRun}
	if len(recs) == 0 {
		return rep, nil
	}

	workers := s.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(recs) {
		workers = len(recs)
	}

	jobs := make(chan store.Record)
	results := make(chan RecordOutcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				results <- s.processRecord(ctx, rec, set, now, opts.DryRun)
			}
		}()
	}

	// Cancellation stops dispatching new records; workers drain what they
	// already picked up.
	go func() {
		defer close(jobs)
		for _, rec := range recs {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- rec:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for outcome := range results {
		rep.add(outcome)
	}
	return rep, nil
}

func (s *Service) processRecord(
	ctx context.Context,
	rec store.Record,
	set rules.RuleSet,
	now time.Time,
	dryRun bool,
) RecordOutcome {
	planned := Plan(rec, set, now)
	outcome := RecordOutcome{ID: rec.ID, Planned: len(planned)}
	if len(planned) == 0 {
		outcome.Status = StatusSkipped
		return outcome
	}
	if dryRun {
		s.Logger.InfoContext(ctx, "dry-run",
			"record", rec.ID, "subject", rec.Subject, "actions", actionStrings(planned))
		outcome.Status = StatusPlanned
		return outcome
	}

	applied := 0
	for _, action := range planned {
		if err := s.applyAction(ctx, &rec, action); err != nil {
			s.Logger.WarnContext(ctx, "action failed",
				"record", rec.ID, "action", action.String(), "error", err)
			outcome.Failures = append(outcome.Failures, ActionFailure{
				RecordID: rec.ID,
				Action:   action.String(),
				Err:      err.Error(),
			})
			continue
		}
		applied++
	}

	switch {
	case applied == len(planned):
		outcome.Status = StatusApplied
	case applied > 0:
		outcome.Status = StatusPartiallyApplied
	default:
		outcome.Status = StatusFailed
	}
	return outcome
}

// applyAction dispatches one action and, on success, folds the new state
// into both the in-memory record and the store so re-running the pass is a
// no-op.
func (s *Service) applyAction(
	ctx context.Context,
	rec *store.Record,
	action rules.Action,
) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	switch action.Kind {
	case rules.ActionMarkRead:
		ops := gmail.ModifyOps{RemoveLabels: []gmail.LabelID{gmail.LabelUnread}}
		if err := s.Client.Modify(ctx, rec.ID, ops); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
		rec.IsRead = true

	case rules.ActionMarkUnread:
		ops := gmail.ModifyOps{AddLabels: []gmail.LabelID{gmail.LabelUnread}}
		if err := s.Client.Modify(ctx, rec.ID, ops); err != nil {
			return fmt.Errorf("mark unread: %w", err)
		}
		rec.IsRead = false

	case rules.ActionMoveTo:
		return s.applyMove(ctx, rec, action)
	}

	if err := s.Store.UpdateRecord(ctx, rec.ID, rec.IsRead, rec.Labels); err != nil {
		return fmt.Errorf("write back: %w", err)
	}
	return nil
}

func (s *Service) applyMove(
	ctx context.Context,
	rec *store.Record,
	action rules.Action,
) error {
	switch strings.ToLower(action.Target) {
	case rules.TargetTrash:
		if err := s.Client.Trash(ctx, rec.ID); err != nil {
			return fmt.Errorf("trash: %w", err)
		}
		// A trashed message leaves the local table; the next fetch would
		// not see it in the inbox either.
		if err := s.Store.DeleteRecord(ctx, rec.ID); err != nil {
			return fmt.Errorf("drop trashed record: %w", err)
		}
		return nil

	case rules.TargetStarred:
		return s.addSystemLabel(ctx, rec, gmail.LabelStarred)

	case rules.TargetImportant:
		return s.addSystemLabel(ctx, rec, gmail.LabelImportant)

	default:
		lid, err := s.Client.EnsureLabel(ctx, action.Target)
		if err != nil {
			return fmt.Errorf("ensure label %q: %w", action.Target, err)
		}
		ops := gmail.ModifyOps{
			AddLabels:    []gmail.LabelID{lid},
			RemoveLabels: []gmail.LabelID{gmail.LabelInbox},
		}
		if err := s.Client.Modify(ctx, rec.ID, ops); err != nil {
			return fmt.Errorf("move to %q: %w", action.Target, err)
		}
		rec.Labels = addLabel(removeLabel(rec.Labels, string(gmail.LabelInbox)), action.Target)
		if err := s.Store.UpdateRecord(ctx, rec.ID, rec.IsRead, rec.Labels); err != nil {
			return fmt.Errorf("write back: %w", err)
		}
		return nil
	}
}

func (s *Service) addSystemLabel(
	ctx context.Context,
	rec *store.Record,
	label gmail.LabelID,
) error {
	ops := gmail.ModifyOps{AddLabels: []gmail.LabelID{label}}
	if err := s.Client.Modify(ctx, rec.ID, ops); err != nil {
		return fmt.Errorf("add %s: %w", label, err)
	}
	rec.Labels = addLabel(rec.Labels, string(label))
	if err := s.Store.UpdateRecord(ctx, rec.ID, rec.IsRead, rec.Labels); err != nil {
		return fmt.Errorf("write back: %w", err)
	}
	return nil
}

func (s *Service) wait(ctx context.Context) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func addLabel(labels []string, name string) []string {
	for _, l := range labels {
		if strings.EqualFold(l, name) {
			return labels
		}
	}
	return append(labels, name)
}

func removeLabel(labels []string, name string) []string {
	out := labels[:0]
	for _, l := range labels {
		if !strings.EqualFold(l, name) {
			out = append(out, l)
		}
	}
	return out
}

func actionStrings(actions []rules.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.String()
	}
	return out
}
