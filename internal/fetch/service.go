// Package fetch populates the local record store from the Gmail inbox.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"os"

	"github.com/tomarrell/mailsift/internal/gmail"
	"github.com/tomarrell/mailsift/internal/rate"
	"github.com/tomarrell/mailsift/internal/store"
)

var fetchHeaders = []string{"From", "To", "Subject", "Date"}

// RecordStore is the store surface the fetcher needs.
type RecordStore interface {
	Clear(ctx context.Context) error
	UpsertRecords(ctx context.Context, recs []store.Record) error
}

// Options controls one fetch run.
type Options struct {
	MaxResults int // total messages to ingest
	PageSize   int // Gmail list page size (<=500)
}

// Service pulls inbox metadata into the record store.
type Service struct {
	Client  gmail.Client
	Store   RecordStore
	Limiter rate.Limiter
	Logger  *slog.Logger
}

// NewService constructs a fetch Service.
func NewService(
	client gmail.Client,
	recs RecordStore,
	limiter rate.Limiter,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{Client: client, Store: recs, Limiter: limiter, Logger: logger}
}

// Run refreshes the store with the newest inbox messages. A single
// message's failure is logged and skipped; it never aborts the run.
func (s *Service) Run(ctx context.Context, opts Options) (int, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 500
	}
	if pageSize > maxResults {
		pageSize = maxResults
	}

	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	_, labelsByID, err := s.Client.ListLabels(ctx)
	if err != nil {
		return 0, fmt.Errorf("list labels: %w", err)
	}

	// Each run mirrors the current inbox snapshot.
	if err := s.Store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear store: %w", err)
	}

	query := gmail.Query{Raw: "in:inbox"}
	fetched := 0
	token := ""
	for fetched < maxResults {
		if err := s.wait(ctx); err != nil {
			return fetched, err
		}
		page, err := s.Client.List(ctx, query, token, pageSize)
		if err != nil {
			return fetched, fmt.Errorf("list messages: %w", err)
		}
		ids := page.IDs
		if remaining := maxResults - fetched; len(ids) > remaining {
			ids = ids[:remaining]
		}

		recs := make([]store.Record, 0, len(ids))
		for _, id := range ids {
			rec, err := s.fetchRecord(ctx, id, labelsByID)
			if err != nil {
				if ctx.Err() != nil {
					return fetched, ctx.Err()
				}
				s.Logger.WarnContext(ctx, "skipping message", "id", id, "error", err)
				continue
			}
			recs = append(recs, rec)
		}
		if err := s.Store.UpsertRecords(ctx, recs); err != nil {
			return fetched, fmt.Errorf("store records: %w", err)
		}
		fetched += len(recs)

		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	s.Logger.InfoContext(ctx, "fetch complete", "records", fetched)
	return fetched, nil
}

func (s *Service) fetchRecord(
	ctx context.Context,
	id gmail.MessageID,
	labelsByID map[gmail.LabelID]string,
) (store.Record, error) {
	if err := s.wait(ctx); err != nil {
		return store.Record{}, err
	}
	msg, err := s.Client.GetMessage(ctx, id, fetchHeaders)
	if err != nil {
		return store.Record{}, fmt.Errorf("get message: %w", err)
	}

	rec := store.Record{
		ID:          id,
		Sender:      msg.Headers["From"],
		Recipient:   msg.Headers["To"],
		Subject:     msg.Headers["Subject"],
		BodySnippet: msg.Body,
		IsRead:      true,
	}
	if raw := msg.Headers["Date"]; raw != "" {
		if ts, parseErr := mail.ParseDate(raw); parseErr == nil {
			rec.ReceivedAt = ts.UTC()
		} else {
			s.Logger.WarnContext(ctx, "unparsable date header", "id", id, "date", raw)
		}
	}
	for _, lid := range msg.LabelIDs {
		if lid == gmail.LabelUnread {
			rec.IsRead = false
			continue
		}
		name := string(lid)
		if resolved, ok := labelsByID[lid]; ok {
			name = resolved
		}
		rec.Labels = append(rec.Labels, name)
	}
	return rec, nil
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
