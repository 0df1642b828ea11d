package store

import (
	"strings"
	"time"

	"github.com/tomarrell/mailsift/internal/gmail"
)

// Record is one fetched mail item as persisted locally. Text fields are
// immutable after fetch; IsRead and Labels change only through applied
// actions or a later re-fetch.
type Record struct {
	ID          gmail.MessageID
	Sender      string
	Recipient   string
	Subject     string
	BodySnippet string
	ReceivedAt  time.Time
	IsRead      bool
	Labels      []string
}

// HasLabel reports whether the record already carries the named label.
// Gmail label names are case-insensitively unique.
func (r Record) HasLabel(name string) bool {
	for _, l := range r.Labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}
