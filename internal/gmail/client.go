package gmail

import "context"

// Client is the narrow Gmail surface required by mailsift.
type Client interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
	GetMessage(ctx context.Context, id MessageID, headers []string) (Message, error)
	Modify(ctx context.Context, id MessageID, ops ModifyOps) error
	Trash(ctx context.Context, id MessageID) error
	ListLabels(ctx context.Context) (map[string]LabelID, map[LabelID]string, error)
	EnsureLabel(ctx context.Context, name string) (LabelID, error)
}
