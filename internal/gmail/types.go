package gmail

// MessageID identifies a single Gmail message.
type MessageID string

// LabelID identifies a Gmail label.
type LabelID string

// Reserved system labels the engine manipulates directly.
const (
	LabelUnread    LabelID = "UNREAD"
	LabelInbox     LabelID = "INBOX"
	LabelStarred   LabelID = "STARRED"
	LabelImportant LabelID = "IMPORTANT"
)

// Query is a raw Gmail search query, already formed (e.g. `in:inbox`).
type Query struct {
	Raw string
}

// ListPage is one page of message IDs from a list call.
type ListPage struct {
	IDs           []MessageID
	NextPageToken string
}

// Message carries the subset of a fetched message mailsift stores:
// selected headers, the label set, and a plain-text body snippet.
type Message struct {
	ID       MessageID
	Headers  map[string]string // From, To, Subject, Date
	LabelIDs []LabelID
	Body     string
}

// ModifyOps describes a label mutation on a single message.
type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
}
