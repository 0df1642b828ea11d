// Package runtime adapts the Google API client to mailsift's small interfaces.
package runtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/api/gmail/v1"

	gc "github.com/tomarrell/mailsift/internal/gmail"
)

const snippetLimit = 1000

type googleClient struct{ svc *gmail.Service }

// NewGoogleAPIClient wraps *gmail.Service in the gc.Client interface.
func NewGoogleAPIClient(svc *gmail.Service) gc.Client { return &googleClient{svc} }

func (g *googleClient) List(
	ctx context.Context,
	q gc.Query,
	pageToken string,
	pageSize int,
) (gc.ListPage, error) {
	call := g.svc.Users.Messages.List("me").Q(q.Raw).MaxResults(int64(pageSize))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, err
	}
	ids := make([]gc.MessageID, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, gc.MessageID(m.Id))
	}
	return gc.ListPage{IDs: ids, NextPageToken: res.NextPageToken}, nil
}

func (g *googleClient) GetMessage(
	ctx context.Context,
	id gc.MessageID,
	headers []string,
) (gc.Message, error) {
	msg, err := g.svc.Users.Messages.Get("me", string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return gc.Message{}, err
	}
	wanted := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		wanted[strings.ToLower(h)] = struct{}{}
	}
	out := gc.Message{
		ID:       id,
		Headers:  map[string]string{},
		LabelIDs: toLabelIDs(msg.LabelIds),
	}
	if msg.Payload != nil {
		for _, hd := range msg.Payload.Headers {
			if _, ok := wanted[strings.ToLower(hd.Name)]; ok || len(headers) == 0 {
				out.Headers[hd.Name] = hd.Value
			}
		}
		out.Body = truncateSnippet(extractPlainText(msg.Payload))
	}
	if out.Body == "" {
		out.Body = msg.Snippet
	}
	return out, nil
}

func (g *googleClient) Modify(ctx context.Context, id gc.MessageID, ops gc.ModifyOps) error {
	req := &gmail.ModifyMessageRequest{}
	if len(ops.AddLabels) > 0 {
		req.AddLabelIds = toStringsL(ops.AddLabels)
	}
	if len(ops.RemoveLabels) > 0 {
		req.RemoveLabelIds = toStringsL(ops.RemoveLabels)
	}
	_, err := g.svc.Users.Messages.Modify("me", string(id), req).Context(ctx).Do()
	return err
}

func (g *googleClient) Trash(ctx context.Context, id gc.MessageID) error {
	_, err := g.svc.Users.Messages.Trash("me", string(id)).Context(ctx).Do()
	return err
}

func (g *googleClient) ListLabels(
	ctx context.Context,
) (map[string]gc.LabelID, map[gc.LabelID]string, error) {
	lr, err := g.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, nil, err
	}
	byName := map[string]gc.LabelID{}
	byID := map[gc.LabelID]string{}
	for _, l := range lr.Labels {
		byName[l.Name] = gc.LabelID(l.Id)
		byID[gc.LabelID(l.Id)] = l.Name
	}
	return byName, byID, nil
}

func (g *googleClient) EnsureLabel(ctx context.Context, name string) (gc.LabelID, error) {
	byName, _, err := g.ListLabels(ctx)
	if err != nil {
		return "", err
	}
	for existing, id := range byName {
		if strings.EqualFold(existing, name) {
			return id, nil
		}
	}
	created, err := g.svc.Users.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return gc.LabelID(created.Id), nil
}

// extractPlainText walks the MIME part tree and returns the first text/plain
// body found, base64url decoded. Preference order mirrors Gmail's own
// multipart/alternative layout.
func extractPlainText(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if strings.EqualFold(part.MimeType, "text/plain") && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	for _, sub := range part.Parts {
		if strings.EqualFold(sub.MimeType, "text/plain") {
			if body := extractPlainText(sub); body != "" {
				return body
			}
		}
	}
	for _, sub := range part.Parts {
		if body := extractPlainText(sub); body != "" {
			return body
		}
	}
	return ""
}

func decodeBase64URL(data string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		if decoded, err = base64.URLEncoding.DecodeString(data); err != nil {
			return ""
		}
	}
	return string(decoded)
}

func truncateSnippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) <= snippetLimit {
		return body
	}
	cut := snippetLimit
	// back off to a rune boundary so the snippet stays valid UTF-8
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

func toStringsL(ids []gc.LabelID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toLabelIDs(ids []string) []gc.LabelID {
	out := make([]gc.LabelID, len(ids))
	for i, id := range ids {
		out[i] = gc.LabelID(id)
	}
	return out
}
