package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"regexp"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Mailbox defines the interface for the notebook email source
type Mailbox interface {
	ListUnread(ctx context.Context) ([]string, error)
	GetMessage(ctx context.Context, msgID string) (*NotebookMessage, error)
	MarkProcessed(ctx context.Context, msgID string) error
}

// NotebookMessage is one Kindle export email: the notebook name pulled from
// the quoted subject and the raw HTML body carrying the download links.
type NotebookMessage struct {
	ID       string
	Filename string
	HTMLBody string
}

// GmailClient implements Mailbox against the Gmail API
type GmailClient struct {
	svc   *gmail.Service
	query string
}

var subjectFilenameRe = regexp.MustCompile(`"([^"]+)"`)

// NewGmailClient creates a Gmail client scoped to the given search query
func NewGmailClient(ctx context.Context, query string, opts ...option.ClientOption) (*GmailClient, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &GmailClient{svc: svc, query: query}, nil
}

// ListUnread returns the ids of unread messages matching the Kindle query.
func (c *GmailClient) ListUnread(ctx context.Context) ([]string, error) {
	res, err := c.svc.Users.Messages.List("me").Q(c.query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	ids := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetMessage fetches a message and extracts the notebook filename and HTML body.
func (c *GmailClient) GetMessage(ctx context.Context, msgID string) (*NotebookMessage, error) {
	msg, err := c.svc.Users.Messages.Get("me", msgID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", msgID, err)
	}

	filename := "kindle_download"
	for _, h := range msg.Payload.Headers {
		if h.Name == "Subject" || h.Name == "subject" {
			if m := subjectFilenameRe.FindStringSubmatch(h.Value); m != nil {
				filename = m[1]
			}
			break
		}
	}

	htmlBody := findHTMLPart(msg.Payload)
	if htmlBody == "" {
		return nil, fmt.Errorf("no HTML content found in message %s", msgID)
	}

	return &NotebookMessage{
		ID:       msgID,
		Filename: filename,
		HTMLBody: htmlBody,
	}, nil
}

// MarkProcessed marks a message read and archives it.
func (c *GmailClient) MarkProcessed(ctx context.Context, msgID string) error {
	_, err := c.svc.Users.Messages.Modify("me", msgID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD", "INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to mark message %s processed: %w", msgID, err)
	}
	return nil
}

// findHTMLPart walks the MIME tree for the first text/html part. Kindle mails
// nest it under multipart/alternative.
func findHTMLPart(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(trimBase64Padding(part.Body.Data))
		if err != nil {
			log.Printf("[Gmail] failed to decode html part: %v", err)
			return ""
		}
		return string(data)
	}
	for _, p := range part.Parts {
		if body := findHTMLPart(p); body != "" {
			return body
		}
	}
	return ""
}

func trimBase64Padding(s string) string {
	for len(s) > 0 && s[len(s)-1] == '=' {
		s = s[:len(s)-1]
	}
	return s
}
