package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/attachment"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// Client talks to the messaging backend's REST surface: history pages, the
// send request, uploads and read-state. It satisfies the store, attachment
// and view collaborator ports.
type Client struct {
	base   string
	userID string
	http   *http.Client
	log    *zap.Logger
}

// NewClient constructs a Client for the signed-in user. base is the backend
// root, e.g. "http://localhost:8080".
func NewClient(base, userID string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:   base,
		userID: userID,
		http:   &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

type historyResponse struct {
	Messages []domain.Message `json:"messages"`
	Count    int              `json:"count"`
}

// History fetches one page of messages for the conversation.
func (c *Client) History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	u := fmt.Sprintf("%s/api/v1/conversations/%s/messages?limit=%s",
		c.base, url.PathEscape(conversationID), strconv.Itoa(limit))

	var out historyResponse
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, fmt.Errorf("history fetch: %w", err)
	}
	return out.Messages, nil
}

type sendRequest struct {
	RecipientID string                 `json:"recipient_id"`
	Body        string                 `json:"body"`
	Attachments []domain.AttachmentRef `json:"attachments,omitempty"`
}

type sendResponse struct {
	Message domain.Message `json:"message"`
}

// Send delivers a message and returns the server-confirmed record.
func (c *Client) Send(ctx context.Context, recipientID, text string, attachments []domain.AttachmentRef) (domain.Message, error) {
	body, err := json.Marshal(sendRequest{RecipientID: recipientID, Body: text, Attachments: attachments})
	if err != nil {
		return domain.Message{}, err
	}

	var out sendResponse
	if err := c.doJSON(ctx, http.MethodPost, c.base+"/api/v1/messages", bytes.NewReader(body), &out); err != nil {
		return domain.Message{}, fmt.Errorf("send request: %w", err)
	}
	return out.Message, nil
}

// Upload stores one file and returns its remote reference.
func (c *Client) Upload(ctx context.Context, file attachment.File) (domain.AttachmentRef, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return domain.AttachmentRef{}, err
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return domain.AttachmentRef{}, fmt.Errorf("upload: read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.AttachmentRef{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/uploads", &buf)
	if err != nil {
		return domain.AttachmentRef{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", c.userID)

	var ref domain.AttachmentRef
	if err := c.decode(req, &ref); err != nil {
		return domain.AttachmentRef{}, fmt.Errorf("upload: %w", err)
	}
	return ref, nil
}

// MarkRead persists that the conversation with peerID was opened.
func (c *Client) MarkRead(ctx context.Context, peerID string) error {
	conversationID := domain.ConversationID(c.userID, peerID)
	u := fmt.Sprintf("%s/api/v1/conversations/%s/read", c.base, url.PathEscape(conversationID))
	return c.doJSON(ctx, http.MethodPost, u, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, u string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", c.userID)
	return c.decode(req, out)
}

func (c *Client) decode(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", res.Status, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", res.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
