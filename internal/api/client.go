// Package api provides the HTTP implementation of the store interfaces,
// speaking to the reference server's REST surface. Together with the
// websocket feed it gives the sync engine a complete remote backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/model"
	"github.com/sahilt56/messaging-app/internal/store"
)

var httpTimeout = 30 * time.Second

// Client implements store.Store over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ store.Store = (*Client)(nil)

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeout},
		logger:  logger,
	}
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

func (c *Client) FetchMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var out struct {
		Messages []model.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, "/chat/api/conversations/"+url.PathEscape(conversationID)+"/messages", nil, &out)
	return out.Messages, err
}

func (c *Client) CreateMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	var out struct {
		Message model.Message `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/chat/api/messages", msg, &out)
	return out.Message, err
}

func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/chat/api/messages/"+url.PathEscape(id), nil, nil)
}

func (c *Client) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	body := map[string]string{"userId": userID}
	return c.do(ctx, http.MethodPost, "/chat/api/conversations/"+url.PathEscape(conversationID)+"/read", body, nil)
}

func (c *Client) UnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	path := "/chat/api/conversations/" + url.PathEscape(conversationID) + "/unread?userId=" + url.QueryEscape(userID)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Count, err
}

func (c *Client) ClearHistory(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodDelete, "/chat/api/conversations/"+url.PathEscape(conversationID)+"/messages", nil, nil)
}

// -----------------------------------------------------------------------------
// Reactions
// -----------------------------------------------------------------------------

func (c *Client) FetchReactions(ctx context.Context, messageID string) ([]model.Reaction, error) {
	var out struct {
		Reactions []model.Reaction `json:"reactions"`
	}
	err := c.do(ctx, http.MethodGet, "/chat/api/messages/"+url.PathEscape(messageID)+"/reactions", nil, &out)
	return out.Reactions, err
}

func (c *Client) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (store.ToggleResult, error) {
	body := map[string]string{"userId": userID, "emoji": emoji}
	var out store.ToggleResult
	err := c.do(ctx, http.MethodPost, "/chat/api/messages/"+url.PathEscape(messageID)+"/reactions/toggle", body, &out)
	return out, err
}

// -----------------------------------------------------------------------------
// Conversations
// -----------------------------------------------------------------------------

func (c *Client) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var out model.Conversation
	if err := c.do(ctx, http.MethodGet, "/chat/api/conversations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	var out struct {
		Conversations []model.Conversation `json:"conversations"`
	}
	err := c.do(ctx, http.MethodGet, "/chat/api/conversations?userId="+url.QueryEscape(userID), nil, &out)
	return out.Conversations, err
}

func (c *Client) FindDirect(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	var out model.Conversation
	path := "/chat/api/conversations/direct?userA=" + url.QueryEscape(userA) + "&userB=" + url.QueryEscape(userB)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		// Absence is an answer here, not a failure.
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateDirect(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	body := map[string]string{"userA": userA, "userB": userB}
	var out model.Conversation
	if err := c.do(ctx, http.MethodPost, "/chat/api/conversations/direct", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateGroup(ctx context.Context, name string, participants []string, adminID string) (*model.Conversation, error) {
	body := map[string]any{"name": name, "participants": participants, "adminId": adminID}
	var out model.Conversation
	if err := c.do(ctx, http.MethodPost, "/chat/api/conversations/group", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSummary(ctx context.Context, conversationID, lastMessage string, at time.Time) error {
	body := map[string]string{
		"lastMessage": lastMessage,
		"at":          at.Format(time.RFC3339Nano),
	}
	return c.do(ctx, http.MethodPut, "/chat/api/conversations/"+url.PathEscape(conversationID)+"/summary", body, nil)
}

func (c *Client) AddParticipant(ctx context.Context, conversationID, userID string) error {
	body := map[string]string{"userId": userID}
	return c.do(ctx, http.MethodPost, "/chat/api/conversations/"+url.PathEscape(conversationID)+"/participants", body, nil)
}

func (c *Client) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	path := "/chat/api/conversations/" + url.PathEscape(conversationID) + "/participants/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) LeaveGroup(ctx context.Context, conversationID, userID string) error {
	body := map[string]string{"userId": userID}
	return c.do(ctx, http.MethodPost, "/chat/api/conversations/"+url.PathEscape(conversationID)+"/leave", body, nil)
}

func (c *Client) TransferAdmin(ctx context.Context, conversationID, byUserID, newAdminID string) error {
	body := map[string]string{"byUserId": byUserID, "newAdminId": newAdminID}
	return c.do(ctx, http.MethodPost, "/chat/api/conversations/"+url.PathEscape(conversationID)+"/transfer-admin", body, nil)
}

func (c *Client) DeleteConversation(ctx context.Context, conversationID, byUserID string) error {
	path := "/chat/api/conversations/" + url.PathEscape(conversationID) + "?userId=" + url.QueryEscape(byUserID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// -----------------------------------------------------------------------------
// Presence
// -----------------------------------------------------------------------------

func (c *Client) GetUser(ctx context.Context, id string) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, http.MethodGet, "/chat/api/users/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Heartbeat(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/chat/api/users/"+url.PathEscape(userID)+"/heartbeat", nil, nil)
}

func (c *Client) SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	body := map[string]any{"userId": userID, "isTyping": isTyping}
	return c.do(ctx, http.MethodPost, "/chat/api/conversations/"+url.PathEscape(conversationID)+"/typing", body, nil)
}

// -----------------------------------------------------------------------------
// Transport
// -----------------------------------------------------------------------------

// statusError carries the HTTP status so callers can branch on it; Unwrap
// maps well-known statuses back onto the store sentinels.
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (e *statusError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusBadRequest:
		return store.ErrInvalid
	case http.StatusForbidden:
		return store.ErrAdminOnly
	case http.StatusConflict:
		return store.ErrAdminCannotLeave
	default:
		return nil
	}
}

func isStatus(err error, status int) bool {
	se, ok := err.(*statusError)
	return ok && se.Status == status
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		c.logger.Debug("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return &statusError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
