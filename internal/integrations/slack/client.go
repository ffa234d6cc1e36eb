package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"diplomacy-reset/internal/domain"
)

const (
	defaultBaseURL  = "https://slack.com/api"
	defaultMaxPages = 1000

	// conversationTypes is passed to conversations.list so every kind of
	// conversation is enumerated, DMs included.
	conversationTypes = "public_channel,private_channel,im,mpim"
)

// envelope is the common wrapper around every API response.
type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type pageMetadata struct {
	NextCursor string `json:"next_cursor"`
}

// conversationListResponse is the minimal response shape for conversations.list.
type conversationListResponse struct {
	Channels []struct {
		ID string `json:"id"`
	} `json:"channels"`
	ResponseMetadata pageMetadata `json:"response_metadata"`
}

// historyResponse is the minimal response shape for conversations.history.
type historyResponse struct {
	Messages []struct {
		TS string `json:"ts"`
	} `json:"messages"`
	ResponseMetadata pageMetadata `json:"response_metadata"`
}

// userListResponse is the minimal response shape for users.list.
type userListResponse struct {
	Members []struct {
		ID string `json:"id"`
	} `json:"members"`
	ResponseMetadata pageMetadata `json:"response_metadata"`
}

// profileUpdate is the fixed anonymizing payload for users.profile.set.
type profileUpdate struct {
	Profile profileFields `json:"profile"`
}

type profileFields struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`
}

var anonymousProfile = profileUpdate{
	Profile: profileFields{
		FirstName:   "Anonymous",
		LastName:    "User",
		DisplayName: "Anonymous",
	},
}

// Client is a focused Slack Web API client covering the calls a workspace
// reset needs. Every call is attempted exactly once; there are no retries and
// no backoff, failures surface as a single terminal error per call.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxPages   int
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMaxPages caps how many pages one listing crawl may fetch before it
// fails with a PaginationError.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		c.maxPages = n
	}
}

func NewClient(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("slack: token must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxPages:   defaultMaxPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxPages <= 0 {
		c.maxPages = defaultMaxPages
	}
	return c, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// ---------------------------------------------------------------------------
// Listing operations
// ---------------------------------------------------------------------------

// ListConversations enumerates every conversation in the workspace across all
// pages, in server-returned order.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := c.paginate(ctx, "conversations.list", func(ctx context.Context, cursor string) (string, error) {
		params := url.Values{"types": {conversationTypes}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var page conversationListResponse
		if err := c.call(ctx, http.MethodGet, "/conversations.list", params, "Failed to get list of conversations", &page); err != nil {
			return "", err
		}
		for _, ch := range page.Channels {
			if ch.ID == "" {
				continue
			}
			conversations = append(conversations, domain.Conversation{ID: ch.ID})
		}
		return page.ResponseMetadata.NextCursor, nil
	})
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

// ListHistory enumerates every message timestamp in one conversation across
// all pages, in server-returned order.
func (c *Client) ListHistory(ctx context.Context, channelID string) ([]domain.MessageRef, error) {
	var refs []domain.MessageRef
	err := c.paginate(ctx, "conversations.history", func(ctx context.Context, cursor string) (string, error) {
		params := url.Values{"channel": {channelID}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var page historyResponse
		if err := c.call(ctx, http.MethodPost, "/conversations.history", params, "Failed to get history for "+channelID, &page); err != nil {
			return "", err
		}
		for _, m := range page.Messages {
			if m.TS == "" {
				continue
			}
			refs = append(refs, domain.MessageRef{Channel: channelID, Timestamp: m.TS})
		}
		return page.ResponseMetadata.NextCursor, nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// ListUsers enumerates every member of the workspace across all pages, in
// server-returned order.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := c.paginate(ctx, "users.list", func(ctx context.Context, cursor string) (string, error) {
		params := url.Values{}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var page userListResponse
		if err := c.call(ctx, http.MethodPost, "/users.list", params, "Failed to get list of users", &page); err != nil {
			return "", err
		}
		for _, m := range page.Members {
			if m.ID == "" {
				continue
			}
			users = append(users, domain.User{ID: m.ID})
		}
		return page.ResponseMetadata.NextCursor, nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ---------------------------------------------------------------------------
// Mutating operations
// ---------------------------------------------------------------------------

func (c *Client) CloseConversation(ctx context.Context, id string) error {
	params := url.Values{"channel": {id}}
	return c.call(ctx, http.MethodPost, "/conversations.close", params, "Failed to close conversation "+id, nil)
}

func (c *Client) LeaveConversation(ctx context.Context, id string) error {
	params := url.Values{"channel": {id}}
	return c.call(ctx, http.MethodPost, "/conversations.leave", params, "Failed to leave conversation "+id, nil)
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	params := url.Values{"channel": {id}}
	return c.call(ctx, http.MethodPost, "/conversations.delete", params, "Failed to delete conversation "+id, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, ts string) error {
	params := url.Values{"channel": {channelID}, "ts": {ts}}
	return c.call(ctx, http.MethodPost, "/chat.delete", params, fmt.Sprintf("Failed to delete message in %s at %s", channelID, ts), nil)
}

// SetUserProfile overwrites one user's profile names with the fixed
// anonymizing values. Unlike the query-token calls this endpoint wants a
// bearer header plus the acting user in X-Slack-User.
func (c *Client) SetUserProfile(ctx context.Context, userID string) error {
	body, err := json.Marshal(anonymousProfile)
	if err != nil {
		return fmt.Errorf("slack: marshal profile update: %w", err)
	}

	u := c.baseURL + "/users.profile.set"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Slack-User", userID)

	return c.do(req, "Failed to update user "+userID, nil)
}

// ---------------------------------------------------------------------------
// Plumbing
// ---------------------------------------------------------------------------

// paginate drives one cursor chain. page is called with the current cursor
// (empty on the first call) and returns the next one; an empty next cursor
// terminates the crawl. Pages are fetched strictly in chain order. A chain
// longer than maxPages fails with a PaginationError so a misbehaving server
// cannot make the crawl loop forever.
func (c *Client) paginate(ctx context.Context, endpoint string, page func(ctx context.Context, cursor string) (string, error)) error {
	cursor := ""
	for n := 0; n < c.maxPages; n++ {
		next, err := page(ctx, cursor)
		if err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
	return &PaginationError{Endpoint: endpoint, Pages: c.maxPages}
}

// call issues one query-token API call. The workspace token is merged into
// the query params. actionContext describes the attempted action and ends up
// verbatim in any APIError.
func (c *Client) call(ctx context.Context, method, path string, params url.Values, actionContext string, out any) error {
	params.Set("token", c.token)
	u := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	return c.do(req, actionContext, out)
}

// do executes the request and interprets the response envelope. A not-ok
// envelope becomes an APIError; everything that prevents reading a well-formed
// envelope (connection failure, non-2xx status, malformed body) surfaces as a
// transport-kind error instead.
func (c *Client) do(req *http.Request, actionContext string, out any) error {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("slack: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        req.URL.String(),
			Body:       string(buf),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("slack: read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("slack: decode response envelope: %w", err)
	}
	if !env.OK {
		return &APIError{Code: env.Error, Context: actionContext}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("slack: decode response body: %w", err)
		}
	}
	return nil
}
