package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/framedrop/framedrop/pkg/config"
)

// Outcome classifies the result of a remote notification call so callers can
// branch on structure instead of matching error strings.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeNotModified means the remote rejected an edit because the
	// content is unchanged; treated as success by the adapter.
	OutcomeNotModified
	// OutcomeNotFound means the referenced message no longer exists.
	OutcomeNotFound
	// OutcomeTransient covers network failures and retriable API errors.
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotModified:
		return "not_modified"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "transient"
	}
}

// Message is the remote handle for one chat message
type Message struct {
	ChatID    string `json:"chat_id"`
	MessageID int64  `json:"message_id"`
}

// BotClient is the chat API surface the adapter depends on
type BotClient interface {
	SendMessage(ctx context.Context, text string) (Message, error)
	EditMessage(ctx context.Context, msg Message, text string) (Outcome, error)
	DeleteMessage(ctx context.Context, msg Message) error
}

// TelegramClient talks to a Telegram-bot-style HTTP API
type TelegramClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	chatID     string
}

// NewTelegramClient creates a bot API client from configuration
func NewTelegramClient(cfg *config.NotifyConfig) *TelegramClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		token:      cfg.BotToken,
		chatID:     cfg.ChannelID,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

// SendMessage posts a new message to the configured channel
func (c *TelegramClient) SendMessage(ctx context.Context, text string) (Message, error) {
	resp, err := c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": c.chatID,
		"text":    text,
	})
	if err != nil {
		return Message{}, err
	}
	if !resp.OK {
		return Message{}, fmt.Errorf("sendMessage failed: %s", resp.Description)
	}

	var sent sentMessage
	if err := json.Unmarshal(resp.Result, &sent); err != nil {
		return Message{}, fmt.Errorf("failed to decode sendMessage result: %w", err)
	}
	return Message{ChatID: c.chatID, MessageID: sent.MessageID}, nil
}

// EditMessage edits an existing message in place. The remote's string-typed
// rejections are classified into Outcomes here, once, so the adapter never
// sees them.
func (c *TelegramClient) EditMessage(ctx context.Context, msg Message, text string) (Outcome, error) {
	resp, err := c.call(ctx, "editMessageText", map[string]interface{}{
		"chat_id":    msg.ChatID,
		"message_id": msg.MessageID,
		"text":       text,
	})
	if err != nil {
		return OutcomeTransient, err
	}
	if resp.OK {
		return OutcomeOK, nil
	}
	return classify(resp), fmt.Errorf("editMessageText failed: %s", resp.Description)
}

// DeleteMessage removes a message; an already-deleted message is success
func (c *TelegramClient) DeleteMessage(ctx context.Context, msg Message) error {
	resp, err := c.call(ctx, "deleteMessage", map[string]interface{}{
		"chat_id":    msg.ChatID,
		"message_id": msg.MessageID,
	})
	if err != nil {
		return err
	}
	if !resp.OK && classify(resp) != OutcomeNotFound {
		return fmt.Errorf("deleteMessage failed: %s", resp.Description)
	}
	return nil
}

func (c *TelegramClient) call(ctx context.Context, method string, params map[string]interface{}) (*apiResponse, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer httpResp.Body.Close()

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return &resp, nil
}

func classify(resp *apiResponse) Outcome {
	desc := strings.ToLower(resp.Description)
	switch {
	case strings.Contains(desc, "message is not modified"):
		return OutcomeNotModified
	case resp.ErrorCode == 404 || strings.Contains(desc, "not found"):
		return OutcomeNotFound
	default:
		return OutcomeTransient
	}
}
