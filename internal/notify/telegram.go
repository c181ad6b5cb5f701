package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram publishes reports to a Telegram chat via the Bot API. Reports are
// sent once and then edited in place on subsequent publishes.
type Telegram struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

// NewTelegram creates a Telegram notifier. Pass nil logger to use the default.
func NewTelegram(token, chatID string, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		token:   token,
		chatID:  chatID,
		apiBase: defaultAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send posts a new message and returns its message id.
func (t *Telegram) Send(ctx context.Context, text string) (string, error) {
	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	}
	resp, err := t.call(ctx, "sendMessage", payload)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(resp.Result.MessageID, 10), nil
}

// Edit rewrites an existing message in place.
func (t *Telegram) Edit(ctx context.Context, id, text string) error {
	msgID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", id, err)
	}
	payload := map[string]any{
		"chat_id":    t.chatID,
		"message_id": msgID,
		"text":       text,
	}
	_, err = t.call(ctx, "editMessageText", payload)
	return err
}

// Log posts a plain message, swallowing any error.
func (t *Telegram) Log(ctx context.Context, text string) {
	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	}
	if _, err := t.call(ctx, "sendMessage", payload); err != nil {
		t.logger.Warn("notifier log failed", "error", err)
	}
}

func (t *Telegram) call(ctx context.Context, method string, payload map[string]any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer httpResp.Body.Close()

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("%s: telegram API error: %s", method, resp.Description)
	}
	return &resp, nil
}
