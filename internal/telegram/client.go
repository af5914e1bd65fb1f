package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
	"mediashare/internal/metrics"
)

const (
	defaultAPIURL = "https://api.telegram.org"
	parseModeHTML = "HTML"
	maxRetryAfter = 60 * time.Second
)

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Unwrap maps blocked or vanished peers to domain.ErrRecipientGone.
func (e *APIError) Unwrap() error {
	if e.Code == http.StatusForbidden {
		return domain.ErrRecipientGone
	}
	if e.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Description), "chat not found") {
		return domain.ErrRecipientGone
	}
	return nil
}

func (e *APIError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client talks to the Telegram Bot API over HTTPS.
type Client struct {
	baseURL      string
	http         *http.Client
	logChannelID int64
	attempts     uint
	logger       *slog.Logger
}

type Config struct {
	Token  string
	APIURL string
	Client *http.Client
	// LogChannelID is the scratch chat GetMessages forwards into.
	LogChannelID int64
	Attempts     uint
	Logger       *slog.Logger
}

func NewClient(cfg Config) *Client {
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      apiURL + "/bot" + cfg.Token,
		http:         httpClient,
		logChannelID: cfg.LogChannelID,
		attempts:     attempts,
		logger:       logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               parseModeHTML,
		"disable_web_page_preview": true,
	}, &msg)
	return msg.MessageID, err
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	return c.call(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": parseModeHTML,
	}, nil)
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, button *ports.URLButton) error {
	params := map[string]any{
		"chat_id":    chatID,
		"photo":      photoURL,
		"caption":    caption,
		"parse_mode": parseModeHTML,
	}
	if button != nil {
		params["reply_markup"] = inlineKeyboard{
			InlineKeyboard: [][]inlineButton{{{Text: button.Text, URL: button.URL}}},
		}
	}
	return c.call(ctx, "sendPhoto", params, nil)
}

func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID, messageID int64, opts ports.CopyOptions) (int64, error) {
	params := map[string]any{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	if opts.Caption != "" {
		params["caption"] = opts.Caption
		params["parse_mode"] = parseModeHTML
	}
	if opts.Protect {
		params["protect_content"] = true
	}
	var out struct {
		MessageID int64 `json:"message_id"`
	}
	err := c.call(ctx, "copyMessage", params, &out)
	return out.MessageID, err
}

func (c *Client) ForwardMessage(ctx context.Context, toChatID, fromChatID, messageID int64) (Message, error) {
	var msg Message
	err := c.call(ctx, "forwardMessage", map[string]any{
		"chat_id":              toChatID,
		"from_chat_id":         fromChatID,
		"message_id":           messageID,
		"disable_notification": true,
	}, &msg)
	return msg, err
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

// GetMessages reads messages by id. The Bot API has no history read, so each
// id is forwarded into the log channel, converted, and the forward deleted.
// Ids that cannot be forwarded or carry no media are skipped.
func (c *Client) GetMessages(ctx context.Context, chatID int64, ids []int64) ([]domain.RawEvent, error) {
	if c.logChannelID == 0 {
		return nil, fmt.Errorf("telegram getMessages: %w: log channel not configured", domain.ErrUnsupported)
	}
	events := make([]domain.RawEvent, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return events, err
		}
		fwd, err := c.ForwardMessage(ctx, c.logChannelID, chatID, id)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
				continue
			}
			return events, err
		}
		if ev, ok := fwd.RawEvent(chatID, id); ok {
			events = append(events, ev)
		}
		if err := c.DeleteMessage(ctx, c.logChannelID, fwd.MessageID); err != nil {
			c.logger.Debug("delete forwarded copy failed",
				slog.Int64("messageId", fwd.MessageID),
				slog.String("error", err.Error()),
			)
		}
	}
	return events, nil
}

// SetWebhook registers url as the update endpoint.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := map[string]any{
		"url":             url,
		"allowed_updates": []string{"message", "channel_post"},
	}
	if secret != "" {
		params["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", params, nil)
}

func (c *Client) call(ctx context.Context, method string, params map[string]any, dst any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram %s: encode: %w", method, err)
	}
	err = retry.Do(
		func() error { return c.do(ctx, method, body, dst) },
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(maxRetryAfter),
		retry.DelayType(retryAfterDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.retryable()
			}
			return retry.IsRecoverable(err) && !errors.Is(err, context.Canceled)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("telegram call retry",
				slog.String("method", method),
				slog.Uint64("attempt", uint64(n+1)),
				slog.String("error", err.Error()),
			)
		}),
	)
	status := "ok"
	if err != nil {
		status = "error"
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			status = strconv.Itoa(apiErr.Code)
		}
	}
	metrics.TransportCallsTotal.WithLabelValues(method, status).Inc()
	return err
}

// retryAfterDelay honours the flood-wait hint when the API sends one.
func retryAfterDelay(n uint, err error, config *retry.Config) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	return retry.BackOffDelay(n, err, config)
}

func (c *Client) do(ctx context.Context, method string, body []byte, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 500 {
			return &APIError{Method: method, Code: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return retry.Unrecoverable(fmt.Errorf("telegram %s: decode: %w", method, err))
	}
	if !out.OK {
		code := out.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		apiErr := &APIError{Method: method, Code: code, Description: out.Description}
		if out.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = min(time.Duration(out.Parameters.RetryAfter)*time.Second, maxRetryAfter)
		}
		return apiErr
	}
	if dst == nil || len(out.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(out.Result, dst); err != nil {
		// editMessageText and friends may answer with a bare true.
		if bytes.Equal(out.Result, []byte("true")) {
			return nil
		}
		return retry.Unrecoverable(fmt.Errorf("telegram %s: decode result: %w", method, err))
	}
	return nil
}
