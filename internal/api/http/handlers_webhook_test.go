package apihttp

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"mediashare/internal/domain"
	"mediashare/internal/usecase"
)

const (
	allowedChannel = int64(-1001234567890)
	logChannel     = int64(-100500)
	webhookSecret  = "s3cret"
)

type fakeIngest struct {
	mu     sync.Mutex
	events []domain.RawEvent
}

func (f *fakeIngest) Enqueue(ev domain.RawEvent, opts usecase.EnqueueOptions) error {
	if ev.FileName == "" && ev.Kind != domain.MediaPhoto {
		return domain.ErrMalformedEvent
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type fakeChannelList struct {
	channels []domain.Channel
	err      error
}

func (f fakeChannelList) List(ctx context.Context) ([]domain.Channel, error) {
	return f.channels, f.err
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeReplier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeReplier) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return int64(len(f.sent)), nil
}

func (f *fakeReplier) to(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

type webhookFixture struct {
	srv     *Server
	access  *fakeAccess
	ingest  *fakeIngest
	replier *fakeReplier
}

func newWebhookFixture(channels fakeChannelList) *webhookFixture {
	f := &webhookFixture{
		access:  newFakeAccess(),
		ingest:  &fakeIngest{},
		replier: &fakeReplier{},
	}
	f.srv = newTestServer(nil, f.access,
		WithWebhook(f.ingest, channels, f.replier, webhookSecret),
		WithLogChannel(logChannel),
	)
	return f
}

func postUpdate(t *testing.T, h http.Handler, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(webhookSecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	f := newWebhookFixture(fakeChannelList{})

	rec := postUpdate(t, f.srv, "wrong", `{"update_id":1}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	rec = postUpdate(t, f.srv, "", `{"update_id":1}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret status = %d, want 401", rec.Code)
	}
	rec = postUpdate(t, f.srv, webhookSecret, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d, want 400", rec.Code)
	}
}

func TestWebhookEnqueuesAllowedChannelPosts(t *testing.T) {
	f := newWebhookFixture(fakeChannelList{channels: []domain.Channel{{ChannelID: allowedChannel, Name: "Movies"}}})

	rec := postUpdate(t, f.srv, webhookSecret, `{"update_id":1,"channel_post":{
		"message_id":55,"chat":{"id":-1001234567890,"type":"channel"},
		"video":{"file_id":"v1","file_name":"Movie.Title.2020.1080p.mkv","file_size":1048576}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	// Unknown channel, text-only post and a nameless document are dropped.
	postUpdate(t, f.srv, webhookSecret, `{"update_id":2,"channel_post":{
		"message_id":56,"chat":{"id":-100999,"type":"channel"},
		"document":{"file_id":"d1","file_name":"other.pdf"}}}`)
	postUpdate(t, f.srv, webhookSecret, `{"update_id":3,"channel_post":{
		"message_id":57,"chat":{"id":-1001234567890,"type":"channel"},"text":"hello"}}`)
	rec = postUpdate(t, f.srv, webhookSecret, `{"update_id":4,"channel_post":{
		"message_id":58,"chat":{"id":-1001234567890,"type":"channel"},"document":{"file_id":"d2"}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("malformed status = %d, want 200", rec.Code)
	}

	if len(f.ingest.events) != 1 {
		t.Fatalf("enqueued %d events, want 1", len(f.ingest.events))
	}
	ev := f.ingest.events[0]
	if ev.ChannelID != allowedChannel || ev.MessageID != 55 || ev.Kind != domain.MediaVideo || ev.FileSize != 1048576 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWebhookChannelLookupFailureIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(fakeChannelList{err: errors.New("mongo down")})

	rec := postUpdate(t, f.srv, webhookSecret, `{"update_id":1,"channel_post":{
		"message_id":55,"chat":{"id":-1001234567890,"type":"channel"},
		"video":{"file_id":"v1","file_name":"a.mkv"}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(f.ingest.events) != 0 {
		t.Fatalf("enqueued %d events, want 0", len(f.ingest.events))
	}
}

func TestWebhookStartRegistersAndSendsVerifyLink(t *testing.T) {
	f := newWebhookFixture(fakeChannelList{})

	rec := postUpdate(t, f.srv, webhookSecret, `{"update_id":1,"message":{
		"message_id":3,"chat":{"id":500,"type":"private"},
		"from":{"id":500,"is_bot":false,"first_name":"Mia","username":"mia"},"text":"/start"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	replies := f.replier.to(500)
	if len(replies) != 1 {
		t.Fatalf("replies = %v", replies)
	}
	if !strings.Contains(replies[0], "Hi <b>Mia</b>!") || !strings.Contains(replies[0], "https://t.me/testbot?start=token_tok-500") {
		t.Fatalf("unexpected reply %q", replies[0])
	}

	logs := f.replier.to(logChannel)
	if len(logs) != 1 || !strings.Contains(logs[0], "New user added") || !strings.Contains(logs[0], "@mia") {
		t.Fatalf("log channel messages = %v", logs)
	}

	// A second /start from the same user is not reported again.
	postUpdate(t, f.srv, webhookSecret, `{"update_id":2,"message":{
		"message_id":4,"chat":{"id":500,"type":"private"},
		"from":{"id":500,"first_name":"Mia"},"text":"/start"}}`)
	if got := len(f.replier.to(logChannel)); got != 1 {
		t.Fatalf("log channel messages = %d, want 1", got)
	}
}

func TestWebhookAuthorizedUserGetsNoVerifyLink(t *testing.T) {
	f := newWebhookFixture(fakeChannelList{})

	postUpdate(t, f.srv, webhookSecret, `{"update_id":1,"message":{
		"message_id":3,"chat":{"id":42,"type":"private"},
		"from":{"id":42,"first_name":"Ana"},"text":"/start"}}`)
	replies := f.replier.to(testUser)
	if len(replies) != 1 || strings.Contains(replies[0], "Verify") {
		t.Fatalf("replies = %v", replies)
	}
}

func TestWebhookStartTokenRedeems(t *testing.T) {
	f := newWebhookFixture(fakeChannelList{})
	f.access.tokens["abc"] = 8

	postUpdate(t, f.srv, webhookSecret, `{"update_id":1,"message":{
		"message_id":3,"chat":{"id":8,"type":"private"},
		"from":{"id":8,"first_name":"Pending"},"text":"/start token_abc"}}`)

	if len(f.access.redeemed) != 1 || f.access.redeemed[0] != "abc" {
		t.Fatalf("redeemed = %v", f.access.redeemed)
	}
	if !f.access.users[8].Authorized {
		t.Fatal("user not authorized after redemption")
	}
	replies := f.replier.to(8)
	if len(replies) != 1 || !strings.Contains(replies[0], "Authorised") {
		t.Fatalf("replies = %v", replies)
	}
	if logs := f.replier.to(logChannel); len(logs) != 1 || !strings.Contains(logs[0], "Authorized") {
		t.Fatalf("log channel messages = %v", logs)
	}
}

func TestWebhookStartTokenInvalid(t *testing.T) {
	f := newWebhookFixture(fakeChannelList{})
	f.access.tokens["abc"] = 42

	postUpdate(t, f.srv, webhookSecret, `{"update_id":1,"message":{
		"message_id":3,"chat":{"id":8,"type":"private"},
		"from":{"id":8,"first_name":"Pending"},"text":"/start@testbot token_abc"}}`)

	if f.access.users[8].Authorized {
		t.Fatal("token of another user must not authorize")
	}
	replies := f.replier.to(8)
	if len(replies) != 1 || !strings.Contains(replies[0], "Invalid or expired") {
		t.Fatalf("replies = %v", replies)
	}
}

func TestWebhookIgnoresBlockedUsersAndOtherCommands(t *testing.T) {
	f := newWebhookFixture(fakeChannelList{})

	postUpdate(t, f.srv, webhookSecret, `{"update_id":1,"message":{
		"message_id":3,"chat":{"id":7,"type":"private"},
		"from":{"id":7,"first_name":"Blocked"},"text":"/start"}}`)
	postUpdate(t, f.srv, webhookSecret, `{"update_id":2,"message":{
		"message_id":4,"chat":{"id":42,"type":"private"},
		"from":{"id":42,"first_name":"Ana"},"text":"/help"}}`)
	postUpdate(t, f.srv, webhookSecret, `{"update_id":3,"message":{
		"message_id":5,"chat":{"id":-100321,"type":"group"},
		"from":{"id":42,"first_name":"Ana"},"text":"/start"}}`)

	if len(f.replier.sent) != 0 {
		t.Fatalf("unexpected replies %+v", f.replier.sent)
	}
}
