package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"mediashare/internal/domain"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAccess() (Access, *fakeTokenRepo, *fakeUserRepo, *fakeTransport, *fakeMediaRepo) {
	now := testNow
	tokens := &fakeTokenRepo{clock: func() time.Time { return now }}
	users := newFakeUserRepo(
		domain.User{UserID: 7, FirstName: "Ann", Authorized: true},
		domain.User{UserID: 8, FirstName: "Bob"},
		domain.User{UserID: 9, FirstName: "Eve", Authorized: true, Blocked: true},
	)
	transport := &fakeTransport{}
	media := &fakeMediaRepo{}
	ids := 0
	a := Access{
		Tokens:         tokens,
		Users:          users,
		Media:          media,
		Transport:      transport,
		OwnerID:        1,
		MaxFilesPerDay: 2,
		BotUsername:    "@share_bot",
		Now:            func() time.Time { return now },
		NewID: func() string {
			ids++
			return []string{"tok-a", "tok-b", "tok-c"}[ids-1]
		},
	}
	return a, tokens, users, transport, media
}

func TestGenerateTokenReusesActiveToken(t *testing.T) {
	a, tokens, _, _, _ := newTestAccess()
	ctx := context.Background()

	first, err := a.GenerateToken(ctx, 8)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	second, err := a.GenerateToken(ctx, 8)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if first != second || len(tokens.tokens) != 1 {
		t.Errorf("got %q and %q with %d stored tokens", first, second, len(tokens.tokens))
	}
	if got := tokens.tokens[0].Expiry; !got.Equal(testNow.Add(DefaultTokenTTL)) {
		t.Errorf("expiry: got %v", got)
	}
}

func TestRedeemAuthorizesOwnerOfToken(t *testing.T) {
	a, tokens, users, _, _ := newTestAccess()
	ctx := context.Background()
	tokens.tokens = []domain.AccessToken{
		{TokenID: "live", UserID: 8, Expiry: testNow.Add(time.Hour)},
		{TokenID: "old", UserID: 8, Expiry: testNow.Add(-time.Hour)},
	}

	if err := a.Redeem(ctx, "live", 7); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("other user: got %v, want ErrInvalidToken", err)
	}
	if err := a.Redeem(ctx, "old", 8); !errors.Is(err, domain.ErrExpired) {
		t.Errorf("expired: got %v, want ErrExpired", err)
	}
	if err := a.Redeem(ctx, "nope", 8); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("unknown: got %v, want ErrInvalidToken", err)
	}
	if err := a.Redeem(ctx, "live", 8); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	u, _ := users.Get(ctx, 8)
	if !u.Authorized {
		t.Error("user must be authorized after redeem")
	}
	if err := a.Redeem(ctx, "live", 8); err != nil {
		t.Errorf("token must stay valid until expiry: %v", err)
	}

	valid, err := a.IsValid(ctx, "old", 8)
	if err != nil || valid {
		t.Errorf("IsValid(old): got %v, %v", valid, err)
	}
}

func TestVerifyLink(t *testing.T) {
	a, _, _, _, _ := newTestAccess()
	link, err := a.VerifyLink(context.Background(), 8)
	if err != nil {
		t.Fatalf("VerifyLink: %v", err)
	}
	if link != "https://t.me/share_bot?start=token_tok-a" {
		t.Errorf("got %q", link)
	}
}

func TestAuthenticate(t *testing.T) {
	a, _, _, _, _ := newTestAccess()
	ctx := context.Background()

	cases := []struct {
		header string
		want   int64
		err    error
	}{
		{"Bearer 7", 7, nil},
		{"bearer  7 ", 7, nil},
		{"Bearer 1", 1, nil},
		{"Bearer 8", 0, domain.ErrForbidden},
		{"Bearer 9", 0, domain.ErrForbidden},
		{"Bearer 404", 0, domain.ErrForbidden},
		{"Bearer abc", 0, domain.ErrInvalidToken},
		{"Basic 7", 0, domain.ErrInvalidToken},
		{"", 0, domain.ErrInvalidToken},
	}
	for _, c := range cases {
		got, err := a.Authenticate(ctx, c.header)
		if c.err != nil {
			if !errors.Is(err, c.err) {
				t.Errorf("Authenticate(%q): got %v, want %v", c.header, err, c.err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("Authenticate(%q): got %d, %v", c.header, got, err)
		}
	}
	if !a.IsAdmin(1) || a.IsAdmin(7) {
		t.Error("only the owner is admin")
	}
}

func TestSendFileCopiesProtectedAndEnforcesLimit(t *testing.T) {
	a, _, users, transport, media := newTestAccess()
	ctx := context.Background()
	media.Upsert(ctx, domain.MediaRecord{ChannelID: -100, MessageID: 5, FileName: "movie.mkv", Kind: domain.MediaVideo})

	for range 2 {
		if err := a.SendFile(ctx, 7, "m1"); err != nil {
			t.Fatalf("SendFile: %v", err)
		}
	}
	if err := a.SendFile(ctx, 7, "m1"); !errors.Is(err, domain.ErrLimitReached) {
		t.Errorf("third send: got %v, want ErrLimitReached", err)
	}
	if len(transport.copies) != 2 {
		t.Fatalf("copies: got %d, want 2", len(transport.copies))
	}
	c := transport.copies[0]
	if c.To != 7 || c.From != -100 || c.MessageID != 5 || !c.Opts.Protect || c.Opts.Caption != "<b>movie.mkv</b>" {
		t.Errorf("unexpected copy %+v", c)
	}

	a.Now = func() time.Time { return testNow.Add(24 * time.Hour) }
	if err := a.SendFile(ctx, 7, "m1"); err != nil {
		t.Errorf("limit must reset the next day: %v", err)
	}
	u, _ := users.Get(ctx, 7)
	if u.FileCount != 1 {
		t.Errorf("FileCount: got %d, want 1", u.FileCount)
	}
}

func TestSendFileUnknownFile(t *testing.T) {
	a, _, _, _, _ := newTestAccess()
	if err := a.SendFile(context.Background(), 7, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSendFileEscapesCaption(t *testing.T) {
	a, _, _, transport, media := newTestAccess()
	ctx := context.Background()
	media.Upsert(ctx, domain.MediaRecord{ChannelID: -100, MessageID: 6, FileName: "Fast & <Furious>.mkv", Kind: domain.MediaVideo})

	if err := a.SendFile(ctx, 7, "m1"); err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	if got := transport.copies[0].Opts.Caption; got != "<b>Fast &amp; &lt;Furious&gt;.mkv</b>" {
		t.Errorf("caption: got %q", got)
	}
}
