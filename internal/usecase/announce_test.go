package usecase

import (
	"context"
	"errors"
	"testing"

	"mediashare/internal/domain"
)

func TestAnnounceInfoPostsPosterWithTrailer(t *testing.T) {
	transport := &fakeTransport{}
	a := &Announcer{Transport: transport, ChannelID: -200, Enabled: true}

	info := movieInfo()
	info.TrailerURL = "https://www.youtube.com/watch?v=x"
	if err := a.AnnounceInfo(context.Background(), info); err != nil {
		t.Fatalf("AnnounceInfo: %v", err)
	}
	if len(transport.photos) != 1 {
		t.Fatalf("photos: got %d", len(transport.photos))
	}
	p := transport.photos[0]
	if p.ChatID != -200 || p.PhotoURL != domain.PosterBaseURL+"/poster.jpg" {
		t.Errorf("unexpected photo %+v", p)
	}
	if p.Button == nil || p.Button.URL != info.TrailerURL || p.Button.Text != trailerButtonText {
		t.Errorf("button: got %+v", p.Button)
	}
	if p.Caption != DescribeInfo(info).Format() {
		t.Errorf("caption mismatch:\n%s", p.Caption)
	}
}

func TestAnnounceInfoSkipsWhenDisabledOrPosterless(t *testing.T) {
	transport := &fakeTransport{}
	disabled := &Announcer{Transport: transport}
	if err := disabled.AnnounceInfo(context.Background(), movieInfo()); err != nil {
		t.Fatalf("AnnounceInfo: %v", err)
	}
	enabled := &Announcer{Transport: transport, Enabled: true}
	info := movieInfo()
	info.PosterPath = ""
	if err := enabled.AnnounceInfo(context.Background(), info); err != nil {
		t.Fatalf("AnnounceInfo: %v", err)
	}
	if len(transport.photos) != 0 {
		t.Errorf("photos: got %d, want 0", len(transport.photos))
	}
}

func TestSendTitle(t *testing.T) {
	titles := &fakeTitleRepo{}
	transport := &fakeTransport{}
	a := &Announcer{Titles: titles, Transport: transport, Enabled: true}
	ctx := context.Background()
	titles.Upsert(ctx, domain.TitleRecord{TMDBID: 1, TMDBType: domain.TitleMovie, Title: "With", PosterPath: "/w.jpg"})
	titles.Upsert(ctx, domain.TitleRecord{TMDBID: 2, TMDBType: domain.TitleMovie, Title: "Without"})

	if err := a.SendTitle(ctx, 1, domain.TitleMovie); err != nil {
		t.Fatalf("SendTitle: %v", err)
	}
	if err := a.SendTitle(ctx, 2, domain.TitleMovie); !errors.Is(err, ErrAnnounceDisabled) {
		t.Errorf("posterless: got %v", err)
	}
	if err := a.SendTitle(ctx, 3, domain.TitleMovie); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing: got %v", err)
	}
	if len(transport.photos) != 1 {
		t.Errorf("photos: got %d, want 1", len(transport.photos))
	}
}

func TestSendAllRestartsAfterTitle(t *testing.T) {
	titles := &fakeTitleRepo{}
	transport := &fakeTransport{}
	a := &Announcer{Titles: titles, Transport: transport, Enabled: true}
	ctx := context.Background()
	for i := int64(1); i <= 4; i++ {
		poster := "/p.jpg"
		if i == 3 {
			poster = ""
		}
		titles.Upsert(ctx, domain.TitleRecord{TMDBID: i, TMDBType: domain.TitleMovie, Title: "T", PosterPath: poster})
	}

	sent, err := a.SendAll(ctx, &domain.TitleLink{TMDBID: 1, TMDBType: domain.TitleMovie})
	if err != nil {
		t.Fatalf("SendAll: %v", err)
	}
	if sent != 2 {
		t.Errorf("sent: got %d, want 2", sent)
	}

	a.Enabled = false
	if _, err := a.SendAll(ctx, nil); !errors.Is(err, ErrAnnounceDisabled) {
		t.Errorf("disabled: got %v", err)
	}
}
