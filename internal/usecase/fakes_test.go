package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
)

type fakeMediaRepo struct {
	mu        sync.Mutex
	records   []domain.MediaRecord
	upserts   int
	upsertErr error
	nextID    int
}

func (r *fakeMediaRepo) index(channelID, messageID int64) int {
	for i, rec := range r.records {
		if rec.ChannelID == channelID && rec.MessageID == messageID {
			return i
		}
	}
	return -1
}

func (r *fakeMediaRepo) Upsert(ctx context.Context, rec domain.MediaRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.upsertErr != nil {
		return false, r.upsertErr
	}
	if i := r.index(rec.ChannelID, rec.MessageID); i >= 0 {
		existing := r.records[i]
		existing.FileName = rec.FileName
		existing.FileSize = rec.FileSize
		existing.Kind = rec.Kind
		r.records[i] = existing
		return false, nil
	}
	r.nextID++
	rec.ID = fmt.Sprintf("m%d", r.nextID)
	r.records = append(r.records, rec)
	return true, nil
}

func (r *fakeMediaRepo) Get(ctx context.Context, id string) (domain.MediaRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.MediaRecord{}, domain.ErrNotFound
}

func (r *fakeMediaRepo) GetByMessage(ctx context.Context, channelID, messageID int64) (domain.MediaRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.index(channelID, messageID); i >= 0 {
		return r.records[i], nil
	}
	return domain.MediaRecord{}, domain.ErrNotFound
}

func (r *fakeMediaRepo) FindByFileName(ctx context.Context, fileName string) (domain.MediaRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.FileName == fileName {
			return rec, nil
		}
	}
	return domain.MediaRecord{}, domain.ErrNotFound
}

func (r *fakeMediaRepo) SetTitle(ctx context.Context, channelID, messageID int64, link domain.TitleLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(channelID, messageID)
	if i < 0 {
		return domain.ErrNotFound
	}
	r.records[i].TMDBID = link.TMDBID
	r.records[i].TMDBType = link.TMDBType
	r.records[i].SeasonNumber = link.SeasonNumber
	return nil
}

func (r *fakeMediaRepo) LinkFiles(ctx context.Context, ids []string, link domain.TitleLink) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.records {
		for _, id := range ids {
			if r.records[i].ID == id {
				r.records[i].TMDBID = link.TMDBID
				r.records[i].TMDBType = link.TMDBType
				r.records[i].SeasonNumber = link.SeasonNumber
				n++
			}
		}
	}
	return n, nil
}

func (r *fakeMediaRepo) SetPoster(ctx context.Context, id, posterURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == id {
			r.records[i].PosterURL = posterURL
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeMediaRepo) UnlinkTitle(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.records {
		if r.records[i].TMDBID == tmdbID && r.records[i].TMDBType == tmdbType {
			r.records[i].TMDBID = 0
			r.records[i].TMDBType = ""
			r.records[i].SeasonNumber = 0
			n++
		}
	}
	return n, nil
}

func (r *fakeMediaRepo) RebindByFileName(ctx context.Context, fileName string, channelID, messageID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].FileName == fileName {
			r.records[i].ChannelID = channelID
			r.records[i].MessageID = messageID
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMediaRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeMediaRepo) DeleteByMessage(ctx context.Context, channelID, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(channelID, messageID)
	if i < 0 {
		return domain.ErrNotFound
	}
	r.records = append(r.records[:i], r.records[i+1:]...)
	return nil
}

func (r *fakeMediaRepo) DeleteRange(ctx context.Context, channelID, fromID, toID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.records[:0]
	var n int64
	for _, rec := range r.records {
		if rec.ChannelID == channelID && rec.MessageID >= fromID && rec.MessageID <= toID {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return n, nil
}

func (r *fakeMediaRepo) ListTitleFiles(ctx context.Context, q domain.TitleFilesQuery) ([]domain.MediaRecord, int64, error) {
	r.mu.Lock()
	var matched []domain.MediaRecord
	for _, rec := range r.records {
		if rec.TMDBID != q.TMDBID || rec.TMDBType != q.TMDBType {
			continue
		}
		if q.SeasonNumber > 0 && rec.SeasonNumber != q.SeasonNumber {
			continue
		}
		if strings.HasSuffix(strings.ToLower(rec.FileName), ".srt") {
			continue
		}
		matched = append(matched, rec)
	}
	r.mu.Unlock()
	sort.Slice(matched, func(i, j int) bool { return matched[i].FileName < matched[j].FileName })
	return pageOf(matched, q.Pagination), int64(len(matched)), nil
}

func (r *fakeMediaRepo) filtered(filter domain.FileFilter, text string) []domain.MediaRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.MediaRecord
	for _, rec := range r.records {
		if contains(filter.ExcludeChannels, rec.ChannelID) {
			continue
		}
		if filter.ChannelID != 0 && rec.ChannelID != filter.ChannelID {
			continue
		}
		if filter.Unlinked && rec.Linked() {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(rec.FileName), strings.ToLower(text)) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (r *fakeMediaRepo) List(ctx context.Context, filter domain.FileFilter, ascending bool, p domain.Pagination) ([]domain.MediaRecord, int64, error) {
	all := r.filtered(filter, "")
	if !ascending {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	return pageOf(all, p), int64(len(all)), nil
}

func (r *fakeMediaRepo) Search(ctx context.Context, text string, filter domain.FileFilter, p domain.Pagination) ([]domain.MediaRecord, int64, error) {
	if text == "" {
		return r.List(ctx, filter, false, p)
	}
	all := r.filtered(filter, text)
	return pageOf(all, p), int64(len(all)), nil
}

func (r *fakeMediaRepo) TotalSize(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, rec := range r.records {
		total += rec.FileSize
	}
	return total, nil
}

func (r *fakeMediaRepo) CountByChannel(ctx context.Context) ([]domain.ChannelCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[int64]int64{}
	var order []int64
	for _, rec := range r.records {
		if _, ok := counts[rec.ChannelID]; !ok {
			order = append(order, rec.ChannelID)
		}
		counts[rec.ChannelID]++
	}
	out := make([]domain.ChannelCount, 0, len(order))
	for _, id := range order {
		out = append(out, domain.ChannelCount{ChannelID: id, Count: counts[id]})
	}
	return out, nil
}

func (r *fakeMediaRepo) snapshot() []domain.MediaRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.MediaRecord(nil), r.records...)
}

type fakeTitleRepo struct {
	mu      sync.Mutex
	titles  []domain.TitleRecord
	upserts int
	listed  int
	nextID  int
}

func (r *fakeTitleRepo) find(tmdbID int64, tmdbType domain.TitleType) int {
	for i, t := range r.titles {
		if t.TMDBID == tmdbID && t.TMDBType == tmdbType {
			return i
		}
	}
	return -1
}

func (r *fakeTitleRepo) Get(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) (domain.TitleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.find(tmdbID, tmdbType); i >= 0 {
		return r.titles[i], nil
	}
	return domain.TitleRecord{}, domain.ErrNotFound
}

func (r *fakeTitleRepo) Upsert(ctx context.Context, t domain.TitleRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if i := r.find(t.TMDBID, t.TMDBType); i >= 0 {
		t.ID = r.titles[i].ID
		r.titles[i] = t
		return false, nil
	}
	r.nextID++
	t.ID = fmt.Sprintf("t%03d", r.nextID)
	r.titles = append(r.titles, t)
	return true, nil
}

func (r *fakeTitleRepo) Update(ctx context.Context, tmdbID int64, tmdbType domain.TitleType, patch domain.TitlePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(tmdbID, tmdbType)
	if i < 0 {
		return domain.ErrNotFound
	}
	t := &r.titles[i]
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Year != nil {
		t.Year = *patch.Year
	}
	if patch.Rating != nil {
		t.Rating = *patch.Rating
	}
	if patch.Plot != nil {
		t.Plot = *patch.Plot
	}
	if patch.PosterPath != nil {
		t.PosterPath = *patch.PosterPath
	}
	if patch.TrailerURL != nil {
		t.TrailerURL = *patch.TrailerURL
	}
	if patch.IMDBID != nil {
		t.IMDBID = *patch.IMDBID
	}
	return nil
}

func (r *fakeTitleRepo) Delete(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(tmdbID, tmdbType)
	if i < 0 {
		return domain.ErrNotFound
	}
	r.titles = append(r.titles[:i], r.titles[i+1:]...)
	return nil
}

func (r *fakeTitleRepo) List(ctx context.Context, q domain.TitleQuery) ([]domain.TitleRecord, int64, error) {
	r.mu.Lock()
	r.listed++
	var out []domain.TitleRecord
	for _, t := range r.titles {
		if q.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(q.Search)) {
			continue
		}
		if q.Category != "" && t.TMDBType != q.Category {
			continue
		}
		if q.Genre != "" && !contains(t.Genres, q.Genre) {
			continue
		}
		out = append(out, t)
	}
	r.mu.Unlock()
	return pageOf(out, q.Pagination), int64(len(out)), nil
}

func (r *fakeTitleRepo) Details(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) (domain.TitleDetails, error) {
	t, err := r.Get(ctx, tmdbID, tmdbType)
	if err != nil {
		return domain.TitleDetails{}, err
	}
	names := func(ids []string) []domain.Entity {
		out := make([]domain.Entity, 0, len(ids))
		for _, id := range ids {
			out = append(out, domain.Entity{ID: id, Name: "name-" + id})
		}
		return out
	}
	return domain.TitleDetails{
		Title:     t,
		Genres:    names(t.Genres),
		Cast:      names(t.Cast),
		Directors: names(t.Directors),
		Languages: names(t.Languages),
	}, nil
}

func (r *fakeTitleRepo) Each(ctx context.Context, afterID string, fn func(domain.TitleRecord) error) error {
	r.mu.Lock()
	titles := append([]domain.TitleRecord(nil), r.titles...)
	r.mu.Unlock()
	for _, t := range titles {
		if afterID != "" && t.ID <= afterID {
			continue
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeTitleRepo) ListMissingRating(ctx context.Context) ([]domain.TitleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TitleRecord
	for _, t := range r.titles {
		if t.Rating == 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTitleRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.titles)
}

type fakeEntityRepo struct {
	mu       sync.Mutex
	entities map[domain.EntityCategory][]domain.Entity
	inserts  int
}

func (r *fakeEntityRepo) FindByName(ctx context.Context, category domain.EntityCategory, name string) (domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entities[category] {
		if e.Name == name {
			return e, nil
		}
	}
	return domain.Entity{}, domain.ErrNotFound
}

func (r *fakeEntityRepo) Insert(ctx context.Context, category domain.EntityCategory, e domain.Entity) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entities == nil {
		r.entities = map[domain.EntityCategory][]domain.Entity{}
	}
	r.inserts++
	e.ID = fmt.Sprintf("%s-%d", category, r.inserts)
	r.entities[category] = append(r.entities[category], e)
	return e.ID, nil
}

func (r *fakeEntityRepo) Get(ctx context.Context, category domain.EntityCategory, id string) (domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entities[category] {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.Entity{}, domain.ErrNotFound
}

func (r *fakeEntityRepo) GetMany(ctx context.Context, category domain.EntityCategory, ids []string) ([]domain.Entity, error) {
	var out []domain.Entity
	for _, id := range ids {
		if e, err := r.Get(ctx, category, id); err == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeTokenRepo struct {
	tokens []domain.AccessToken
	clock  func() time.Time
}

func (r *fakeTokenRepo) Insert(ctx context.Context, t domain.AccessToken) error {
	r.tokens = append(r.tokens, t)
	return nil
}

func (r *fakeTokenRepo) Get(ctx context.Context, tokenID string) (domain.AccessToken, error) {
	for _, t := range r.tokens {
		if t.TokenID == tokenID {
			return t, nil
		}
	}
	return domain.AccessToken{}, domain.ErrNotFound
}

func (r *fakeTokenRepo) FindActive(ctx context.Context, userID int64) (domain.AccessToken, error) {
	for _, t := range r.tokens {
		if t.ValidFor(userID, r.clock()) {
			return t, nil
		}
	}
	return domain.AccessToken{}, domain.ErrNotFound
}

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[int64]domain.User
	order   []int64
	deleted []int64
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[int64]domain.User{}}
	for _, u := range users {
		r.users[u.UserID] = u
		r.order = append(r.order, u.UserID)
	}
	return r
}

func (r *fakeUserRepo) Register(ctx context.Context, u domain.User) (domain.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[u.UserID]; ok {
		return existing, false, nil
	}
	r.users[u.UserID] = u
	r.order = append(r.order, u.UserID)
	return u, true, nil
}

func (r *fakeUserRepo) Get(ctx context.Context, userID int64) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) update(userID int64, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&u)
	r.users[userID] = u
	return nil
}

func (r *fakeUserRepo) Authorize(ctx context.Context, userID int64) error {
	return r.update(userID, func(u *domain.User) { u.Authorized = true })
}

func (r *fakeUserRepo) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	return r.update(userID, func(u *domain.User) { u.Blocked = blocked })
}

func (r *fakeUserRepo) Delete(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
	r.deleted = append(r.deleted, userID)
	return nil
}

func (r *fakeUserRepo) ListIDs(ctx context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, id := range r.order {
		if _, ok := r.users[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) IncrementFileCount(ctx context.Context, userID int64, day string) (int, error) {
	var n int
	err := r.update(userID, func(u *domain.User) {
		if u.CountDay != day {
			u.CountDay = day
			u.FileCount = 0
		}
		u.FileCount++
		n = u.FileCount
	})
	return n, err
}

func (r *fakeUserRepo) Count(ctx context.Context) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var authorized int64
	for _, u := range r.users {
		if u.Authorized {
			authorized++
		}
	}
	return int64(len(r.users)), authorized, nil
}

type fakeChannelRepo struct {
	channels []domain.Channel
}

func (r *fakeChannelRepo) List(ctx context.Context) ([]domain.Channel, error) {
	return r.channels, nil
}

func (r *fakeChannelRepo) Add(ctx context.Context, c domain.Channel) error {
	r.channels = append(r.channels, c)
	return nil
}

func (r *fakeChannelRepo) Remove(ctx context.Context, channelID int64) error {
	for i, c := range r.channels {
		if c.ChannelID == channelID {
			r.channels = append(r.channels[:i], r.channels[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type sentMessage struct {
	ChatID    int64
	MessageID int64
	Text      string
}

type copiedMessage struct {
	To, From, MessageID int64
	Opts                ports.CopyOptions
}

type sentPhoto struct {
	ChatID   int64
	PhotoURL string
	Caption  string
	Button   *ports.URLButton
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []sentMessage
	edits    []sentMessage
	copies   []copiedMessage
	photos   []sentPhoto
	messages map[int64][]domain.RawEvent
	copyErr  map[int64]error
	nextID   int64
}

func (t *fakeTransport) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.sent = append(t.sent, sentMessage{ChatID: chatID, MessageID: t.nextID, Text: text})
	return t.nextID, nil
}

func (t *fakeTransport) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.edits = append(t.edits, sentMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (t *fakeTransport) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, button *ports.URLButton) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.photos = append(t.photos, sentPhoto{ChatID: chatID, PhotoURL: photoURL, Caption: caption, Button: button})
	return nil
}

func (t *fakeTransport) CopyMessage(ctx context.Context, toChatID, fromChatID, messageID int64, opts ports.CopyOptions) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.copyErr[toChatID]; err != nil {
		return 0, err
	}
	t.nextID++
	t.copies = append(t.copies, copiedMessage{To: toChatID, From: fromChatID, MessageID: messageID, Opts: opts})
	return 1000 + t.nextID, nil
}

func (t *fakeTransport) GetMessages(ctx context.Context, chatID int64, ids []int64) ([]domain.RawEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.RawEvent
	for _, ev := range t.messages[chatID] {
		if contains(ids, ev.MessageID) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (t *fakeTransport) sentTexts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.sent))
	for _, m := range t.sent {
		out = append(out, m.Text)
	}
	return out
}

type fakeProvider struct {
	mu       sync.Mutex
	movies   map[string]int64
	shows    map[string]int64
	details  map[int64]domain.TitleInfo
	searches int
	fetches  int
	err      error
}

func (p *fakeProvider) SearchMovie(ctx context.Context, title string, year int) (int64, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searches++
	if p.err != nil {
		return 0, false, p.err
	}
	id, ok := p.movies[strings.ToLower(title)]
	return id, ok, nil
}

func (p *fakeProvider) SearchTV(ctx context.Context, title string, year int) (int64, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searches++
	if p.err != nil {
		return 0, false, p.err
	}
	id, ok := p.shows[strings.ToLower(title)]
	return id, ok, nil
}

func (p *fakeProvider) Details(ctx context.Context, tmdbType domain.TitleType, id int64) (domain.TitleInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	info, ok := p.details[id]
	if !ok || info.TMDBType != tmdbType {
		return domain.TitleInfo{}, domain.ErrNotFound
	}
	return info, nil
}

type fakeRatings struct {
	mu    sync.Mutex
	info  domain.RatingInfo
	err   error
	calls int
}

func (r *fakeRatings) Lookup(ctx context.Context, imdbID string) (domain.RatingInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.info, r.err
}

func pageOf[T any](items []T, p domain.Pagination) []T {
	start := int(p.Skip())
	if start >= len(items) {
		return []T{}
	}
	end := min(start+int(p.Limit()), len(items))
	return items[start:end]
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
