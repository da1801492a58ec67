package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ainyheter/internal/database"
	"ainyheter/internal/digest"
	"ainyheter/internal/feed"
	"ainyheter/internal/jobs"
	"ainyheter/internal/sheets"
)

type fakeReader struct {
	recent      []feed.Article
	within      []feed.Article
	archive     []feed.Article
	lastArchive database.ArchiveQuery
}

func (f *fakeReader) Recent(ctx context.Context, limit int) ([]feed.Article, error) {
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeReader) RecentWithin(ctx context.Context, days, limit int) ([]feed.Article, error) {
	return f.within, nil
}

func (f *fakeReader) Archive(ctx context.Context, q database.ArchiveQuery) ([]feed.Article, error) {
	f.lastArchive = q
	return f.archive, nil
}

type fakeSheetGateway struct {
	cats      []feed.Category
	all       []feed.Article
	subs      []digest.Subscriber
	upserted  []digest.Subscriber
	statusErr error
	allErr    error

	statusEmail, statusToken, statusValue string
	deletedEmail                          string
}

func (f *fakeSheetGateway) Categories(ctx context.Context) ([]feed.Category, error) {
	return f.cats, nil
}

func (f *fakeSheetGateway) AllArticles(ctx context.Context) ([]feed.Article, error) {
	if f.allErr != nil {
		return nil, f.allErr
	}
	return f.all, nil
}

func (f *fakeSheetGateway) Subscribers(ctx context.Context) ([]digest.Subscriber, error) {
	return f.subs, nil
}

func (f *fakeSheetGateway) UpsertSubscriber(ctx context.Context, sub digest.Subscriber) error {
	f.upserted = append(f.upserted, sub)
	return nil
}

func (f *fakeSheetGateway) SetSubscriberStatus(ctx context.Context, email, token, status string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusEmail, f.statusToken, f.statusValue = email, token, status
	return nil
}

func (f *fakeSheetGateway) SetSubscriberCategories(ctx context.Context, email, token, categories string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusEmail, f.statusToken, f.statusValue = email, token, categories
	return nil
}

func (f *fakeSheetGateway) DeleteSubscriber(ctx context.Context, email string) (int, error) {
	f.deletedEmail = email
	return 1, nil
}

type fakeIngester struct {
	ran chan struct{}
}

func (f *fakeIngester) Run(ctx context.Context) (int, error) {
	if f.ran != nil {
		close(f.ran)
	}
	return 1, nil
}

type fakeMailer struct {
	confirmations []string
	goodbyes      []string
	digests       chan int
}

func (f *fakeMailer) SendConfirmation(email, token string) error {
	f.confirmations = append(f.confirmations, email)
	return nil
}

func (f *fakeMailer) SendGoodbye(email string) error {
	f.goodbyes = append(f.goodbyes, email)
	return nil
}

func (f *fakeMailer) SendDigest(subs []digest.Subscriber, articles []feed.Article, opts digest.SendOptions) (int, error) {
	if f.digests != nil {
		f.digests <- len(articles)
	}
	return len(subs), nil
}

type testEnv struct {
	server   *Server
	reader   *fakeReader
	sheet    *fakeSheetGateway
	ingester *fakeIngester
	mailer   *fakeMailer
	runner   *jobs.Runner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	runner := jobs.NewRunner(logger, 4)
	runner.Start()
	t.Cleanup(runner.Stop)

	env := &testEnv{
		reader:   &fakeReader{},
		sheet:    &fakeSheetGateway{},
		ingester: &fakeIngester{},
		mailer:   &fakeMailer{},
		runner:   runner,
	}
	env.server = NewServer(env.reader, env.sheet, env.ingester, env.mailer, runner, logger,
		Config{AdminToken: "secret", BaseURL: "https://example.com"})
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleIndex(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "AI-Nyheter") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleNews(t *testing.T) {
	env := newTestEnv(t)
	env.reader.recent = []feed.Article{{ID: "a", Title: "T"}}

	rec := env.do(t, http.MethodGet, "/api/news", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []feed.Article
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("got %v", got)
	}
}

func TestHandleNewsEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/news", "", nil)
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty result should encode as [], got %q", body)
	}
}

func TestHandleArchivePaging(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/archive?page=3&per=20&cat=Teknik&q=ai", "", nil)
	q := env.reader.lastArchive
	if q.Limit != 20 || q.Offset != 40 {
		t.Errorf("limit/offset = %d/%d, want 20/40", q.Limit, q.Offset)
	}
	if q.Category != "Teknik" || q.Search != "ai" {
		t.Errorf("filters = %q/%q", q.Category, q.Search)
	}

	// Out-of-range values are clamped.
	env.do(t, http.MethodGet, "/api/archive?page=0&per=1", "", nil)
	q = env.reader.lastArchive
	if q.Limit != 5 || q.Offset != 0 {
		t.Errorf("clamped limit/offset = %d/%d, want 5/0", q.Limit, q.Offset)
	}
}

func TestHandleArchiveSheetErrorDegradesToEmptyList(t *testing.T) {
	env := newTestEnv(t)
	env.sheet.allErr = io.ErrUnexpectedEOF

	rec := env.do(t, http.MethodGet, "/api/archive-sheet", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestHandleFeedRSS(t *testing.T) {
	env := newTestEnv(t)
	env.reader.recent = []feed.Article{{ID: "a", Title: "En nyhet", URL: "https://example.com/a", PublishedDate: "2024-05-01"}}

	rec := env.do(t, http.MethodGet, "/api/feed.rss", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/rss+xml") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "En nyhet") {
		t.Error("article title missing from feed")
	}
}

func TestHandleSubscribe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/subscribe",
		`{"name":"Anna","email":"Anna@Example.com","categories":["Tech","Science"]}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if len(env.sheet.upserted) != 1 {
		t.Fatalf("upserted %d subscribers, want 1", len(env.sheet.upserted))
	}
	sub := env.sheet.upserted[0]
	if sub.Email != "anna@example.com" {
		t.Errorf("email = %q, want lowercased", sub.Email)
	}
	if sub.Status != digest.StatusPending {
		t.Errorf("status = %q, want pending", sub.Status)
	}
	if sub.Categories != "Tech,Science" {
		t.Errorf("categories = %q", sub.Categories)
	}
	if sub.Token == "" {
		t.Error("token must be generated")
	}
	if len(env.mailer.confirmations) != 1 || env.mailer.confirmations[0] != "anna@example.com" {
		t.Errorf("confirmations = %v", env.mailer.confirmations)
	}
}

func TestHandleSubscribeValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"a@example.com"}`},
		{"invalid email", `{"name":"Anna","email":"not-an-email"}`},
		{"malformed body", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPost, "/api/subscribe", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(env.sheet.upserted) != 0 {
				t.Error("nothing should be saved on validation failure")
			}
		})
	}
}

func TestHandleConfirm(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/confirm?email=a@example.com&tok=tok1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if env.sheet.statusValue != digest.StatusActive {
		t.Errorf("status set to %q, want active", env.sheet.statusValue)
	}
	if env.sheet.statusEmail != "a@example.com" || env.sheet.statusToken != "tok1" {
		t.Errorf("email/token = %q/%q", env.sheet.statusEmail, env.sheet.statusToken)
	}
}

func TestHandleConfirmUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	env.sheet.statusErr = sheets.ErrSubscriberNotFound

	rec := env.do(t, http.MethodGet, "/api/confirm?email=a@example.com&tok=bad", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleUnsubscribe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/unsubscribe?email=a@example.com&tok=tok1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if env.sheet.statusValue != digest.StatusUnsub {
		t.Errorf("status set to %q, want unsub", env.sheet.statusValue)
	}
	if len(env.mailer.goodbyes) != 1 {
		t.Errorf("goodbyes = %v", env.mailer.goodbyes)
	}
}

func TestHandleUpdateCategories(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/update-cats",
		`{"email":"a@example.com","tok":"tok1","cats":["Tech"]}`, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.sheet.statusValue != "Tech" {
		t.Errorf("categories = %q", env.sheet.statusValue)
	}

	// Empty selection resets to ALL.
	env.do(t, http.MethodPost, "/api/update-cats",
		`{"email":"a@example.com","tok":"tok1"}`, nil)
	if env.sheet.statusValue != "ALL" {
		t.Errorf("categories = %q, want ALL", env.sheet.statusValue)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	env := newTestEnv(t)
	targets := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/subscribers"},
		{http.MethodPost, "/api/delete-subscriber"},
		{http.MethodPost, "/admin/run-fetch"},
		{http.MethodPost, "/admin/send-digest"},
	}
	for _, tgt := range targets {
		if rec := env.do(t, tgt.method, tgt.path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d, want 401", tgt.path, rec.Code)
		}
		if rec := env.do(t, tgt.method, tgt.path, "", map[string]string{"X-Admin-Token": "wrong"}); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s with wrong token: status = %d, want 401", tgt.path, rec.Code)
		}
	}
}

func TestAdminDisabledWithoutConfiguredToken(t *testing.T) {
	env := newTestEnv(t)
	env.server.config.AdminToken = ""

	rec := env.do(t, http.MethodGet, "/api/subscribers", "", map[string]string{"X-Admin-Token": ""})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 when no token is configured", rec.Code)
	}
}

func TestHandleSubscribers(t *testing.T) {
	env := newTestEnv(t)
	env.sheet.subs = []digest.Subscriber{{Email: "a@example.com", Status: digest.StatusActive}}

	rec := env.do(t, http.MethodGet, "/api/subscribers", "", map[string]string{"X-Admin-Token": "secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []digest.Subscriber
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(got) != 1 || got[0].Email != "a@example.com" {
		t.Errorf("got %v", got)
	}
}

func TestHandleDeleteSubscriber(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/delete-subscriber",
		`{"email":"a@example.com"}`, map[string]string{"X-Admin-Token": "secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.sheet.deletedEmail != "a@example.com" {
		t.Errorf("deleted = %q", env.sheet.deletedEmail)
	}
	if !strings.Contains(rec.Body.String(), `"deleted":1`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleRunFetchEnqueuesJob(t *testing.T) {
	env := newTestEnv(t)
	env.ingester.ran = make(chan struct{})

	rec := env.do(t, http.MethodPost, "/admin/run-fetch", "", map[string]string{"X-Admin-Token": "secret"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	select {
	case <-env.ingester.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("ingestion job never ran")
	}
}

func TestHandleSendDigestEnqueuesJob(t *testing.T) {
	env := newTestEnv(t)
	env.reader.within = []feed.Article{{ID: "a"}, {ID: "b"}}
	env.mailer.digests = make(chan int, 1)

	rec := env.do(t, http.MethodPost, "/admin/send-digest", "", map[string]string{"X-Admin-Token": "secret"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	select {
	case n := <-env.mailer.digests:
		if n != 2 {
			t.Errorf("digest saw %d articles, want 2", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("digest job never ran")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodOptions, "/api/news", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q", got)
	}
}
