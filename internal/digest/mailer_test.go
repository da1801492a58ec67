package digest

import (
	"io"
	"log"
	"testing"

	"ainyheter/internal/feed"
)

// newTestMailer builds a mailer without Mailjet keys, so nothing is ever sent
// over the network even outside dry-run.
func newTestMailer(t *testing.T) *Mailer {
	t.Helper()
	m, err := NewMailer("", "", "news@example.com", "AI-Nyheter", "https://example.com/", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewMailer: %v", err)
	}
	return m
}

func digestPool() []feed.Article {
	return []feed.Article{
		{ID: "a", Title: "Tech news", URL: "https://example.com/a", Category: "Tech", Summary: "s"},
		{ID: "b", Title: "Science news", URL: "https://example.com/b", Category: "Science", Summary: "s"},
	}
}

func TestSendDigestDryRunCountsActiveSubscribers(t *testing.T) {
	m := newTestMailer(t)
	subs := []Subscriber{
		{Email: "a@example.com", Status: StatusActive},
		{Email: "b@example.com", Status: StatusPending},
		{Email: "c@example.com", Status: StatusUnsub},
		{Email: "d@example.com", Status: StatusActive},
	}

	sent, err := m.SendDigest(subs, digestPool(), SendOptions{DryRun: true})
	if err != nil {
		t.Fatalf("SendDigest: %v", err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want 2 (active subscribers only)", sent)
	}
}

func TestSendDigestSkipsEmptySelectionUnlessForced(t *testing.T) {
	m := newTestMailer(t)
	subs := []Subscriber{{Email: "a@example.com", Status: StatusActive, Categories: "Sport"}}

	sent, err := m.SendDigest(subs, digestPool(), SendOptions{DryRun: true})
	if err != nil {
		t.Fatalf("SendDigest: %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0 for empty selection", sent)
	}

	sent, err = m.SendDigest(subs, digestPool(), SendOptions{DryRun: true, Force: true})
	if err != nil {
		t.Fatalf("SendDigest forced: %v", err)
	}
	if sent != 1 {
		t.Errorf("forced sent = %d, want 1", sent)
	}
}

func TestSendDigestNoArticles(t *testing.T) {
	m := newTestMailer(t)
	subs := []Subscriber{{Email: "a@example.com", Status: StatusActive}}

	sent, err := m.SendDigest(subs, nil, SendOptions{DryRun: true})
	if err != nil {
		t.Fatalf("SendDigest: %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0 with no articles", sent)
	}

	sent, err = m.SendDigest(subs, nil, SendOptions{DryRun: true, Force: true})
	if err != nil {
		t.Fatalf("SendDigest forced: %v", err)
	}
	if sent != 1 {
		t.Errorf("forced empty digest sent = %d, want 1", sent)
	}
}

func TestSendDigestTestRecipientSendsExactlyOne(t *testing.T) {
	m := newTestMailer(t)
	subs := []Subscriber{
		{Email: "a@example.com", Status: StatusActive},
		{Email: "b@example.com", Status: StatusActive},
	}

	sent, err := m.SendDigest(subs, digestPool(), SendOptions{DryRun: true, TestRecipient: "me@example.com"})
	if err != nil {
		t.Fatalf("SendDigest: %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want exactly 1 for a test recipient", sent)
	}
}

func TestMailerWithoutKeysNeverFails(t *testing.T) {
	m := newTestMailer(t)

	if err := m.SendConfirmation("a@example.com", "tok"); err != nil {
		t.Errorf("SendConfirmation: %v", err)
	}
	if err := m.SendGoodbye("a@example.com"); err != nil {
		t.Errorf("SendGoodbye: %v", err)
	}
	// Real send path (not dry-run) with no client configured.
	sent, err := m.SendDigest(
		[]Subscriber{{Email: "a@example.com", Status: StatusActive}},
		digestPool(), SendOptions{})
	if err != nil {
		t.Fatalf("SendDigest: %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
}
