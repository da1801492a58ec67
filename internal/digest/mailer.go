package digest

import (
	_ "embed"
	"fmt"
	"html/template"
	"log"
	"net/url"
	"strings"
	"time"

	mailjet "github.com/mailjet/mailjet-apiv3-go/v4"

	"ainyheter/internal/feed"
)

//go:embed templates/digest.html
var digestTemplate string

// SendOptions tune one digest run. DryRun renders and counts without
// sending; TestRecipient redirects a single email to one address; Force
// sends even when a subscriber's filtered set is empty.
type SendOptions struct {
	Cap           int
	Force         bool
	DryRun        bool
	TestRecipient string
}

// Mailer delivers subscription and digest emails through Mailjet. With no
// API keys configured it degrades to logging; nothing is sent and nothing
// fails.
type Mailer struct {
	client     *mailjet.Client
	sender     string
	senderName string
	baseURL    string
	logger     *log.Logger
	tmpl       *template.Template
}

func NewMailer(apiKey, apiSecret, sender, senderName, baseURL string, logger *log.Logger) (*Mailer, error) {
	tmpl, err := template.New("digest").Parse(digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing digest template: %w", err)
	}
	m := &Mailer{
		sender:     sender,
		senderName: senderName,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		tmpl:       tmpl,
	}
	if apiKey != "" && apiSecret != "" {
		m.client = mailjet.NewMailjetClient(apiKey, apiSecret)
	}
	return m, nil
}

// SendConfirmation mails the double opt-in link for a pending subscription.
func (m *Mailer) SendConfirmation(email, token string) error {
	link := fmt.Sprintf("%s/api/confirm?email=%s&tok=%s",
		m.baseURL, url.QueryEscape(email), url.QueryEscape(token))
	body := fmt.Sprintf(`
	<p>Hej!</p>
	<p>Tack för att du vill prenumerera på AI-Nyheter.
	   Klicka på knappen nedan för att bekräfta din adress.</p>
	<p><a href="%s" style="background:#6366f1;color:#fff;padding:10px 18px;
	   text-decoration:none;border-radius:6px;">Bekräfta</a></p>
	<p>Ignorera mejlet om du inte har anmält dig.</p>`, link)
	return m.send("Bekräfta din prenumeration på AI-Nyheter", body, email)
}

// SendGoodbye confirms a completed unsubscription.
func (m *Mailer) SendGoodbye(email string) error {
	return m.send("Prenumerationen avslutad – AI-Nyheter",
		"<p>Din prenumeration på AI-Nyheter är nu avslutad.</p>", email)
}

type digestData struct {
	Date            string
	Articles        []feed.Article
	UnsubscribeLink string
}

// SendDigest mails each active subscriber their filtered selection of the
// given articles (expected most-recent-first). It returns how many emails
// were sent, or would have been sent under DryRun. Per-subscriber send
// failures are logged and do not stop the loop.
func (m *Mailer) SendDigest(subscribers []Subscriber, articles []feed.Article, opts SendOptions) (int, error) {
	if opts.Cap <= 0 {
		opts.Cap = DefaultCap
	}
	if len(articles) == 0 && !opts.Force {
		m.logger.Printf("No articles to send")
		return 0, nil
	}

	sent := 0
	for _, sub := range subscribers {
		if sub.Status != StatusActive {
			continue
		}

		var selection []feed.Article
		if opts.TestRecipient != "" {
			selection = articles
			if len(selection) > opts.Cap {
				selection = selection[:opts.Cap]
			}
		} else {
			selection = Select(articles, sub, opts.Cap)
			if len(selection) == 0 && !opts.Force {
				continue
			}
		}

		unsub := fmt.Sprintf("%s/api/unsubscribe?email=%s&tok=%s",
			m.baseURL, url.QueryEscape(sub.Email), url.QueryEscape(sub.Token))

		var body strings.Builder
		err := m.tmpl.Execute(&body, digestData{
			Date:            time.Now().UTC().Format("2006-01-02"),
			Articles:        selection,
			UnsubscribeLink: unsub,
		})
		if err != nil {
			m.logger.Printf("Error rendering digest for %s: %v", sub.Email, err)
			continue
		}

		recipient := sub.Email
		if opts.TestRecipient != "" {
			recipient = opts.TestRecipient
		}

		if opts.DryRun {
			sent++
		} else if err := m.send("AI-Nyheter – Dagens sammanfattning", body.String(), recipient); err != nil {
			m.logger.Printf("Error sending digest to %s: %v", recipient, err)
		} else {
			sent++
		}

		if opts.TestRecipient != "" {
			break
		}
	}

	m.logger.Printf("Digest: %d email(s) %s", sent, map[bool]string{true: "to send", false: "sent"}[opts.DryRun])
	return sent, nil
}

func (m *Mailer) send(subject, htmlBody, to string) error {
	if m.client == nil {
		m.logger.Printf("Mailjet keys missing, not sending %q to %s", subject, to)
		return nil
	}
	messages := mailjet.MessagesV31{
		Info: []mailjet.InfoMessagesV31{{
			From: &mailjet.RecipientV31{
				Email: m.sender,
				Name:  m.senderName,
			},
			To: &mailjet.RecipientsV31{
				{Email: to},
			},
			Subject:  subject,
			HTMLPart: htmlBody,
		}},
	}
	if _, err := m.client.SendMailV31(&messages); err != nil {
		return fmt.Errorf("mailjet send: %w", err)
	}
	return nil
}
