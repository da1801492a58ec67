// Package digest selects stored articles for a subscriber's notification
// and delivers the subscription emails.
package digest

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// Subscriber statuses as stored in the subscriber worksheet.
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusUnsub   = "unsub"
)

// Subscriber is the external collaborator's entity, consumed read-only by
// the selector. Categories is "ALL" (or empty) for no filter, otherwise a
// comma-separated category list.
type Subscriber struct {
	Name       string
	Email      string
	Categories string
	Status     string
	Token      string
}

// WantedCategories resolves the preference cell. A nil result means no
// category filter.
func (s Subscriber) WantedCategories() []string {
	pref := strings.TrimSpace(s.Categories)
	if pref == "" || strings.EqualFold(pref, "ALL") {
		return nil
	}
	var wanted []string
	for _, c := range strings.Split(pref, ",") {
		if c = strings.TrimSpace(c); c != "" {
			wanted = append(wanted, c)
		}
	}
	return wanted
}

// NewToken returns a URL-safe random token for the double opt-in and
// unsubscribe links.
func NewToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
