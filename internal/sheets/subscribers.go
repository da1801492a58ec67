package sheets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ainyheter/internal/digest"
)

// ErrSubscriberNotFound is returned when no row matches an email (and token,
// where one is required).
var ErrSubscriberNotFound = errors.New("subscriber not found")

// Subscribers reads the full subscriber worksheet.
func (c *Client) Subscribers(ctx context.Context) ([]digest.Subscriber, error) {
	subs, _, err := c.subscriberRows(ctx)
	return subs, err
}

// subscriberRows returns subscribers along with their 1-based sheet row
// numbers (data starts at row 2, below the header).
func (c *Client) subscriberRows(ctx context.Context) ([]digest.Subscriber, []int, error) {
	rows, err := c.readRows(ctx, SubscribersSheet+"!A2:E")
	if err != nil {
		return nil, nil, err
	}
	var (
		subs    []digest.Subscriber
		rowNums []int
	)
	for i, row := range rows {
		sub := digest.Subscriber{
			Name:       strings.TrimSpace(cell(row, 0)),
			Email:      strings.ToLower(strings.TrimSpace(cell(row, 1))),
			Categories: strings.TrimSpace(cell(row, 2)),
			Status:     strings.TrimSpace(cell(row, 3)),
			Token:      strings.TrimSpace(cell(row, 4)),
		}
		if sub.Email == "" {
			continue
		}
		subs = append(subs, sub)
		rowNums = append(rowNums, i+2)
	}
	return subs, rowNums, nil
}

// UpsertSubscriber updates the row matching the subscriber's email, or
// appends a new one. The whole A:E row is rewritten on update so a renewed
// signup resets name, preference, status and token together.
func (c *Client) UpsertSubscriber(ctx context.Context, sub digest.Subscriber) error {
	subs, rowNums, err := c.subscriberRows(ctx)
	if err != nil {
		return err
	}
	row := []interface{}{sub.Name, sub.Email, sub.Categories, sub.Status, sub.Token}
	for i, existing := range subs {
		if existing.Email == strings.ToLower(sub.Email) {
			rng := fmt.Sprintf("%s!A%d:E%d", SubscribersSheet, rowNums[i], rowNums[i])
			return c.updateRange(ctx, rng, [][]interface{}{row})
		}
	}
	return c.appendRow(ctx, SubscribersSheet, row)
}

// SetSubscriberStatus flips the status cell of the row matching email and
// token. Used by the confirm and unsubscribe links.
func (c *Client) SetSubscriberStatus(ctx context.Context, email, token, status string) error {
	subs, rowNums, err := c.subscriberRows(ctx)
	if err != nil {
		return err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for i, sub := range subs {
		if sub.Email == email && sub.Token == token {
			rng := fmt.Sprintf("%s!D%d", SubscribersSheet, rowNums[i])
			return c.updateRange(ctx, rng, [][]interface{}{{status}})
		}
	}
	return ErrSubscriberNotFound
}

// SetSubscriberCategories rewrites the preference cell of the row matching
// email and token.
func (c *Client) SetSubscriberCategories(ctx context.Context, email, token, categories string) error {
	subs, rowNums, err := c.subscriberRows(ctx)
	if err != nil {
		return err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for i, sub := range subs {
		if sub.Email == email && sub.Token == token {
			rng := fmt.Sprintf("%s!C%d", SubscribersSheet, rowNums[i])
			return c.updateRange(ctx, rng, [][]interface{}{{categories}})
		}
	}
	return ErrSubscriberNotFound
}

// DeleteSubscriber removes every row with this email and returns how many
// were deleted. Administrative operation; no token check.
func (c *Client) DeleteSubscriber(ctx context.Context, email string) (int, error) {
	subs, rowNums, err := c.subscriberRows(ctx)
	if err != nil {
		return 0, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	var indexes []int64
	for i, sub := range subs {
		if sub.Email == email {
			// deleteRows wants zero-based indexes.
			indexes = append(indexes, int64(rowNums[i]-1))
		}
	}
	if len(indexes) == 0 {
		return 0, nil
	}

	sheetID, err := c.sheetID(ctx, SubscribersSheet)
	if err != nil {
		return 0, err
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] > indexes[j] })
	if err := c.deleteRows(ctx, sheetID, indexes); err != nil {
		return 0, err
	}
	return len(indexes), nil
}
