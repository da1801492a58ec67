package digest

import "ainyheter/internal/feed"

// DefaultCap is the maximum number of articles in one digest email.
const DefaultCap = 6

// Select picks up to max articles matching the subscriber's category
// preference. The input is expected most-recent-first by import order and
// that order is preserved. An "ALL" or empty preference applies no filter.
func Select(articles []feed.Article, sub Subscriber, max int) []feed.Article {
	if max <= 0 {
		max = DefaultCap
	}

	wanted := sub.WantedCategories()
	var selected []feed.Article
	for _, a := range articles {
		if wanted != nil && !contains(wanted, a.Category) {
			continue
		}
		selected = append(selected, a)
		if len(selected) == max {
			break
		}
	}
	return selected
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}
