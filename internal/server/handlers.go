package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ainyheter/internal/database"
	"ainyheter/internal/digest"
	"ainyheter/internal/feed"
	"ainyheter/internal/rss"
	"ainyheter/internal/sheets"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("AI-Nyheter API"))
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	cats, err := s.sheet.Categories(r.Context())
	if err != nil {
		s.logger.Printf("Error reading settings: %v", err)
		RespondWithError(w, http.StatusBadGateway, "settings unavailable")
		return
	}
	RespondWithJSON(w, http.StatusOK, cats)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	articles, err := s.articles.Recent(r.Context(), s.config.DigestCap)
	if err != nil {
		s.logger.Printf("Error reading recent articles: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "news unavailable")
		return
	}
	if articles == nil {
		articles = []feed.Article{}
	}
	RespondWithJSON(w, http.StatusOK, articles)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	per := queryInt(r, "per", 40)
	if per < 5 {
		per = 5
	}

	q := database.ArchiveQuery{
		Category: strings.TrimSpace(r.URL.Query().Get("cat")),
		Search:   strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:    uint64(per),
		Offset:   uint64((page - 1) * per),
	}
	articles, err := s.articles.Archive(r.Context(), q)
	if err != nil {
		s.logger.Printf("Error reading archive: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "archive unavailable")
		return
	}
	if articles == nil {
		articles = []feed.Article{}
	}
	RespondWithJSON(w, http.StatusOK, articles)
}

// handleArchiveSheet serves the archive straight from the tabular store, as
// a fallback when the relational store is cold (fresh deploy, empty disk).
func (s *Server) handleArchiveSheet(w http.ResponseWriter, r *http.Request) {
	articles, err := s.sheet.AllArticles(r.Context())
	if err != nil {
		s.logger.Printf("Error reading sheet archive: %v", err)
		RespondWithJSON(w, http.StatusOK, []feed.Article{})
		return
	}
	if articles == nil {
		articles = []feed.Article{}
	}
	RespondWithJSON(w, http.StatusOK, articles)
}

// handleFeedRSS republishes the latest articles as an RSS 2.0 feed.
func (s *Server) handleFeedRSS(w http.ResponseWriter, r *http.Request) {
	articles, err := s.articles.Recent(r.Context(), 40)
	if err != nil {
		s.logger.Printf("Error reading articles for RSS: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "feed unavailable")
		return
	}
	doc := rss.Build("AI-Nyheter", s.config.BaseURL, articles, time.Now())
	body, err := rss.Encode(doc)
	if err != nil {
		s.logger.Printf("Error encoding RSS: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "feed unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write(body)
}

type subscribeRequest struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Categories []string `json:"categories"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		RespondWithError(w, http.StatusBadRequest, "Name required")
		return
	}
	if !emailRe.MatchString(email) {
		RespondWithError(w, http.StatusBadRequest, "Invalid email")
		return
	}

	categories := "ALL"
	if len(req.Categories) > 0 {
		categories = strings.Join(req.Categories, ",")
	}

	token, err := digest.NewToken()
	if err != nil {
		s.logger.Printf("Error generating token: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sub := digest.Subscriber{
		Name:       name,
		Email:      email,
		Categories: categories,
		Status:     digest.StatusPending,
		Token:      token,
	}
	if err := s.sheet.UpsertSubscriber(r.Context(), sub); err != nil {
		s.logger.Printf("Error saving subscriber %s: %v", email, err)
		RespondWithError(w, http.StatusBadGateway, "could not save subscription")
		return
	}

	if err := s.mailer.SendConfirmation(email, token); err != nil {
		s.logger.Printf("Error sending confirmation to %s: %v", email, err)
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"msg": "Confirmation sent"})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	token := r.URL.Query().Get("tok")

	err := s.sheet.SetSubscriberStatus(r.Context(), email, token, digest.StatusActive)
	if errors.Is(err, sheets.ErrSubscriberNotFound) {
		plainText(w, http.StatusBadRequest, "Ogiltig eller förbrukad länk.")
		return
	}
	if err != nil {
		s.logger.Printf("Error confirming %s: %v", email, err)
		plainText(w, http.StatusBadGateway, "Tillfälligt fel, försök igen senare.")
		return
	}
	plainText(w, http.StatusOK, "Prenumerationen är nu aktiverad.")
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	token := r.URL.Query().Get("tok")

	err := s.sheet.SetSubscriberStatus(r.Context(), email, token, digest.StatusUnsub)
	if errors.Is(err, sheets.ErrSubscriberNotFound) {
		plainText(w, http.StatusBadRequest, "Ogiltig länk.")
		return
	}
	if err != nil {
		s.logger.Printf("Error unsubscribing %s: %v", email, err)
		plainText(w, http.StatusBadGateway, "Tillfälligt fel, försök igen senare.")
		return
	}
	if err := s.mailer.SendGoodbye(email); err != nil {
		s.logger.Printf("Error sending goodbye to %s: %v", email, err)
	}
	plainText(w, http.StatusOK, "Prenumerationen avslutad.")
}

type updateCategoriesRequest struct {
	Email      string   `json:"email"`
	Token      string   `json:"tok"`
	Categories []string `json:"cats"`
}

func (s *Server) handleUpdateCategories(w http.ResponseWriter, r *http.Request) {
	var req updateCategoriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	categories := "ALL"
	if len(req.Categories) > 0 {
		categories = strings.Join(req.Categories, ",")
	}

	err := s.sheet.SetSubscriberCategories(r.Context(), req.Email, req.Token, categories)
	if errors.Is(err, sheets.ErrSubscriberNotFound) {
		RespondWithError(w, http.StatusBadRequest, "invalid token")
		return
	}
	if err != nil {
		s.logger.Printf("Error updating categories for %s: %v", req.Email, err)
		RespondWithError(w, http.StatusBadGateway, "could not update categories")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func plainText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(msg))
}
