package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"ainyheter/internal/digest"
)

func (s *Server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := s.sheet.Subscribers(r.Context())
	if err != nil {
		s.logger.Printf("Error listing subscribers: %v", err)
		RespondWithError(w, http.StatusBadGateway, "subscribers unavailable")
		return
	}
	if subs == nil {
		subs = []digest.Subscriber{}
	}
	RespondWithJSON(w, http.StatusOK, subs)
}

func (s *Server) handleDeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		RespondWithError(w, http.StatusBadRequest, "email required")
		return
	}

	deleted, err := s.sheet.DeleteSubscriber(r.Context(), req.Email)
	if err != nil {
		s.logger.Printf("Error deleting subscriber %s: %v", req.Email, err)
		RespondWithError(w, http.StatusBadGateway, "could not delete subscriber")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// handleRunFetch enqueues one ingestion run. The request returns as soon as
// the job is queued; results land in the logs and the stores.
func (s *Server) handleRunFetch(w http.ResponseWriter, r *http.Request) {
	err := s.runner.Enqueue("ingest", func(ctx context.Context) {
		if _, err := s.ingester.Run(ctx); err != nil {
			s.logger.Printf("Ingestion job failed: %v", err)
		}
	})
	if err != nil {
		RespondWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]interface{}{"ok": true, "msg": "Fetch job started"})
}

// handleSendDigest enqueues a digest send over the configured window.
func (s *Server) handleSendDigest(w http.ResponseWriter, r *http.Request) {
	err := s.runner.Enqueue("digest", func(ctx context.Context) {
		articles, err := s.articles.RecentWithin(ctx, s.config.DigestWindowDays, 100)
		if err != nil {
			s.logger.Printf("Digest job: reading articles failed: %v", err)
			return
		}
		subs, err := s.sheet.Subscribers(ctx)
		if err != nil {
			s.logger.Printf("Digest job: reading subscribers failed: %v", err)
			return
		}
		if _, err := s.mailer.SendDigest(subs, articles, digest.SendOptions{Cap: s.config.DigestCap}); err != nil {
			s.logger.Printf("Digest job failed: %v", err)
		}
	})
	if err != nil {
		RespondWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]interface{}{"ok": true, "msg": "Digest job started"})
}
