package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/validator"
	"github.com/aretw0/parley/pkg/domain"
)

// DefaultMessageLimit is how many logged messages GET /v1/conversations/{id} returns.
const DefaultMessageLimit = 20

type messageRequest struct {
	Text      string `json:"text"`
	Recipient string `json:"recipient,omitempty"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.bot.HandleMessage(r.Context(), parley.Inbound{
		BotID:          chi.URLParam(r, "botID"),
		ConversationID: chi.URLParam(r, "conversationID"),
		Recipient:      body.Recipient,
		Text:           body.Text,
	})
	if err != nil {
		s.logger.Warn("message rejected", "conversation_id", chi.URLParam(r, "conversationID"), "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type conversationResponse struct {
	State    *domain.ConversationState `json:"state"`
	Messages []domain.MessageRecord    `json:"messages"`
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	limit := DefaultMessageLimit
	if raw := r.URL.Query().Get("messages"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		limit = n
	}

	st, err := s.bot.Conversation(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	msgs, err := s.bot.Messages(r.Context(), id, limit)
	if err != nil {
		s.logger.Warn("failed to read message log", "conversation_id", id, "err", err)
	}
	if msgs == nil {
		msgs = []domain.MessageRecord{}
	}
	writeJSON(w, http.StatusOK, conversationResponse{State: st, Messages: msgs})
}

// ValidationReport is the response of POST /v1/flows/validate.
type ValidationReport = validator.Report

func (s *Server) validateFlow(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, validator.CheckDocument(data))
}

func decodeJSON(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	return json.Unmarshal(data, v)
}
