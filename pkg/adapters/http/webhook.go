package http

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/whatsapp"
)

// maxWebhookBytes caps webhook deliveries.
const maxWebhookBytes = 1 << 20

// ConversationID scopes a WhatsApp sender to a bot.
func ConversationID(botID, phone string) string {
	return botID + ":" + phone
}

func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, err := whatsapp.VerifyChallenge(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), s.whatsapp.VerifyToken)
	if err != nil {
		s.logger.Warn("webhook verification failed", "bot_id", chi.URLParam(r, "botID"))
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, challenge)
}

// receiveWebhook acknowledges a delivery at once and runs the messages in the background.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.whatsapp.AppSecret != "" {
		if err := whatsapp.VerifySignature(body, r.Header.Get(whatsapp.SignatureHeader), s.whatsapp.AppSecret); err != nil {
			s.logger.Warn("rejected webhook delivery", "bot_id", botID, "err", err)
			writeError(w, http.StatusUnauthorized, err)
			return
		}
	}

	msgs, err := whatsapp.ParseWebhook(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if len(msgs) > 0 {
		ctx := context.WithoutCancel(r.Context())
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			// in delivery order
			for _, m := range msgs {
				s.dispatch(ctx, botID, m)
			}
		}()
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) dispatch(ctx context.Context, botID string, m whatsapp.Message) {
	id := ConversationID(botID, m.From)
	res, err := s.bot.HandleMessage(ctx, parley.Inbound{
		BotID:          botID,
		ConversationID: id,
		Recipient:      m.From,
		Text:           m.Text,
	})
	if err != nil {
		s.logger.Error("webhook message failed", "conversation_id", id, "message_id", m.ID, "err", err)
		return
	}
	s.logger.Debug("webhook message handled", "conversation_id", id, "outcome", res.Outcome)
}
