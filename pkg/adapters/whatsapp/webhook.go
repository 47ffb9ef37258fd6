package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 of the webhook payload.
const SignatureHeader = "X-Hub-Signature-256"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrVerifyToken      = errors.New("webhook verify token mismatch")
)

// Message is an inbound user message extracted from a webhook delivery.
type Message struct {
	ID            string
	From          string
	PhoneNumberID string
	// Text is the message body, or the id of the pressed reply button or list row.
	Text      string
	Timestamp string
}

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text"`
					Button *struct {
						Text    string `json:"text"`
						Payload string `json:"payload"`
					} `json:"button"`
					Interactive *struct {
						Type        string `json:"type"`
						ButtonReply *struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"button_reply"`
						ListReply *struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"list_reply"`
					} `json:"interactive"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWebhook extracts the user messages of a delivery.
// Status updates and unsupported message types (media, locations) are skipped.
func ParseWebhook(body []byte) ([]Message, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	var out []Message
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				text := ""
				switch {
				case m.Text != nil:
					text = m.Text.Body
				case m.Interactive != nil && m.Interactive.ButtonReply != nil:
					text = m.Interactive.ButtonReply.ID
				case m.Interactive != nil && m.Interactive.ListReply != nil:
					text = m.Interactive.ListReply.ID
				case m.Button != nil:
					text = m.Button.Payload
					if text == "" {
						text = m.Button.Text
					}
				}
				if text == "" || m.From == "" {
					continue
				}
				out = append(out, Message{
					ID:            m.ID,
					From:          m.From,
					PhoneNumberID: change.Value.Metadata.PhoneNumberID,
					Text:          text,
					Timestamp:     m.Timestamp,
				})
			}
		}
	}
	return out, nil
}

// VerifySignature checks the X-Hub-Signature-256 header ("sha256=<hex>") against payload.
func VerifySignature(payload []byte, header, appSecret string) error {
	if appSecret == "" || header == "" {
		return ErrInvalidSignature
	}
	got, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return ErrInvalidSignature
	}
	sig, err := hex.DecodeString(got)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(sig, Sign(payload, appSecret)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of payload.
func Sign(payload []byte, appSecret string) []byte {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(payload)
	return mac.Sum(nil)
}

// VerifyChallenge answers the subscription handshake (hub.mode, hub.verify_token, hub.challenge).
func VerifyChallenge(mode, token, challenge, verifyToken string) (string, error) {
	if mode != "subscribe" || verifyToken == "" || token != verifyToken {
		return "", ErrVerifyToken
	}
	return challenge, nil
}
