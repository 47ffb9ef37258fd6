package whatsapp_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley/pkg/adapters/whatsapp"
)

const delivery = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "4930", "phone_number_id": "12345"},
        "messages": [
          {"id": "wamid.1", "from": "4915100000000", "timestamp": "1700000000", "type": "text", "text": {"body": "Hallo"}},
          {"id": "wamid.2", "from": "4915100000000", "timestamp": "1700000001", "type": "interactive",
           "interactive": {"type": "button_reply", "button_reply": {"id": "pizza", "title": "Pizza"}}},
          {"id": "wamid.3", "from": "4915100000000", "timestamp": "1700000002", "type": "image", "image": {"id": "media"}}
        ]
      }
    }, {
      "field": "messages",
      "value": {"metadata": {"phone_number_id": "12345"}, "statuses": [{"id": "wamid.0", "status": "delivered"}]}
    }]
  }]
}`

func TestParseWebhook(t *testing.T) {
	msgs, err := whatsapp.ParseWebhook([]byte(delivery))
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, whatsapp.Message{
		ID:            "wamid.1",
		From:          "4915100000000",
		PhoneNumberID: "12345",
		Text:          "Hallo",
		Timestamp:     "1700000000",
	}, msgs[0])
	assert.Equal(t, "pizza", msgs[1].Text, "button replies carry the option id")

	_, err = whatsapp.ParseWebhook([]byte("{"))
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(delivery)
	header := "sha256=" + hex.EncodeToString(whatsapp.Sign(payload, "app-secret"))

	assert.NoError(t, whatsapp.VerifySignature(payload, header, "app-secret"))
	assert.ErrorIs(t, whatsapp.VerifySignature(payload, header, "other"), whatsapp.ErrInvalidSignature)
	assert.ErrorIs(t, whatsapp.VerifySignature([]byte("tampered"), header, "app-secret"), whatsapp.ErrInvalidSignature)
	assert.ErrorIs(t, whatsapp.VerifySignature(payload, "", "app-secret"), whatsapp.ErrInvalidSignature)
	assert.ErrorIs(t, whatsapp.VerifySignature(payload, "md5=abc", "app-secret"), whatsapp.ErrInvalidSignature)
	assert.ErrorIs(t, whatsapp.VerifySignature(payload, "sha256=zz", "app-secret"), whatsapp.ErrInvalidSignature)
}

func TestVerifyChallenge(t *testing.T) {
	got, err := whatsapp.VerifyChallenge("subscribe", "secret", "42", "secret")
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	_, err = whatsapp.VerifyChallenge("subscribe", "wrong", "42", "secret")
	assert.ErrorIs(t, err, whatsapp.ErrVerifyToken)
	_, err = whatsapp.VerifyChallenge("unsubscribe", "secret", "42", "secret")
	assert.ErrorIs(t, err, whatsapp.ErrVerifyToken)
	_, err = whatsapp.VerifyChallenge("subscribe", "", "42", "")
	assert.ErrorIs(t, err, whatsapp.ErrVerifyToken)
}
