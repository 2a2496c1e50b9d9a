package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framedrop/framedrop/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *TelegramClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewTelegramClient(&config.NotifyConfig{
		APIBaseURL:     server.URL,
		BotToken:       "test-token",
		ChannelID:      "-100123",
		RequestTimeout: time.Second,
	})
}

func TestSendMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)

		var params map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "-100123", params["chat_id"])
		assert.Equal(t, "hello", params["text"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"message_id": 42},
		})
	})

	msg, err := client.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(42), msg.MessageID)
	assert.Equal(t, "-100123", msg.ChatID)
}

func TestEditMessage_Outcomes(t *testing.T) {
	cases := []struct {
		name        string
		status      int
		response    map[string]interface{}
		expected    Outcome
		expectError bool
	}{
		{
			name:     "ok",
			response: map[string]interface{}{"ok": true, "result": map[string]interface{}{"message_id": 42}},
			expected: OutcomeOK,
		},
		{
			name:        "not modified",
			response:    map[string]interface{}{"ok": false, "error_code": 400, "description": "Bad Request: message is not modified"},
			expected:    OutcomeNotModified,
			expectError: true,
		},
		{
			name:        "not found",
			response:    map[string]interface{}{"ok": false, "error_code": 400, "description": "Bad Request: message to edit not found"},
			expected:    OutcomeNotFound,
			expectError: true,
		},
		{
			name:        "rate limited",
			response:    map[string]interface{}{"ok": false, "error_code": 429, "description": "Too Many Requests: retry after 5"},
			expected:    OutcomeTransient,
			expectError: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tc.response)
			})

			outcome, err := client.EditMessage(context.Background(), Message{ChatID: "-100123", MessageID: 42}, "text")
			assert.Equal(t, tc.expected, outcome)
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEditMessage_NetworkFailureIsTransient(t *testing.T) {
	client := NewTelegramClient(&config.NotifyConfig{
		APIBaseURL:     "http://127.0.0.1:1",
		BotToken:       "t",
		ChannelID:      "c",
		RequestTimeout: 100 * time.Millisecond,
	})

	outcome, err := client.EditMessage(context.Background(), Message{MessageID: 1}, "text")
	assert.Equal(t, OutcomeTransient, outcome)
	assert.Error(t, err)
}

func TestDeleteMessage_AlreadyGoneIsSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": false, "error_code": 400, "description": "Bad Request: message to delete not found",
		})
	})

	assert.NoError(t, client.DeleteMessage(context.Background(), Message{MessageID: 7}))
}
