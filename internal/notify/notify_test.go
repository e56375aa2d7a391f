package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPRelaySinkPostsPayload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewHTTPRelaySink(srv.URL)
	err := sink.Send(context.Background(), Message{To: "u@example.com", Subject: "Ticket resolved", Body: "done"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"userEmail": "u@example.com", "subject": "Ticket resolved", "emailBody": "done"}, got)
}

func TestHTTPRelaySinkFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "mailbox full", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewHTTPRelaySink(srv.URL).Send(context.Background(), Message{To: "u@example.com"})
	assert.ErrorContains(t, err, "status 500")
}

func TestLogSinkNeverFails(t *testing.T) {
	assert.NoError(t, NewLogSink(zap.NewNop()).Send(context.Background(), Message{To: "x"}))
}
