package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/bulkmove/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestBuildEventDefaults(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key", Timeout: time.Second})
	require.NoError(t, err)

	event := client.buildEvent(notify.TransferFailure{
		JobID:      "123",
		Mode:       "subset",
		TargetID:   "dst",
		Processed:  1,
		Total:      4,
		Error:      "boom",
		ErrorClass: "store",
	})

	assert.Equal(t, "transfer:123", event["dedup_key"])
	payload, ok := event["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, notify.SeverityCritical, payload["severity"])
	assert.Equal(t, "bulkmove", payload["source"])
	assert.Equal(t, "transfer-runner", payload["component"])
	assert.Equal(t, "Transfer 123 into dst failed", payload["summary"])

	custom, ok := payload["custom_details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1/4", custom["progress"])
	assert.Equal(t, "store", custom["error_class"])
}

func TestSendTransferFailurePostsEvent(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- body
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "rk", Endpoint: srv.URL})
	require.NoError(t, err)
	require.NoError(t, client.SendTransferFailure(context.Background(), notify.TransferFailure{JobID: "j"}))

	body := <-got
	assert.Equal(t, "rk", body["routing_key"])
	assert.Equal(t, "trigger", body["event_action"])
}
