package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/docpub/internal/publish"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const releasePublishedEventPayload = `{
  "action": "published",
  "release": {
    "tag_name": "0.8.4",
    "name": "0.8.4"
  },
  "repository": {
    "full_name": "astral-sh/uv"
  }
}`

const releaseDeletedEventPayload = `{
  "action": "deleted",
  "release": {
    "tag_name": "0.8.4"
  }
}`

const releaseWithoutTagEventPayload = `{
  "action": "published",
  "release": {
    "name": "nightly"
  }
}`

func newWebhookHTTPReq(eventType, payload, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/listener/github", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Github-Event", eventType)
	req.Header.Set("X-Github-Delivery", "3355fab0-b22c-11eb-9936-51d9540c0cdc")

	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(payload))
		req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	return req
}

func TestHTTPHandlerForwardsPublishedRelease(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	triggerChan := make(chan *publish.ReleaseContext, 1)
	t.Cleanup(func() { close(triggerChan) })

	p := New(triggerChan, WithPayloadSecret("hook-secret"))

	respRecorder := httptest.NewRecorder()
	p.HTTPHandler(respRecorder, newWebhookHTTPReq("release", releasePublishedEventPayload, "hook-secret"))
	require.Equal(t, http.StatusOK, respRecorder.Code)

	releaseCtx := <-triggerChan
	assert.Equal(t, "0.8.4", releaseCtx.Ref)
	assert.Nil(t, releaseCtx.Plan)
}

func TestHTTPHandlerRejectsInvalidSignature(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	triggerChan := make(chan *publish.ReleaseContext, 1)
	t.Cleanup(func() { close(triggerChan) })

	p := New(triggerChan, WithPayloadSecret("hook-secret"))

	respRecorder := httptest.NewRecorder()
	p.HTTPHandler(respRecorder, newWebhookHTTPReq("release", releasePublishedEventPayload, "wrong-secret"))

	assert.Equal(t, http.StatusBadRequest, respRecorder.Code)
	assert.Empty(t, triggerChan)
}

func TestHTTPHandlerIgnoresEvents(t *testing.T) {
	testcases := []struct {
		name      string
		eventType string
		payload   string
	}{
		{
			name:      "nonReleaseEvent",
			eventType: "push",
			payload:   `{"ref": "refs/heads/main"}`,
		},
		{
			name:      "nonPublishedAction",
			eventType: "release",
			payload:   releaseDeletedEventPayload,
		},
		{
			name:      "releaseWithoutTag",
			eventType: "release",
			payload:   releaseWithoutTagEventPayload,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

			triggerChan := make(chan *publish.ReleaseContext, 1)
			t.Cleanup(func() { close(triggerChan) })

			p := New(triggerChan, WithPayloadSecret("hook-secret"))

			respRecorder := httptest.NewRecorder()
			p.HTTPHandler(respRecorder, newWebhookHTTPReq(tc.eventType, tc.payload, "hook-secret"))

			assert.Equal(t, http.StatusOK, respRecorder.Code)
			assert.Empty(t, triggerChan)
		})
	}
}
