// Package github converts github release webhook events into publish
// triggers.
package github

import (
	"net/http"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/docpub/internal/logfields"
	"github.com/simplesurance/docpub/internal/publish"
)

const loggerName = "github-event-provider"

// Provider listens for github-webhook http-requests at a http-server
// handler, validates them and forwards published releases as release
// contexts to a channel.
type Provider struct {
	logger        *zap.Logger
	webhookSecret []byte
	c             chan<- *publish.ReleaseContext
}

type option func(*Provider)

func WithPayloadSecret(secret string) option {
	return func(p *Provider) {
		p.webhookSecret = []byte(secret)
	}
}

func New(triggerChan chan<- *publish.ReleaseContext, opts ...option) *Provider {
	p := Provider{
		c: triggerChan,
	}

	for _, o := range opts {
		o(&p)
	}

	if p.logger == nil {
		p.logger = zap.L().Named(loggerName)
	}

	return &p
}

func (p *Provider) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	deliveryID := github.DeliveryID(req)
	hookType := github.WebHookType(req)

	logger := p.logger.With(
		zap.String("github.delivery_id", deliveryID),
		zap.String("github.webhook_type", hookType),
	)

	payload, err := github.ValidatePayload(req, p.webhookSecret)
	if err != nil {
		logger.Info(
			"received invalid http request, payload validation failed",
			logfields.Event("github_http_request_validation_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := github.ParseWebHook(hookType, payload)
	if err != nil {
		logger.Info(
			"received invalid http request, parsing failed",
			logfields.Event("github_event_parsing_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	releaseEvent, ok := event.(*github.ReleaseEvent)
	if !ok {
		logger.Debug(
			"ignoring event, not a release event",
			logfields.Event("github_event_ignored"),
		)
		resp.WriteHeader(http.StatusOK)
		return
	}

	if releaseEvent.GetAction() != "published" {
		logger.Debug(
			"ignoring release event, action is not published",
			logfields.Event("github_event_ignored"),
			zap.String("github.release_action", releaseEvent.GetAction()),
		)
		resp.WriteHeader(http.StatusOK)
		return
	}

	tag := releaseEvent.GetRelease().GetTagName()
	if tag == "" {
		logger.Info(
			"ignoring release event without a tag name",
			logfields.Event("github_event_ignored"),
		)
		resp.WriteHeader(http.StatusOK)
		return
	}

	p.c <- &publish.ReleaseContext{Ref: tag}

	logger.Info(
		"publish triggered by release event",
		logfields.Event("github_release_event_forwarded"),
		logfields.Version(tag),
	)

	resp.WriteHeader(http.StatusOK)
}
