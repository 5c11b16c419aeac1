package whatsapp

import (
	"io"
	"log/slog"
	"net/http"

	"concierge/pkg/channel"
	"concierge/pkg/metrics"
)

// Webhook serves the Cloud API verification handshake and inbound
// event deliveries for one relay pipeline.
type Webhook struct {
	verifyToken string
	sender      *Sender
	handler     channel.Handler
	log         *slog.Logger
}

// NewWebhook wires the webhook endpoints to a pipeline handler.
func NewWebhook(verifyToken string, sender *Sender, handler channel.Handler, log *slog.Logger) *Webhook {
	if log == nil {
		log = slog.Default()
	}

	return &Webhook{
		verifyToken: verifyToken,
		sender:      sender,
		handler:     handler,
		log:         log.With("component", "channel.whatsapp.webhook"),
	}
}

// Verify handles the GET handshake: echo hub.challenge when the mode is
// "subscribe" and the token matches, otherwise respond 403.
func (w *Webhook) Verify(rw http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "subscribe" && token == w.verifyToken && w.verifyToken != "" {
		w.log.Info("Webhook verified")
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte(challenge))
		return
	}

	w.log.Warn("Webhook verification failed", "mode", mode)
	rw.WriteHeader(http.StatusForbidden)
	_, _ = rw.Write([]byte("Forbidden"))
}

// Receive handles POSTed events. It always acknowledges with 200 "OK"
// whatever the internal outcome, so the provider never redelivers.
//
// The handler runs before the acknowledgement is written, so a slow
// generation call holds the response open; Cloud API redelivers events
// it considers unacknowledged, and the pipeline does not deduplicate.
func (w *Webhook) Receive(rw http.ResponseWriter, req *http.Request) {
	defer func() {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("OK"))
	}()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		w.log.Error("Failed to read webhook body", "error", err)
		metrics.WebhookEvents.WithLabelValues(string(OutcomeInvalid)).Inc()
		return
	}

	message, outcome := Decode(body)
	metrics.WebhookEvents.WithLabelValues(string(outcome)).Inc()

	switch outcome {
	case OutcomeInvalid:
		w.log.Warn("Webhook body is not valid JSON", "bytes", len(body))
		return
	case OutcomeSkip:
		w.log.Debug("Ignoring non-actionable webhook event")
		return
	}

	w.log.Info("Received message", "sender_id", message.From, "length", len(message.Text))
	w.handler(req.Context(), message.From, message.Text, channel.ReplyFunc(w.sender.ReplyTo(message.From)))
}
