package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"concierge/pkg/config"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// Sender posts outbound text messages to the Graph API messages
// endpoint for one configured sender phone number.
type Sender struct {
	baseURL       string
	apiToken      string
	phoneNumberID string
	httpClient    *http.Client
	log           *slog.Logger
}

type outboundText struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             outboundBody `json:"text"`
}

type outboundBody struct {
	Body string `json:"body"`
}

// NewSender validates the Cloud API credentials and returns a sender.
// baseURL overrides the Graph API endpoint; empty means production.
func NewSender(cfg config.WhatsAppConfig, baseURL string, log *slog.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, errors.New("WHATSAPP_API_TOKEN is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("PHONE_NUMBER_ID is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultGraphBaseURL
	}

	return &Sender{
		baseURL:       strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiToken:      strings.TrimSpace(cfg.APIToken),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		httpClient:    &http.Client{},
		log:           log.With("component", "channel.whatsapp.sender"),
	}, nil
}

// SendText performs exactly one outbound delivery call.
func (s *Sender) SendText(ctx context.Context, recipient string, text string) error {
	payload, err := json.Marshal(outboundText{
		MessagingProduct: "whatsapp",
		To:               recipient,
		Type:             "text",
		Text:             outboundBody{Body: text},
	})
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}

	endpoint := s.baseURL + "/" + s.phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delivery returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	s.log.Debug("Message delivered", "recipient", recipient, "length", len(text))
	return nil
}

// ReplyTo builds a ReplyFunc-compatible closure bound to one recipient.
func (s *Sender) ReplyTo(recipient string) func(ctx context.Context, text string) error {
	return func(ctx context.Context, text string) error {
		return s.SendText(ctx, recipient, text)
	}
}
