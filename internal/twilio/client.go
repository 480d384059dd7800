// Package twilio delivers reminder notifications over WhatsApp.
package twilio

import (
	"errors"
	"fmt"
	"strings"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

var (
	// ErrNoSender is returned when the WhatsApp sender number is not configured.
	ErrNoSender = errors.New("twilio sender WhatsApp number is not configured")
	// ErrNoRecipient is returned when the recipient number is missing.
	ErrNoRecipient = errors.New("recipient number missing or invalid")
)

// MessageCreator is the part of the Twilio REST API the client uses.
type MessageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Client wraps Twilio messaging.
type Client struct {
	api          MessageCreator
	fromWhatsApp string
	logger       *zap.Logger
}

// New creates a Twilio client bound to the configured WhatsApp sender number.
func New(accountSID, authToken, fromWhatsApp string, logger *zap.Logger) *Client {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	return NewWithAPI(rest.Api, fromWhatsApp, logger)
}

// NewWithAPI creates a client over an existing message API.
func NewWithAPI(api MessageCreator, fromWhatsApp string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{api: api, fromWhatsApp: fromWhatsApp, logger: logger}
}

// SendWhatsAppMessage sends body to the WhatsApp number to.
func (c *Client) SendWhatsAppMessage(to, body string) error {
	if c.api == nil {
		return fmt.Errorf("twilio client not initialised")
	}

	sender := normalizeWhatsAppAddress(c.fromWhatsApp)
	if sender == "" {
		return ErrNoSender
	}
	recipient := normalizeWhatsAppAddress(to)
	if recipient == "" {
		return ErrNoRecipient
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(sender)
	params.SetBody(body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send message error: %w", err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	c.logger.Info("whatsapp message sent", zap.String("to", recipient), zap.String("sid", sid))
	return nil
}

func normalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "whatsapp:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return "whatsapp:" + trimmed
	}
	return "whatsapp:+" + trimmed
}
