// Package twilio delivers operator notifications over SMS and WhatsApp
// through the Twilio REST API.
package twilio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/user/freightbot/internal/render"
	"github.com/user/freightbot/internal/types"
)

// maxBody is the Twilio limit for a message body.
const maxBody = 1600

// messageAPI is satisfied by the Api service of *twilio.RestClient.
type messageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio client.
type Opts struct {
	AccountSID   string
	AuthToken    string
	FromNumber   string
	WhatsAppFrom string
}

// Option defines a configuration option for the Twilio client.
type Option func(*Opts)

func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sender for SMS, e.g. "+15005550006".
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// WithWhatsAppFrom sets the WhatsApp sender. Defaults to the SMS number.
func WithWhatsAppFrom(from string) Option {
	return func(o *Opts) { o.WhatsAppFrom = from }
}

// Client sends notifications through Twilio.
type Client struct {
	api          messageAPI
	from         string
	whatsappFrom string
}

// NewClient creates a Twilio client. Missing options fall back to the
// TWILIO_* environment variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("twilio client config loaded",
		"account_sid_set", cfg.AccountSID != "",
		"auth_token_set", cfg.AuthToken != "",
		"from_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newClient(client.Api, cfg), nil
}

func newClient(api messageAPI, cfg Opts) *Client {
	wa := cfg.WhatsAppFrom
	if wa == "" {
		wa = cfg.FromNumber
	}
	return &Client{
		api:          api,
		from:         cfg.FromNumber,
		whatsappFrom: "whatsapp:" + strings.TrimPrefix(wa, "whatsapp:"),
	}
}

// SendSMS delivers n as an SMS to the phone number to.
func (c *Client) SendSMS(ctx context.Context, to string, n *types.Notification) error {
	return c.send(ctx, c.from, to, n)
}

// SendWhatsApp delivers n as a WhatsApp message to the phone number to.
func (c *Client) SendWhatsApp(ctx context.Context, to string, n *types.Notification) error {
	return c.send(ctx, c.whatsappFrom, "whatsapp:"+strings.TrimPrefix(to, "whatsapp:"), n)
}

func (c *Client) send(ctx context.Context, from, to string, n *types.Notification) error {
	body, err := render.PlainText(n.HTML)
	if err != nil {
		return err
	}
	if r := []rune(body); len(r) > maxBody {
		body = string(r[:maxBody-1]) + "…"
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)
	if strings.HasPrefix(n.PhotoRef, "https://") || strings.HasPrefix(n.PhotoRef, "http://") {
		params.SetMediaUrl([]string{n.PhotoRef})
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.api.CreateMessage(params)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send message to %s: %w", to, err)
		}
		slog.Debug("twilio message sent", "to", to)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
