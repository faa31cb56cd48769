// Package mail sends transactional email through a SendGrid-compatible REST
// API, or through SMTP when only SMTP credentials are configured.
package mail

import (
	"bytes"
	"context"
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/template/html/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/comanda/internal/pkg/billing"
	"github.com/ManuelReschke/comanda/internal/pkg/config"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	TransportSendGrid = "sendgrid"
	TransportSMTP     = "smtp"
	TransportNone     = "none"
)

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

type Client struct {
	cfg        config.Email
	httpClient *http.Client
	views      *html.Engine
	log        *logrus.Entry
	smtpSend   smtpSendFunc
}

// New builds a client and loads the embedded templates.
func New(cfg config.Email, log *logrus.Entry) (*Client, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, errors.Wrap(err, "open email templates")
	}
	views := html.NewFileSystem(http.FS(sub), ".html")
	if err := views.Load(); err != nil {
		return nil, errors.Wrap(err, "load email templates")
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		views:      views,
		log:        log.WithField("component", "mail"),
		smtpSend:   sendSMTP,
	}, nil
}

// Transport names the delivery path chosen from the configured credentials.
func (c *Client) Transport() string {
	switch {
	case strings.TrimSpace(c.cfg.SendGridAPIKey) != "":
		return TransportSendGrid
	case strings.TrimSpace(c.cfg.SMTPHost) != "":
		return TransportSMTP
	default:
		return TransportNone
	}
}

func (c *Client) Configured() bool {
	return c.Transport() != TransportNone
}

// Send delivers msg through the configured transport.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient is required")
	}
	switch c.Transport() {
	case TransportSendGrid:
		return c.sendGrid(ctx, msg)
	case TransportSMTP:
		return c.sendSMTPMessage(msg)
	default:
		return errors.New("no email transport configured")
	}
}

// Render executes a named template from the embedded set.
func (c *Client) Render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := c.views.Render(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "render email template %s", name)
	}
	return buf.String(), nil
}

// SendWelcome renders and sends the post-checkout welcome email.
func (c *Client) SendWelcome(ctx context.Context, msg billing.WelcomeMessage) error {
	body, err := c.Render("welcome", msg)
	if err != nil {
		return err
	}
	return c.Send(ctx, Message{To: msg.To, Subject: msg.Subject, HTML: body})
}
