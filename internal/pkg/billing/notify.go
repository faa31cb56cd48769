package billing

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ManuelReschke/comanda/app/models"
)

const (
	WelcomeSubject   = "Bem-vindo! Sua assinatura está ativa"
	emailKindWelcome = "welcome"
)

// WelcomeMessage is the data rendered into the post-checkout email.
type WelcomeMessage struct {
	To          string
	Subject     string
	CompanyName string
	LoginURL    string
}

// Mailer delivers transactional email. Configured is false when no
// transport credentials are set, in which case nothing is sent.
type Mailer interface {
	Configured() bool
	SendWelcome(ctx context.Context, msg WelcomeMessage) error
}

// LoginURL builds the login link sent to a new customer.
func (s *Service) LoginURL(email string) string {
	return strings.TrimRight(s.frontendURL, "/") + "/login?email=" + url.QueryEscape(email)
}

func (s *Service) sendWelcome(ctx context.Context, companyID string, session CheckoutSession) error {
	recipient := session.CustomerEmail
	if recipient == "" && session.CustomerID != "" {
		email, err := s.provider.GetCustomerEmail(ctx, session.CustomerID)
		if err != nil {
			return errors.Wrap(err, "lookup customer email")
		}
		recipient = email
	}
	log := s.log.WithFields(logrus.Fields{"company_id": companyID, "session_id": session.ID})
	if recipient == "" {
		log.Warn("no recipient for welcome email")
		return nil
	}

	msg := WelcomeMessage{
		To:       recipient,
		Subject:  WelcomeSubject,
		LoginURL: s.LoginURL(recipient),
	}
	company, err := s.repo.GetCompany(ctx, companyID)
	switch {
	case err == nil:
		msg.CompanyName = company.Name
	case !errors.Is(err, gorm.ErrRecordNotFound):
		log.WithError(err).Debug("company lookup for welcome email failed")
	}

	entry := &models.EmailLog{
		CompanyID: companyID,
		Recipient: recipient,
		Subject:   msg.Subject,
		Kind:      emailKindWelcome,
	}
	var sendErr error
	switch {
	case s.mailer == nil || !s.mailer.Configured():
		log.WithFields(logrus.Fields{"recipient": recipient, "login_url": msg.LoginURL}).
			Info("email transport not configured, welcome email not sent")
		entry.Status = models.EmailLogStatusSkipped
	default:
		if sendErr = s.mailer.SendWelcome(ctx, msg); sendErr != nil {
			entry.Status = models.EmailLogStatusFailed
			entry.Error = sendErr.Error()
		} else {
			log.WithField("recipient", recipient).Info("welcome email sent")
			entry.Status = models.EmailLogStatusSent
		}
	}

	s.effects.Run(ctx, "email_log", func(ctx context.Context) error {
		return s.repo.CreateEmailLog(ctx, entry)
	})
	return errors.Wrap(sendErr, "send welcome email")
}
