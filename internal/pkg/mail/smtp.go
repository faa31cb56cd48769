package mail

import (
	"fmt"
	"mime"
	"net"
	"net/smtp"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type smtpSendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

func sendSMTP(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	return smtp.SendMail(addr, a, from, to, msg)
}

func (c *Client) sendSMTPMessage(msg Message) error {
	var auth smtp.Auth
	if c.cfg.SMTPUsername != "" && c.cfg.SMTPPassword != "" {
		auth = smtp.PlainAuth("", c.cfg.SMTPUsername, c.cfg.SMTPPassword, c.cfg.SMTPHost)
	}

	addr := net.JoinHostPort(c.cfg.SMTPHost, c.cfg.SMTPPort)
	if err := c.smtpSend(addr, auth, c.cfg.From, []string{msg.To}, buildMIME(c.from(), msg)); err != nil {
		return errors.Wrapf(err, "send email via smtp %s", addr)
	}
	c.log.WithFields(logrus.Fields{"to": msg.To, "addr": addr}).Debug("email sent via smtp")
	return nil
}

func (c *Client) from() string {
	if c.cfg.FromName == "" {
		return c.cfg.From
	}
	return fmt.Sprintf("%s <%s>", c.cfg.FromName, c.cfg.From)
}

func buildMIME(from string, msg Message) []byte {
	return []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, msg.To, mime.QEncoding.Encode("utf-8", msg.Subject)) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			msg.HTML,
	)
}
