package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

var ErrDelivery = errors.New("email delivery failed")

// Mailer delivers a composed message to a single recipient. htmlBody may be
// empty, in which case a plain-text message is sent.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, textBody, htmlBody string) error
}

// SMTPMailer sends mail over a STARTTLS SMTP connection. Connect and send
// share one deadline so a stuck server cannot hold a request open.
type SMTPMailer struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

func (m *SMTPMailer) Send(ctx context.Context, recipient, subject, textBody, htmlBody string) error {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	addr := net.JoinHostPort(m.Host, m.Port)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("%w: connect %s: %v", ErrDelivery, addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
			return fmt.Errorf("%w: starttls: %v", ErrDelivery, err)
		}
	}
	if m.Username != "" {
		auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("%w: auth: %v", ErrDelivery, err)
		}
	}

	if err := client.Mail(m.From); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if _, err := w.Write(buildMessage(m.From, recipient, subject, textBody, htmlBody)); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	return client.Quit()
}

func buildMessage(from, to, subject, textBody, htmlBody string) []byte {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n", from, to, subject)

	if htmlBody == "" {
		return []byte(headers + "Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n" + textBody + "\r\n")
	}

	const boundary = "daypage-alt"
	body := headers +
		"Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n\r\n" +
		"--" + boundary + "\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n" + textBody + "\r\n" +
		"--" + boundary + "\r\nContent-Type: text/html; charset=\"utf-8\"\r\n\r\n" + htmlBody + "\r\n" +
		"--" + boundary + "--\r\n"
	return []byte(body)
}
