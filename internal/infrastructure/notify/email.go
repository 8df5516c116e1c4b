package notify

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// EmailNotifier sends trade alerts over SMTP. Delivery is fire-and-forget:
// a failed send is logged and never surfaces into the trading path.
type EmailNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       string
	logger   *zap.Logger

	// send is swappable for tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotifier(host string, port int, username, password, from, to string, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		logger:   logger,
		send:     smtp.SendMail,
	}
}

func (n *EmailNotifier) Notify(subject, body string) {
	go n.deliver(subject, body)
}

func (n *EmailNotifier) deliver(subject, body string) {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	auth := smtp.PlainAuth("", n.username, n.password, n.host)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", n.from, n.to, subject, body))

	if err := n.send(addr, auth, n.from, []string{n.to}, msg); err != nil {
		n.logger.Warn("email notification failed",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}
	n.logger.Debug("email notification sent", zap.String("subject", subject))
}

// NopNotifier discards notifications. Used when SMTP is not configured.
type NopNotifier struct{}

func (NopNotifier) Notify(subject, body string) {}
