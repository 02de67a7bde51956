package mailer

import "github.com/roomquest/idverify/pkg/logger"

// DevMailer logs messages instead of sending them. Used in local and test
// environments so flows complete without a mail provider.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	logger.Info("Dev mailer: message suppressed",
		"to", toEmail,
		"subject", subject,
		"text", text,
	)
	return "dev", nil
}
