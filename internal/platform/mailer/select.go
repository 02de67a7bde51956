package mailer

import "github.com/roomquest/idverify/pkg/config"

// FromConfig picks the mail transport: MailerSend for production, SMTP for
// local Mailpit, and the logging dev mailer for everything else.
func FromConfig(cfg config.EmailConfig) Service {
	switch cfg.Transport {
	case "mailersend":
		return NewMailer(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail)
	case "smtp":
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.FromEmail, cfg.SMTPUser, cfg.SMTPPass)
	default:
		return NewDevMailer()
	}
}
