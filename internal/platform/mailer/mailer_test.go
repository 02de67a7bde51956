package mailer_test

import (
	"testing"

	"github.com/roomquest/idverify/internal/platform/mailer"
	"github.com/roomquest/idverify/pkg/config"
)

func TestFromConfigSelectsTransport(t *testing.T) {
	cases := []struct {
		name     string
		cfg      config.EmailConfig
		wantType string
	}{
		{
			name:     "dev by default",
			cfg:      config.EmailConfig{Transport: "dev"},
			wantType: "*mailer.DevMailer",
		},
		{
			name:     "unknown transport falls back to dev",
			cfg:      config.EmailConfig{Transport: "carrier-pigeon"},
			wantType: "*mailer.DevMailer",
		},
		{
			name: "smtp",
			cfg: config.EmailConfig{
				Transport: "smtp",
				SMTPHost:  "localhost",
				SMTPPort:  1025,
				FromEmail: "noreply@roomquest.local",
			},
			wantType: "*mailer.SMTPMailer",
		},
		{
			name: "mailersend",
			cfg: config.EmailConfig{
				Transport:     "mailersend",
				MailerSendKey: "key",
				FromEmail:     "noreply@roomquest.local",
			},
			wantType: "*mailer.Mailer",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := mailer.FromConfig(tc.cfg)
			switch tc.wantType {
			case "*mailer.DevMailer":
				if _, ok := svc.(*mailer.DevMailer); !ok {
					t.Errorf("got %T, want %s", svc, tc.wantType)
				}
			case "*mailer.SMTPMailer":
				if _, ok := svc.(*mailer.SMTPMailer); !ok {
					t.Errorf("got %T, want %s", svc, tc.wantType)
				}
			case "*mailer.Mailer":
				if _, ok := svc.(*mailer.Mailer); !ok {
					t.Errorf("got %T, want %s", svc, tc.wantType)
				}
			}
		})
	}
}

func TestFromConfigSMTPCarriesSettings(t *testing.T) {
	svc := mailer.FromConfig(config.EmailConfig{
		Transport: "smtp",
		SMTPHost:  " mailpit.local ",
		SMTPPort:  1025,
		FromEmail: "noreply@roomquest.local",
		SMTPUser:  "user",
		SMTPPass:  "pass",
	})

	s, ok := svc.(*mailer.SMTPMailer)
	if !ok {
		t.Fatalf("got %T, want *mailer.SMTPMailer", svc)
	}
	if s.Host != "mailpit.local" {
		t.Errorf("host = %q, want trimmed mailpit.local", s.Host)
	}
	if s.Port != 1025 {
		t.Errorf("port = %d, want 1025", s.Port)
	}
	if s.From != "noreply@roomquest.local" {
		t.Errorf("from = %q, want noreply@roomquest.local", s.From)
	}
}

func TestSMTPMailerRejectsEmptyRecipient(t *testing.T) {
	s := mailer.NewSMTPMailer("localhost", 1025, "noreply@roomquest.local", "", "")
	if _, err := s.Send("   ", "", "subject", "text", "<p>html</p>"); err == nil {
		t.Error("expected an error for an empty recipient")
	}
}

func TestMailerDisabledWithoutKey(t *testing.T) {
	m := mailer.NewMailer("", "Front Desk", "")
	if m.Enabled {
		t.Error("mailer should be disabled without an API key and from address")
	}
	if _, err := m.Send("desk@roomquest.local", "", "subject", "text", ""); err == nil {
		t.Error("disabled mailer must refuse to send")
	}
}
