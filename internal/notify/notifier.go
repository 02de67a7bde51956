package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roomquest/idverify/internal/platform/mailer"
	"github.com/roomquest/idverify/pkg/events"
	"github.com/roomquest/idverify/pkg/logger"
)

// Notifier emails the front desk when a session completes verification. It
// listens on NATS rather than being called inline so a mail outage can never
// slow down or fail a check-in.
type Notifier struct {
	mail      mailer.Service
	frontDesk string
}

func New(mail mailer.Service, frontDeskEmail string) *Notifier {
	return &Notifier{mail: mail, frontDesk: frontDeskEmail}
}

// Start subscribes to session completions. The queue group keeps one email
// per event when multiple instances run.
func (n *Notifier) Start(bus events.Subscriber) error {
	if n.mail == nil || n.frontDesk == "" {
		logger.Info("Front desk notifications disabled")
		return nil
	}
	return bus.QueueSubscribe(events.SessionVerified, "notify", n.handleVerified)
}

func (n *Notifier) handleVerified(msg *events.Message) {
	var ev events.SessionVerifiedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Error("Failed to decode session verified event", "error", err)
		return
	}

	subject, text, html := renderVerifiedEmail(ev)
	if _, err := n.mail.Send(n.frontDesk, "Front Desk", subject, text, html); err != nil {
		logger.Error("Failed to send front desk notification",
			"session_token", ev.SessionToken, "error", err,
		)
		return
	}

	logger.Info("Front desk notified", "session_token", ev.SessionToken, "flow_type", ev.FlowType)
}

func renderVerifiedEmail(ev events.SessionVerifiedEvent) (subject, text, html string) {
	who := ev.GuestName
	if who == "" {
		who = "A visitor"
	}

	if ev.FlowType == "visitor" {
		subject = fmt.Sprintf("Visitor checked in: %s", who)
	} else {
		subject = fmt.Sprintf("Guest verified: %s", who)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s completed identity verification at %s.\n", who, ev.VerifiedAt.Format("15:04 Jan 2"))
	if ev.PhysicalRoom != "" {
		fmt.Fprintf(&b, "Room: %s\n", ev.PhysicalRoom)
	}
	if ev.VerifiedGuests > 0 {
		fmt.Fprintf(&b, "Verified guests: %d\n", ev.VerifiedGuests)
	}
	fmt.Fprintf(&b, "Session: %s\n", ev.SessionToken)
	text = b.String()

	html = "<p>" + strings.ReplaceAll(strings.TrimSpace(text), "\n", "<br>") + "</p>"
	return subject, text, html
}
