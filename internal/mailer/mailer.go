package mailer

import (
	"fmt"
	"strings"

	"github.com/2015jtw/campfinder/internal/listing/domain"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends a plain-text notice to a fixed address whenever a listing is created.
type Mailer struct {
	sender sender
	from   string
	to     string
	logger *logger.Logger
}

func NewMailer(host string, port int, username, password, from, to string, log *logger.Logger) *Mailer {
	if from == "" {
		from = username
	}
	return &Mailer{
		sender: gomail.NewDialer(host, port, username, password),
		from:   from,
		to:     to,
		logger: log.Named("Mailer"),
	}
}

func (m *Mailer) SendListingCreatedEmail(listing *domain.Listing) error {
	msg := m.listingCreatedMessage(listing)
	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send listing created email: %w", err)
	}
	m.logger.Info("Listing created email sent", zap.String("listing_id", listing.ID), zap.String("to", m.to))
	return nil
}

func (m *Mailer) listingCreatedMessage(l *domain.Listing) *gomail.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "A new campground was published.\n\n")
	fmt.Fprintf(&body, "Title:    %s\n", l.Title)
	fmt.Fprintf(&body, "Location: %s\n", l.Location)
	fmt.Fprintf(&body, "Price:    %.2f\n", l.Price)
	fmt.Fprintf(&body, "Author:   %s\n", l.Author)
	fmt.Fprintf(&body, "Images:   %d\n", len(l.Images))
	fmt.Fprintf(&body, "ID:       %s\n", l.ID)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", fmt.Sprintf("New campground: %s", l.Title))
	msg.SetBody("text/plain", body.String())
	return msg
}
