package email

import (
	"fmt"
	"log"

	"github.com/example/food-cart/internal/domain/cart"
	"gopkg.in/gomail.v2"
)

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Service sends order mails over SMTP. Without a sender it only logs.
type Service struct {
	sender Sender
	from   string
}

// NewService dials host:port with the given credentials. An empty host
// disables delivery.
func NewService(host string, port int, username, password, from string) *Service {
	if host == "" {
		log.Println("[Email] SMTP host not configured, delivery disabled")
		return &Service{from: from}
	}
	return &Service{
		sender: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func NewServiceWithSender(sender Sender, from string) *Service {
	return &Service{sender: sender, from: from}
}

// SendOrderConfirmation mails the order summary; lines supply meal names and prices.
func (s *Service) SendOrderConfirmation(to string, order cart.Order, lines []cart.CartItem) error {
	subject := fmt.Sprintf("Your order #%d is confirmed", order.ID)
	body := BuildOrderConfirmationBody(order, lines)

	if s.sender == nil {
		log.Printf("[Email] Delivery disabled, would send %q to %s", subject, to)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send order confirmation: %w", err)
	}
	return nil
}
