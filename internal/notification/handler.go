package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/food-cart/internal/domain/cart"
)

// Mailer is satisfied by *email.Service.
type Mailer interface {
	SendOrderConfirmation(to string, order cart.Order, lines []cart.CartItem) error
}

// Handler sends customer notifications for cart events.
type Handler struct {
	mailer Mailer
}

func NewHandler(mailer Mailer) *Handler {
	return &Handler{mailer: mailer}
}

// HandleEvent processes one event from Kafka; only checkouts notify anyone.
func (h *Handler) HandleEvent(ctx context.Context, event cart.Event) error {
	if event.EventType == cart.EventOrderCheckout {
		return h.handleOrderCheckedOut(event)
	}
	return nil
}

func (h *Handler) handleOrderCheckedOut(event cart.Event) error {
	var e cart.OrderCheckedOut
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return fmt.Errorf("failed to unmarshal OrderCheckedOut event: %w", err)
	}

	log.Printf("[Notifier] Processing OrderCheckedOut for order %d, user %s", e.Order.ID, e.UserID)

	if e.Email == "" {
		log.Printf("[Notifier] No email address for user %s, skipping", e.UserID)
		return nil
	}

	if err := h.mailer.SendOrderConfirmation(e.Email, e.Order, e.Lines); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", e.Email, err)
		return err
	}

	log.Printf("[Notifier] Order confirmation sent to %s for order %d", e.Email, e.Order.ID)
	return nil
}
