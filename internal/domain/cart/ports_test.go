package cart_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/food-cart/internal/domain/cart"
	"github.com/example/food-cart/internal/domain/cart/mocks"
	"github.com/stretchr/testify/assert"
)

func TestPublishers_FanOut(t *testing.T) {
	first := &mocks.MockPublisher{Err: errors.New("broker down")}
	second := &mocks.MockPublisher{}
	event := cart.Event{ID: "e1", EventType: cart.EventCartCleared}

	err := cart.Publishers{first, second}.Publish(context.Background(), event)

	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, []string{cart.EventCartCleared}, second.Types(), "a failing publisher does not stop the others")
}

func TestPublishers_Empty(t *testing.T) {
	assert.NoError(t, cart.Publishers{}.Publish(context.Background(), cart.Event{}))
}
