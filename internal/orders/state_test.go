package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quizlabhq/quizlab-backend/pkg/enums"
)

func TestShouldTransition(t *testing.T) {
	statusPtr := func(s enums.OrderStatus) *enums.OrderStatus { return &s }

	cases := []struct {
		name    string
		current enums.OrderStatus
		next    *enums.OrderStatus
		want    bool
	}{
		{"nil next", enums.OrderStatusCreated, nil, false},
		{"same status", enums.OrderStatusFailed, statusPtr(enums.OrderStatusFailed), false},
		{"paid is terminal", enums.OrderStatusPaid, statusPtr(enums.OrderStatusFailed), false},
		{"paid to paid", enums.OrderStatusPaid, statusPtr(enums.OrderStatusPaid), false},
		{"created to pending", enums.OrderStatusCreated, statusPtr(enums.OrderStatusPendingWebhook), true},
		{"pending to paid", enums.OrderStatusPendingWebhook, statusPtr(enums.OrderStatusPaid), true},
		{"pending to failed", enums.OrderStatusPendingWebhook, statusPtr(enums.OrderStatusFailed), true},
		{"failed to paid retry", enums.OrderStatusFailed, statusPtr(enums.OrderStatusPaid), true},
		{"created to paid skips pending", enums.OrderStatusCreated, statusPtr(enums.OrderStatusPaid), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldTransition(tc.current, tc.next))
		})
	}
}
