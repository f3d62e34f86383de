package orders

import "github.com/quizlabhq/quizlab-backend/pkg/enums"

// ShouldTransition is the authoritative rule for whether an order may move
// from current to next.
//
// The graph is created -> pending_webhook -> {paid, failed}, with failed ->
// paid allowed because a later retry at the provider can still succeed, and
// created -> paid allowed because some providers skip the intermediate
// pending state. paid is terminal; failed -> failed is a no-op rather than a
// fresh write.
func ShouldTransition(current enums.OrderStatus, next *enums.OrderStatus) bool {
	if next == nil {
		return false
	}
	if *next == current {
		return false
	}
	if current == enums.OrderStatusPaid {
		return false
	}
	return true
}
