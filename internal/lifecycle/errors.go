package lifecycle

import "errors"

var (
	// ErrOrderNotFound means no order exists with the given id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrItemUnavailable means an ordered menu item does not exist or is
	// currently disabled. The client can drop the item and resubmit.
	ErrItemUnavailable = errors.New("item unavailable")

	// ErrInvalidTransition means the operation is not permitted from the
	// order's current status. It is always surfaced verbatim, never coerced.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrForbidden means the requesting user does not own the order.
	ErrForbidden = errors.New("forbidden")

	// ErrCheckoutAttached means the order already holds a checkout reference.
	ErrCheckoutAttached = errors.New("checkout already attached")

	// ErrInvalidOrder means the request itself is malformed (no items,
	// missing delivery address, non-positive quantity or estimate).
	ErrInvalidOrder = errors.New("invalid order request")
)
