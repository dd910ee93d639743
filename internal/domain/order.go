package domain

import "strings"

// OrderStatus is the payment status reported by the order API, normalized.
type OrderStatus string

const (
	OrderStatusUnknown OrderStatus = "UNKNOWN"
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
)

// NormalizeOrderStatus maps a raw API status onto OrderStatus. Matching is
// case-insensitive and PAYMENT_FAILED is folded into FAILED.
func NormalizeOrderStatus(raw string) OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID":
		return OrderStatusPaid
	case "FAILED", "PAYMENT_FAILED":
		return OrderStatusFailed
	case "PENDING":
		return OrderStatusPending
	default:
		return OrderStatusUnknown
	}
}

// IsTerminal reports whether polling should stop on this status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

// PollState is the state of an order confirmation session.
type PollState string

const (
	PollStateInit     PollState = "INIT"
	PollStatePolling  PollState = "POLLING"
	PollStatePaid     PollState = "PAID"
	PollStateFailed   PollState = "FAILED"
	PollStateTimedOut PollState = "TIMED_OUT"
	PollStateNotFound PollState = "NOT_FOUND"
)

// IsTerminal reports whether no further polling happens in this state.
func (s PollState) IsTerminal() bool {
	switch s {
	case PollStatePaid, PollStateFailed, PollStateTimedOut, PollStateNotFound:
		return true
	}
	return false
}

// Message is the user-facing text for a state. Non-terminal states have none.
func (s PollState) Message() string {
	switch s {
	case PollStatePaid:
		return "payment confirmed"
	case PollStateFailed:
		return "payment failed, please retry checkout"
	case PollStateTimedOut:
		return "still waiting for confirmation; check your email or contact support"
	case PollStateNotFound:
		return "order not found"
	}
	return ""
}

// OrderStatusSession is the in-memory view of one confirmation page. It is
// never persisted.
type OrderStatusSession struct {
	MerchantReference string      `json:"merchant_reference"`
	CurrentStatus     OrderStatus `json:"current_status"`
	PollAttempt       int         `json:"poll_attempt"`
	IsPolling         bool        `json:"is_polling"`
	State             PollState   `json:"state"`
	Message           string      `json:"message,omitempty"`
}
