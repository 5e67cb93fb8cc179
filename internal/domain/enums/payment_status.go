package enums

// PaymentStatus is the lifecycle of a purchase row. pending_submission marks
// an intent created locally before the payment provider was called, so a crash
// mid-checkout leaves a recoverable orphan instead of an unmatched payment.
type PaymentStatus string

const (
	PaymentStatusPendingSubmission PaymentStatus = "pending_submission"
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
)

func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}
