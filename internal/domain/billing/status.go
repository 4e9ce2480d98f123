package billing

import "fmt"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// CheckTransition allows only pending -> completed and pending -> failed.
func CheckTransition(from, to PaymentStatus) error {
	if from == PaymentPending && to.Terminal() {
		return nil
	}
	return fmt.Errorf("payment cannot move from %q to %q", from, to)
}
