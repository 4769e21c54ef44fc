// internal/payment/gateway.go
package payment

import (
	"context"
	"regexp"

	"ironcore/internal/transaction"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// ConfirmRequest identifies the transaction being paid.
type ConfirmRequest struct {
	TransactionID   int64
	TransactionCode string
	PIN             string
}

// Gateway finalizes a PENDING transaction. Confirming an already completed
// transaction returns the stored record and performs no second transition.
type Gateway interface {
	Confirm(ctx context.Context, req ConfirmRequest) (transaction.Transaction, error)
}

// Ledger is the slice of the REST API a gateway writes the outcome to.
type Ledger interface {
	GetTransaction(ctx context.Context, id int64) (transaction.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id int64, status transaction.PaymentStatus) (transaction.Transaction, error)
}
