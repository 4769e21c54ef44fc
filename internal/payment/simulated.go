// internal/payment/simulated.go
package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ironcore/internal/apperr"
	"ironcore/internal/transaction"
)

// Simulated accepts any four digit PIN and marks the transaction COMPLETED.
type Simulated struct {
	ledger Ledger
	log    *zap.Logger
}

func NewSimulated(ledger Ledger, log *zap.Logger) *Simulated {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulated{ledger: ledger, log: log.Named("payment.simulated")}
}

func (s *Simulated) Confirm(ctx context.Context, req ConfirmRequest) (transaction.Transaction, error) {
	if req.TransactionID <= 0 {
		return transaction.Transaction{}, apperr.Invalid("transactionId", "is required")
	}
	if !pinPattern.MatchString(req.PIN) {
		return transaction.Transaction{}, apperr.Invalid("pin", "must be 4 digits")
	}

	current, err := s.ledger.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		return transaction.Transaction{}, &apperr.PaymentError{TransactionID: req.TransactionID, Reason: "lookup", Err: err}
	}
	if current.PaymentStatus.Settled() {
		s.log.Info("payment already confirmed", zap.Int64("transaction_id", current.ID))
		return current, nil
	}
	if !transaction.CanTransition(current.PaymentStatus, transaction.StatusCompleted) {
		return transaction.Transaction{}, &apperr.PaymentError{
			TransactionID: req.TransactionID,
			Reason:        fmt.Sprintf("cannot confirm a %s transaction", current.PaymentStatus),
			Err:           transaction.ErrInvalidTransition,
		}
	}
	if err := ctx.Err(); err != nil {
		return transaction.Transaction{}, err
	}

	done, err := s.ledger.UpdateTransactionStatus(ctx, req.TransactionID, transaction.StatusCompleted)
	if err != nil {
		return transaction.Transaction{}, &apperr.PaymentError{TransactionID: req.TransactionID, Reason: "confirm", Err: err}
	}
	s.log.Info("payment confirmed",
		zap.Int64("transaction_id", done.ID),
		zap.String("transaction_code", done.TransactionCode),
	)
	return done, nil
}
