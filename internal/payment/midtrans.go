// internal/payment/midtrans.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"go.uber.org/zap"

	"ironcore/internal/apperr"
	"ironcore/internal/transaction"
)

// ErrAwaitingPayment means the gateway has not settled the order yet; the
// confirmation can be retried.
var ErrAwaitingPayment = errors.New("payment not settled yet")

// OrderStatus is the subset of a Midtrans status response the gateway reads.
type OrderStatus struct {
	TransactionStatus string
	FraudStatus       string
}

type statusChecker interface {
	CheckOrder(orderID string) (OrderStatus, error)
}

type coreAPIChecker struct {
	client coreapi.Client
}

func (c *coreAPIChecker) CheckOrder(orderID string) (OrderStatus, error) {
	resp, merr := c.client.CheckTransaction(orderID)
	if merr != nil {
		return OrderStatus{}, fmt.Errorf("midtrans status %s: %s", orderID, merr.Error())
	}
	return OrderStatus{TransactionStatus: resp.TransactionStatus, FraudStatus: resp.FraudStatus}, nil
}

// Midtrans confirms payments against the Midtrans core API. Orders are keyed
// by transaction code.
type Midtrans struct {
	ledger  Ledger
	checker statusChecker
	log     *zap.Logger
}

func NewMidtrans(ledger Ledger, serverKey string, production bool, log *zap.Logger) *Midtrans {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	checker := &coreAPIChecker{}
	checker.client.New(serverKey, env)
	return newMidtrans(ledger, checker, log)
}

func newMidtrans(ledger Ledger, checker statusChecker, log *zap.Logger) *Midtrans {
	if log == nil {
		log = zap.NewNop()
	}
	return &Midtrans{ledger: ledger, checker: checker, log: log.Named("payment.midtrans")}
}

type outcome int

const (
	outcomeWaiting outcome = iota
	outcomePaid
	outcomeFailed
)

func classify(s OrderStatus) outcome {
	fraud := strings.ToLower(s.FraudStatus)
	switch strings.ToLower(s.TransactionStatus) {
	case "settlement":
		return outcomePaid
	case "capture":
		switch fraud {
		case "", "accept":
			return outcomePaid
		case "challenge":
			return outcomeWaiting
		}
		return outcomeFailed
	case "deny", "cancel", "expire", "failure":
		return outcomeFailed
	}
	return outcomeWaiting
}

func (m *Midtrans) Confirm(ctx context.Context, req ConfirmRequest) (transaction.Transaction, error) {
	if req.TransactionID <= 0 {
		return transaction.Transaction{}, apperr.Invalid("transactionId", "is required")
	}

	current, err := m.ledger.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		return transaction.Transaction{}, &apperr.PaymentError{TransactionID: req.TransactionID, Reason: "lookup", Err: err}
	}
	if current.PaymentStatus.Settled() {
		return current, nil
	}

	orderID := current.TransactionCode
	if orderID == "" {
		orderID = req.TransactionCode
	}
	status, err := m.checker.CheckOrder(orderID)
	if err != nil {
		return transaction.Transaction{}, &apperr.PaymentError{TransactionID: req.TransactionID, Reason: "gateway", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return transaction.Transaction{}, err
	}

	log := m.log.With(
		zap.Int64("transaction_id", req.TransactionID),
		zap.String("order_id", orderID),
		zap.String("midtrans_status", status.TransactionStatus),
	)

	switch classify(status) {
	case outcomePaid:
		done, err := m.ledger.UpdateTransactionStatus(ctx, req.TransactionID, transaction.StatusCompleted)
		if err != nil {
			return transaction.Transaction{}, &apperr.PaymentError{TransactionID: req.TransactionID, Reason: "confirm", Err: err}
		}
		log.Info("payment settled")
		return done, nil

	case outcomeFailed:
		if _, err := m.ledger.UpdateTransactionStatus(ctx, req.TransactionID, transaction.StatusFailed); err != nil {
			log.Warn("mark failed", zap.Error(err))
		}
		log.Info("payment rejected")
		return transaction.Transaction{}, &apperr.PaymentError{TransactionID: req.TransactionID, Reason: "rejected by gateway: " + status.TransactionStatus}
	}

	return transaction.Transaction{}, &apperr.PaymentError{TransactionID: req.TransactionID, Reason: "awaiting settlement", Err: ErrAwaitingPayment}
}
