// internal/clients/transaction_client.go
package clients

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"ironcore/internal/enrollment"
	"ironcore/internal/transaction"
)

func (c *GymClient) CheckConflict(ctx context.Context, userID, scheduleID int64) (enrollment.ConflictInfo, error) {
	var out enrollment.ConflictInfo
	err := c.do(ctx, "check_conflict", http.MethodGet, "/api/class-enrollments/check-conflict", func(r *resty.Request) {
		r.SetQueryParams(map[string]string{
			"userId":     strconv.FormatInt(userID, 10),
			"scheduleId": strconv.FormatInt(scheduleID, 10),
		})
	}, &out)
	return out, err
}

func (c *GymClient) CheckActiveEnrollment(ctx context.Context, userID, classID int64) (enrollment.EnrollmentInfo, error) {
	var out enrollment.EnrollmentInfo
	err := c.do(ctx, "check_active_enrollment", http.MethodGet, "/api/transactions/check-active-enrollment", func(r *resty.Request) {
		r.SetQueryParams(map[string]string{
			"userId":  strconv.FormatInt(userID, 10),
			"classId": strconv.FormatInt(classID, 10),
		})
	}, &out)
	return out, err
}

// CreateTransaction commits a draft as a PENDING transaction. The server
// recomputes amounts and returns the stored record, which is the one callers
// must keep.
func (c *GymClient) CreateTransaction(ctx context.Context, d transaction.Draft) (transaction.Transaction, error) {
	var out transaction.Transaction
	err := c.do(ctx, "create_transaction", http.MethodPost, "/api/transactions", func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(d.Transaction())
	}, &out)
	return out, err
}

func (c *GymClient) GetTransaction(ctx context.Context, id int64) (transaction.Transaction, error) {
	var out transaction.Transaction
	err := c.do(ctx, "get_transaction", http.MethodGet, fmt.Sprintf("/api/transactions/%d", id), nil, &out)
	return out, err
}

// UpdateTransactionStatus moves a transaction to status. Repeating a
// completed update is accepted by the server and returns the same record.
func (c *GymClient) UpdateTransactionStatus(ctx context.Context, id int64, status transaction.PaymentStatus) (transaction.Transaction, error) {
	var out transaction.Transaction
	err := c.do(ctx, "update_transaction_status", http.MethodPut, fmt.Sprintf("/api/transactions/%d/status", id), func(r *resty.Request) {
		r.SetQueryParam("status", string(status))
	}, &out)
	return out, err
}

// ActivateTransaction starts the membership period of a paid tier purchase.
func (c *GymClient) ActivateTransaction(ctx context.Context, id int64) (transaction.Transaction, error) {
	var out transaction.Transaction
	err := c.do(ctx, "activate_transaction", http.MethodPut, fmt.Sprintf("/api/transactions/%d/activate", id), nil, &out)
	return out, err
}

// CompleteSession records attendance of a paid class or session pass.
// Administrators only.
func (c *GymClient) CompleteSession(ctx context.Context, id int64) (transaction.Transaction, error) {
	var out transaction.Transaction
	err := c.do(ctx, "complete_session", http.MethodPut, fmt.Sprintf("/api/transactions/%d/complete-session", id), nil, &out)
	return out, err
}

func (c *GymClient) UserTransactions(ctx context.Context, userID int64) ([]transaction.Transaction, error) {
	var out []transaction.Transaction
	err := c.do(ctx, "user_transactions", http.MethodGet, fmt.Sprintf("/api/transactions/user/%d", userID), nil, &out)
	return out, err
}
