// internal/clients/membership_client.go
package clients

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"ironcore/internal/membership"
)

// MembershipStatus fetches the membership projection for userID.
func (c *GymClient) MembershipStatus(ctx context.Context, userID int64) (membership.Status, error) {
	var st membership.Status
	err := c.do(ctx, "membership_status", http.MethodGet, "/api/memberships/status", func(r *resty.Request) {
		r.SetQueryParam("userId", strconv.FormatInt(userID, 10))
	}, &st)
	return st, err
}

// AssignMembershipClasses commits the classes included with a paid tier purchase.
func (c *GymClient) AssignMembershipClasses(ctx context.Context, in membership.AssignRequest) ([]membership.Assignment, error) {
	var out []membership.Assignment
	err := c.do(ctx, "assign_membership_classes", http.MethodPost, "/api/membership-classes/assign", func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(in)
	}, &out)
	return out, err
}

// MembershipClasses lists the classes already assigned to a tier purchase.
func (c *GymClient) MembershipClasses(ctx context.Context, transactionID int64) ([]membership.Assignment, error) {
	var out []membership.Assignment
	err := c.do(ctx, "membership_classes", http.MethodGet, "/api/membership-classes", func(r *resty.Request) {
		r.SetQueryParam("transactionId", strconv.FormatInt(transactionID, 10))
	}, &out)
	return out, err
}
