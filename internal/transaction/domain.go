// internal/transaction/domain.go
package transaction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// PaymentStatus is the backend's payment state for a transaction.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusCompleted PaymentStatus = "COMPLETED"
	StatusFailed    PaymentStatus = "FAILED"
	// StatusPaid is an alias some endpoints still emit for COMPLETED.
	StatusPaid PaymentStatus = "PAID"
)

// Normalize upper-cases the status and folds PAID into COMPLETED.
func (s PaymentStatus) Normalize() PaymentStatus {
	n := PaymentStatus(strings.ToUpper(strings.TrimSpace(string(s))))
	if n == StatusPaid {
		return StatusCompleted
	}
	return n
}

// Settled reports whether the payment went through.
func (s PaymentStatus) Settled() bool {
	return s.Normalize() == StatusCompleted
}

// Kind is the shape of a transaction, derived from which fields are populated.
type Kind string

const (
	KindMembership      Kind = "MEMBERSHIP"
	KindClass           Kind = "CLASS"
	KindSession         Kind = "SESSION"
	KindMembershipClass Kind = "MEMBERSHIP_CLASS"
	KindUnknown         Kind = "UNKNOWN"
)

// Transaction is one purchase: a membership, a class enrollment or a single-day session.
type Transaction struct {
	ID              int64         `json:"id"`
	TransactionCode string        `json:"transactionCode"`
	UserID          int64         `json:"userId"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	PaymentMethod   string        `json:"paymentMethod,omitempty"`
	TotalAmount     Amount        `json:"totalAmount"`
	ProcessingFee   Amount        `json:"processingFee"`
	CreatedAt       *LocalTime    `json:"createdAt,omitempty"`

	MembershipType          MembershipType `json:"membershipType,omitempty"`
	MembershipActivatedDate *LocalTime     `json:"membershipActivatedDate,omitempty"`
	MembershipExpiryDate    *LocalTime     `json:"membershipExpiryDate,omitempty"`

	ClassID      *int64 `json:"classId,omitempty"`
	ClassName    string `json:"className,omitempty"`
	ScheduleID   *int64 `json:"scheduleId,omitempty"`
	ScheduleDay  string `json:"scheduleDay,omitempty"`
	ScheduleTime string `json:"scheduleTime,omitempty"`
	ScheduleDate string `json:"scheduleDate,omitempty"`

	SessionCompleted bool `json:"sessionCompleted,omitempty"`
	Version          int  `json:"version,omitempty"`
}

// Kind derives the transaction's shape. A SESSION membership type wins over
// anything else that happens to be populated.
func (t Transaction) Kind() Kind {
	mt := t.MembershipType.Normalize()
	switch {
	case mt == Session:
		return KindSession
	case t.ClassID != nil && mt != "":
		return KindMembershipClass
	case t.ClassID != nil:
		return KindClass
	case mt != "":
		return KindMembership
	default:
		return KindUnknown
	}
}

// IsPlainEnrollment reports a class enrollment carrying its own schedule and
// no backing membership.
func (t Transaction) IsPlainEnrollment() bool {
	return t.ClassID != nil && t.ScheduleID != nil && t.MembershipType.Normalize() == ""
}

// HasSchedule reports whether the transaction is bound to a dated slot.
func (t Transaction) HasSchedule() bool {
	return strings.TrimSpace(t.ScheduleDate) != ""
}

// Activated reports whether an administrator has stamped the membership.
func (t Transaction) Activated() bool {
	return t.MembershipActivatedDate != nil && !t.MembershipActivatedDate.IsZero()
}

// Amount is a whole-unit currency amount. Decimal wire values are rounded.
type Amount int64

func (a *Amount) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid amount %s: %w", b, err)
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", b, err)
	}
	*a = Amount(math.Round(f))
	return nil
}

// LocalTime accepts the backend's date, local date-time and RFC 3339 formats.
// Values without a zone are "floating" and take the zone of whoever reads them.
type LocalTime struct {
	time.Time
	floating bool
}

const localDateTimeLayout = "2006-01-02T15:04:05"

var floatingLayouts = []string{
	localDateTimeLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NewLocalTime wraps t. The zone of t is kept.
func NewLocalTime(t time.Time) *LocalTime {
	return &LocalTime{Time: t}
}

// ParseLocalTime parses any accepted wire format.
func ParseLocalTime(raw string) (LocalTime, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return LocalTime{Time: t}, nil
	}
	for _, layout := range floatingLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return LocalTime{Time: t, floating: true}, nil
		}
	}
	return LocalTime{}, fmt.Errorf("unrecognised time %q", raw)
}

// In returns the instant as observed in loc. Floating values keep their wall clock.
func (t LocalTime) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if !t.floating {
		return t.Time.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func (t *LocalTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = LocalTime{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		*t = LocalTime{}
		return nil
	}
	parsed, err := ParseLocalTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	if t.floating {
		return json.Marshal(t.Format(localDateTimeLayout))
	}
	return json.Marshal(t.Format(time.RFC3339))
}
