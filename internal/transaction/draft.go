// internal/transaction/draft.go
package transaction

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"ironcore/internal/apperr"
)

const (
	// MembershipSurchargeRate applies to plan and session purchases.
	MembershipSurchargeRate = 0.12
	// ClassProcessingFee is the flat fee added to every class enrollment.
	ClassProcessingFee = 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// DraftInput is what a purchase page knows before the transaction exists.
// Subtotal is the plan price for MEMBERSHIP/SESSION and the class fee for CLASS.
type DraftInput struct {
	UserID         int64          `json:"userId" validate:"gt=0"`
	PaymentMethod  string         `json:"paymentMethod" validate:"required"`
	Subtotal       int64          `json:"subtotal" validate:"gt=0"`
	MembershipType MembershipType `json:"membershipType"`
	ClassID        *int64         `json:"classId"`
	ClassName      string         `json:"className"`
	ScheduleID     *int64         `json:"scheduleId"`
	ScheduleDay    string         `json:"scheduleDay"`
	ScheduleTime   string         `json:"scheduleTime"`
	ScheduleDate   string         `json:"scheduleDate"`
}

// Draft is a transaction that has not been submitted. Its amounts are advisory;
// the backend recomputes them.
type Draft struct {
	Kind            Kind
	TransactionCode string
	UserID          int64
	PaymentMethod   string
	Subtotal        int64
	ProcessingFee   int64
	TotalAmount     int64
	MembershipType  MembershipType
	ClassID         *int64
	ClassName       string
	ScheduleID      *int64
	ScheduleDay     string
	ScheduleTime    string
	ScheduleDate    string
}

// MembershipFee is round(subtotal * 12%).
func MembershipFee(subtotal int64) int64 {
	return int64(math.Round(float64(subtotal) * MembershipSurchargeRate))
}

// BuildDraft validates input for kind and computes fees.
// MEMBERSHIP needs a tier, CLASS needs a class and schedule, SESSION is a
// one-day membership whose type is forced to SESSION.
func BuildDraft(kind Kind, in DraftInput) (Draft, error) {
	if err := validate.Struct(in); err != nil {
		return Draft{}, toValidationError(err)
	}

	d := Draft{
		Kind:          kind,
		UserID:        in.UserID,
		PaymentMethod: in.PaymentMethod,
		Subtotal:      in.Subtotal,
	}

	switch kind {
	case KindMembership:
		mt := in.MembershipType.Normalize()
		if !mt.IsTier() {
			return Draft{}, apperr.Invalid("membershipType", "must be one of SILVER, GOLD, PLATINUM")
		}
		d.MembershipType = mt
		d.ProcessingFee = MembershipFee(in.Subtotal)

	case KindSession:
		d.MembershipType = Session
		d.ProcessingFee = MembershipFee(in.Subtotal)

	case KindClass:
		if in.ClassID == nil || *in.ClassID <= 0 {
			return Draft{}, apperr.Invalid("classId", "is required")
		}
		if in.ScheduleID == nil || *in.ScheduleID <= 0 {
			return Draft{}, apperr.Invalid("scheduleId", "is required")
		}
		d.ClassID = in.ClassID
		d.ClassName = in.ClassName
		d.ScheduleID = in.ScheduleID
		d.ScheduleDay = in.ScheduleDay
		d.ScheduleTime = in.ScheduleTime
		d.ScheduleDate = in.ScheduleDate
		d.ProcessingFee = ClassProcessingFee

	default:
		return Draft{}, apperr.Invalid("kind", "must be MEMBERSHIP, CLASS or SESSION")
	}

	d.TotalAmount = d.Subtotal + d.ProcessingFee
	d.TransactionCode = NewCode(kind, d.MembershipType)
	return d, nil
}

// Transaction converts the draft into the PENDING record submitted to the backend.
func (d Draft) Transaction() Transaction {
	return Transaction{
		TransactionCode: d.TransactionCode,
		UserID:          d.UserID,
		PaymentStatus:   StatusPending,
		PaymentMethod:   d.PaymentMethod,
		TotalAmount:     Amount(d.TotalAmount),
		ProcessingFee:   Amount(d.ProcessingFee),
		MembershipType:  d.MembershipType,
		ClassID:         d.ClassID,
		ClassName:       d.ClassName,
		ScheduleID:      d.ScheduleID,
		ScheduleDay:     d.ScheduleDay,
		ScheduleTime:    d.ScheduleTime,
		ScheduleDate:    d.ScheduleDate,
	}
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return apperr.Invalid(fe.Field(), "is required")
		case "gt":
			return apperr.Invalid(fe.Field(), "must be greater than "+fe.Param())
		default:
			return apperr.Invalid(fe.Field(), "failed "+fe.Tag())
		}
	}
	return apperr.Invalid("", err.Error())
}
