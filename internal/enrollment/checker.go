// internal/enrollment/checker.go
package enrollment

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ironcore/internal/apperr"
)

// Backend is the read-only slice of the REST API the checker needs.
type Backend interface {
	CheckConflict(ctx context.Context, userID, scheduleID int64) (ConflictInfo, error)
	CheckActiveEnrollment(ctx context.Context, userID, classID int64) (EnrollmentInfo, error)
}

// Checker runs the enrollment checks against the backend. Every check is
// read-only and safe to retry.
type Checker struct {
	backend Backend
	tracer  trace.Tracer
}

func NewChecker(backend Backend) *Checker {
	return &Checker{
		backend: backend,
		tracer:  otel.Tracer("ironcore/enrollment"),
	}
}

// ScheduleConflict asks whether another enrollment of the user occupies the same date and slot.
func (c *Checker) ScheduleConflict(ctx context.Context, userID, scheduleID int64) (*Conflict, error) {
	if scheduleID <= 0 {
		return nil, apperr.Invalid("scheduleId", "select a schedule first")
	}
	info, err := c.backend.CheckConflict(ctx, userID, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("check schedule conflict: %w", err)
	}
	return info.conflict(), nil
}

// ActiveEnrollment asks whether the user already holds an enrollment in classID.
func (c *Checker) ActiveEnrollment(ctx context.Context, userID, classID int64) (*Conflict, error) {
	if classID <= 0 {
		return nil, apperr.Invalid("classId", "is required")
	}
	info, err := c.backend.CheckActiveEnrollment(ctx, userID, classID)
	if err != nil {
		return nil, fmt.Errorf("check active enrollment: %w", err)
	}
	return info.conflict(), nil
}

// Check runs the schedule check first and only then the same-class check,
// so a time conflict is reported even when the class is also a duplicate.
// Any error blocks the enrollment.
func (c *Checker) Check(ctx context.Context, userID, classID, scheduleID int64) (*Conflict, error) {
	ctx, span := c.tracer.Start(ctx, "enrollment.check",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("class.id", classID),
			attribute.Int64("schedule.id", scheduleID),
		),
	)
	defer span.End()

	conflict, err := c.ScheduleConflict(ctx, userID, scheduleID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if conflict != nil {
		span.SetAttributes(attribute.String("conflict.reason", string(conflict.Reason)))
		return conflict, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conflict, err = c.ActiveEnrollment(ctx, userID, classID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if conflict != nil {
		span.SetAttributes(attribute.String("conflict.reason", string(conflict.Reason)))
	}
	return conflict, nil
}
