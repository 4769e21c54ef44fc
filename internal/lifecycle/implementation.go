// internal/lifecycle/implementation.go
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ironcore/internal/account"
	"ironcore/internal/apperr"
	"ironcore/internal/enrollment"
	"ironcore/internal/membership"
	"ironcore/internal/payment"
	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

var (
	ErrClassNotFound = errors.New("class not found")
	ErrForbidden     = errors.New("administrator role required")
)

// Deps are the collaborators of the coordinator. Plans defaults to
// membership.DefaultPlans and Now to time.Now.
type Deps struct {
	Backend Backend
	Gateway payment.Gateway
	Plans   map[transaction.MembershipType]membership.Plan
	Logger  *zap.Logger
	Now     func() time.Time
}

type service struct {
	backend  Backend
	gateway  payment.Gateway
	checker  *enrollment.Checker
	plans    map[transaction.MembershipType]membership.Plan
	log      *zap.Logger
	now      func() time.Time
	tracer   trace.Tracer
	counters counters
}

// NewService creates a new lifecycle coordinator.
func NewService(d Deps) Service {
	if d.Plans == nil {
		d.Plans = membership.DefaultPlans
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &service{
		backend:  d.Backend,
		gateway:  d.Gateway,
		checker:  enrollment.NewChecker(d.Backend),
		plans:    d.Plans,
		log:      d.Logger.Named("lifecycle"),
		now:      d.Now,
		tracer:   otel.Tracer("ironcore/lifecycle"),
		counters: newCounters(otel.Meter("ironcore/lifecycle")),
	}
}

func (s *service) CurrentUser(ctx context.Context) (account.User, error) {
	u, err := s.backend.Me(ctx)
	if err != nil {
		return account.User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return account.User{}, err
	}
	return u, nil
}

// GetMembershipStatus fails closed: callers gating a purchase must treat an
// error as a blocking condition.
func (s *service) GetMembershipStatus(ctx context.Context, user account.User) (MembershipView, error) {
	if user.ID <= 0 {
		return MembershipView{}, apperr.Invalid("userId", "is required")
	}
	st, err := s.backend.MembershipStatus(ctx, user.ID)
	if err != nil {
		return MembershipView{}, fmt.Errorf("failed to get membership status: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return MembershipView{}, err
	}
	return MembershipView{Status: st, State: membership.ResolveState(st, s.now())}, nil
}

// PrepareMembership gates a plan or session purchase and returns the draft
// to show for confirmation. Any ACTIVE or PENDING membership blocks both
// plan and session purchases.
func (s *service) PrepareMembership(ctx context.Context, user account.User, in PurchaseInput) (*Checkout, *enrollment.Conflict, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.PrepareMembership",
		trace.WithAttributes(attribute.Int64("user.id", user.ID), attribute.String("membership.type", string(in.Type))))
	defer span.End()

	mt := in.Type.Normalize()
	plan, ok := s.plans[mt]
	if !ok {
		return nil, nil, apperr.Invalid("membershipType", fmt.Sprintf("unknown plan %q", in.Type))
	}

	view, err := s.GetMembershipStatus(ctx, user)
	if err != nil {
		span.RecordError(err)
		s.log.Warn("membership status unavailable, purchase blocked", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, nil, err
	}
	if conflict := enrollment.HasBlockingMembership(view.Status, view.State); conflict != nil {
		s.counters.conflict(ctx, string(conflict.Reason))
		s.log.Info("membership purchase blocked",
			zap.Int64("user_id", user.ID),
			zap.String("reason", string(conflict.Reason)),
			zap.String("transaction_code", conflict.TransactionCode),
		)
		return nil, conflict, nil
	}

	kind := transaction.KindMembership
	if mt == transaction.Session {
		kind = transaction.KindSession
	}
	draft, err := transaction.BuildDraft(kind, transaction.DraftInput{
		UserID:         user.ID,
		PaymentMethod:  in.PaymentMethod,
		Subtotal:       plan.Price,
		MembershipType: mt,
	})
	if err != nil {
		return nil, nil, err
	}
	return &Checkout{Draft: draft, Status: view.Status, State: view.State}, nil, nil
}

func (s *service) PurchaseMembership(ctx context.Context, user account.User, in PurchaseInput) (*transaction.Transaction, *enrollment.Conflict, error) {
	checkout, conflict, err := s.PrepareMembership(ctx, user, in)
	if err != nil || conflict != nil {
		return nil, conflict, err
	}
	tx, err := s.Submit(ctx, checkout)
	return tx, nil, err
}

// LoadEnrollmentPage fetches the user, the class and its schedules in
// parallel. Nothing is returned unless all three succeed.
func (s *service) LoadEnrollmentPage(ctx context.Context, classID int64) (*EnrollmentPage, error) {
	if classID <= 0 {
		return nil, apperr.Invalid("classId", "is required")
	}

	var (
		user      account.User
		classes   []schedule.Class
		schedules []schedule.Schedule
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.backend.Me(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		classes, err = s.backend.Classes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		schedules, err = s.backend.Schedules(gctx, classID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load enrollment page: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, c := range classes {
		if c.ID == classID {
			return &EnrollmentPage{User: user, Class: c, Schedules: schedules}, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrClassNotFound, classID)
}

// PrepareEnrollment runs the booking checks strictly in order: schedule
// selectable, schedule conflict, duplicate class.
func (s *service) PrepareEnrollment(ctx context.Context, user account.User, in EnrollInput) (*Checkout, *enrollment.Conflict, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.PrepareEnrollment",
		trace.WithAttributes(
			attribute.Int64("user.id", user.ID),
			attribute.Int64("class.id", in.Class.ID),
			attribute.Int64("schedule.id", in.Schedule.ID),
		))
	defer span.End()

	switch {
	case user.ID <= 0:
		return nil, nil, apperr.Invalid("userId", "is required")
	case in.Class.ID <= 0:
		return nil, nil, apperr.Invalid("classId", "is required")
	case in.Schedule.ID <= 0:
		return nil, nil, apperr.Invalid("scheduleId", "select a schedule first")
	case in.Schedule.ClassID != 0 && in.Schedule.ClassID != in.Class.ID:
		return nil, nil, apperr.Invalid("scheduleId", "does not belong to the selected class")
	case in.Schedule.IsFull():
		return nil, nil, apperr.Invalid("scheduleId", schedule.ErrFull.Error())
	}

	conflict, err := s.checker.Check(ctx, user.ID, in.Class.ID, in.Schedule.ID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if conflict != nil {
		s.counters.conflict(ctx, string(conflict.Reason))
		s.log.Info("enrollment blocked",
			zap.Int64("user_id", user.ID),
			zap.Int64("schedule_id", in.Schedule.ID),
			zap.String("reason", string(conflict.Reason)),
		)
		return nil, conflict, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	classID, scheduleID := in.Class.ID, in.Schedule.ID
	draft, err := transaction.BuildDraft(transaction.KindClass, transaction.DraftInput{
		UserID:        user.ID,
		PaymentMethod: in.PaymentMethod,
		Subtotal:      in.Class.Fee,
		ClassID:       &classID,
		ClassName:     in.Class.Name,
		ScheduleID:    &scheduleID,
		ScheduleDay:   in.Schedule.Day,
		ScheduleTime:  in.Schedule.TimeSlot,
		ScheduleDate:  in.Schedule.Date,
	})
	if err != nil {
		return nil, nil, err
	}
	return &Checkout{Draft: draft}, nil, nil
}

func (s *service) EnrollInClass(ctx context.Context, user account.User, in EnrollInput) (*transaction.Transaction, *enrollment.Conflict, error) {
	checkout, conflict, err := s.PrepareEnrollment(ctx, user, in)
	if err != nil || conflict != nil {
		return nil, conflict, err
	}
	tx, err := s.Submit(ctx, checkout)
	return tx, nil, err
}

// Submit creates the PENDING transaction for a confirmed checkout. The
// returned record carries the backend's authoritative amounts.
func (s *service) Submit(ctx context.Context, checkout *Checkout) (*transaction.Transaction, error) {
	if checkout == nil {
		return nil, apperr.Invalid("checkout", "is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.backend.CreateTransaction(ctx, checkout.Draft)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if int64(tx.TotalAmount) != checkout.Draft.TotalAmount {
		s.log.Warn("backend amount differs from draft",
			zap.String("transaction_code", tx.TransactionCode),
			zap.Int64("draft_total", checkout.Draft.TotalAmount),
			zap.Int64("total", int64(tx.TotalAmount)),
		)
	}
	s.counters.created(ctx, string(checkout.Draft.Kind))
	s.log.Info("transaction created",
		zap.Int64("transaction_id", tx.ID),
		zap.String("transaction_code", tx.TransactionCode),
		zap.String("kind", string(checkout.Draft.Kind)),
	)
	return &tx, nil
}

func (s *service) ConfirmPayment(ctx context.Context, in ConfirmInput) (*Confirmation, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.ConfirmPayment",
		trace.WithAttributes(attribute.Int64("transaction.id", in.TransactionID)))
	defer span.End()

	tx, err := s.gateway.Confirm(ctx, payment.ConfirmRequest{
		TransactionID:   in.TransactionID,
		TransactionCode: in.TransactionCode,
		PIN:             in.PIN,
	})
	if err != nil {
		span.RecordError(err)
		s.counters.payment(ctx, "failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.counters.payment(ctx, "completed")
	return &Confirmation{Transaction: tx, Route: transaction.RouteAfterPayment(tx)}, nil
}

func (s *service) SelectClasses(ctx context.Context, user account.User, in SelectionInput) ([]membership.Assignment, error) {
	if in.TransactionID <= 0 {
		return nil, apperr.Invalid("transactionId", "is required")
	}

	tx, err := s.backend.GetTransaction(ctx, in.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case tx.UserID != user.ID:
		return nil, apperr.Invalid("transactionId", "belongs to another user")
	case tx.Kind() != transaction.KindMembership || !tx.MembershipType.IsTier():
		return nil, apperr.Invalid("transactionId", membership.ErrNotMembership.Error())
	case !tx.PaymentStatus.Settled():
		return nil, apperr.Invalid("transactionId", membership.ErrNotPaid.Error())
	}
	if err := membership.ValidateSelection(tx.MembershipType, in.ClassIDs); err != nil {
		return nil, err
	}

	assigned, err := s.backend.AssignMembershipClasses(ctx, membership.AssignRequest{
		UserID:        user.ID,
		TransactionID: tx.ID,
		ClassIDs:      in.ClassIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign classes: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return assigned, nil
}

func (s *service) ActivateMembership(ctx context.Context, admin account.User, transactionID int64) (*transaction.Transaction, error) {
	if !admin.IsAdmin() {
		return nil, ErrForbidden
	}
	if transactionID <= 0 {
		return nil, apperr.Invalid("transactionId", "is required")
	}
	tx, err := s.backend.ActivateTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to activate membership: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.log.Info("membership activated",
		zap.Int64("transaction_id", tx.ID),
		zap.Int64("admin_id", admin.ID),
	)
	return &tx, nil
}

// CompleteSession marks an attended class or session pass. The enrollment
// stops counting as active and the dashboard hides it.
func (s *service) CompleteSession(ctx context.Context, admin account.User, transactionID int64) (*transaction.Transaction, error) {
	if !admin.IsAdmin() {
		return nil, ErrForbidden
	}
	if transactionID <= 0 {
		return nil, apperr.Invalid("transactionId", "is required")
	}
	tx, err := s.backend.CompleteSession(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.log.Info("session completed",
		zap.Int64("transaction_id", tx.ID),
		zap.Int64("admin_id", admin.ID),
	)
	return &tx, nil
}

// Dashboard fails open: when transactions cannot be loaded the buckets are
// empty and Degraded is set.
func (s *service) Dashboard(ctx context.Context, user account.User, now time.Time) Dashboard {
	txs, err := s.backend.UserTransactions(ctx, user.ID)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.log.Warn("transactions unavailable", zap.Int64("user_id", user.ID), zap.Error(err))
		return Dashboard{Buckets: transaction.Classify(nil, now), Degraded: true}
	}
	return Dashboard{Buckets: transaction.Classify(txs, now)}
}
