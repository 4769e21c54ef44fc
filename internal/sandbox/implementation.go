// internal/sandbox/implementation.go
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ironcore/internal/account"
	"ironcore/internal/apperr"
	"ironcore/internal/enrollment"
	"ironcore/internal/membership"
	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

const maxUpdateAttempts = 3

// Options tunes the sandbox service. Zero values take defaults.
type Options struct {
	Plans     map[transaction.MembershipType]membership.Plan
	AuthEvery time.Duration
	AuthBurst int
	Now       func() time.Time
	Logger    *zap.Logger
}

// service implements the Service interface.
type service struct {
	store Store
	plans map[transaction.MembershipType]membership.Plan
	now   func() time.Time
	log   *zap.Logger

	authEvery time.Duration
	authBurst int
	limitMu   sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewService creates the sandbox backend over store.
func NewService(store Store, opts Options) Service {
	if opts.Plans == nil {
		opts.Plans = membership.DefaultPlans
	}
	if opts.AuthEvery <= 0 {
		opts.AuthEvery = time.Minute / 5
	}
	if opts.AuthBurst <= 0 {
		opts.AuthBurst = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &service{
		store:     store,
		plans:     opts.Plans,
		now:       opts.Now,
		log:       opts.Logger.Named("sandbox"),
		authEvery: opts.AuthEvery,
		authBurst: opts.AuthBurst,
		limiters:  map[string]*rate.Limiter{},
	}
}

// allow applies a token bucket per username to register and login attempts.
func (s *service) allow(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	s.limitMu.Lock()
	defer s.limitMu.Unlock()

	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.authEvery), s.authBurst)
		s.limiters[key] = l
	}
	return l.Allow()
}

func (s *service) Register(ctx context.Context, username, email, password string) (account.User, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return account.User{}, apperr.Invalid("username", "is required")
	case len(password) < 8:
		return account.User{}, apperr.Invalid("password", "must be at least 8 characters")
	}
	if !s.allow(username) {
		return account.User{}, ErrRateLimited
	}

	hash, salt, err := hashPassword(password)
	if err != nil {
		return account.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	rec := &UserRecord{
		User:       account.User{Username: username, Email: strings.TrimSpace(email), Role: account.RoleMember},
		Credential: Credential{PasswordHash: hash, Salt: salt},
	}
	if err := s.store.CreateUser(ctx, rec); err != nil {
		return account.User{}, err
	}
	s.log.Info("user registered", zap.Int64("user_id", rec.ID), zap.String("username", rec.Username))
	return rec.User, nil
}

// Authenticate verifies a user's credentials. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *service) Authenticate(ctx context.Context, username, password string) (account.User, error) {
	if !s.allow(username) {
		return account.User{}, ErrRateLimited
	}
	rec, err := s.store.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		return account.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return account.User{}, fmt.Errorf("authentication failed: %w", err)
	}
	ok, err := verifyPassword(password, rec.Credential)
	if err != nil {
		return account.User{}, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return account.User{}, ErrInvalidCredentials
	}
	return rec.User, nil
}

func (s *service) User(ctx context.Context, id int64) (account.User, error) {
	rec, err := s.store.UserByID(ctx, id)
	if err != nil {
		return account.User{}, err
	}
	return rec.User, nil
}

func (s *service) MembershipStatus(ctx context.Context, userID int64) (membership.Status, error) {
	txs, err := s.store.UserTransactions(ctx, userID)
	if err != nil {
		return membership.Status{}, err
	}
	return membership.DeriveStatus(txs, s.now()), nil
}

func (s *service) Classes(ctx context.Context) ([]schedule.Class, error) {
	return s.store.Classes(ctx)
}

func (s *service) Schedules(ctx context.Context, classID int64) ([]schedule.Schedule, error) {
	if _, err := s.store.Class(ctx, classID); err != nil {
		return nil, err
	}
	return s.store.Schedules(ctx, classID)
}

func (s *service) Schedule(ctx context.Context, id int64) (schedule.Schedule, error) {
	return s.store.Schedule(ctx, id)
}

func (s *service) CheckConflict(ctx context.Context, userID, scheduleID int64) (enrollment.ConflictInfo, error) {
	target, err := s.store.Schedule(ctx, scheduleID)
	if err != nil {
		return enrollment.ConflictInfo{}, err
	}
	txs, err := s.store.UserTransactions(ctx, userID)
	if err != nil {
		return enrollment.ConflictInfo{}, err
	}
	return enrollment.ScheduleConflictInfo(enrollment.FindScheduleConflict(txs, target, s.now())), nil
}

func (s *service) CheckActiveEnrollment(ctx context.Context, userID, classID int64) (enrollment.EnrollmentInfo, error) {
	txs, err := s.store.UserTransactions(ctx, userID)
	if err != nil {
		return enrollment.EnrollmentInfo{}, err
	}
	return enrollment.ActiveEnrollmentInfo(enrollment.FindActiveEnrollment(txs, classID, s.now())), nil
}

// CreateTransaction re-validates a submitted transaction and stores it as
// PENDING. Amounts come from the plan catalog or the class fee; schedule
// fields come from the stored schedule.
func (s *service) CreateTransaction(ctx context.Context, in transaction.Transaction) (transaction.Transaction, error) {
	if in.UserID <= 0 {
		return transaction.Transaction{}, apperr.Invalid("userId", "is required")
	}
	txs, err := s.store.UserTransactions(ctx, in.UserID)
	if err != nil {
		return transaction.Transaction{}, err
	}

	var draft transaction.Draft
	mt := in.MembershipType.Normalize()
	switch {
	case mt != "":
		plan, ok := s.plans[mt]
		if !ok {
			return transaction.Transaction{}, apperr.Invalid("membershipType", fmt.Sprintf("unknown plan %q", in.MembershipType))
		}
		st := membership.DeriveStatus(txs, s.now())
		if membership.Blocking(membership.ResolveState(st, s.now())) {
			return transaction.Transaction{}, fmt.Errorf("%w: membership %s already held", ErrBlocked, st.TransactionCode)
		}
		kind := transaction.KindMembership
		if mt == transaction.Session {
			kind = transaction.KindSession
		}
		draft, err = transaction.BuildDraft(kind, transaction.DraftInput{
			UserID:         in.UserID,
			PaymentMethod:  in.PaymentMethod,
			Subtotal:       plan.Price,
			MembershipType: mt,
		})

	case in.ClassID != nil:
		draft, err = s.classDraft(ctx, in, txs)

	default:
		return transaction.Transaction{}, apperr.Invalid("membershipType", "or classId is required")
	}
	if err != nil {
		return transaction.Transaction{}, err
	}

	tx := draft.Transaction()
	if transaction.ValidCode(in.TransactionCode) {
		tx.TransactionCode = in.TransactionCode
	}
	tx.CreatedAt = transaction.NewLocalTime(s.now())

	ev, err := NewEvent(EventTransactionCreated, tx)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if err := s.store.CreateTransaction(ctx, &tx, ev); err != nil {
		return transaction.Transaction{}, fmt.Errorf("failed to store transaction: %w", err)
	}
	s.log.Info("transaction created",
		zap.Int64("transaction_id", tx.ID),
		zap.String("transaction_code", tx.TransactionCode),
		zap.Int64("user_id", tx.UserID),
		zap.Int64("total", int64(tx.TotalAmount)),
	)
	return tx, nil
}

func (s *service) classDraft(ctx context.Context, in transaction.Transaction, txs []transaction.Transaction) (transaction.Draft, error) {
	if in.ScheduleID == nil || *in.ScheduleID <= 0 {
		return transaction.Draft{}, apperr.Invalid("scheduleId", "is required")
	}
	class, err := s.store.Class(ctx, *in.ClassID)
	if err != nil {
		return transaction.Draft{}, err
	}
	sched, err := s.store.Schedule(ctx, *in.ScheduleID)
	if err != nil {
		return transaction.Draft{}, err
	}
	if sched.ClassID != class.ID {
		return transaction.Draft{}, apperr.Invalid("scheduleId", "does not belong to the class")
	}
	if sched.IsFull() {
		return transaction.Draft{}, ErrScheduleFull
	}
	if err := enrollmentBlocked(txs, sched, class.ID, class.Name, s.now()); err != nil {
		return transaction.Draft{}, err
	}

	return transaction.BuildDraft(transaction.KindClass, transaction.DraftInput{
		UserID:        in.UserID,
		PaymentMethod: in.PaymentMethod,
		Subtotal:      class.Fee,
		ClassID:       &class.ID,
		ClassName:     class.Name,
		ScheduleID:    &sched.ID,
		ScheduleDay:   sched.Day,
		ScheduleTime:  sched.TimeSlot,
		ScheduleDate:  sched.Date,
	})
}

func (s *service) Transaction(ctx context.Context, id int64) (transaction.Transaction, error) {
	return s.store.Transaction(ctx, id)
}

func (s *service) UserTransactions(ctx context.Context, userID int64) ([]transaction.Transaction, error) {
	return s.store.UserTransactions(ctx, userID)
}

// UpdateStatus applies a payment status transition. Repeating a transition
// that already happened returns the stored record without side effects; a
// class enrollment takes its seat only on the PENDING to COMPLETED edge.
func (s *service) UpdateStatus(ctx context.Context, id int64, status transaction.PaymentStatus) (transaction.Transaction, error) {
	to := status.Normalize()
	if to != transaction.StatusCompleted && to != transaction.StatusFailed {
		return transaction.Transaction{}, apperr.Invalid("status", "must be COMPLETED or FAILED")
	}

	for attempt := 1; ; attempt++ {
		tx, err := s.store.Transaction(ctx, id)
		if err != nil {
			return transaction.Transaction{}, err
		}
		from := tx.PaymentStatus.Normalize()
		changed, err := transaction.Advance(&tx, to)
		if err != nil {
			return transaction.Transaction{}, err
		}
		if !changed {
			return tx, nil
		}

		eventType := EventPaymentConfirmed
		if to == transaction.StatusFailed {
			eventType = EventPaymentFailed
		}
		ev, err := NewEvent(eventType, StatusChangedEvent{From: from, To: to})
		if err != nil {
			return transaction.Transaction{}, err
		}
		ch := Change{Event: ev}
		if to == transaction.StatusCompleted {
			ch.Check = s.settleCheck(tx)
			if tx.ScheduleID != nil {
				ch.ScheduleID, ch.SeatDelta = *tx.ScheduleID, 1
			}
		}

		err = s.store.UpdateTransaction(ctx, &tx, ch)
		if errors.Is(err, ErrConcurrencyConflict) && attempt < maxUpdateAttempts {
			s.log.Debug("retrying status update", zap.Int64("transaction_id", id), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return transaction.Transaction{}, err
		}
		s.log.Info("payment status changed",
			zap.Int64("transaction_id", tx.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return tx, nil
	}
}

// settleCheck re-runs the purchase checks against the rows settled since tx
// was created, so two pending purchases cannot both be paid.
func (s *service) settleCheck(tx transaction.Transaction) func([]transaction.Transaction) error {
	return func(others []transaction.Transaction) error {
		now := s.now()
		if tx.ClassID != nil {
			target := schedule.Schedule{Date: tx.ScheduleDate, TimeSlot: tx.ScheduleTime}
			return enrollmentBlocked(others, target, *tx.ClassID, tx.ClassName, now)
		}
		st := membership.DeriveStatus(others, now)
		if membership.Blocking(membership.ResolveState(st, now)) {
			return fmt.Errorf("%w: membership %s already held", ErrBlocked, st.TransactionCode)
		}
		return nil
	}
}

func enrollmentBlocked(txs []transaction.Transaction, target schedule.Schedule, classID int64, className string, now time.Time) error {
	if target.Date != "" {
		if c := enrollment.FindScheduleConflict(txs, target, now); c != nil {
			return fmt.Errorf("%w: schedule conflicts with %s", ErrBlocked, c.TransactionCode)
		}
	}
	if c := enrollment.FindActiveEnrollment(txs, classID, now); c != nil {
		return fmt.Errorf("%w: already enrolled in %s", ErrBlocked, className)
	}
	return nil
}

// Activate starts the membership period of a paid plan or session purchase.
func (s *service) Activate(ctx context.Context, id int64) (transaction.Transaction, error) {
	tx, err := s.store.Transaction(ctx, id)
	if err != nil {
		return transaction.Transaction{}, err
	}
	plan, ok := s.plans[tx.MembershipType.Normalize()]
	if !ok || tx.ClassID != nil {
		return transaction.Transaction{}, membership.ErrNotMembership
	}
	if err := membership.Activate(&tx, plan, s.now()); err != nil {
		return transaction.Transaction{}, err
	}

	ev, err := NewEvent(EventMembershipActivated, map[string]any{
		"activatedDate": tx.MembershipActivatedDate,
		"expiryDate":    tx.MembershipExpiryDate,
	})
	if err != nil {
		return transaction.Transaction{}, err
	}
	if err := s.store.UpdateTransaction(ctx, &tx, Change{Event: ev}); err != nil {
		return transaction.Transaction{}, err
	}
	s.log.Info("membership activated", zap.Int64("transaction_id", tx.ID), zap.String("membership_type", string(tx.MembershipType)))
	return tx, nil
}

// CompleteSession marks a paid class enrollment or session pass as attended.
// Completing it again returns the stored record unchanged.
func (s *service) CompleteSession(ctx context.Context, id int64) (transaction.Transaction, error) {
	tx, err := s.store.Transaction(ctx, id)
	if err != nil {
		return transaction.Transaction{}, err
	}
	switch {
	case tx.Kind() == transaction.KindMembership, tx.Kind() == transaction.KindUnknown:
		return transaction.Transaction{}, ErrNoSession
	case !tx.PaymentStatus.Settled():
		return transaction.Transaction{}, fmt.Errorf("%w: transaction %d is %s", membership.ErrNotPaid, tx.ID, tx.PaymentStatus)
	case tx.SessionCompleted:
		return tx, nil
	}

	tx.SessionCompleted = true
	ev, err := NewEvent(EventSessionCompleted, map[string]any{"completedAt": transaction.NewLocalTime(s.now())})
	if err != nil {
		return transaction.Transaction{}, err
	}
	if err := s.store.UpdateTransaction(ctx, &tx, Change{Event: ev}); err != nil {
		return transaction.Transaction{}, err
	}
	s.log.Info("session completed", zap.Int64("transaction_id", tx.ID), zap.Int64("user_id", tx.UserID))
	return tx, nil
}

func (s *service) AssignClasses(ctx context.Context, in membership.AssignRequest) ([]membership.Assignment, error) {
	tx, err := s.store.Transaction(ctx, in.TransactionID)
	if err != nil {
		return nil, err
	}
	switch {
	case tx.UserID != in.UserID:
		return nil, ErrForbidden
	case tx.Kind() != transaction.KindMembership:
		return nil, membership.ErrNotMembership
	case !tx.PaymentStatus.Settled():
		return nil, membership.ErrNotPaid
	}
	if err := membership.ValidateSelection(tx.MembershipType, in.ClassIDs); err != nil {
		return nil, err
	}

	as := make([]membership.Assignment, 0, len(in.ClassIDs))
	for _, id := range in.ClassIDs {
		c, err := s.store.Class(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.Invalid("classIds", fmt.Sprintf("class %d does not exist", id))
		}
		if err != nil {
			return nil, err
		}
		as = append(as, membership.Assignment{UserID: in.UserID, TransactionID: tx.ID, ClassID: c.ID, ClassName: c.Name})
	}

	ev, err := NewEvent(EventClassesAssigned, in)
	if err != nil {
		return nil, err
	}
	return s.store.AssignClasses(ctx, tx.ID, as, ev)
}

func (s *service) Assignments(ctx context.Context, transactionID int64) ([]membership.Assignment, error) {
	return s.store.Assignments(ctx, transactionID)
}

func (s *service) Journal(ctx context.Context, transactionID int64) ([]Event, error) {
	return s.store.Events(ctx, transactionID)
}
