// internal/sandbox/postgres_store.go
package sandbox

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ironcore/internal/membership"
	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

//go:embed schema.sql
var schemaSQL string

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
)

// PostgresStore persists the sandbox in PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, tracer: otel.Tracer("ironcore/sandbox/postgres")}
}

// OpenPostgres connects with lib/pq and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// serializationConflict maps a serializable transaction abort onto
// ErrConcurrencyConflict so callers retry it like a version mismatch.
func serializationConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == serializationFailure {
		return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pqErr.Message)
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *UserRecord) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE lower(username) = lower($1) OR ($2 <> '' AND lower(email) = lower($2)))`,
		u.Username, u.Email).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if exists {
		return ErrDuplicateUser
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, role, password_hash, salt)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, u.Username, u.Email, u.Role, u.Credential.PasswordHash, u.Credential.Salt).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.Credential.UserID = u.ID
	return nil
}

const userColumns = `id, username, email, role, password_hash, salt, created_at`

func scanUser(row interface{ Scan(...any) error }) (UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.Credential.PasswordHash, &u.Credential.Salt, &u.CreatedAt)
	if err != nil {
		return UserRecord{}, notFound(err)
	}
	u.Credential.UserID = u.ID
	return u, nil
}

func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (UserRecord, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username))
}

func (s *PostgresStore) UserByID(ctx context.Context, id int64) (UserRecord, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) SaveClass(ctx context.Context, c *schedule.Class) error {
	if c.ID != 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO classes (id, name, trainer, description, fee) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = $2, trainer = $3, description = $4, fee = $5
		`, c.ID, c.Name, c.Trainer, c.Description, c.Fee)
		return err
	}
	return s.db.QueryRowContext(ctx,
		`INSERT INTO classes (name, trainer, description, fee) VALUES ($1, $2, $3, $4) RETURNING id`,
		c.Name, c.Trainer, c.Description, c.Fee).Scan(&c.ID)
}

func (s *PostgresStore) SaveSchedule(ctx context.Context, sc *schedule.Schedule) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO schedules (class_id, day, time_slot, date, max_participants, enrolled_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, (SELECT name FROM classes WHERE id = $1)
	`, sc.ClassID, sc.Day, sc.TimeSlot, sc.Date, sc.MaxParticipants, sc.EnrolledCount).Scan(&sc.ID, &sc.ClassName)
	return err
}

func (s *PostgresStore) Classes(ctx context.Context) ([]schedule.Class, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, trainer, description, fee FROM classes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	out := []schedule.Class{}
	for rows.Next() {
		var c schedule.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Trainer, &c.Description, &c.Fee); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Class(ctx context.Context, id int64) (schedule.Class, error) {
	var c schedule.Class
	err := s.db.QueryRowContext(ctx, `SELECT id, name, trainer, description, fee FROM classes WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Trainer, &c.Description, &c.Fee)
	return c, notFound(err)
}

const scheduleQuery = `
	SELECT s.id, s.class_id, c.name, s.day, s.time_slot, s.date, s.max_participants, s.enrolled_count
	FROM schedules s JOIN classes c ON c.id = s.class_id`

func scanSchedule(row interface{ Scan(...any) error }) (schedule.Schedule, error) {
	var sc schedule.Schedule
	err := row.Scan(&sc.ID, &sc.ClassID, &sc.ClassName, &sc.Day, &sc.TimeSlot, &sc.Date, &sc.MaxParticipants, &sc.EnrolledCount)
	return sc, notFound(err)
}

func (s *PostgresStore) Schedules(ctx context.Context, classID int64) ([]schedule.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, scheduleQuery+` WHERE s.class_id = $1 ORDER BY s.date, s.id`, classID)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	out := []schedule.Schedule{}
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Schedule(ctx context.Context, id int64) (schedule.Schedule, error) {
	return scanSchedule(s.db.QueryRowContext(ctx, scheduleQuery+` WHERE s.id = $1`, id))
}

const transactionColumns = `id, transaction_code, user_id, payment_status, payment_method, total_amount,
	processing_fee, created_at, membership_type, membership_activated_date, membership_expiry_date,
	class_id, class_name, schedule_id, schedule_day, schedule_time, schedule_date, session_completed, version`

func scanTransaction(row interface{ Scan(...any) error }) (transaction.Transaction, error) {
	var (
		tx                  transaction.Transaction
		total, fee          int64
		createdAt           time.Time
		activated, expiry   sql.NullTime
		classID, scheduleID sql.NullInt64
		status, mt          string
	)
	err := row.Scan(&tx.ID, &tx.TransactionCode, &tx.UserID, &status, &tx.PaymentMethod, &total,
		&fee, &createdAt, &mt, &activated, &expiry,
		&classID, &tx.ClassName, &scheduleID, &tx.ScheduleDay, &tx.ScheduleTime, &tx.ScheduleDate,
		&tx.SessionCompleted, &tx.Version)
	if err != nil {
		return transaction.Transaction{}, notFound(err)
	}

	tx.PaymentStatus = transaction.PaymentStatus(status)
	tx.MembershipType = transaction.MembershipType(mt)
	tx.TotalAmount = transaction.Amount(total)
	tx.ProcessingFee = transaction.Amount(fee)
	tx.CreatedAt = transaction.NewLocalTime(createdAt)
	if activated.Valid {
		tx.MembershipActivatedDate = transaction.NewLocalTime(activated.Time)
	}
	if expiry.Valid {
		tx.MembershipExpiryDate = transaction.NewLocalTime(expiry.Time)
	}
	if classID.Valid {
		tx.ClassID = &classID.Int64
	}
	if scheduleID.Valid {
		tx.ScheduleID = &scheduleID.Int64
	}
	return tx, nil
}

func nullTime(t *transaction.LocalTime) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.Time, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func insertEvent(ctx context.Context, q interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, transactionID int64, version int, ev Event) error {
	if ev.Type == "" {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO transaction_events (transaction_id, event_type, event_data, version, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, transactionID, ev.Type, []byte(ev.Data), version, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, t *transaction.Transaction, ev Event) error {
	ctx, span := s.tracer.Start(ctx, "postgres.create_transaction",
		trace.WithAttributes(attribute.String("transaction.code", t.TransactionCode)))
	defer span.End()

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	createdAt := time.Now().UTC()
	if t.CreatedAt != nil && !t.CreatedAt.IsZero() {
		createdAt = t.CreatedAt.Time
	}
	err = dbtx.QueryRowContext(ctx, `
		INSERT INTO transactions (transaction_code, user_id, payment_status, payment_method, total_amount,
			processing_fee, created_at, membership_type, class_id, class_name, schedule_id,
			schedule_day, schedule_time, schedule_date, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)
		RETURNING id
	`, t.TransactionCode, t.UserID, string(t.PaymentStatus), t.PaymentMethod, int64(t.TotalAmount),
		int64(t.ProcessingFee), createdAt, string(t.MembershipType), nullInt(t.ClassID), t.ClassName,
		nullInt(t.ScheduleID), t.ScheduleDay, t.ScheduleTime, t.ScheduleDate).Scan(&t.ID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.Version = 1
	t.CreatedAt = transaction.NewLocalTime(createdAt)

	if err := insertEvent(ctx, dbtx, t.ID, t.Version, ev); err != nil {
		return err
	}
	return dbtx.Commit()
}

func (s *PostgresStore) Transaction(ctx context.Context, id int64) (transaction.Transaction, error) {
	return scanTransaction(s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

func (s *PostgresStore) UserTransactions(ctx context.Context, userID int64) ([]transaction.Transaction, error) {
	return queryTransactions(ctx, s.db, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 ORDER BY id DESC`, userID)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryTransactions(ctx context.Context, q queryer, query string, args ...any) ([]transaction.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []transaction.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateTransaction(ctx context.Context, t *transaction.Transaction, ch Change) error {
	ctx, span := s.tracer.Start(ctx, "postgres.update_transaction",
		trace.WithAttributes(
			attribute.Int64("transaction.id", t.ID),
			attribute.Int("expected.version", t.Version),
		))
	defer span.End()

	err := serializationConflict(s.updateTransaction(ctx, t, ch))
	if errors.Is(err, ErrConcurrencyConflict) {
		span.SetAttributes(attribute.Bool("conflict.detected", true))
	}
	return err
}

func (s *PostgresStore) updateTransaction(ctx context.Context, t *transaction.Transaction, ch Change) error {
	dbtx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	var version int
	err = dbtx.QueryRowContext(ctx, `
		UPDATE transactions
		SET payment_status = $1, membership_activated_date = $2, membership_expiry_date = $3,
			session_completed = $4, version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING version
	`, string(t.PaymentStatus), nullTime(t.MembershipActivatedDate), nullTime(t.MembershipExpiryDate),
		t.SessionCompleted, t.ID, t.Version).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := dbtx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, t.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConcurrencyConflict
	}
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	if ch.Check != nil {
		others, err := queryTransactions(ctx, dbtx,
			`SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 AND id <> $2 ORDER BY id DESC`,
			t.UserID, t.ID)
		if err != nil {
			return err
		}
		if err := ch.Check(others); err != nil {
			return err
		}
	}

	if ch.SeatDelta != 0 {
		res, err := dbtx.ExecContext(ctx, `
			UPDATE schedules SET enrolled_count = enrolled_count + $1
			WHERE id = $2 AND ($1 < 0 OR enrolled_count + $1 <= max_participants)
		`, ch.SeatDelta, ch.ScheduleID)
		if err != nil {
			return fmt.Errorf("update seats: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrScheduleFull
		}
	}

	if err := insertEvent(ctx, dbtx, t.ID, version, ch.Event); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	t.Version = version
	return nil
}

func (s *PostgresStore) AssignClasses(ctx context.Context, transactionID int64, as []membership.Assignment, ev Event) ([]membership.Assignment, error) {
	if len(as) == 0 {
		return []membership.Assignment{}, nil
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	var (
		version int
		count   int
	)
	err = dbtx.QueryRowContext(ctx, `
		SELECT t.version, (SELECT COUNT(*) FROM membership_classes WHERE transaction_id = t.id)
		FROM transactions t WHERE t.id = $1 FOR UPDATE
	`, transactionID).Scan(&version, &count)
	if err != nil {
		return nil, notFound(err)
	}
	if count > 0 {
		return nil, ErrAlreadyAssigned
	}

	classIDs := make([]int64, len(as))
	names := make([]string, len(as))
	for i, a := range as {
		classIDs[i] = a.ClassID
		names[i] = a.ClassName
	}

	rows, err := dbtx.QueryContext(ctx, `
		INSERT INTO membership_classes (user_id, transaction_id, class_id, class_name)
		SELECT $1, $2, c.class_id, c.class_name
		FROM unnest($3::bigint[], $4::text[]) AS c(class_id, class_name)
		RETURNING id, user_id, transaction_id, class_id, class_name
	`, as[0].UserID, transactionID, pq.Array(classIDs), pq.Array(names))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyAssigned
		}
		return nil, fmt.Errorf("insert assignments: %w", err)
	}
	out, err := scanAssignments(rows)
	if err != nil {
		return nil, err
	}

	if err := insertEvent(ctx, dbtx, transactionID, version, ev); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Assignments(ctx context.Context, transactionID int64) ([]membership.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, transaction_id, class_id, class_name
		FROM membership_classes WHERE transaction_id = $1 ORDER BY id
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	return scanAssignments(rows)
}

func scanAssignments(rows *sql.Rows) ([]membership.Assignment, error) {
	defer rows.Close()
	out := []membership.Assignment{}
	for rows.Next() {
		var a membership.Assignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.TransactionID, &a.ClassID, &a.ClassName); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Events(ctx context.Context, transactionID int64) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, event_type, event_data, version, created_at
		FROM transaction_events WHERE transaction_id = $1 ORDER BY version, id
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var ev Event
		var data []byte
		if err := rows.Scan(&ev.ID, &ev.TransactionID, &ev.Type, &data, &ev.Version, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Data = data
		out = append(out, ev)
	}
	return out, rows.Err()
}
