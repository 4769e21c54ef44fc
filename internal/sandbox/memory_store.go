// internal/sandbox/memory_store.go
package sandbox

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ironcore/internal/membership"
	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

// MemoryStore keeps everything in process. It is the default when no
// database is configured.
type MemoryStore struct {
	mu sync.RWMutex

	users       map[int64]UserRecord
	classes     map[int64]schedule.Class
	schedules   map[int64]schedule.Schedule
	txs         map[int64]transaction.Transaction
	assignments map[int64][]membership.Assignment
	events      map[int64][]Event

	nextID map[string]int64
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       map[int64]UserRecord{},
		classes:     map[int64]schedule.Class{},
		schedules:   map[int64]schedule.Schedule{},
		txs:         map[int64]transaction.Transaction{},
		assignments: map[int64][]membership.Assignment{},
		events:      map[int64][]Event{},
		nextID:      map[string]int64{},
		now:         time.Now,
	}
}

func (m *MemoryStore) id(table string) int64 {
	m.nextID[table]++
	return m.nextID[table]
}

func (m *MemoryStore) CreateUser(_ context.Context, u *UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, u.Username) || (u.Email != "" && strings.EqualFold(existing.Email, u.Email)) {
			return ErrDuplicateUser
		}
	}
	u.ID = m.id("users")
	u.Credential.UserID = u.ID
	u.CreatedAt = m.now().UTC()
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) UserByUsername(_ context.Context, username string) (UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return UserRecord{}, ErrNotFound
}

func (m *MemoryStore) UserByID(_ context.Context, id int64) (UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return UserRecord{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) SaveClass(_ context.Context, c *schedule.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == 0 {
		c.ID = m.id("classes")
	}
	m.classes[c.ID] = *c
	return nil
}

func (m *MemoryStore) SaveSchedule(_ context.Context, s *schedule.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.classes[s.ClassID]
	if !ok {
		return ErrNotFound
	}
	if s.ID == 0 {
		s.ID = m.id("schedules")
	}
	s.ClassName = c.Name
	m.schedules[s.ID] = *s
	return nil
}

func (m *MemoryStore) Classes(context.Context) ([]schedule.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]schedule.Class, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Class(_ context.Context, id int64) (schedule.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.classes[id]
	if !ok {
		return schedule.Class{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) Schedules(_ context.Context, classID int64) ([]schedule.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []schedule.Schedule{}
	for _, s := range m.schedules {
		if s.ClassID == classID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) Schedule(_ context.Context, id int64) (schedule.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedules[id]
	if !ok {
		return schedule.Schedule{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) CreateTransaction(_ context.Context, tx *transaction.Transaction, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx.ID = m.id("transactions")
	tx.Version = 1
	if tx.CreatedAt == nil {
		tx.CreatedAt = transaction.NewLocalTime(m.now().UTC())
	}
	m.txs[tx.ID] = *tx
	m.appendEvent(tx.ID, tx.Version, ev)
	return nil
}

func (m *MemoryStore) Transaction(_ context.Context, id int64) (transaction.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.txs[id]
	if !ok {
		return transaction.Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (m *MemoryStore) UserTransactions(_ context.Context, userID int64) ([]transaction.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []transaction.Transaction{}
	for _, tx := range m.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateTransaction(_ context.Context, tx *transaction.Transaction, ch Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.txs[tx.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != tx.Version {
		return ErrConcurrencyConflict
	}
	if ch.Check != nil {
		others := []transaction.Transaction{}
		for _, o := range m.txs {
			if o.UserID == tx.UserID && o.ID != tx.ID {
				others = append(others, o)
			}
		}
		if err := ch.Check(others); err != nil {
			return err
		}
	}

	if ch.SeatDelta != 0 {
		s, ok := m.schedules[ch.ScheduleID]
		if !ok {
			return ErrNotFound
		}
		if ch.SeatDelta > 0 && s.EnrolledCount+ch.SeatDelta > s.MaxParticipants {
			return ErrScheduleFull
		}
		s.EnrolledCount += ch.SeatDelta
		m.schedules[s.ID] = s
	}

	tx.Version++
	m.txs[tx.ID] = *tx
	m.appendEvent(tx.ID, tx.Version, ch.Event)
	return nil
}

func (m *MemoryStore) AssignClasses(_ context.Context, transactionID int64, as []membership.Assignment, ev Event) ([]membership.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.assignments[transactionID]) > 0 {
		return nil, ErrAlreadyAssigned
	}
	out := make([]membership.Assignment, len(as))
	for i, a := range as {
		a.ID = m.id("assignments")
		a.TransactionID = transactionID
		out[i] = a
	}
	m.assignments[transactionID] = out
	m.appendEvent(transactionID, m.txs[transactionID].Version, ev)
	return append([]membership.Assignment(nil), out...), nil
}

func (m *MemoryStore) Assignments(_ context.Context, transactionID int64) ([]membership.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]membership.Assignment{}, m.assignments[transactionID]...), nil
}

func (m *MemoryStore) Events(_ context.Context, transactionID int64) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Event{}, m.events[transactionID]...), nil
}

// appendEvent must be called with mu held.
func (m *MemoryStore) appendEvent(transactionID int64, version int, ev Event) {
	if ev.Type == "" {
		return
	}
	ev.ID = m.id("events")
	ev.TransactionID = transactionID
	ev.Version = version
	ev.CreatedAt = m.now().UTC()
	m.events[transactionID] = append(m.events[transactionID], ev)
}
