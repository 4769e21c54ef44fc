// internal/sandbox/seed.go
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ironcore/internal/account"
	"ironcore/internal/schedule"
)

var seedClasses = []struct {
	class schedule.Class
	slots []string
}{
	{schedule.Class{Name: "Yoga Flow", Trainer: "Maya", Fee: 500}, []string{"07:00 AM - 08:00 AM", "06:00 PM - 07:00 PM"}},
	{schedule.Class{Name: "Spin", Trainer: "Dario", Fee: 450}, []string{"07:30 AM - 08:30 AM", "07:00 PM - 08:00 PM"}},
	{schedule.Class{Name: "Strength Lab", Trainer: "Ines", Fee: 600}, []string{"09:00 AM - 10:00 AM"}},
	{schedule.Class{Name: "Boxing Basics", Trainer: "Kofi", Fee: 550}, []string{"05:00 PM - 06:00 PM"}},
	{schedule.Class{Name: "Pilates", Trainer: "Lena", Fee: 500}, []string{"10:00 AM - 11:00 AM"}},
	{schedule.Class{Name: "HIIT", Trainer: "Sam", Fee: 400}, []string{"06:00 AM - 06:45 AM"}},
}

// Seed fills an empty store with a week of classes starting the day after from.
func Seed(ctx context.Context, store Store, from time.Time) error {
	existing, err := store.Classes(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, sc := range seedClasses {
		c := sc.class
		if err := store.SaveClass(ctx, &c); err != nil {
			return fmt.Errorf("seed class %s: %w", c.Name, err)
		}
		for day := 1; day <= 7; day++ {
			date := from.AddDate(0, 0, day)
			for _, slot := range sc.slots {
				s := schedule.Schedule{
					ClassID:         c.ID,
					Day:             date.Weekday().String(),
					TimeSlot:        slot,
					Date:            date.Format(schedule.DateLayout),
					MaxParticipants: 12,
				}
				if err := store.SaveSchedule(ctx, &s); err != nil {
					return fmt.Errorf("seed schedule for %s: %w", c.Name, err)
				}
			}
		}
	}
	return nil
}

// EnsureAdmin creates an administrator account unless the username is taken.
func EnsureAdmin(ctx context.Context, store Store, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	hash, salt, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	rec := &UserRecord{
		User:       account.User{Username: username, Role: account.RoleAdmin},
		Credential: Credential{PasswordHash: hash, Salt: salt},
	}
	if err := store.CreateUser(ctx, rec); err != nil && !errors.Is(err, ErrDuplicateUser) {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}
