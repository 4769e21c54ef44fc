// internal/clients/catalog_client.go
package clients

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"ironcore/internal/schedule"
)

func (c *GymClient) Classes(ctx context.Context) ([]schedule.Class, error) {
	var out []schedule.Class
	err := c.do(ctx, "classes", http.MethodGet, "/api/classes", nil, &out)
	return out, err
}

// Schedules lists the schedules of classID, full ones included.
func (c *GymClient) Schedules(ctx context.Context, classID int64) ([]schedule.Schedule, error) {
	var out []schedule.Schedule
	err := c.do(ctx, "schedules", http.MethodGet, fmt.Sprintf("/api/classes/%d/schedules", classID), nil, &out)
	return out, err
}

func (c *GymClient) Schedule(ctx context.Context, scheduleID int64) (schedule.Schedule, error) {
	var out schedule.Schedule
	err := c.do(ctx, "schedule", http.MethodGet, "/api/schedules/"+strconv.FormatInt(scheduleID, 10), nil, &out)
	return out, err
}
