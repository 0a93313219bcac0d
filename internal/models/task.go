package models

import "time"

type Task struct {
	ID          string
	UserID      string
	Text        string
	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskStats struct {
	Total     int
	Completed int
	Pending   int
}
