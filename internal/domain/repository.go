// Package domain defines the records the bot persists and the store contracts
// every backend implements.
package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a lookup or targeted update matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when an insert hits a unique business key.
	ErrAlreadyExists = errors.New("record already exists")
)

// GroupStore persists group registrations. Records are never deleted; the
// Active flag toggles instead.
type GroupStore interface {
	FindByChatID(ctx context.Context, chatID int64) (Group, error)
	Exists(ctx context.Context, chatID int64) (bool, error)
	IsActive(ctx context.Context, chatID int64) (bool, error)
	// Insert assigns ID and CreatedAt when missing and fails on a duplicate chat_id.
	Insert(ctx context.Context, group Group) (Group, error)
	// SetActive returns ErrNotFound when the record disappeared.
	SetActive(ctx context.Context, chatID int64, active bool) error
	// List returns every group in insertion order.
	List(ctx context.Context) ([]Group, error)
	Count(ctx context.Context, activeOnly bool) (int64, error)
}

// LoginStore persists daily log-ons keyed by (user, date).
type LoginStore interface {
	FindByUser(ctx context.Context, user string) ([]Login, error)
	// UpsertToday inserts or overwrites the topic for user on dateKey, leaving
	// the user's other dates untouched.
	UpsertToday(ctx context.Context, user string, userID int64, dateKey, topic string) (Login, error)
	// ListByDate returns the day's log-ons in insertion order.
	ListByDate(ctx context.Context, dateKey string) ([]Login, error)
	CountByDate(ctx context.Context, dateKey string) (int64, error)
}
