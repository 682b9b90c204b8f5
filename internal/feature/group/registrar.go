// Package group provides helpers for registering and tracking group chats.
package group

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/moby/locker"
	"github.com/sirupsen/logrus"

	"boostskilla_bot/internal/domain"
	"boostskilla_bot/internal/logging"
)

var (
	// ErrUnknownGroup is returned when a chat was never registered.
	ErrUnknownGroup = errors.New("group is unknown")
	// ErrGroupNotActive is returned when unregistering a group that is already inactive.
	ErrGroupNotActive = errors.New("group is not active")
)

// Outcome describes what Register did with the group record.
type Outcome int

const (
	// OutcomeCreated means a new record was inserted.
	OutcomeCreated Outcome = iota + 1
	// OutcomeReactivated means an inactive record was switched back on.
	OutcomeReactivated
	// OutcomeAlreadyActive means nothing changed.
	OutcomeAlreadyActive
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeReactivated:
		return "reactivated"
	case OutcomeAlreadyActive:
		return "already_active"
	default:
		return "unknown"
	}
}

// Registrar owns the register/unregister lifecycle of group records. Calls for
// the same chat are serialized.
type Registrar struct {
	groups domain.GroupStore
	logger *logrus.Entry
	locks  *locker.Locker
}

// NewRegistrar constructs a Registrar for the provided group store.
func NewRegistrar(groups domain.GroupStore, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		groups: groups,
		logger: logger,
		locks:  locker.New(),
	}
}

// Register makes the group active. An active record is left untouched, an
// inactive one is reactivated and a missing one is inserted.
func (r *Registrar) Register(ctx context.Context, group domain.Group) (Outcome, error) {
	if err := r.ready(ctx); err != nil {
		return 0, err
	}
	if group.ChatID == 0 {
		return 0, errors.New("chat id is required")
	}

	key := strconv.FormatInt(group.ChatID, 10)
	r.locks.Lock(key)
	defer r.locks.Unlock(key)

	title := strings.TrimSpace(group.Name)
	fields := logging.Fields{
		"chat_id": group.ChatID,
		"group":   title,
	}

	existing, err := r.groups.FindByChatID(ctx, group.ChatID)
	switch {
	case err == nil && existing.Active:
		r.logger.WithFields(fields).WithField("event", "group_already_active").Info("group already registered")
		return OutcomeAlreadyActive, nil
	case err == nil:
		if err := r.groups.SetActive(ctx, group.ChatID, true); err != nil {
			return 0, fmt.Errorf("reactivate group: %w", err)
		}
		r.logger.WithFields(fields).WithField("event", "group_reactivated").Info("reactivated group")
		return OutcomeReactivated, nil
	case errors.Is(err, domain.ErrNotFound):
	default:
		return 0, fmt.Errorf("lookup group: %w", err)
	}

	group.Name = title
	group.Active = true
	if _, err := r.groups.Insert(ctx, group); err != nil {
		return 0, fmt.Errorf("insert group: %w", err)
	}

	r.logger.WithFields(fields).WithFields(logging.Fields{
		"event": "group_registered",
		"admin": group.Admin,
	}).Info("registered new group")

	return OutcomeCreated, nil
}

// Unregister deactivates the group. It returns ErrUnknownGroup when the chat
// was never registered and ErrGroupNotActive when it already is inactive.
func (r *Registrar) Unregister(ctx context.Context, chatID int64) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	key := strconv.FormatInt(chatID, 10)
	r.locks.Lock(key)
	defer r.locks.Unlock(key)

	existing, err := r.groups.FindByChatID(ctx, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return ErrUnknownGroup
	}
	if err != nil {
		return fmt.Errorf("lookup group: %w", err)
	}
	if !existing.Active {
		return ErrGroupNotActive
	}

	if err := r.groups.SetActive(ctx, chatID, false); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrUnknownGroup
		}
		return fmt.Errorf("deactivate group: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":   "group_unregistered",
		"chat_id": chatID,
		"group":   existing.Name,
	}).Info("unregistered group")

	return nil
}

// IsActive reports whether the chat has an active registration.
func (r *Registrar) IsActive(ctx context.Context, chatID int64) (bool, error) {
	if err := r.ready(ctx); err != nil {
		return false, err
	}

	active, err := r.groups.IsActive(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("check group: %w", err)
	}
	return active, nil
}

// ListActive returns the active groups in registration order.
func (r *Registrar) ListActive(ctx context.Context) ([]domain.Group, error) {
	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	all, err := r.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	active := make([]domain.Group, 0, len(all))
	for _, g := range all {
		if g.Active {
			active = append(active, g)
		}
	}
	return active, nil
}

func (r *Registrar) ready(ctx context.Context) error {
	if r == nil || r.groups == nil {
		return errors.New("group registrar is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
