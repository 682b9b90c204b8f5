// Package admin holds the bot administrator allow-list and the admin-only
// diagnostics summary.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"boostskilla_bot/internal/config"
	"boostskilla_bot/internal/logging"
	"boostskilla_bot/internal/store"
)

// ErrNotAdmin is returned when a non-admin asks for an admin-only action.
var ErrNotAdmin = errors.New("user is not a bot admin")

type statsSource interface {
	Snapshot(ctx context.Context, dateKey string) (store.Stats, error)
}

// Directory answers admin checks against the configured list of user names.
type Directory struct {
	admins map[string]struct{}
	names  []string
	stats  statsSource
	logger *logrus.Entry
}

// NewDirectory builds a Directory from the configured admin names. Names are
// compared without the leading "@" and case-insensitively.
func NewDirectory(admins []string, stats statsSource, logger *logrus.Entry) *Directory {
	if logger == nil {
		logger = logging.Logger()
	}

	d := &Directory{
		admins: make(map[string]struct{}, len(admins)),
		stats:  stats,
		logger: logger,
	}
	for _, name := range admins {
		normalized := config.NormalizeUsername(name)
		if normalized == "" {
			continue
		}
		if _, seen := d.admins[normalized]; seen {
			continue
		}
		d.admins[normalized] = struct{}{}
		d.names = append(d.names, normalized)
	}

	d.logger.WithFields(logging.Fields{
		"event":  "admins_loaded",
		"admins": len(d.names),
	}).Info("loaded bot admins")

	return d
}

// IsAdmin reports whether username is on the allow-list.
func (d *Directory) IsAdmin(username string) bool {
	if d == nil {
		return false
	}
	_, ok := d.admins[config.NormalizeUsername(username)]
	return ok
}

// Summary renders the stats overview for username. Non-admins get ErrNotAdmin.
func (d *Directory) Summary(ctx context.Context, username, dateKey string) (string, error) {
	if d == nil || d.stats == nil {
		return "", errors.New("admin directory is not initialized")
	}
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if !d.IsAdmin(username) {
		return "", ErrNotAdmin
	}

	stats, err := d.stats.Snapshot(ctx, dateKey)
	if err != nil {
		return "", fmt.Errorf("stats snapshot: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active groups: %d\n", stats.ActiveGroups)
	fmt.Fprintf(&b, "Total groups: %d\n", stats.Groups)
	fmt.Fprintf(&b, "Logged on today (%s): %d", dateKey, stats.LoginsToday)
	return b.String(), nil
}
