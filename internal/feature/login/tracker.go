// Package login records what users work on each day and reports who is on.
package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moby/locker"
	"github.com/sirupsen/logrus"

	"boostskilla_bot/internal/domain"
	"boostskilla_bot/internal/logging"
)

// DefaultTopic is used when the log-on happens outside a titled group chat.
const DefaultTopic = "Ask Me"

// Report is the list of users logged on for one date.
type Report struct {
	Date    string
	Entries []Entry
}

// Entry is one row of a Report.
type Entry struct {
	User  string
	Topic string
}

// Count returns the number of logged on users.
func (r Report) Count() int {
	return len(r.Entries)
}

// Tracker writes daily log-ons and builds the day's report. Writes for the
// same user are serialized.
type Tracker struct {
	logins   domain.LoginStore
	logger   *logrus.Entry
	location *time.Location
	now      func() time.Time
	locks    *locker.Locker
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLocation sets the timezone the date key is computed in.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.location = loc
		}
	}
}

// NewTracker constructs a Tracker over the provided login store.
func NewTracker(logins domain.LoginStore, logger *logrus.Entry, opts ...Option) *Tracker {
	if logger == nil {
		logger = logging.Logger()
	}

	tracker := &Tracker{
		logins:   logins,
		logger:   logger,
		location: time.Local,
		now:      time.Now,
		locks:    locker.New(),
	}
	for _, opt := range opts {
		opt(tracker)
	}
	return tracker
}

// Today returns the date key for the current wall-clock day.
func (t *Tracker) Today() string {
	return domain.DateKey(t.now(), t.location)
}

// LogOn records topic as the user's status for today, replacing an earlier
// topic of the same day. An empty topic becomes DefaultTopic.
func (t *Tracker) LogOn(ctx context.Context, user string, userID int64, topic string) (domain.Login, error) {
	if err := t.ready(ctx); err != nil {
		return domain.Login{}, err
	}

	user = strings.TrimSpace(user)
	if user == "" {
		return domain.Login{}, errors.New("user is required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}

	t.locks.Lock(user)
	defer t.locks.Unlock(user)

	dateKey := t.Today()
	login, err := t.logins.UpsertToday(ctx, user, userID, dateKey, topic)
	if err != nil {
		return domain.Login{}, fmt.Errorf("log on: %w", err)
	}

	t.logger.WithFields(logging.Fields{
		"event":   "user_logged_on",
		"user":    user,
		"user_id": userID,
		"date":    dateKey,
		"topic":   topic,
	}).Info("user logged on")

	return login, nil
}

// WhoIsOn returns today's log-ons in the order users first logged on.
func (t *Tracker) WhoIsOn(ctx context.Context) (Report, error) {
	if err := t.ready(ctx); err != nil {
		return Report{}, err
	}

	dateKey := t.Today()
	logins, err := t.logins.ListByDate(ctx, dateKey)
	if err != nil {
		return Report{}, fmt.Errorf("list logins: %w", err)
	}

	report := Report{Date: dateKey, Entries: make([]Entry, 0, len(logins))}
	for _, l := range logins {
		report.Entries = append(report.Entries, Entry{User: l.User, Topic: l.Topic})
	}
	return report, nil
}

// FormatReport renders the report as aligned plain text.
func FormatReport(r Report) string {
	var b strings.Builder

	b.WriteString(r.Date)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%-15s | %-20s\n", "User", "Project")
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "%-15s | %-20s\n", e.User, e.Topic)
	}
	fmt.Fprintf(&b, "There are %d logged on users", r.Count())

	return b.String()
}

func (t *Tracker) ready(ctx context.Context) error {
	if t == nil || t.logins == nil {
		return errors.New("login tracker is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
