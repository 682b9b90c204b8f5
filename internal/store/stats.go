package store

import (
	"context"
	"errors"
	"fmt"
)

type groupCounter interface {
	Count(ctx context.Context, activeOnly bool) (int64, error)
}

type loginCounter interface {
	CountByDate(ctx context.Context, dateKey string) (int64, error)
}

// Stats is a point-in-time summary of the stored data.
type Stats struct {
	Groups       int64
	ActiveGroups int64
	LoginsToday  int64
}

// StatsProvider exposes helper methods to retrieve counts for basic
// diagnostics without leaking store internals to callers.
type StatsProvider struct {
	groups groupCounter
	logins loginCounter
}

// NewStatsProvider constructs a StatsProvider backed by the provided stores.
func NewStatsProvider(groups groupCounter, logins loginCounter) *StatsProvider {
	return &StatsProvider{
		groups: groups,
		logins: logins,
	}
}

// CountGroups returns the number of registered groups, optionally only the
// active ones.
func (p *StatsProvider) CountGroups(ctx context.Context, activeOnly bool) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.groups == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.groups.Count(ctx, activeOnly)
	if err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}

	return count, nil
}

// CountLogins returns the number of users logged on for dateKey.
func (p *StatsProvider) CountLogins(ctx context.Context, dateKey string) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.logins == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.logins.CountByDate(ctx, dateKey)
	if err != nil {
		return 0, fmt.Errorf("count logins: %w", err)
	}

	return count, nil
}

// Snapshot gathers all counters for dateKey.
func (p *StatsProvider) Snapshot(ctx context.Context, dateKey string) (Stats, error) {
	var (
		stats Stats
		err   error
	)

	if stats.Groups, err = p.CountGroups(ctx, false); err != nil {
		return Stats{}, err
	}
	if stats.ActiveGroups, err = p.CountGroups(ctx, true); err != nil {
		return Stats{}, err
	}
	if stats.LoginsToday, err = p.CountLogins(ctx, dateKey); err != nil {
		return Stats{}, err
	}

	return stats, nil
}
