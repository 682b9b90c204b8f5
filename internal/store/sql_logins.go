package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"boostskilla_bot/internal/domain"
)

// SQLLoginStore persists daily log-ons in the logins table, one row per
// (user, date).
type SQLLoginStore struct {
	db *gorm.DB
}

func (r loginRow) toDomain() domain.Login {
	return domain.Login{
		ID:        strconv.FormatUint(uint64(r.ID), 10),
		User:      r.User,
		UserID:    r.UserID,
		Date:      r.Date,
		Topic:     r.Topic,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// FindByUser returns every date the user logged on, oldest date first.
func (s *SQLLoginStore) FindByUser(ctx context.Context, user string) ([]domain.Login, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var rows []loginRow
	if err := s.db.WithContext(ctx).Where(map[string]interface{}{"user": user}).Order("date asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find logins: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("logins for %q: %w", user, domain.ErrNotFound)
	}
	return toLogins(rows), nil
}

// UpsertToday writes topic for (user, dateKey) and refreshes user_id. The row
// keeps its id, so the day's ordering follows the first log-on.
func (s *SQLLoginStore) UpsertToday(ctx context.Context, user string, userID int64, dateKey, topic string) (domain.Login, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Login{}, err
	}
	if strings.TrimSpace(user) == "" {
		return domain.Login{}, errors.New("user is required")
	}
	if strings.TrimSpace(dateKey) == "" {
		return domain.Login{}, errors.New("date key is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	row := loginRow{
		User:      user,
		UserID:    userID,
		Date:      dateKey,
		Topic:     topic,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var stored loginRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "topic", "updated_at"}),
		}).Create(&row)
		if upsert.Error != nil {
			return fmt.Errorf("upsert login: %w", upsert.Error)
		}

		if err := tx.Where(map[string]interface{}{"user": user, "date": dateKey}).First(&stored).Error; err != nil {
			return fmt.Errorf("reload login: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Login{}, err
	}

	return stored.toDomain(), nil
}

// ListByDate returns the log-ons for dateKey in the order users first logged
// on that day.
func (s *SQLLoginStore) ListByDate(ctx context.Context, dateKey string) ([]domain.Login, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var rows []loginRow
	if err := s.db.WithContext(ctx).Where(map[string]interface{}{"date": dateKey}).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find logins: %w", err)
	}
	return toLogins(rows), nil
}

// CountByDate returns how many users logged on for dateKey.
func (s *SQLLoginStore) CountByDate(ctx context.Context, dateKey string) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&loginRow{}).Where(map[string]interface{}{"date": dateKey}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count logins: %w", err)
	}
	return count, nil
}

func toLogins(rows []loginRow) []domain.Login {
	logins := make([]domain.Login, 0, len(rows))
	for _, row := range rows {
		logins = append(logins, row.toDomain())
	}
	return logins
}

func (s *SQLLoginStore) ready(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("login store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
