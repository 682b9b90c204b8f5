package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"boostskilla_bot/internal/domain"
	"boostskilla_bot/internal/logging"
)

// SQLGroupStore persists groups in the groups table.
type SQLGroupStore struct {
	db     *gorm.DB
	logger *logrus.Entry
}

func (r groupRow) toDomain() domain.Group {
	return domain.Group{
		ID:          strconv.FormatUint(uint64(r.ID), 10),
		Name:        r.Name,
		Link:        r.Link,
		Description: r.Description,
		ChatID:      r.ChatID,
		CreatedAt:   r.CreationTime,
		Admin:       r.GroupAdmin,
		Active:      r.Active,
	}
}

// FindByChatID fetches a group by chat_id.
func (s *SQLGroupStore) FindByChatID(ctx context.Context, chatID int64) (domain.Group, error) {
	row, err := s.findRow(ctx, s.db, chatID)
	if err != nil {
		return domain.Group{}, err
	}
	return row.toDomain(), nil
}

// Exists reports whether a group with chat_id was ever registered.
func (s *SQLGroupStore) Exists(ctx context.Context, chatID int64) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&groupRow{}).Where("chat_id = ?", chatID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count group: %w", err)
	}
	return count > 0, nil
}

// IsActive reports whether the group exists and is active.
func (s *SQLGroupStore) IsActive(ctx context.Context, chatID int64) (bool, error) {
	row, err := s.findRow(ctx, s.db, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return row.Active, nil
}

// Insert stores a new group, filling the id and creation time.
func (s *SQLGroupStore) Insert(ctx context.Context, group domain.Group) (domain.Group, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Group{}, err
	}
	if group.ChatID == 0 {
		return domain.Group{}, errors.New("chat_id is required")
	}

	row := groupRow{
		Name:         group.Name,
		Link:         group.Link,
		Description:  group.Description,
		ChatID:       group.ChatID,
		CreationTime: group.CreatedAt,
		GroupAdmin:   group.Admin,
		Active:       group.Active,
	}
	if row.CreationTime.IsZero() {
		row.CreationTime = time.Now().UTC().Truncate(time.Millisecond)
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Group{}, fmt.Errorf("insert group %d: %w", group.ChatID, domain.ErrAlreadyExists)
		}
		return domain.Group{}, fmt.Errorf("insert group: %w", err)
	}

	return row.toDomain(), nil
}

// SetActive flips the active flag of the group addressed by its stored id.
func (s *SQLGroupStore) SetActive(ctx context.Context, chatID int64, active bool) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	var name string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.findRow(ctx, tx, chatID)
		if err != nil {
			return err
		}
		name = row.Name

		result := tx.Model(&groupRow{}).Where("id = ?", row.ID).Update("active", active)
		if result.Error != nil {
			return fmt.Errorf("update group: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("update group %d: %w", chatID, domain.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logging.Fields{
		"event":   "group_active_changed",
		"chat_id": chatID,
		"group":   name,
		"active":  active,
	}).Info("updated group active flag")

	return nil
}

// List returns every group ordered by insertion.
func (s *SQLGroupStore) List(ctx context.Context) ([]domain.Group, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var rows []groupRow
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find groups: %w", err)
	}

	groups := make([]domain.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, row.toDomain())
	}
	return groups, nil
}

// Count returns the number of groups, optionally only active ones.
func (s *SQLGroupStore) Count(ctx context.Context, activeOnly bool) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	query := s.db.WithContext(ctx).Model(&groupRow{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return count, nil
}

func (s *SQLGroupStore) findRow(ctx context.Context, db *gorm.DB, chatID int64) (groupRow, error) {
	if err := s.ready(ctx); err != nil {
		return groupRow{}, err
	}

	var row groupRow
	if err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return groupRow{}, fmt.Errorf("group %d: %w", chatID, domain.ErrNotFound)
		}
		return groupRow{}, fmt.Errorf("find group: %w", err)
	}
	return row, nil
}

func (s *SQLGroupStore) ready(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("group store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
