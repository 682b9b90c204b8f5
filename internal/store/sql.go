package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"boostskilla_bot/internal/config"
	"boostskilla_bot/internal/logging"
)

// SQLiteFileName is the database file created inside DB_DIR.
const SQLiteFileName = "groupbot.db"

const slowQueryThreshold = 200 * time.Millisecond

type groupRow struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:255"`
	Link         string `gorm:"size:512"`
	Description  string `gorm:"type:text"`
	ChatID       int64  `gorm:"uniqueIndex:idx_groups_chat_id;not null"`
	CreationTime time.Time
	GroupAdmin   string `gorm:"size:255"`
	Active       bool   `gorm:"index;not null"`
	UpdatedAt    time.Time
}

func (groupRow) TableName() string { return "groups" }

type loginRow struct {
	ID        uint   `gorm:"primaryKey"`
	User      string `gorm:"size:255;uniqueIndex:idx_logins_user_date;not null"`
	UserID    int64
	Date      string `gorm:"size:8;uniqueIndex:idx_logins_user_date;index:idx_logins_date;not null"`
	Topic     string `gorm:"size:1024"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (loginRow) TableName() string { return "logins" }

// SQLStore owns the gorm handle shared by the SQL group and login stores.
type SQLStore struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// dialectorFor is overridable for tests.
var dialectorFor = func(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite, "":
		if err := os.MkdirAll(cfg.DBDir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		return sqlite.Open(filepath.Join(cfg.DBDir, SQLiteFileName)), nil
	case config.DriverMySQL:
		return mysql.Open(cfg.MySQLDSN), nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.StoreDriver)
	}
}

// OpenSQL opens the SQL database selected by cfg and migrates the schema.
func OpenSQL(ctx context.Context, cfg config.Config, logger *logrus.Entry) (*SQLStore, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(logger.WithField("component", "gorm"), gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}

	store, err := NewSQLStore(ctx, db, logger)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open gorm handle and migrates the groups and logins
// tables.
func NewSQLStore(ctx context.Context, db *gorm.DB, logger *logrus.Entry) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("gorm db is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	if db.Dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		// SQLite is a single-writer engine; one connection also keeps
		// :memory: databases alive for the life of the store.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	if err := db.WithContext(ctx).AutoMigrate(&groupRow{}, &loginRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLStore{db: db, logger: logger}, nil
}

// Groups returns the SQL group store.
func (s *SQLStore) Groups() *SQLGroupStore {
	return &SQLGroupStore{db: s.db, logger: s.logger}
}

// Logins returns the SQL login store.
func (s *SQLStore) Logins() *SQLLoginStore {
	return &SQLLoginStore{db: s.db}
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s == nil || s.db == nil {
		return errors.New("sql store is not initialized")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.db.Dialector.Name(), err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close(context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	return sqlDB.Close()
}
