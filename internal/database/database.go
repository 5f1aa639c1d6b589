package database

import (
	"log"
	"os"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"call-service/internal/config"
	"call-service/internal/model"
)

var (
	globalDB *gorm.DB
	dbMutex  sync.RWMutex
)

// GetDB returns the current database connection (nil until connected).
func GetDB() *gorm.DB {
	dbMutex.RLock()
	defer dbMutex.RUnlock()
	return globalDB
}

// SetDB sets the global database connection
func SetDB(db *gorm.DB) {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	globalDB = db
}

// IsConnected returns true if database is connected
func IsConnected() bool {
	db := GetDB()
	if db == nil {
		return false
	}
	sqlDB, err := db.DB()
	if err != nil {
		return false
	}
	return sqlDB.Ping() == nil
}

// MigrateAsync retries connectivity and schema setup in the background
// so a slow database does not keep the pod from starting. Readiness
// keeps reporting 503 until the ping succeeds.
func MigrateAsync(db *gorm.DB, retryInterval time.Duration) {
	go func() {
		for {
			if err := Migrate(db); err == nil {
				log.Println("Database connected successfully (async)")
				return
			} else {
				log.Printf("Database not ready, retrying in %v: %v", retryInterval, err)
			}
			time.Sleep(retryInterval)
		}
	}()
}

// New opens the database handle without touching the network: the pool
// connects lazily, so repositories always hold a usable handle even
// while the server is still unreachable. Migrate runs the eager part.
func New(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Server.Env == "dev" || cfg.Server.Env == "development" {
		logLevel = logger.Info
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	SetDB(db)
	return db, nil
}

// Migrate verifies connectivity and applies the schema.
func Migrate(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Ping(); err != nil {
		return err
	}

	if err := AutoMigrate(db); err != nil {
		return err
	}
	createIndexes(db)
	return nil
}

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Call{},
		&model.Friendship{},
		&model.Subscription{},
		&model.UserAvailability{},
	)
}

func createIndexes(db *gorm.DB) {
	// One live edge per user pair regardless of direction
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_friendship_pair
		ON friendships (LEAST(requester_id, recipient_id), GREATEST(requester_id, recipient_id))
		WHERE status <> 'REJECTED'`)

	// Usage aggregation scans completed calls per participant by end time
	db.Exec(`CREATE INDEX IF NOT EXISTS idx_calls_caller_ended
		ON calls (caller_id, ended_at) WHERE status = 'COMPLETED'`)
	db.Exec(`CREATE INDEX IF NOT EXISTS idx_calls_callee_ended
		ON calls (callee_id, ended_at) WHERE status = 'COMPLETED'`)

	// Missed-call sweep scans by status and creation time
	db.Exec(`CREATE INDEX IF NOT EXISTS idx_calls_status_created
		ON calls (status, created_at)`)
}
