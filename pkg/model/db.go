package model

import (
	"errors"
	"fmt"
	"time"

	"metaldesk/pkg/config"
	"metaldesk/pkg/model/xgorm"
	"metaldesk/pkg/xlog"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var logger = xlog.GetLogger()

// OpenMySQL connects to the desk database.
func OpenMySQL(cfg config.MySQLServer, debug bool) (*gorm.DB, error) {
	if cfg.Host == "" {
		return nil, errors.New("empty mysql host")
	}

	logger.Infof("mysql connecting tcp(%s:%d)/%s", cfg.Host, cfg.Port, cfg.DB)

	url := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.DB,
	)

	logMode := gormLogger.Warn
	if debug {
		logMode = gormLogger.Info
	}

	db, err := gorm.Open(mysql.Open(url), &gorm.Config{
		SkipDefaultTransaction: false,
		Logger: xgorm.New(xgorm.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logMode,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 16
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(10 * time.Hour)
	sqlDB.SetMaxIdleConns(maxOpen / 2)

	logger.Infof("mysql connected tcp(%s:%d)/%s", cfg.Host, cfg.Port, cfg.DB)
	return db, nil
}

// Migrate creates or updates every desk table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}

func OpenRedis(cfg config.RedisServer) *redis.Client {
	logger.Infof("redis connecting %s[%d]", cfg.Addr, cfg.DB)

	opts := redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Pass,
		DB:       cfg.DB,
	}
	if cfg.Timeout > 0 {
		opts.ReadTimeout = time.Duration(cfg.Timeout) * time.Millisecond
		opts.WriteTimeout = opts.ReadTimeout
	}

	return redis.NewClient(&opts)
}
