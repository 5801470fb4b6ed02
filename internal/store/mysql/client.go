package mysql

import (
	"context"
	"fmt"
	"time"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Client wraps the gorm handle. Opened once at service start and closed at
// shutdown; everything downstream receives it explicitly.
type Client struct {
	DB *gorm.DB
}

func NewClient(dsn string, connectTimeout time.Duration) (*Client, error) {
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true, // map driver duplicate-key errors to gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return &Client{DB: db}, nil
}

// Migrate creates/updates the schema, including the unique index on
// policies.quote_id that backstops at-most-once issuance.
func (c *Client) Migrate() error {
	return c.DB.AutoMigrate(
		&packageModel{},
		&factorModel{},
		&quoteModel{},
		&policyModel{},
		&paymentModel{},
		&counterModel{},
	)
}

// Ping verifies connectivity (used by /readyz).
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
