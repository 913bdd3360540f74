package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// SourceConfig holds source (MySQL) pool configuration.
type SourceConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	// AcquireTimeout bounds how long a caller waits for a pooled connection.
	AcquireTimeout time.Duration
}

// DefaultSourceConfig mirrors the target pool defaults for the source side.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		DialTimeout:     10 * time.Second,
		ReadTimeout:     5 * time.Minute,
		AcquireTimeout:  30 * time.Second,
	}
}

// NewSourceDB opens a MySQL pool from a Go driver DSN
// ("user:pass@tcp(host:3306)/en_tms"). No connection is made until first use.
func NewSourceDB(config SourceConfig) (*sql.DB, error) {
	mysqlConfig, err := mysql.ParseDSN(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source DSN: %w", err)
	}
	if mysqlConfig.Timeout == 0 {
		mysqlConfig.Timeout = config.DialTimeout
	}
	if mysqlConfig.ReadTimeout == 0 {
		mysqlConfig.ReadTimeout = config.ReadTimeout
	}

	connector, err := mysql.NewConnector(mysqlConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create source connector: %w", err)
	}

	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	return sqlDB, nil
}
