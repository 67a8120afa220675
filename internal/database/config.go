package database

import "time"

// Config holds the connection and pool settings for the contract store.
// Shape mirrors the teacher's database.Config; URL replaces the
// host/port/user/password split since this engine takes a single
// connection URL from internal/config.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}
