package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ivanceras/diwata-sub000/internal/dbexec"
)

// DSN returns a PostgreSQL connection URL.
// If ConnectionString is set it is returned unchanged; otherwise the URL is
// built from the discrete fields and TLS settings.
func (d *DatabaseConfig) DSN() string {
	if strings.TrimSpace(d.ConnectionString) != "" {
		return d.ConnectionString
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Database,
	}
	switch {
	case d.User != "" && d.Password != "":
		u.User = url.UserPassword(d.User, d.Password)
	case d.User != "":
		u.User = url.User(d.User)
	}

	params := url.Values{}
	if d.TLS.Mode != "" {
		params.Set("sslmode", d.TLS.Mode)
	}
	if d.TLS.RootCert != "" {
		params.Set("sslrootcert", d.TLS.RootCert)
	}
	if d.TLS.CertFile != "" {
		params.Set("sslcert", d.TLS.CertFile)
	}
	if d.TLS.KeyFile != "" {
		params.Set("sslkey", d.TLS.KeyFile)
	}
	u.RawQuery = params.Encode()
	return u.String()
}

// Target identifies the database a DSN connects to, without credentials.
type Target struct {
	Host     string
	Port     uint16
	Database string
	User     string
}

// Target parses the effective DSN the way the driver will.
func (d *DatabaseConfig) Target() (Target, error) {
	parsed, err := pgconn.ParseConfig(d.DSN())
	if err != nil {
		return Target{}, fmt.Errorf("invalid database connection string: %w", err)
	}
	return Target{
		Host:     parsed.Host,
		Port:     parsed.Port,
		Database: parsed.Database,
		User:     parsed.User,
	}, nil
}

// RegistryConfig maps pool and retry settings onto the connection registry.
func (c *Config) RegistryConfig() dbexec.RegistryConfig {
	return dbexec.RegistryConfig{
		Pool: dbexec.PoolConfig{
			MaxOpen:     c.Database.Pool.MaxOpen,
			MaxIdle:     c.Database.Pool.MaxIdle,
			MaxLifetime: c.Database.Pool.MaxLifetime,
		},
		ConnectionTimeout:   c.Database.ConnectionTimeout,
		RetryInterval:       c.Database.ConnectionRetryInterval,
		MetricsEnabled:      c.Observability.MetricsEnabled,
		TracingEnabled:      c.Observability.TracingEnabled,
		SQLCommenterEnabled: c.Observability.SQLCommenterEnabled,
	}
}

// SessionConfig returns the per-operation session settings.
func (d *DatabaseConfig) SessionConfig() dbexec.SessionConfig {
	return dbexec.SessionConfig{
		Role:         d.Session.Role,
		AllowedRoles: d.Session.AllowedRoles,
		SearchPath:   d.Session.SearchPath,
	}
}
