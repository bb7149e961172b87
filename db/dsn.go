package db

import (
	"strconv"
	"strings"

	"github.com/teranos/embcluster/am"
	"github.com/teranos/embcluster/errors"
)

// DSNFromConfig returns the driver name and data source name for cfg.
// For postgres an explicit DSN wins; otherwise a key/value connection
// string is built from the individual fields.
func DSNFromConfig(cfg am.DatabaseConfig) (driver, dsn string, err error) {
	driver, err = NormalizeDriver(cfg.Driver)
	if err != nil {
		return "", "", err
	}

	if driver == DriverSQLite {
		if cfg.Path == "" {
			return "", "", errors.New("database.path is required for sqlite3")
		}
		return driver, cfg.Path, nil
	}

	if cfg.DSN != "" {
		return driver, cfg.DSN, nil
	}
	if cfg.Host == "" || cfg.Name == "" {
		return "", "", errors.WithHint(
			errors.New("postgres connection needs a host and a database name"),
			"set HOST_NAME and DATABASE_NAME, or database.dsn")
	}

	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+quoteValue(v))
		}
	}
	add("host", cfg.Host)
	if cfg.Port > 0 {
		add("port", strconv.Itoa(cfg.Port))
	}
	add("dbname", cfg.Name)
	add("user", cfg.User)
	add("password", cfg.Password)
	add("sslmode", cfg.SSLMode)

	return driver, strings.Join(parts, " "), nil
}

// quoteValue quotes a libpq key/value connection parameter when needed
func quoteValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
