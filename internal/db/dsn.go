package db

import (
	"errors"
	"net/url"
	"strings"
)

// WithDBName returns dsn pointing at database instead of the one it names.
// An empty database leaves dsn untouched. A DSN without a scheme is read as
// postgres://.
func WithDBName(dsn, database string) (string, error) {
	database = strings.Trim(strings.TrimSpace(database), "/")
	if database == "" {
		return dsn, nil
	}
	if dsn == "" {
		return "", errors.New("empty DSN")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", errors.New("unsupported DSN scheme " + u.Scheme)
	}
	u.Path = "/" + database
	return u.String(), nil
}
