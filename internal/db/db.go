package db

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/lib/pq"
)

// Options configures the Postgres connection pool.
type Options struct {
	Host, Port, Name, User, Password string

	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns the key/value connection string used by database/sql.
func (o Options) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		o.Host, o.Port, o.Name, o.User, o.Password,
	)
}

// URL returns the postgres:// form expected by the migrator.
func (o Options) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.User, o.Password),
		Host:     o.Host + ":" + o.Port,
		Path:     "/" + o.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Connect opens the pool and verifies it with a ping.
func Connect(o Options) (*sql.DB, error) {
	db, err := sql.Open("postgres", o.DSN())
	if err != nil {
		return nil, err
	}
	if o.MaxOpenConns > 0 {
		db.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		db.SetMaxIdleConns(o.MaxIdleConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
