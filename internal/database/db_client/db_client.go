// Package db_client opens the Postgres pool behind the quiz store.
package db_client

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(host, port, user, pass, database string) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		user, pass, host, port, database,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	// Store traffic is bursty but small: a whole class submits answers at
	// once when a quiz timer runs out, then the pool idles until the next
	// question. A modest pool covers the burst without hogging Postgres
	// slots between rounds.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	return db, nil
}
