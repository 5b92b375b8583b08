package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/mattn/go-sqlite3"
)

type Config struct {
	Type       string // sqlite | postgres
	DSN        string
	SQLitePath string
}

// DB — *sql.DB плюс диалект, чтобы репозитории знали, какие плейсхолдеры слать.
type DB struct {
	*sql.DB
	Type string
}

func Open(ctx context.Context, cfg Config) (*DB, error) {
	var (
		conn *sql.DB
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "sqlite":
		cfg.Type = "sqlite"
		conn, err = sql.Open("sqlite3", cfg.SQLitePath)
		if err == nil {
			// одна запись за раз; для :memory: это ещё и одна общая БД
			conn.SetMaxOpenConns(1)
		}
	case "postgres", "pgx":
		cfg.Type = "postgres"
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("store: DATABASE_URL is empty")
		}
		conn, err = sql.Open("pgx", cfg.DSN)
		if err == nil {
			conn.SetMaxOpenConns(10)
			conn.SetMaxIdleConns(10)
			conn.SetConnMaxLifetime(1 * time.Hour)
		}
	default:
		return nil, fmt.Errorf("store: unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	db := &DB{DB: conn, Type: cfg.Type}
	if err := db.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	if cfg.Type == "postgres" {
		log.Printf("db connected: %s", SafeDSNSummary(cfg.DSN))
	} else {
		log.Printf("db connected: sqlite %s", cfg.SQLitePath)
	}
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	const q = `
create table if not exists component_assets (
  name       text primary key,
  asset_ref  text not null,
  updated_at timestamp not null default current_timestamp
)`
	_, err := db.ExecContext(ctx, q)
	return err
}

// rebind переводит $1..$n в ? для sqlite.
func (db *DB) rebind(q string) string {
	if db.Type != "sqlite" {
		return q
	}
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		if q[i] == '$' && i+1 < len(q) && q[i+1] >= '0' && q[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(q) && q[i+1] >= '0' && q[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
