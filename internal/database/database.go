package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Service wraps the shared *sql.DB. The server stores everything through
// plain database/sql so the same queries run on sqlite and postgres.
type Service interface {
	// Health reports connection status and pool statistics.
	Health() map[string]string

	// Close terminates the database connection.
	Close() error

	DB() *sql.DB

	// Dialect is the goose dialect name: "sqlite3" or "postgres".
	Dialect() string
}

type service struct {
	db      *sql.DB
	dialect string
}

// New opens a database with the given driver ("sqlite3" or "pgx") and pings it.
func New(driver, dsn string) (Service, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if dialect == "sqlite3" {
		// sqlite allows a single writer; an in-memory database also lives
		// only as long as its one connection.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	return &service{db: db, dialect: dialect}, nil
}

func dialectFor(driver string) (string, error) {
	switch driver {
	case "sqlite3":
		return "sqlite3", nil
	case "pgx":
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Dialect() string {
	return s.dialect
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats := make(map[string]string)
	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Printf("Database health check failed: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	return stats
}

func (s *service) Close() error {
	log.Printf("Disconnected from %s database", s.dialect)
	return s.db.Close()
}

// Migrate applies the embedded goose migrations.
func Migrate(db *sql.DB, dialect string) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
