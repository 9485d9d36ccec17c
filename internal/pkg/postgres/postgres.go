package postgres

import (
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/facesvg/config"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Successfully connected to PostgreSQL")
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS processing_jobs (
		job_id VARCHAR(64) PRIMARY KEY,
		content_hash VARCHAR(64) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		result_svg TEXT,
		mask_contours JSONB,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS job_hashes (
		content_hash VARCHAR(64) PRIMARY KEY,
		job_id VARCHAR(64) NOT NULL
	)`,

	// Indexes
	`CREATE INDEX IF NOT EXISTS idx_processing_jobs_hash ON processing_jobs(content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_processing_jobs_status ON processing_jobs(status)`,
}

func RunMigrations(db *sql.DB) error {
	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}
