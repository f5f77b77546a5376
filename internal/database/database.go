package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func Connect() (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "mltutor_user")
	password := getEnv("DB_PASSWORD", "mltutor_password")
	dbname := getEnv("DB_NAME", "mltutor")
	sslmode := getEnv("DB_SSLMODE", "disable")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func Migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		password VARCHAR(255) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS build_tasks (
		id          VARCHAR(36) PRIMARY KEY,
		filename    VARCHAR(255) NOT NULL,
		source      VARCHAR(255) NOT NULL,
		file_path   TEXT NOT NULL,
		status      VARCHAR(20) NOT NULL DEFAULT 'pending',
		progress    INT NOT NULL DEFAULT 0,
		message     TEXT,
		error       TEXT,
		chunk_count INT NOT NULL DEFAULT 0,
		version_id  VARCHAR(36),
		created_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		started_at  TIMESTAMP WITH TIME ZONE,
		finished_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON build_tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_created ON build_tasks(created_at DESC);

	CREATE TABLE IF NOT EXISTS kb_versions (
		id           VARCHAR(36) PRIMARY KEY,
		task_id      VARCHAR(36) NOT NULL REFERENCES build_tasks(id),
		filename     VARCHAR(255) NOT NULL,
		display_name VARCHAR(255) NOT NULL,
		collection   VARCHAR(255) NOT NULL,
		chunk_count  INT NOT NULL DEFAULT 0,
		created_at   TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		last_used_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_versions_created ON kb_versions(created_at DESC);

	CREATE TABLE IF NOT EXISTS quiz_attempts (
		id             VARCHAR(36) PRIMARY KEY,
		user_id        BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		source         VARCHAR(255),
		total          INT NOT NULL,
		correct        INT NOT NULL,
		score          DOUBLE PRECISION NOT NULL,
		difficulty     VARCHAR(20) NOT NULL,
		knowledge_gaps JSONB,
		created_at     TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_user ON quiz_attempts(user_id, created_at DESC);
	`

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
