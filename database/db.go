package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/cache"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		ca, errCache := cache.NewCache()
		if errCache != nil {
			// The interaction log reads fall through to Postgres without it.
			log.Printf("cache unavailable, reads go straight to db: %v", errCache)
		}
		instance = &Datasource{Conn: con, Cache: ca}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createUserTable(db)
	if err != nil {
		return nil, err
	}
	err = createVerificationRequestTable(db)
	if err != nil {
		return nil, err
	}
	err = createAdminQueueTable(db)
	if err != nil {
		return nil, err
	}
	err = createFollowUpStepTable(db)
	if err != nil {
		return nil, err
	}
	err = createInteractionTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createUserTable creates a PostgreSQL table for the User struct
func createUserTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			state TEXT NOT NULL,
			identifier TEXT,
			artifact_ref TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			last_interaction_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_users_identifier ON users(identifier)`)
	return err
}

// createVerificationRequestTable creates a PostgreSQL table for the VerificationRequest struct
func createVerificationRequestTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS verification_requests (
			id SERIAL PRIMARY KEY,
			request_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL REFERENCES users(user_id),
			identifier TEXT NOT NULL,
			artifact_ref TEXT,
			submitted_at TIMESTAMP NOT NULL DEFAULT NOW(),
			decision TEXT NOT NULL,
			confidence_score DOUBLE PRECISION NOT NULL,
			reason TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_verification_requests_submitted_at ON verification_requests(submitted_at)`)
	return err
}

// createAdminQueueTable creates a PostgreSQL table for the AdminQueueEntry struct
func createAdminQueueTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS admin_queue (
			id SERIAL PRIMARY KEY,
			entry_id TEXT NOT NULL UNIQUE,
			request_id TEXT NOT NULL REFERENCES verification_requests(request_id),
			user_id TEXT NOT NULL REFERENCES users(user_id),
			enqueued_at TIMESTAMP NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMP,
			resolver TEXT,
			resolution TEXT
		)
	`)
	return err
}

// createFollowUpStepTable creates a PostgreSQL table for the FollowUpStep struct.
// The partial unique index enforces the "at most one PENDING step per user"
// invariant at the store level.
func createFollowUpStepTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS follow_up_steps (
			id SERIAL PRIMARY KEY,
			step_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL REFERENCES users(user_id),
			sequence_index INT NOT NULL,
			due_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL,
			content_ref TEXT NOT NULL,
			attempt_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, sequence_index)
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_follow_up_steps_one_pending ON follow_up_steps(user_id) WHERE status = 'PENDING'`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_follow_up_steps_due_at ON follow_up_steps(due_at) WHERE status = 'PENDING'`)
	return err
}

// createInteractionTable creates a PostgreSQL table for the Interaction audit log
func createInteractionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS interactions (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			interaction_type TEXT NOT NULL,
			interaction_data TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}
