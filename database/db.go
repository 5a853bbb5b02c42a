package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/pipeflowhq/pipeflow/config"
	"github.com/pipeflowhq/pipeflow/internal/cache"
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
		instance = &Datasource{Conn: con, Cache: nil}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, errors.Wrap(err, "failed to ping database")
	}
	err = createPipelineTable(db)
	if err != nil {
		return nil, err
	}
	err = createStageTable(db)
	if err != nil {
		return nil, err
	}
	err = createChecklistItemTable(db)
	if err != nil {
		return nil, err
	}
	err = createEntryTable(db)
	if err != nil {
		return nil, err
	}
	err = createAuditLogTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createPipelineTable creates a PostgreSQL table for the Pipeline struct
func createPipelineTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pipelines (
			id SERIAL PRIMARY KEY,
			pipeline_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			is_primary BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	log.Println(err)
	return err
}

// createStageTable creates a PostgreSQL table for the Stage struct.
// Ordinal uniqueness is per pipeline; reorders rewrite ordinals in two phases
// inside one transaction so the constraint never trips.
func createStageTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stages (
			id SERIAL PRIMARY KEY,
			stage_id TEXT NOT NULL UNIQUE,
			pipeline_id TEXT NOT NULL REFERENCES pipelines(pipeline_id),
			name TEXT NOT NULL,
			ordinal INT NOT NULL,
			sla_duration_days INT,
			wip_limit INT,
			successor_stage_id TEXT,
			sla_anchor TEXT NOT NULL DEFAULT 'STAGE_ENTRY',
			auto_appointment BOOLEAN NOT NULL DEFAULT FALSE,
			appointment_duration_minutes INT NOT NULL DEFAULT 0,
			next_step_label TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB,
			UNIQUE (pipeline_id, ordinal)
		)
	`)
	log.Println(err)
	return err
}

// createChecklistItemTable creates a PostgreSQL table for the ChecklistItemDefinition struct
func createChecklistItemTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checklist_items (
			id SERIAL PRIMARY KEY,
			item_id TEXT NOT NULL UNIQUE,
			stage_id TEXT NOT NULL REFERENCES stages(stage_id),
			title TEXT NOT NULL,
			ordinal INT NOT NULL,
			mandatory BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE
		)
	`)
	log.Println(err)
	return err
}

// createEntryTable creates a PostgreSQL table for the Entry struct
func createEntryTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id SERIAL PRIMARY KEY,
			entry_id TEXT NOT NULL UNIQUE,
			lead_id TEXT NOT NULL,
			pipeline_id TEXT NOT NULL REFERENCES pipelines(pipeline_id),
			stage_id TEXT NOT NULL REFERENCES stages(stage_id),
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			stage_entered_at TIMESTAMP NOT NULL DEFAULT NOW(),
			linked_appointment_id TEXT,
			linked_appointment_at TIMESTAMP,
			days_in_stage INT NOT NULL DEFAULT 0,
			days_overdue INT NOT NULL DEFAULT 0,
			health TEXT,
			stage_note TEXT,
			checklist JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			archived_at TIMESTAMP,
			meta_data JSONB
		)
	`)
	log.Println(err)
	return err
}

// createAuditLogTable creates a PostgreSQL table for the AuditLog struct
func createAuditLogTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id SERIAL PRIMARY KEY,
			audit_id TEXT NOT NULL UNIQUE,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			diffs JSONB,
			actor TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}
