package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createWorkersTableMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_workers_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS workers (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					first_name VARCHAR(100),
					last_name VARCHAR(100),
					email VARCHAR(255),
					date_of_birth TIMESTAMP WITH TIME ZONE,
					status VARCHAR(30) NOT NULL DEFAULT 'ONBOARDING_IN_PROGRESS',
					onboarding_status VARCHAR(20) NOT NULL DEFAULT 'IN_PROGRESS',
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_workers_email ON workers(email);
				CREATE INDEX IF NOT EXISTS idx_workers_status ON workers(status);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP TABLE IF EXISTS workers`).Error
		},
	}
}
