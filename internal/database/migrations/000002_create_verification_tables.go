package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createVerificationTablesMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_verification_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS verification_records (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					worker_id UUID NOT NULL REFERENCES workers(id),
					verification_type VARCHAR(40) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
					provider VARCHAR(100),
					provider_request_id VARCHAR(255),
					provider_response JSONB,
					metadata JSONB,
					verified_at TIMESTAMP WITH TIME ZONE,
					expires_at TIMESTAMP WITH TIME ZONE,
					error_message TEXT,
					requires_manual BOOLEAN DEFAULT FALSE,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_worker_verification_type
					ON verification_records(worker_id, verification_type);
				CREATE INDEX IF NOT EXISTS idx_verification_records_status
					ON verification_records(status);
				CREATE INDEX IF NOT EXISTS idx_verification_records_provider_request_id
					ON verification_records(provider_request_id);
			`).Error; err != nil {
				return err
			}

			if err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS verification_documents (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					record_id UUID NOT NULL REFERENCES verification_records(id),
					type VARCHAR(50) NOT NULL,
					file_url TEXT NOT NULL,
					file_name VARCHAR(255),
					storage_key VARCHAR(255),
					metadata JSONB,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_verification_documents_record_id
					ON verification_documents(record_id);
			`).Error; err != nil {
				return err
			}

			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS verification_histories (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					record_id UUID NOT NULL REFERENCES verification_records(id),
					previous_status VARCHAR(20) NOT NULL,
					new_status VARCHAR(20) NOT NULL,
					notes TEXT,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_verification_histories_record_id
					ON verification_histories(record_id);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`
				DROP TABLE IF EXISTS verification_histories;
				DROP TABLE IF EXISTS verification_documents;
				DROP TABLE IF EXISTS verification_records;
			`).Error
		},
	}
}
