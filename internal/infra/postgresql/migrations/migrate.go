package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/relaykit/smsrelay/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_messages",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.MessageModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.MessageModel{})
			},
		},
		{
			ID: "000002_create_recipients",
			Migrate: func(tx *gorm.DB) error {
				// The unique (type, value) index comes from the model tags;
				// AutoMigrate creates it together with the table.
				return tx.AutoMigrate(&repository.RecipientModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.RecipientModel{})
			},
		},
		{
			ID: "000003_create_message_recipients",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.MessageRecipientModel{}); err != nil {
					return err
				}
				constraints := []string{
					`ALTER TABLE message_recipients
					   ADD CONSTRAINT fk_message_recipients_message
					   FOREIGN KEY (message_id) REFERENCES messages (id)
					   ON DELETE CASCADE`,
					// ON UPDATE CASCADE keeps associations attached when a
					// recipient identifier is promoted in place.
					`ALTER TABLE message_recipients
					   ADD CONSTRAINT fk_message_recipients_recipient
					   FOREIGN KEY (recipient_id) REFERENCES recipients (id)
					   ON DELETE CASCADE ON UPDATE CASCADE`,
					`CREATE INDEX IF NOT EXISTS idx_message_recipients_recipient_id
					   ON message_recipients (recipient_id)`,
				}
				for _, sql := range constraints {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.MessageRecipientModel{})
			},
		},
	})

	return m.Migrate()
}
