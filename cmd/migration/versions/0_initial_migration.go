package versions

import (
	"ludora/schema"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrations lists every schema version in order. New versions are appended,
// never inserted or reordered.
func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		initialMigration(),
	}
}

func initialMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "0_initial_migration",
		Migrate: func(txn *gorm.DB) error {
			return txn.AutoMigrate(schema.Tables()...)
		},
		Rollback: func(txn *gorm.DB) error {
			tables := schema.Tables()
			for i := len(tables) - 1; i >= 0; i-- {
				if err := txn.Migrator().DropTable(tables[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
