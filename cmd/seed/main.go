package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"ludora/schema"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func postgresDsn(databaseUri string) string {
	parts, err := url.Parse(databaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

// firstOrCreate inserts the record unless a row with the same name exists.
func firstOrCreate(txn *gorm.DB, dest interface{}, name string, create func() interface{}) error {
	result := txn.Limit(1).Find(dest, "name = ?", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 0 {
		return nil
	}
	return txn.Create(create()).Error
}

func seedRoles(txn *gorm.DB) error {
	for _, name := range schema.KnownRoles() {
		role := name
		var existing schema.Role
		err := firstOrCreate(txn, &existing, string(name), func() interface{} {
			return &schema.Role{Id: uuid.New(), Name: role}
		})
		if err != nil {
			return fmt.Errorf("error seeding role %v: %w", name, err)
		}
	}
	return nil
}

func seedSchools(txn *gorm.DB) error {
	schools := []schema.School{
		{Name: "Ecole Primaire Jean Jaures", City: "Lyon", ZipCode: "69003"},
		{Name: "Ecole Elementaire Les Tilleuls", City: "Nantes", ZipCode: "44000"},
	}
	for _, school := range schools {
		s := school
		var existing schema.School
		err := firstOrCreate(txn, &existing, s.Name, func() interface{} {
			s.Id = uuid.New()
			return &s
		})
		if err != nil {
			return fmt.Errorf("error seeding school %v: %w", s.Name, err)
		}
	}
	return nil
}

func seedTaxonomy(txn *gorm.DB) error {
	taxonomy := map[string]map[string][]string{
		"Mathematiques": {
			"Nombres et calculs": {"Additions posees", "Tables de multiplication"},
			"Geometrie":          {"Figures planes", "Symetrie axiale"},
		},
		"Francais": {
			"Lecture":     {"Comprehension de texte"},
			"Orthographe": {"Dictee preparee", "Accords du participe passe"},
		},
	}

	for domainName, themes := range taxonomy {
		var domain schema.Domain
		result := txn.Limit(1).Find(&domain, "name = ?", domainName)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			domain = schema.Domain{Id: uuid.New(), Name: domainName}
			if err := txn.Create(&domain).Error; err != nil {
				return fmt.Errorf("error seeding domain %v: %w", domainName, err)
			}
		}

		for themeName, activities := range themes {
			var theme schema.Theme
			result := txn.Limit(1).Find(&theme, "name = ?", themeName)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				theme = schema.Theme{Id: uuid.New(), Name: themeName, DomainId: &domain.Id}
				if err := txn.Create(&theme).Error; err != nil {
					return fmt.Errorf("error seeding theme %v: %w", themeName, err)
				}
			}

			for _, activityName := range activities {
				var activity schema.Activity
				err := firstOrCreate(txn, &activity, activityName, func() interface{} {
					return &schema.Activity{Id: uuid.New(), Name: activityName, ThemeId: theme.Id}
				})
				if err != nil {
					return fmt.Errorf("error seeding activity %v: %w", activityName, err)
				}
			}
		}
	}

	return nil
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from.")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("error loading .env file '%v': %v", *envFile, err)
		}
	}

	databaseUri := os.Getenv("DATABASE_URI")
	if databaseUri == "" {
		log.Fatal("DATABASE_URI env variable must be set")
	}

	db, err := gorm.Open(postgres.Open(postgresDsn(databaseUri)), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.Transaction(func(txn *gorm.DB) error {
		if err := seedRoles(txn); err != nil {
			return err
		}
		if err := seedSchools(txn); err != nil {
			return err
		}
		return seedTaxonomy(txn)
	})
	if err != nil {
		log.Fatalf("seeding failed: %v", err)
	}

	slog.Info("seed data applied")
}
