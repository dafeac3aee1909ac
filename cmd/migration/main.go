package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"ludora/cmd/migration/versions"
	"net/url"
	"os"
	"strings"

	"github.com/go-gormigrate/gormigrate/v2"
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

func main() {
	envFile := flag.String("env", "", "File to load env variables from.")
	rollback := flag.String("rollback", "", "Migration id to roll back to. If not specified all pending migrations are applied.")

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

	m := gormigrate.New(db, gormigrate.DefaultOptions, versions.Migrations())

	if *rollback != "" {
		if err := m.RollbackTo(*rollback); err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		slog.Info("rollback complete", "target", *rollback)
		return
	}

	if err := m.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	slog.Info("migrations applied")
}
