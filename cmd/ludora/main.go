package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"ludora/auth"
	"ludora/schema"
	"ludora/services"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/joho/godotenv"
	slogmulti "github.com/samber/slog-multi"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type serverEnv struct {
	DatabaseUri string `env:"DATABASE_URI,required"`
	JwtSecret   string `env:"JWT_SECRET,required"`

	AdminEmail    string `env:"ADMIN_EMAIL,required"`
	AdminPassword string `env:"ADMIN_PASSWORD,required"`

	TokenTtl time.Duration `env:"TOKEN_TTL" envDefault:"168h"`

	LogDir  string `env:"LOG_DIR" envDefault:"logs"`
	DevMode bool   `env:"DEV_MODE" envDefault:"false"`

	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"*"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

func loadEnv() serverEnv {
	cfg := serverEnv{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing env variables: %v", err)
	}
	return cfg
}

func initLogging(logFile *os.File) {
	jsonHandler := slog.NewJSONHandler(logFile, nil)
	textHandler := slog.NewTextHandler(os.Stderr, nil)

	logger := slog.New(slogmulti.Fanout(jsonHandler, textHandler))
	slog.SetDefault(logger)

	slog.Info("logging initialized", "log_file", logFile.Name())
}

func postgresDsn(databaseUri string) string {
	parts, err := url.Parse(databaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(schema.Tables()...)
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 3000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	cfg := loadEnv()

	err := os.MkdirAll(cfg.LogDir, 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "ludora.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(cfg.LogDir, "audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	initLogging(logFile)

	services.SetDevMode(cfg.DevMode)

	db := initDb(postgresDsn(cfg.DatabaseUri))

	userAuth, err := auth.NewAuthenticator(db, auth.NewAuditLogger(auditLog), auth.AuthenticatorArgs{
		Secret:        []byte(cfg.JwtSecret),
		TokenTtl:      cfg.TokenTtl,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		log.Fatalf("error creating authenticator: %v", err)
	}

	platform := services.NewPlatform(db, userAuth)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))

	r.Mount("/", platform.Routes())

	slog.Info("starting server", "port", *port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
