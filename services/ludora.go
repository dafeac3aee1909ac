package services

import (
	"log"
	"ludora/auth"
	"ludora/utils"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	registerMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "ludora_register", Help: "User registrations"})
	loginMetric    = promauto.NewSummary(prometheus.SummaryOpts{Name: "ludora_login", Help: "User logins"})
)

type Platform struct {
	auth     AuthService
	user     UserService
	school   SchoolService
	class    ClassService
	role     RoleService
	domain   DomainService
	theme    ThemeService
	activity ActivityService

	db       *gorm.DB
	userAuth *auth.Authenticator
}

func NewPlatform(db *gorm.DB, userAuth *auth.Authenticator) Platform {
	return Platform{
		auth:     AuthService{db: db, userAuth: userAuth},
		user:     UserService{db: db},
		school:   SchoolService{db: db},
		class:    ClassService{db: db},
		role:     RoleService{db: db},
		domain:   DomainService{db: db},
		theme:    ThemeService{db: db},
		activity: ActivityService{db: db},
		db:       db,
		userAuth: userAuth,
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

func (p *Platform) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", p.auth.Routes())

		r.Group(func(r chi.Router) {
			r.Use(p.userAuth.AuthMiddleware()...)

			r.Mount("/users", p.user.Routes())
			r.Mount("/schools", p.school.Routes())
			r.Mount("/classes", p.class.Routes())
			r.Mount("/roles", p.role.Routes())
			r.Mount("/domains", p.domain.Routes())
			r.Mount("/themes", p.theme.Routes())
			r.Mount("/activities", p.activity.Routes())
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJsonResponse(w, http.StatusOK, healthResponse{
			Status:    "OK",
			Timestamp: time.Now().UTC(),
			Service:   "ludora-backend",
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponse(w, http.StatusNotFound, kindNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponse(w, http.StatusMethodNotAllowed, kindInvalidRequest, "method not allowed")
	})

	return r
}
