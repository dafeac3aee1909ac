package services

import (
	"errors"
	"log/slog"
	"ludora/auth"
	"ludora/schema"
	"ludora/utils"
	"ludora/validation"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DomainService struct {
	db *gorm.DB
}

func (s *DomainService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.Get("/{domain_id}", s.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(schema.RoleAdmin, schema.RoleTeacher, schema.RoleDirector))

		r.Post("/", s.Create)
		r.Put("/{domain_id}", s.Update)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly())

		r.Delete("/{domain_id}", s.Delete)
	})

	return r
}

type listDomainsResponse struct {
	Domains    []schema.Domain    `json:"domains"`
	Pagination paginationResponse `json:"pagination"`
}

func (s *DomainService) List(w http.ResponseWriter, r *http.Request) {
	params, err := parsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var domains []schema.Domain
	pagination, err := paginate(s.db.Model(&schema.Domain{}).Order("name"), params, &domains)
	if err != nil {
		writeError(w, err)
		return
	}

	ids := make([]uuid.UUID, len(domains))
	for i := range domains {
		ids[i] = domains[i].Id
	}
	counts, err := countByColumn(s.db, &schema.Theme{}, "domain_id", ids)
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range domains {
		domains[i].ThemeCount = counts[domains[i].Id]
	}

	utils.WriteJsonResponse(w, http.StatusOK, listDomainsResponse{Domains: domains, Pagination: pagination})
}

type domainResponse struct {
	Message string        `json:"message,omitempty"`
	Domain  schema.Domain `json:"domain"`
}

// Get returns the domain with its themes embedded.
func (s *DomainService) Get(w http.ResponseWriter, r *http.Request) {
	domainId, err := utils.URLParamUUID(r, "domain_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	var domain schema.Domain
	result := s.db.Preload("Themes").First(&domain, "id = ?", domainId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			writeError(w, entityError(schema.ErrDomainNotFound))
			return
		}
		slog.Error("sql error in get domain", "domain_id", domainId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, domainResponse{Domain: domain})
}

type domainRequest struct {
	Name string `json:"name" validate:"required,max=150"`
}

func (s *DomainService) Create(w http.ResponseWriter, r *http.Request) {
	var params domainRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	domain := schema.Domain{Id: uuid.New(), Name: params.Name}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Domain
		result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for existing domain name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		if result.RowsAffected != 0 {
			return CodedError(errors.New("a domain with this name already exists"), http.StatusBadRequest, kindConflict)
		}

		result = txn.Create(&domain)
		if result.Error != nil {
			slog.Error("sql error creating domain", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, domainResponse{Message: "Domain created successfully", Domain: domain})
}

func (s *DomainService) Update(w http.ResponseWriter, r *http.Request) {
	domainId, err := utils.URLParamUUID(r, "domain_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	var params domainRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	var domain schema.Domain
	err = s.db.Transaction(func(txn *gorm.DB) error {
		domain, err = schema.GetDomain(domainId, txn)
		if err != nil {
			return entityError(err)
		}

		if params.Name != domain.Name {
			var existing schema.Domain
			result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
			if result.Error != nil {
				slog.Error("sql error checking for existing domain name", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
			}
			if result.RowsAffected != 0 {
				return CodedError(errors.New("a domain with this name already exists"), http.StatusBadRequest, kindConflict)
			}
		}

		domain.Name = params.Name
		result := txn.Model(&schema.Domain{}).Where("id = ?", domain.Id).Update("name", domain.Name)
		if result.Error != nil {
			slog.Error("sql error updating domain", "domain_id", domain.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, domainResponse{Message: "Domain updated successfully", Domain: domain})
}

func (s *DomainService) Delete(w http.ResponseWriter, r *http.Request) {
	domainId, err := utils.URLParamUUID(r, "domain_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		domain, err := schema.GetDomain(domainId, txn)
		if err != nil {
			return entityError(err)
		}

		if err := checkNoDependents(txn, &schema.Theme{}, "domain_id = ?", domainId, "themes still reference this domain"); err != nil {
			return err
		}

		result := txn.Delete(&domain)
		if result.Error != nil {
			slog.Error("sql error deleting domain", "domain_id", domainId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, messageResponse{Message: "Domain deleted successfully"})
}
