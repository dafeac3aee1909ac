package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"ludora/schema"
	"ludora/utils"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrGeneratingJwt      = errors.New("error generating jwt")
	ErrEmailAlreadyInUse  = errors.New("email is already in use")
)

const bcryptCost = 12

type requestContextKey string

const userRequestContextKey requestContextKey = "user"

type Authenticator struct {
	jwtManager *JwtManager
	db         *gorm.DB
	auditLog   AuditLogger
}

type AuthenticatorArgs struct {
	Secret        []byte
	TokenTtl      time.Duration
	AdminEmail    string
	AdminPassword string
}

func NewAuthenticator(db *gorm.DB, auditLog AuditLogger, args AuthenticatorArgs) (*Authenticator, error) {
	err := ensureRoles(db)
	if err != nil {
		return nil, err
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(args.AdminPassword), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error encrypting admin password: %w", err)
	}

	err = addInitialAdminToDb(db, args.AdminEmail, hashedPwd)
	if err != nil {
		return nil, fmt.Errorf("error adding initial admin to db: %w", err)
	}

	return &Authenticator{
		jwtManager: NewJwtManager(args.Secret, args.TokenTtl),
		db:         db,
		auditLog:   auditLog,
	}, nil
}

// ensureRoles inserts any role names missing from the roles table. Existing
// rows keep their ids so references stay valid across restarts.
func ensureRoles(db *gorm.DB) error {
	return db.Transaction(func(txn *gorm.DB) error {
		for _, name := range schema.KnownRoles() {
			var existing schema.Role
			result := txn.Limit(1).Find(&existing, "name = ?", name)
			if result.Error != nil {
				slog.Error("sql error checking for role", "role", name, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
			if result.RowsAffected != 0 {
				continue
			}
			result = txn.Create(&schema.Role{Id: uuid.New(), Name: name})
			if result.Error != nil {
				slog.Error("sql error creating role", "role", name, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
		}
		return nil
	})
}

func addInitialAdminToDb(db *gorm.DB, email string, password []byte) error {
	err := db.Transaction(func(txn *gorm.DB) error {
		adminRole, err := schema.GetRoleByName(schema.RoleAdmin, txn)
		if err != nil {
			return err
		}

		var existing schema.PersonalInfo
		result := txn.Limit(1).Find(&existing, "email = ?", email)
		if result.Error != nil {
			slog.Error("sql error checking if admin has already been added", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected != 0 {
			return nil
		}

		admin := schema.User{
			Id:       uuid.New(),
			Password: password,
			RoleId:   adminRole.Id,
			PersonalInfo: &schema.PersonalInfo{
				Name:      "Admin",
				FirstName: "Platform",
				Email:     email,
			},
		}
		result = txn.Create(&admin)
		if result.Error != nil {
			slog.Error("sql error creating initial admin user", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error adding initial admin to db: %w", err)
	}

	return nil
}

func (auth *Authenticator) addUserToContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			userId, err := ValueFromContext(r, userIdKey)
			if err != nil {
				utils.WriteErrorResponse(w, http.StatusUnauthorized, "Unauthorized", err.Error())
				return
			}

			userUUID, err := uuid.Parse(userId)
			if err != nil {
				utils.WriteErrorResponse(w, http.StatusUnauthorized, "Unauthorized", fmt.Sprintf("invalid user uuid '%v': %v", userId, err))
				return
			}

			user, err := schema.GetUser(userUUID, auth.db)
			if err != nil {
				if errors.Is(err, schema.ErrUserNotFound) {
					// The token outlived its user.
					utils.WriteErrorResponse(w, http.StatusUnauthorized, "Unauthorized", err.Error())
					return
				}
				utils.WriteErrorResponse(w, http.StatusInternalServerError, "Internal server error", fmt.Sprintf("unable to find user %v", userId))
				return
			}

			reqCtx := r.Context()
			reqCtx = context.WithValue(reqCtx, userRequestContextKey, user)
			next.ServeHTTP(w, r.WithContext(reqCtx))
		}

		return http.HandlerFunc(handler)
	}
}

func (auth *Authenticator) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{auth.jwtManager.Verifier(), auth.jwtManager.Authenticator(), auth.addUserToContext(), auth.auditLog.Middleware}
}

type LoginResult struct {
	User        schema.User
	AccessToken string
}

// LoginWithEmail returns ErrInvalidCredentials for both an unknown email and
// a wrong password so the two cases cannot be told apart by a caller.
func (auth *Authenticator) LoginWithEmail(email, password string) (LoginResult, error) {
	user, err := schema.GetUserByEmail(email, auth.db)
	if err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	err = bcrypt.CompareHashAndPassword(user.Password, []byte(password))
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := auth.jwtManager.CreateUserJwt(user.Id)
	if err != nil {
		return LoginResult{}, ErrGeneratingJwt
	}

	return LoginResult{User: user, AccessToken: token}, nil
}

type NewUserArgs struct {
	Password string
	RoleId   uuid.UUID
	SchoolId *uuid.UUID
	ParentId *uuid.UUID

	Name      string
	FirstName string
	Email     string
	Phone     string
	Image     string
	City      string
	ZipCode   string
}

// CreateUser persists the user and its personal info in one transaction so a
// partial registration is never observable.
func (auth *Authenticator) CreateUser(args NewUserArgs) (schema.User, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(args.Password), bcryptCost)
	if err != nil {
		return schema.User{}, fmt.Errorf("error encrypting password: %w", err)
	}

	newUser := schema.User{
		Id:       uuid.New(),
		Password: hashedPwd,
		RoleId:   args.RoleId,
		SchoolId: args.SchoolId,
		ParentId: args.ParentId,
		PersonalInfo: &schema.PersonalInfo{
			Name:      args.Name,
			FirstName: args.FirstName,
			Email:     args.Email,
			Phone:     args.Phone,
			Image:     args.Image,
			City:      args.City,
			ZipCode:   args.ZipCode,
		},
	}

	err = auth.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetRole(args.RoleId, txn); err != nil {
			return err
		}
		if args.SchoolId != nil {
			if _, err := schema.GetSchool(*args.SchoolId, txn); err != nil {
				return err
			}
		}
		if args.ParentId != nil {
			if _, err := schema.GetUser(*args.ParentId, txn); err != nil {
				return err
			}
		}

		var existing schema.PersonalInfo
		result := txn.Limit(1).Find(&existing, "email = ?", args.Email)
		if result.Error != nil {
			slog.Error("sql error checking for existing email", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected != 0 {
			return ErrEmailAlreadyInUse
		}

		result = txn.Create(&newUser)
		if result.Error != nil {
			slog.Error("sql error creating new user entry", "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})

	if err != nil {
		return schema.User{}, err
	}

	return schema.GetUser(newUser.Id, auth.db)
}

func (auth *Authenticator) CreateUserJwt(userId uuid.UUID) (string, error) {
	return auth.jwtManager.CreateUserJwt(userId)
}
