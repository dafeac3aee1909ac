package tests

import (
	"bytes"
	"fmt"
	"ludora/auth"
	"ludora/schema"
	"ludora/services"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	platform services.Platform
	api      chi.Router
	db       *gorm.DB
}

const (
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(schema.Tables()...)
	if err != nil {
		t.Fatal(err)
	}

	userAuth, err := auth.NewAuthenticator(
		db,
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.AuthenticatorArgs{
			Secret:        []byte("290zcv02ai249"),
			TokenTtl:      time.Hour,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	platform := services.NewPlatform(db, userAuth)

	return &testEnv{platform: platform, api: platform.Routes(), db: db}
}

func (e *testEnv) newClient() client {
	return client{api: e.api}
}

func (e *testEnv) roleId(t *testing.T, name schema.RoleName) uuid.UUID {
	role, err := schema.GetRoleByName(name, e.db)
	if err != nil {
		t.Fatalf("error looking up role %v: %v", name, err)
	}
	return role.Id
}

// newUser registers and logs in a user with the given role. The username is
// also used to derive a unique email.
func (e *testEnv) newUser(t *testing.T, name string, role schema.RoleName, schoolId *uuid.UUID) client {
	c := e.newClient()

	login, err := c.register(name, name+"@mail.com", name+"_password", e.roleId(t, role), schoolId)
	if err != nil {
		t.Fatalf("error registering user %v: %v", name, err)
	}

	if err := c.login(login); err != nil {
		t.Fatalf("error logging in user %v: %v", name, err)
	}

	return c
}

func (e *testEnv) adminClient(t *testing.T) client {
	c := e.newClient()
	if err := c.login(loginInfo{Email: adminEmail, Password: adminPassword}); err != nil {
		t.Fatalf("error logging in admin: %v", err)
	}
	return c
}

// createSchool inserts a school directly, for tests that need one to exist.
func (e *testEnv) createSchool(t *testing.T, name string) uuid.UUID {
	school := schema.School{Id: uuid.New(), Name: name, City: "Paris"}
	if err := e.db.Create(&school).Error; err != nil {
		t.Fatalf("error creating school %v: %v", name, err)
	}
	return school.Id
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%v_%v", prefix, uuid.New().String()[:8])
}
