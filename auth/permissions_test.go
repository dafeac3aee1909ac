package auth

import (
	"ludora/schema"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(schema.Tables()...); err != nil {
		t.Fatal(err)
	}
	return db
}

func userWithRole(role schema.RoleName, schoolId *uuid.UUID) schema.User {
	return schema.User{
		Id:       uuid.New(),
		Role:     &schema.Role{Id: uuid.New(), Name: role},
		SchoolId: schoolId,
	}
}

func TestClassPermissionsAdmin(t *testing.T) {
	db := setupDb(t)

	class := schema.Class{Id: uuid.New(), CreatedByUserId: uuid.New()}

	perm, err := GetClassPermissions(class, userWithRole(schema.RoleAdmin, nil), db)
	assert.NoError(t, err)
	assert.Equal(t, ManagePermission, perm)
}

func TestClassPermissionsCreator(t *testing.T) {
	db := setupDb(t)

	teacher := userWithRole(schema.RoleTeacher, nil)
	class := schema.Class{Id: uuid.New(), CreatedByUserId: teacher.Id}

	perm, err := GetClassPermissions(class, teacher, db)
	assert.NoError(t, err)
	assert.Equal(t, ManagePermission, perm)

	other := userWithRole(schema.RoleTeacher, nil)
	perm, err = GetClassPermissions(class, other, db)
	assert.NoError(t, err)
	assert.Equal(t, NoPermission, perm)
}

func TestClassPermissionsDirector(t *testing.T) {
	db := setupDb(t)

	schoolId := uuid.New()
	otherSchoolId := uuid.New()

	class := schema.Class{Id: uuid.New(), CreatedByUserId: uuid.New(), SchoolId: &schoolId}

	sameSchool := userWithRole(schema.RoleDirector, &schoolId)
	perm, err := GetClassPermissions(class, sameSchool, db)
	assert.NoError(t, err)
	assert.Equal(t, ManagePermission, perm)

	otherSchool := userWithRole(schema.RoleDirector, &otherSchoolId)
	perm, err = GetClassPermissions(class, otherSchool, db)
	assert.NoError(t, err)
	assert.Equal(t, NoPermission, perm)

	// A director with no school assignment manages nothing.
	unassigned := userWithRole(schema.RoleDirector, nil)
	perm, err = GetClassPermissions(class, unassigned, db)
	assert.NoError(t, err)
	assert.Equal(t, NoPermission, perm)
}

func TestClassPermissionsEnrolled(t *testing.T) {
	db := setupDb(t)

	child := userWithRole(schema.RoleChild, nil)
	class := schema.Class{Id: uuid.New(), CreatedByUserId: uuid.New()}

	assert.NoError(t, db.Create(&schema.UserClass{UserId: child.Id, ClassId: class.Id}).Error)

	perm, err := GetClassPermissions(class, child, db)
	assert.NoError(t, err)
	assert.Equal(t, ReadPermission, perm)

	// Enrollment grants read, never manage.
	assert.Less(t, perm, ManagePermission)
}

func TestRoleNameValidity(t *testing.T) {
	for _, role := range schema.KnownRoles() {
		assert.True(t, role.Valid())
	}
	assert.False(t, schema.RoleName("wizard").Valid())
	assert.False(t, schema.RoleName("").Valid())
}
