package schema

import (
	"time"

	"github.com/google/uuid"
)

// RoleName is the closed set of roles the platform dispatches on. Role rows
// are stored in the database so they can be listed and referenced by id, but
// authorization only ever branches on these names.
type RoleName string

const (
	RoleAdmin    RoleName = "admin"
	RoleDirector RoleName = "director"
	RoleTeacher  RoleName = "teacher"
	RoleParent   RoleName = "parent"
	RoleChild    RoleName = "child"
)

func KnownRoles() []RoleName {
	return []RoleName{RoleAdmin, RoleDirector, RoleTeacher, RoleParent, RoleChild}
}

func (r RoleName) Valid() bool {
	switch r {
	case RoleAdmin, RoleDirector, RoleTeacher, RoleParent, RoleChild:
		return true
	}
	return false
}

type Role struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name RoleName  `gorm:"unique;size:50;not null" json:"name"`

	Users []User `json:"-"`

	// Filled by list endpoints, not stored.
	UserCount int64 `gorm:"-" json:"userCount,omitempty"`
}

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Password []byte `json:"-"`

	RoleId uuid.UUID `gorm:"type:uuid;not null" json:"roleId"`
	Role   *Role     `json:"role,omitempty"`

	SchoolId *uuid.UUID `gorm:"type:uuid" json:"schoolId"`
	School   *School    `json:"school,omitempty"`

	ParentId *uuid.UUID `gorm:"type:uuid" json:"parentId"`
	Parent   *User      `json:"parent,omitempty"`
	Children []User     `gorm:"foreignKey:ParentId" json:"children,omitempty"`

	PersonalInfo *PersonalInfo `gorm:"constraint:OnDelete:CASCADE" json:"personalInfo,omitempty"`

	CreatedClasses []Class     `gorm:"foreignKey:CreatedByUserId" json:"-"`
	Classes        []UserClass `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// RoleName requires the Role association to be loaded; users fetched through
// GetUser always have it.
func (u *User) RoleName() RoleName {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}

func (u *User) IsAdmin() bool {
	return u.RoleName() == RoleAdmin
}

// PersonalInfo is created atomically with its User and shares its lifetime.
type PersonalInfo struct {
	UserId uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`

	Name      string `gorm:"size:150;not null" json:"name"`
	FirstName string `gorm:"size:150;not null" json:"firstName"`
	Email     string `gorm:"unique;size:254;not null" json:"email"`

	Phone   string `gorm:"size:50" json:"phone,omitempty"`
	Image   string `json:"image,omitempty"`
	City    string `gorm:"size:150" json:"city,omitempty"`
	ZipCode string `gorm:"size:20" json:"zipCode,omitempty"`
}

type School struct {
	Id      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name    string    `gorm:"unique;size:150;not null" json:"name"`
	City    string    `gorm:"size:150" json:"city,omitempty"`
	ZipCode string    `gorm:"size:20" json:"zipCode,omitempty"`

	Users   []User  `json:"-"`
	Classes []Class `json:"-"`
}

type Class struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"unique;size:150;not null" json:"name"`

	CreatedByUserId uuid.UUID `gorm:"type:uuid;not null" json:"createdByUserId"`
	CreatedBy       *User     `gorm:"foreignKey:CreatedByUserId" json:"createdBy,omitempty"`

	SchoolId *uuid.UUID `gorm:"type:uuid" json:"schoolId"`
	School   *School    `json:"school,omitempty"`

	Members []UserClass `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	// Filled by list endpoints, not stored.
	StudentCount int64 `gorm:"-" json:"studentCount,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// UserClass is the class membership join row, unique per (user, class).
type UserClass struct {
	UserId  uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	ClassId uuid.UUID `gorm:"type:uuid;primaryKey" json:"classId"`

	User  *User  `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Class *Class `gorm:"constraint:OnDelete:CASCADE" json:"class,omitempty"`
}

type Domain struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"unique;size:150;not null" json:"name"`

	Themes []Theme `json:"themes,omitempty"`

	// Filled by list endpoints, not stored.
	ThemeCount int64 `gorm:"-" json:"themeCount,omitempty"`
}

type Theme struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"unique;size:150;not null" json:"name"`

	DomainId *uuid.UUID `gorm:"type:uuid" json:"domainId"`
	Domain   *Domain    `json:"domain,omitempty"`

	Activities []Activity `json:"activities,omitempty"`

	// Filled by list endpoints, not stored.
	ActivityCount int64 `gorm:"-" json:"activityCount,omitempty"`
}

type Activity struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"unique;size:150;not null" json:"name"`

	ThemeId uuid.UUID `gorm:"type:uuid;not null" json:"themeId"`
	Theme   *Theme    `json:"theme,omitempty"`
}

// Tables lists every entity in migration order.
func Tables() []interface{} {
	return []interface{}{
		&Role{}, &School{}, &User{}, &PersonalInfo{},
		&Class{}, &UserClass{},
		&Domain{}, &Theme{}, &Activity{},
	}
}
