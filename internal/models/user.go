package models

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleViewer     Role = "viewer"
)

type Permission string

const (
	PermView        Permission = "view"
	PermCreate      Permission = "create"
	PermEdit        Permission = "edit"
	PermDelete      Permission = "delete"
	PermManageUsers Permission = "manage_users"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin:      {PermView, PermCreate, PermEdit, PermDelete, PermManageUsers},
	RoleAccountant: {PermView, PermCreate, PermEdit},
	RoleViewer:     {PermView},
}

const MinPasswordLength = 6

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := rolePermissions[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Username     string    `bun:"username,notnull,unique,type:varchar(80)" json:"username"`
	PasswordHash string    `bun:"password_hash,notnull,type:varchar(255)" json:"-"`
	Email        string    `bun:"email,type:varchar(120)" json:"email"`
	FullName     string    `bun:"full_name,type:varchar(150)" json:"full_name"`
	Role         Role      `bun:"role,notnull,type:varchar(20),default:'viewer'" json:"role"`
	IsActive     bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (u *User) SetPassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

func (u *User) HasPermission(p Permission) bool {
	if u == nil {
		return false
	}
	return slices.Contains(rolePermissions[u.Role], p)
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

var ErrInvalidCredentials = errors.New("invalid username or password")
