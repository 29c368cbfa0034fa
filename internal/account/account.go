package account

import (
	"errors"
	"slices"
	"time"
)

const (
	CapabilityFilesPrivate    = "files.private"
	CapabilityFilesPublic     = "files.public"
	CapabilityFilesTrash      = "files.trash"
	CapabilityFilesListPublic = "files.list_public"
	CapabilityFilesUnlimited  = "files.unlimited"
	CapabilityAccountsManage  = "accounts.manage"
)

// KnownCapabilities는 부여할 수 있는 권한 목록입니다
var KnownCapabilities = []string{
	CapabilityFilesPrivate,
	CapabilityFilesPublic,
	CapabilityFilesTrash,
	CapabilityFilesListPublic,
	CapabilityFilesUnlimited,
	CapabilityAccountsManage,
}

// DefaultCapabilities는 권한을 지정하지 않고 만든 사용자에게 주어집니다
var DefaultCapabilities = []string{
	CapabilityFilesPrivate,
	CapabilityFilesPublic,
	CapabilityFilesTrash,
}

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrLastManager    = errors.New("at least one account manager must remain")
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Nickname     string    `json:"nickname"`
	Capabilities []string  `json:"capabilities"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) Has(capability string) bool {
	return slices.Contains(u.Capabilities, capability)
}

type CreateUserRequest struct {
	Username     string   `json:"username"`
	Password     string   `json:"password"`
	Nickname     string   `json:"nickname"`
	Capabilities []string `json:"capabilities"`
}

type UpdateUserRequest struct {
	Nickname *string `json:"nickname,omitempty"`
	Password *string `json:"password,omitempty"`
}

func isKnownCapability(capability string) bool {
	return slices.Contains(KnownCapabilities, capability)
}
