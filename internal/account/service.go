package account

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type Storer interface {
	ListUsers(ctx context.Context) ([]*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, req *CreateUserRequest, passwordHash string) (*User, error)
	UpdateUser(ctx context.Context, id int64, req *UpdateUserRequest, passwordHash *string) (*User, error)
	DeleteUser(ctx context.Context, id int64) error
	CountUsersWithCapability(ctx context.Context, capability string) (int, error)
	GetCapabilities(ctx context.Context, userID int64) ([]string, error)
	ReplaceCapabilities(ctx context.Context, userID int64, capabilities []string) error
}

// DeleteHook은 사용자 삭제 후 그 사용자에 딸린 데이터를 정리합니다
type DeleteHook func(ctx context.Context, userID int64) error

type Service struct {
	store       Storer
	deleteHooks []DeleteHook
}

func NewService(store Storer) *Service {
	return &Service{store: store}
}

func (s *Service) OnDelete(hook DeleteHook) {
	s.deleteHooks = append(s.deleteHooks, hook)
}

func (s *Service) EnsureDefaultAdmin(ctx context.Context) error {
	username := os.Getenv("FILEBOX_ADMIN_USER")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("FILEBOX_ADMIN_PASSWORD")
	if password == "" {
		password = "admin1234"
	}
	nickname := os.Getenv("FILEBOX_ADMIN_NICKNAME")
	if nickname == "" {
		nickname = "Administrator"
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil
	}

	_, err := s.CreateUser(ctx, &CreateUserRequest{
		Username:     username,
		Password:     password,
		Nickname:     nickname,
		Capabilities: slices.Clone(KnownCapabilities),
	})
	if err == nil {
		log.Info().Str("username", username).Msg("[Account] default administrator created")
	}
	return err
}

func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) GetUserByID(ctx context.Context, id int64) (*User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *Service) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if err := validateCreateUser(req); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	return s.store.CreateUser(ctx, req, hash)
}

func (s *Service) UpdateUser(ctx context.Context, id int64, req *UpdateUserRequest) (*User, error) {
	if id <= 0 {
		return nil, errors.New("invalid user id")
	}
	if req == nil {
		return nil, errors.New("request is required")
	}

	if req.Nickname != nil {
		trimmed := strings.TrimSpace(*req.Nickname)
		if trimmed == "" {
			return nil, errors.New("nickname is required")
		}
		req.Nickname = &trimmed
	}

	var passwordHash *string
	if req.Password != nil {
		trimmed := strings.TrimSpace(*req.Password)
		if len(trimmed) < 6 {
			return nil, errors.New("password must be at least 6 characters")
		}
		hash, err := hashPassword(trimmed)
		if err != nil {
			return nil, err
		}
		passwordHash = &hash
	}

	return s.store.UpdateUser(ctx, id, req, passwordHash)
}

// DeleteUser는 계정을 지우고 등록된 정리 훅을 실행합니다. 훅 실패는 계정 삭제를 되돌리지 않습니다.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Has(CapabilityAccountsManage) {
		if err := s.ensureAnotherManager(ctx); err != nil {
			return err
		}
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}

	var errs []error
	for _, hook := range s.deleteHooks {
		if err := hook(ctx, id); err != nil {
			log.Warn().Err(err).Int64("user_id", id).Msg("[Account] delete hook failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (bool, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return false, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

// Capabilities는 요청마다 다시 읽히므로 권한 회수가 즉시 반영됩니다
func (s *Service) Capabilities(ctx context.Context, userID int64) ([]string, error) {
	if userID <= 0 {
		return nil, errors.New("invalid user id")
	}
	return s.store.GetCapabilities(ctx, userID)
}

func (s *Service) ReplaceCapabilities(ctx context.Context, userID int64, capabilities []string) error {
	if userID <= 0 {
		return errors.New("invalid user id")
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	normalized, err := normalizeCapabilities(capabilities)
	if err != nil {
		return err
	}
	if user.Has(CapabilityAccountsManage) && !slices.Contains(normalized, CapabilityAccountsManage) {
		if err := s.ensureAnotherManager(ctx); err != nil {
			return err
		}
	}
	return s.store.ReplaceCapabilities(ctx, userID, normalized)
}

func (s *Service) ensureAnotherManager(ctx context.Context) error {
	count, err := s.store.CountUsersWithCapability(ctx, CapabilityAccountsManage)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastManager
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeCapabilities(capabilities []string) ([]string, error) {
	normalized := make([]string, 0, len(capabilities))
	for _, capability := range capabilities {
		capability = strings.TrimSpace(capability)
		if !isKnownCapability(capability) {
			return nil, fmt.Errorf("unknown capability %q", capability)
		}
		if !slices.Contains(normalized, capability) {
			normalized = append(normalized, capability)
		}
	}
	slices.Sort(normalized)
	return normalized, nil
}

func validateCreateUser(req *CreateUserRequest) error {
	if req == nil {
		return errors.New("request is required")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Username == "" {
		return errors.New("username is required")
	}
	if len(req.Username) < 3 {
		return errors.New("username must be at least 3 characters")
	}
	if req.Nickname == "" {
		req.Nickname = req.Username
	}
	if len(strings.TrimSpace(req.Password)) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	if req.Capabilities == nil {
		req.Capabilities = slices.Clone(DefaultCapabilities)
	}
	normalized, err := normalizeCapabilities(req.Capabilities)
	if err != nil {
		return err
	}
	req.Capabilities = normalized
	return nil
}
