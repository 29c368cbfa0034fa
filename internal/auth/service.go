package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"taeu.kr/filebox/internal/account"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims는 신원만 담습니다. 권한(capability)은 토큰에 넣지 않고 요청마다 저장소에서 읽습니다.
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

type Service struct {
	accounts *account.Service
	config   Config
}

func NewService(accounts *account.Service, config Config) *Service {
	return &Service{
		accounts: accounts,
		config:   config,
	}
}

// Login은 비밀번호를 확인하고 새 토큰 쌍을 발급합니다.
// 반환되는 사용자에는 로그인 시점의 권한 목록이 들어 있습니다.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, *account.User, error) {
	authed, err := s.accounts.Authenticate(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}
	if !authed {
		return nil, nil, ErrInvalidCredentials
	}

	user, err := s.accounts.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	return s.issueFor(user)
}

// Refresh는 refresh 토큰으로 새 쌍을 발급합니다. 그 사이 삭제된 계정은 거부됩니다.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, *account.User, error) {
	claims, err := s.ParseToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	user, err := s.accounts.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	return s.issueFor(user)
}

func (s *Service) issueFor(user *account.User) (*TokenPair, *account.User, error) {
	pair, err := s.IssueTokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

func (s *Service) IssueTokenPair(user *account.User) (*TokenPair, error) {
	access, err := s.signToken(user, TokenTypeAccess, s.config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signToken(user, TokenTypeRefresh, s.config.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Capabilities는 토큰이 아닌 저장소에서 권한을 읽으므로 회수가 다음 요청부터 적용됩니다
func (s *Service) Capabilities(ctx context.Context, userID int64) ([]string, error) {
	return s.accounts.Capabilities(ctx, userID)
}

// ParseToken은 서명, 만료와 토큰 종류를 함께 검사합니다
func (s *Service) ParseToken(tokenString string, expectedType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != expectedType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) signToken(user *account.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Nickname: user.Nickname,
		Type:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}
