package auth_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"taeu.kr/filebox/internal/account"
	"taeu.kr/filebox/internal/auth"
)

func TestLogin_IssuesTokenPair_OnValidCredentials(t *testing.T) {
	authSvc, accountSvc, db := setupAuthTestService(t)
	defer db.Close()
	_, seededUser := seedAuthUsers(t, accountSvc)

	tokenPair, user, err := authSvc.Login(context.Background(), testUserUsername, testUserPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if tokenPair == nil || tokenPair.AccessToken == "" || tokenPair.RefreshToken == "" {
		t.Fatalf("expected non-empty token pair, got %#v", tokenPair)
	}
	if user == nil || user.Username != seededUser.Username {
		t.Fatalf("expected user %q, got %#v", seededUser.Username, user)
	}
	if user.PasswordHash != "" {
		t.Fatal("expected password hash to be stripped")
	}
	if !slices.Equal(user.Capabilities, seededUser.Capabilities) {
		t.Fatalf("expected capabilities %v, got %v", seededUser.Capabilities, user.Capabilities)
	}

	accessClaims, err := authSvc.ParseToken(tokenPair.AccessToken, "access")
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if accessClaims.UserID != seededUser.ID {
		t.Fatalf("expected access token user id %d, got %d", seededUser.ID, accessClaims.UserID)
	}

	refreshClaims, err := authSvc.ParseToken(tokenPair.RefreshToken, "refresh")
	if err != nil {
		t.Fatalf("parse refresh token: %v", err)
	}
	if refreshClaims.Username != seededUser.Username {
		t.Fatalf("expected refresh token username %q, got %q", seededUser.Username, refreshClaims.Username)
	}
}

func TestLogin_ReturnsInvalidCredentials_OnWrongPassword(t *testing.T) {
	authSvc, accountSvc, db := setupAuthTestService(t)
	defer db.Close()
	seedAuthUsers(t, accountSvc)

	_, _, err := authSvc.Login(context.Background(), testUserUsername, "wrong-password")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	_, _, err = authSvc.Login(context.Background(), "nobody", testUserPassword)
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	authSvc, accountSvc, db := setupAuthTestService(t)
	defer db.Close()
	seedAuthUsers(t, accountSvc)

	tokenPair, _, err := authSvc.Login(context.Background(), testUserUsername, testUserPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	_, _, err = authSvc.Refresh(context.Background(), tokenPair.AccessToken)
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefresh_IssuesNewPair_WithRefreshToken(t *testing.T) {
	authSvc, accountSvc, db := setupAuthTestService(t)
	defer db.Close()
	seedAuthUsers(t, accountSvc)

	tokenPair, loggedInUser, err := authSvc.Login(context.Background(), testUserUsername, testUserPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	newPair, refreshedUser, err := authSvc.Refresh(context.Background(), tokenPair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if newPair == nil || newPair.AccessToken == "" || newPair.RefreshToken == "" {
		t.Fatalf("expected non-empty token pair, got %#v", newPair)
	}
	if refreshedUser == nil || refreshedUser.ID != loggedInUser.ID {
		t.Fatalf("expected refreshed user id %d, got %#v", loggedInUser.ID, refreshedUser)
	}
}

func TestRefresh_Rejects_WhenUserDeleted(t *testing.T) {
	authSvc, accountSvc, db := setupAuthTestService(t)
	defer db.Close()
	_, seededUser := seedAuthUsers(t, accountSvc)

	tokenPair, _, err := authSvc.Login(context.Background(), testUserUsername, testUserPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := accountSvc.DeleteUser(context.Background(), seededUser.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	_, _, err = authSvc.Refresh(context.Background(), tokenPair.RefreshToken)
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseToken_RejectsForeignSecret(t *testing.T) {
	authSvc, accountSvc, db := setupAuthTestService(t)
	defer db.Close()
	admin, _ := seedAuthUsers(t, accountSvc)

	other := auth.NewService(accountSvc, auth.Config{Secret: "another-secret-key", AccessTokenTTL: time.Minute, RefreshTTL: time.Hour})
	pair, err := other.IssueTokenPair(admin)
	if err != nil {
		t.Fatalf("issue token pair: %v", err)
	}
	if _, err := authSvc.ParseToken(pair.AccessToken, "access"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestCapabilities_ReflectRevocationImmediately(t *testing.T) {
	authSvc, accountSvc, db := setupAuthTestService(t)
	defer db.Close()
	_, user := seedAuthUsers(t, accountSvc)
	ctx := context.Background()

	if err := accountSvc.ReplaceCapabilities(ctx, user.ID, []string{account.CapabilityFilesPrivate}); err != nil {
		t.Fatalf("replace capabilities: %v", err)
	}
	capabilities, err := authSvc.Capabilities(ctx, user.ID)
	if err != nil {
		t.Fatalf("capabilities: %v", err)
	}
	if !slices.Equal(capabilities, []string{account.CapabilityFilesPrivate}) {
		t.Fatalf("expected only files.private, got %v", capabilities)
	}
}
