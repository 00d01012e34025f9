package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	config "github.com/storypilot/scheduler/configs"
	"github.com/storypilot/scheduler/internal/models"
	"github.com/storypilot/scheduler/internal/publish"
	"github.com/storypilot/scheduler/internal/repository"
	"github.com/storypilot/scheduler/internal/transfer"
	"github.com/storypilot/scheduler/pkg/utils"
	"golang.org/x/oauth2"
)

const (
	snapAuthURL     = "https://accounts.snapchat.com/login/oauth2/authorize"
	snapTokenURL    = "https://accounts.snapchat.com/login/oauth2/access_token"
	snapUserInfoURL = "https://kit.snapchat.com/v1/me"
)

const credentialCacheSize = 256

type AccountService interface {
	AuthURL(state string) string
	HandleCallback(ctx context.Context, code string, userID int64) error
	Credentials(ctx context.Context, accountID int64) (publish.Credentials, error)
	Freeze(ctx context.Context, accountID int64) error
	RefreshAccount(ctx context.Context, acc *models.SnapAccount) error
	List(ctx context.Context, userID int64) ([]*models.SnapAccount, error)
	Remove(ctx context.Context, userID, accountID int64) error
}

type cachedCredentials struct {
	creds     publish.Credentials
	expiresAt time.Time
}

type accountService struct {
	cfg         config.Config
	sa          repository.SnapAccountRepository
	cache       *lru.Cache[int64, cachedCredentials]
	tokenURL    string
	userInfoURL string
}

func NewAccountService(cfg config.Config, sa repository.SnapAccountRepository) AccountService {
	cache, _ := lru.New[int64, cachedCredentials](credentialCacheSize)
	return &accountService{
		cfg:         cfg,
		sa:          sa,
		cache:       cache,
		tokenURL:    snapTokenURL,
		userInfoURL: snapUserInfoURL,
	}
}

// AuthURL builds the Snapchat authorize URL the user is redirected to when
// connecting an account. The state carries a signed token identifying the
// session that started the flow.
func (s *accountService) AuthURL(state string) string {
	params := url.Values{}
	params.Add("client_id", s.cfg.SnapClientID)
	params.Add("redirect_uri", s.cfg.SnapRedirectURI)
	params.Add("response_type", "code")
	params.Add("scope", "https://auth.snapchat.com/oauth2/api/user.display_name snapchat-profile-api")
	params.Add("state", state)
	return fmt.Sprintf("%s?%s", snapAuthURL, params.Encode())
}

// HandleCallback finishes the connect flow: it exchanges the authorization
// code, looks up the profile it grants access to, and stores the account with
// both tokens encrypted.
func (s *accountService) HandleCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return err
	}

	tokenResponse, err := s.exchangeCodeForToken(code)
	if err != nil {
		return err
	}

	userInfo, err := s.fetchUserInfo(tokenResponse.AccessToken)
	if err != nil {
		return err
	}
	if userInfo.Data.User.ExternalID == "" {
		err = errors.New("user info response carried no external id")
		slog.Info(err.Error())
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SnapAccount{
		UserID:         userID,
		ExternalID:     userInfo.Data.User.ExternalID,
		DisplayName:    userInfo.Data.User.DisplayName,
		Username:       userInfo.Data.User.Username,
		ProfilePicture: userInfo.Data.User.ProfilePicture,
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: time.Now().Add(time.Duration(tokenResponse.ExpiresIn) * time.Second),
		AccountStatus:  models.AccountStatusActive,
	}

	_, err = s.sa.Create(ctx, nil, accountInfo)
	if err != nil {
		return err
	}

	return nil
}

func (s *accountService) exchangeCodeForToken(code string) (*transfer.SnapTokenResponse, error) {
	data := url.Values{}
	data.Add("client_id", s.cfg.SnapClientID)
	data.Add("client_secret", s.cfg.SnapClientSecret)
	data.Add("code", code)
	data.Add("grant_type", "authorization_code")
	data.Add("redirect_uri", s.cfg.SnapRedirectURI)

	resp, err := http.Post(
		s.tokenURL,
		"application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info("Snapchat token endpoint returned non-200 status")
		return nil, errors.New("Snapchat token endpoint returned non-200 status")
	}

	var tokenResponse transfer.SnapTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &tokenResponse, nil
}

func (s *accountService) fetchUserInfo(accessToken string) (*transfer.SnapUserInfo, error) {
	req, err := http.NewRequest(http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info("Snapchat user info endpoint returned non-200 status")
		return nil, errors.New("Snapchat user info endpoint returned non-200 status")
	}

	var userInfo transfer.SnapUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode user info response: %w", err)
	}

	return &userInfo, nil
}

// Credentials resolves a decrypted, unexpired access token for an account.
// Decrypted tokens are held in a small LRU so the publish pipeline does not
// hit the database and AES for every attempt.
func (s *accountService) Credentials(ctx context.Context, accountID int64) (publish.Credentials, error) {
	if cached, ok := s.cache.Get(accountID); ok && time.Now().Before(cached.expiresAt) {
		return cached.creds, nil
	}

	acc, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return publish.Credentials{}, err
	}
	if acc == nil {
		return publish.Credentials{}, &publish.AuthError{Reason: fmt.Sprintf("account %d is not linked", accountID)}
	}
	if acc.AccountStatus != models.AccountStatusActive {
		return publish.Credentials{}, &publish.AuthError{Reason: fmt.Sprintf("account %d needs re-connection", accountID)}
	}

	if !acc.TokenExpiresAt.After(time.Now().Add(time.Minute)) {
		if err := s.RefreshAccount(ctx, acc); err != nil {
			return publish.Credentials{}, err
		}
	}

	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return publish.Credentials{}, err
	}

	creds := publish.Credentials{ProfileID: acc.ExternalID, AccessToken: accessToken}
	s.cache.Add(accountID, cachedCredentials{creds: creds, expiresAt: acc.TokenExpiresAt})
	return creds, nil
}

// RefreshAccount exchanges the stored refresh token for fresh credentials.
// A rejected refresh freezes the account until the user re-connects.
func (s *accountService) RefreshAccount(ctx context.Context, acc *models.SnapAccount) error {
	refreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	conf := &oauth2.Config{
		ClientID:     s.cfg.SnapClientID,
		ClientSecret: s.cfg.SnapClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: s.tokenURL},
	}

	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		slog.Info(fmt.Sprintf("token refresh rejected for account %d: %v", acc.ID, err))
		if ferr := s.Freeze(ctx, acc.ID); ferr != nil {
			slog.Info(ferr.Error())
		}
		return &publish.AuthError{Reason: "refresh token was rejected by the provider"}
	}

	encryptedAccess, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	newRefresh := token.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}
	encryptedRefresh, err := utils.Encrypt([]byte(newRefresh), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	acc.AccessToken = encryptedAccess
	acc.RefreshToken = encryptedRefresh
	acc.TokenExpiresAt = token.Expiry

	if err := s.sa.SetTokens(ctx, acc.ID, acc); err != nil {
		return err
	}

	s.cache.Remove(acc.ID)
	return nil
}

func (s *accountService) Freeze(ctx context.Context, accountID int64) error {
	s.cache.Remove(accountID)
	return s.sa.SetStatus(ctx, accountID, models.AccountStatusFrozen)
}

func (s *accountService) List(ctx context.Context, userID int64) ([]*models.SnapAccount, error) {
	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing accounts: %w", err)
	}
	return accounts, nil
}

func (s *accountService) Remove(ctx context.Context, userID, accountID int64) error {
	exists, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("account %d does not exist", accountID)
	}

	s.cache.Remove(accountID)
	return s.sa.Remove(ctx, accountID)
}
