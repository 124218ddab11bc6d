package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/forgeops/autopr/internal/apperr"
)

// Credentials selects the authentication mode: a personal access token,
// or GitHub App credentials exchanged for installation tokens.
type Credentials struct {
	Token         string
	AppID         string
	AppPrivateKey string
}

// AppAuth holds GitHub App authentication configuration.
type AppAuth struct {
	AppID      string
	PrivateKey string
}

// GenerateJWT creates the short-lived JWT a GitHub App authenticates
// with before exchanging it for an installation token.
func (a *AppAuth) GenerateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	appID, err := strconv.ParseInt(a.AppID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app ID: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    strconv.FormatInt(appID, 10),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signedToken, nil
}

// installationTokenSource mints installation tokens for one repository.
// Each Token call generates a fresh App JWT; wrap the source in
// oauth2.ReuseTokenSource so tokens are cached until expiry.
type installationTokenSource struct {
	auth  *AppAuth
	owner string
	repo  string
}

func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	jwtToken, err := s.auth.GenerateJWT()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	appsClient := github.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: jwtToken},
	)))

	installation, _, err := appsClient.Apps.FindRepositoryInstallation(ctx, s.owner, s.repo)
	if err != nil {
		return nil, fmt.Errorf("failed to find installation for %s/%s: %w", s.owner, s.repo, err)
	}

	token, _, err := appsClient.Apps.CreateInstallationToken(ctx, installation.GetID(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation token: %w", err)
	}

	return &oauth2.Token{
		AccessToken: token.GetToken(),
		Expiry:      token.GetExpiresAt().Time,
	}, nil
}

// NewGitHubClient builds an authenticated client for one repository.
// A static token wins over App credentials when both are configured.
func NewGitHubClient(creds Credentials, repo Repo) (*github.Client, error) {
	var source oauth2.TokenSource
	switch {
	case creds.Token != "":
		source = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token})
	case creds.AppID != "" && creds.AppPrivateKey != "":
		source = oauth2.ReuseTokenSource(nil, &installationTokenSource{
			auth:  &AppAuth{AppID: creds.AppID, PrivateKey: creds.AppPrivateKey},
			owner: repo.Owner,
			repo:  repo.Name,
		})
	default:
		return nil, apperr.New(apperr.CodeAuthentication,
			"no GitHub credential configured: set a token or App ID and private key")
	}

	httpClient := oauth2.NewClient(context.Background(), source)
	httpClient.Timeout = 30 * time.Second
	return github.NewClient(httpClient), nil
}
