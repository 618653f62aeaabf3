package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"

	"github.com/devasignhq/devasign-api-sub002/internal/config"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// ClientFactory hands out clients authenticated for a GitHub App installation.
type ClientFactory interface {
	ForInstallation(ctx context.Context, installationID int64) (Client, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(ctx context.Context, installationID int64) (Client, error)

func (f ClientFactoryFunc) ForInstallation(ctx context.Context, installationID int64) (Client, error) {
	return f(ctx, installationID)
}

// AppClientFactory authenticates as a GitHub App installation. Transports are cached
// per installation; ghinstallation refreshes their tokens before they expire.
type AppClientFactory struct {
	appID      int64
	keyPath    string
	timeout    time.Duration
	logger     *slog.Logger
	mu         sync.Mutex
	key        []byte
	transports map[int64]*ghinstallation.Transport
}

// NewAppClientFactory builds a factory from the GitHub App configuration. Missing
// credentials are reported when a client is requested, not here.
func NewAppClientFactory(cfg *config.Config, logger *slog.Logger) *AppClientFactory {
	return &AppClientFactory{
		appID:      cfg.GitHub.AppID,
		keyPath:    cfg.GitHub.PrivateKeyPath,
		timeout:    cfg.GitHub.Timeout,
		logger:     logger,
		transports: make(map[int64]*ghinstallation.Transport),
	}
}

func (f *AppClientFactory) privateKey() ([]byte, error) {
	if f.key != nil {
		return f.key, nil
	}
	if f.appID == 0 || f.keyPath == "" {
		return nil, core.NewError(core.KindConfiguration, "GitHub App credentials are not configured", nil).
			WithDetail("missing", []string{"GITHUB_APP_ID", "GITHUB_PRIVATE_KEY_PATH"})
	}
	key, err := os.ReadFile(f.keyPath)
	if err != nil {
		return nil, core.NewError(core.KindConfiguration, fmt.Sprintf("failed to read private key from %s", f.keyPath), err)
	}
	f.key = key
	return key, nil
}

// ForInstallation returns a client acting as the given installation.
func (f *AppClientFactory) ForInstallation(_ context.Context, installationID int64) (Client, error) {
	if installationID <= 0 {
		return nil, core.Errorf(core.KindValidation, "invalid installation ID %d", installationID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tr, ok := f.transports[installationID]
	if !ok {
		key, err := f.privateKey()
		if err != nil {
			return nil, err
		}
		tr, err = ghinstallation.New(http.DefaultTransport, f.appID, installationID, key)
		if err != nil {
			return nil, core.NewError(core.KindConfiguration, "failed to create GitHub installation transport", err)
		}
		f.transports[installationID] = tr
		f.logger.Info("created GitHub installation transport", "installation_id", installationID)
	}

	return NewGitHubClient(github.NewClient(&http.Client{Transport: tr}), f.timeout, f.logger), nil
}

// Forget drops the cached transport of an installation, e.g. after it was deleted.
func (f *AppClientFactory) Forget(installationID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.transports, installationID)
}

// Ping authenticates as the App itself and fetches its metadata. It is the GitHub
// health probe.
func (f *AppClientFactory) Ping(ctx context.Context) error {
	f.mu.Lock()
	key, err := f.privateKey()
	f.mu.Unlock()
	if err != nil {
		return err
	}

	appTransport, err := ghinstallation.NewAppsTransport(http.DefaultTransport, f.appID, key)
	if err != nil {
		return core.NewError(core.KindConfiguration, "failed to create GitHub App transport", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	client := github.NewClient(&http.Client{Transport: appTransport})
	if _, _, err := client.Apps.Get(ctx, ""); err != nil {
		return Classify("get app", err)
	}
	return nil
}

// NewPATClient creates a client authenticated with a Personal Access Token (PAT).
// This is useful for CLI tools or local development where an App installation is
// not available.
func NewPATClient(ctx context.Context, token string, timeout time.Duration, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return NewGitHubClient(github.NewClient(oauth2.NewClient(ctx, ts)), timeout, logger)
}

// NewPATClientFactory returns a factory that ignores the installation and always
// uses the token.
func NewPATClientFactory(ctx context.Context, token string, timeout time.Duration, logger *slog.Logger) ClientFactory {
	client := NewPATClient(ctx, token, timeout, logger)
	return ClientFactoryFunc(func(context.Context, int64) (Client, error) {
		return client, nil
	})
}
