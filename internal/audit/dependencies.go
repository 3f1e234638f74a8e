package audit

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/ygg/internal/cache"
	"github.com/temirov/ygg/internal/discovery"
	"github.com/temirov/ygg/internal/githubapi"
	"github.com/temirov/ygg/internal/githubauth"
	"github.com/temirov/ygg/internal/pipeline"
	"github.com/temirov/ygg/internal/repository"
	"github.com/temirov/ygg/internal/ui"
)

// APIClient exposes the GitHub operations used by an audit run.
type APIClient interface {
	FetchFile(executionContext context.Context, key repository.FetchKey, etag string) (githubapi.FileResult, error)
	SearchCode(executionContext context.Context, query string, pageURL string) (githubapi.SearchPage, error)
}

// ClientFactory builds an API client for a resolved token.
type ClientFactory func(configuration githubapi.Configuration, token string) (APIClient, error)

// TokenResolver resolves the access token for a token source.
type TokenResolver interface {
	ResolveToken(source githubauth.TokenSource) (string, error)
}

// StoreOpener opens the fetch cache.
type StoreOpener func(options cache.Options) (pipeline.EntryStore, error)

// RepositoryListWriter persists a discovered repository set.
type RepositoryListWriter func(path string, references []repository.Reference) error

// Dependencies carries the collaborators of a Service. Nil members select production defaults.
type Dependencies struct {
	TokenResolver        TokenResolver
	ClientFactory        ClientFactory
	StoreOpener          StoreOpener
	RepositoryListWriter RepositoryListWriter
	HTTPClient           githubapi.HTTPClient
	Observer             pipeline.TaskEventObserver
	Logger               *zap.Logger
	Now                  func() time.Time
}

func (dependencies Dependencies) withDefaults() Dependencies {
	resolved := dependencies
	if resolved.Logger == nil {
		resolved.Logger = zap.NewNop()
	}
	if resolved.TokenResolver == nil {
		resolved.TokenResolver = githubauth.NewResolver(os.LookupEnv, os.ReadFile, []string{githubauth.DefaultDotenvFile})
	}
	if resolved.ClientFactory == nil {
		httpClient := resolved.HTTPClient
		logger := resolved.Logger
		resolved.ClientFactory = func(configuration githubapi.Configuration, token string) (APIClient, error) {
			return githubapi.NewClient(configuration, token, githubapi.Dependencies{HTTPClient: httpClient, Logger: logger})
		}
	}
	if resolved.StoreOpener == nil {
		resolved.StoreOpener = func(options cache.Options) (pipeline.EntryStore, error) {
			return cache.Open(options)
		}
	}
	if resolved.RepositoryListWriter == nil {
		resolved.RepositoryListWriter = discovery.WriteRepositoryList
	}
	if resolved.Observer == nil {
		resolved.Observer = ui.NewConsoleTaskEventLogger(resolved.Logger)
	}
	if resolved.Now == nil {
		resolved.Now = time.Now
	}
	return resolved
}
