package github

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	gogithub "github.com/google/go-github/v75/github"

	"github.com/openscribe/scribe/apps/server/internal/gitrepo"
)

// Provider resolves a repository to an authenticated gitrepo.Client. With an
// AppFactory it looks up the repository's installation via the Apps API and
// caches the ID; with a TokenFactory every repository shares one client.
type Provider struct {
	factory ClientFactory
	apps    *gogithub.Client // JWT-authenticated, nil for token auth

	mu    sync.Mutex
	cache map[string]int64 // "owner/repo" -> installation ID
}

// NewProvider wraps a ClientFactory. App-authenticated factories get
// installation discovery; token factories skip it.
func NewProvider(factory ClientFactory) *Provider {
	p := &Provider{factory: factory, cache: make(map[string]int64)}
	if af, ok := factory.(*AppFactory); ok {
		p.apps = af.AppClient()
	}
	return p
}

// ClientFor returns a client authorized for the given repository.
func (p *Provider) ClientFor(ctx context.Context, owner, repo string) (gitrepo.Client, error) {
	id, err := p.installationID(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	gh, err := p.factory.InstallationClient(id)
	if err != nil {
		return nil, fmt.Errorf("installation client for %s/%s: %w", owner, repo, err)
	}
	return New(gh), nil
}

func (p *Provider) installationID(ctx context.Context, owner, repo string) (int64, error) {
	if p.apps == nil {
		return 0, nil
	}

	key := owner + "/" + repo
	p.mu.Lock()
	id, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return id, nil
	}

	inst, resp, err := p.apps.Apps.FindRepositoryInstallation(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return 0, fmt.Errorf("no app installation for %s: %w", key, err)
		}
		return 0, fmt.Errorf("find installation for %s: %w", key, err)
	}

	p.mu.Lock()
	p.cache[key] = inst.GetID()
	p.mu.Unlock()
	return inst.GetID(), nil
}
