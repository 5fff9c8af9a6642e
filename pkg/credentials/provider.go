/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"chainguard.dev/sdk/octosts"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/chainguard-dev/checks-bridge/pkg/ghclient"
	"github.com/chainguard-dev/clog"
	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNoInstallation is returned when the App behind a credential is not
// installed on the repository.
var ErrNoInstallation = errors.New("app is not installed on repository")

// Token is a short-lived GitHub token.
type Token struct {
	Value  string
	Expiry time.Time
}

// TokenProvider mints repository scoped tokens from credentials.
type TokenProvider interface {
	Token(ctx context.Context, cred Credential, owner, repo string) (Token, error)
}

var _ TokenProvider = (*Provider)(nil)

// Provider exchanges credentials for tokens scoped to one repository.
// Transports and token sources are cached so that tokens are reused until
// they near expiry.
type Provider struct {
	base       http.RoundTripper
	newSigner  func(context.Context, string) (ghinstallation.Signer, error)
	octoToken  func(ctx context.Context, identity, org, repo string) (string, error)
	exchangeTO time.Duration

	mu       sync.RWMutex
	apps     map[string]*ghinstallation.AppsTransport
	installs map[string]*ghinstallation.Transport
	sources  map[string]oauth2.TokenSource
}

// NewProvider returns a Provider sending its requests through base. A nil
// base means http.DefaultTransport.
func NewProvider(base http.RoundTripper) *Provider {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Provider{
		base:       base,
		newSigner:  NewSigner,
		octoToken:  octosts.Token,
		exchangeTO: time.Minute,
		apps:       make(map[string]*ghinstallation.AppsTransport),
		installs:   make(map[string]*ghinstallation.Transport),
		sources:    make(map[string]oauth2.TokenSource),
	}
}

// Token returns a token for owner/repo minted from cred.
func (p *Provider) Token(ctx context.Context, cred Credential, owner, repo string) (Token, error) {
	ctx, cancel := context.WithTimeout(ctx, p.exchangeTO)
	defer cancel()

	switch c := cred.(type) {
	case AppCredential:
		return p.appToken(ctx, c, owner, repo)
	case FederatedCredential:
		return p.federatedToken(ctx, c, owner, repo)
	default:
		return Token{}, fmt.Errorf("unsupported credential type %T", cred)
	}
}

func (p *Provider) appToken(ctx context.Context, cred AppCredential, owner, repo string) (Token, error) {
	itr, err := p.installation(ctx, cred, owner, repo)
	if err != nil {
		return Token{}, err
	}
	tok, err := itr.Token(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("minting installation token: %w", err)
	}
	exp, _, err := itr.Expiry()
	if err != nil {
		return Token{}, fmt.Errorf("reading token expiry: %w", err)
	}
	return Token{Value: tok, Expiry: exp}, nil
}

// installation returns the cached installation transport of cred on
// owner/repo, discovering the installation on first use.
func (p *Provider) installation(ctx context.Context, cred AppCredential, owner, repo string) (*ghinstallation.Transport, error) {
	key := fmt.Sprintf("%s:%s/%s", cred.ID, owner, repo)

	p.mu.RLock()
	itr, ok := p.installs[key]
	p.mu.RUnlock()
	if ok {
		return itr, nil
	}

	atr, err := p.appsTransport(ctx, cred)
	if err != nil {
		return nil, err
	}
	client, err := ghclient.New(cred.APIURL, &http.Client{Transport: atr})
	if err != nil {
		return nil, err
	}
	inst, resp, err := client.Apps.FindRepositoryInstallation(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s/%s: %w", owner, repo, ErrNoInstallation)
		}
		return nil, fmt.Errorf("finding installation for %s/%s: %w", owner, repo, err)
	}
	clog.FromContext(ctx).With("credential", cred.ID, "installation", inst.GetID()).
		Debugf("found installation for %s/%s", owner, repo)

	p.mu.Lock()
	defer p.mu.Unlock()
	if itr, ok := p.installs[key]; ok {
		return itr, nil
	}
	itr = ghinstallation.NewFromAppsTransport(atr, inst.GetID())
	p.installs[key] = itr
	return itr, nil
}

func (p *Provider) appsTransport(ctx context.Context, cred AppCredential) (*ghinstallation.AppsTransport, error) {
	p.mu.RLock()
	atr, ok := p.apps[cred.ID]
	p.mu.RUnlock()
	if ok {
		return atr, nil
	}

	// The signer outlives this request and may call KMS; build it unlocked.
	signer, err := p.newSigner(context.WithoutCancel(ctx), cred.KeyRef)
	if err != nil {
		return nil, fmt.Errorf("creating signer for %s: %w", cred.ID, err)
	}
	atr, err = ghinstallation.NewAppsTransportWithOptions(p.base, cred.AppID, ghinstallation.WithSigner(signer))
	if err != nil {
		return nil, fmt.Errorf("creating apps transport for %s: %w", cred.ID, err)
	}
	atr.BaseURL = ghclient.Normalize(cred.APIURL)

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.apps[cred.ID]; ok {
		return existing, nil
	}
	p.apps[cred.ID] = atr
	return atr, nil
}

func (p *Provider) federatedToken(ctx context.Context, cred FederatedCredential, owner, repo string) (Token, error) {
	key := fmt.Sprintf("%s:%s/%s", cred.Identity, owner, repo)

	p.mu.RLock()
	ts, ok := p.sources[key]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		if ts, ok = p.sources[key]; !ok {
			ts = oauth2.ReuseTokenSource(nil, &octoSource{
				// Cached sources must not inherit the cancellation of this request.
				ctx:      context.WithoutCancel(ctx),
				exchange: p.octoToken,
				timeout:  p.exchangeTO,
				identity: cred.Identity,
				org:      owner,
				repo:     repo,
			})
			p.sources[key] = ts
		}
		p.mu.Unlock()
	}

	tok, err := ts.Token()
	if err != nil {
		return Token{}, err
	}
	return Token{Value: tok.AccessToken, Expiry: tok.Expiry}, nil
}

// octoSource implements oauth2.TokenSource over Octo STS.
type octoSource struct {
	ctx      context.Context
	exchange func(ctx context.Context, identity, org, repo string) (string, error)
	timeout  time.Duration
	identity string
	org      string
	repo     string
}

func (s *octoSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	tok, err := s.exchange(ctx, s.identity, s.org, s.repo)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// Octo STS answers NotFound when the trust policy is missing or the
			// org's installation is gone.
			clog.ErrorContextf(ctx, "Got NotFound error from Octo STS for %s/%s: %v", s.org, s.repo, err)
			return nil, fmt.Errorf("%s/%s: %w", s.org, s.repo, ErrNoInstallation)
		}
		return nil, fmt.Errorf("exchanging token with octo-sts: %w", err)
	}
	return &oauth2.Token{
		AccessToken: tok,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(55 * time.Minute), // Tokens from Octo STS are valid for 60 minutes
	}, nil
}
