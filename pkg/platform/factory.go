package platform

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/sgaunet/bullets"
	"github.com/sgaunet/scm-adapter/internal/hostrules"
	"github.com/sgaunet/scm-adapter/internal/logger"
	"github.com/sgaunet/scm-adapter/pkg/config"
	"github.com/sgaunet/scm-adapter/pkg/git"
)

// Options configures the adapters built by [New].
type Options struct {
	// Credentials resolves tokens. Nil means an empty store.
	Credentials CredentialResolver
	Logger      *bullets.Logger
	// OpenStorage opens the git storage of new sessions. Nil uses [OpenGitStorage].
	OpenStorage StorageOpener

	// SSHKey switches git transport to SSH with this private key.
	SSHKey                string
	SSHPassphrase         string
	InsecureIgnoreHostKey bool

	// RetryMax overrides the REST retry count where the client retries.
	// Negative disables retries.
	RetryMax int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.NoLogger()
	}
	if o.Credentials == nil {
		o.Credentials = hostrules.New()
	}
	if o.OpenStorage == nil {
		o.OpenStorage = OpenGitStorage
	}
	return o
}

// gitAuth picks SSH when a key is configured, otherwise token basic auth.
//
//nolint:ireturn // go-git takes auth methods as an interface.
func (o Options) gitAuth(creds hostrules.Credentials, tokenUser string) (transport.AuthMethod, error) {
	if o.SSHKey != "" {
		auth, err := git.SSHAuth(o.Logger, o.SSHKey, o.SSHPassphrase, o.InsecureIgnoreHostKey)
		if err != nil {
			return nil, fmt.Errorf("failed to set up SSH auth: %w", err)
		}
		return auth, nil
	}
	user := creds.Username
	if user == "" {
		user = tokenUser
	}
	return git.TokenAuth(user, creds.Token), nil
}

// resolveCredentials finds a token for platform and fails fast without one.
func resolveCredentials(r CredentialResolver, platform string, hint hostrules.Hint) (hostrules.Credentials, error) {
	creds, ok := r.Find(platform, hint)
	if !ok || creds.Token.IsEmpty() {
		if hint.Endpoint != "" {
			return hostrules.Credentials{}, fmt.Errorf("%w: %s at %s", ErrNoCredentials, platform, hint.Endpoint)
		}
		return hostrules.Credentials{}, fmt.Errorf("%w: %s", ErrNoCredentials, platform)
	}
	if creds.Endpoint == "" {
		creds.Endpoint = hint.Endpoint
	}
	return creds, nil
}

// New creates the adapter for the named platform.
//
//nolint:ireturn // Factory function must return interface to enable platform abstraction.
func New(name string, opts Options) (Platform, error) {
	switch name {
	case config.PlatformBitbucket:
		return NewBitbucketAdapter(opts), nil
	case config.PlatformGitHub:
		return NewGitHubAdapter(opts), nil
	case config.PlatformGitLab:
		return NewGitLabAdapter(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, name)
	}
}
