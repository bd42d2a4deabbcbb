package git

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/sgaunet/bullets"
	"github.com/sgaunet/scm-adapter/internal/security"
	"golang.org/x/crypto/ssh"
)

// TokenAuth authenticates HTTPS git traffic with a personal access token.
// Bitbucket Server and GitLab accept any username with the token as
// password; GitHub expects x-access-token.
func TokenAuth(username string, token security.SecureToken) transport.AuthMethod {
	if token.IsEmpty() {
		return nil
	}
	if username == "" {
		username = "x-token-auth"
	}
	return &githttp.BasicAuth{Username: username, Password: token.Value()}
}

// SSHAuth loads an SSH private key for git over ssh. With insecure set the
// server host key is not verified; otherwise known_hosts is used.
func SSHAuth(log *bullets.Logger, keyFile, passphrase string, insecure bool) (transport.AuthMethod, error) {
	auth, err := gitssh.NewPublicKeysFromFile("git", keyFile, passphrase)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			err = pathErr.Err
		}
		return nil, fmt.Errorf("failed to load SSH key %s: %w", security.MaskSSHKeyPath(keyFile), err)
	}
	security.DebugSSHKey(log, keyFile)

	if insecure {
		auth.HostKeyCallback = ssh.InsecureIgnoreHostKey() // #nosec G106 - opt-in through configuration
		return auth, nil
	}
	cb, err := gitssh.NewKnownHostsCallback()
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	auth.HostKeyCallback = cb
	return auth, nil
}
