// Package git is the local working-copy storage of a hosted repository.
//
// A Storage owns one clone on disk. Branch queries read the remote-tracking
// refs refreshed on Open, and every mutation is pushed before the local refs
// move, so a failed call leaves no partial branch state behind.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/sgaunet/bullets"
	"github.com/sgaunet/scm-adapter/internal/logger"
	"github.com/sgaunet/scm-adapter/internal/security"
)

const (
	remoteName       = "origin"
	fetchRefSpec     = "+refs/heads/*:refs/remotes/origin/*"
	maxCommitHistory = 20
)

var (
	errNoURL           = errors.New("repository url is required")
	errNoLocalDir      = errors.New("local directory is required")
	errBranchNotFound  = errors.New("branch not found")
	errNotFastForward  = errors.New("branch cannot be fast-forwarded")
	errNoBaseBranch    = errors.New("could not determine base branch")
	errEmptyCommit     = errors.New("commit has no file changes")
	errInvalidPath     = errors.New("invalid file path")
	errStorageClosed   = errors.New("storage is closed")
	errEmptyBranchName = errors.New("branch name is required")
	errBaseBranch      = errors.New("refusing to delete the base branch")
)

// Exported errors for callers that need to branch on storage failures.
var (
	ErrBranchNotFound = errBranchNotFound
	ErrNotFastForward = errNotFastForward
	ErrEmptyCommit    = errEmptyCommit
	ErrInvalidPath    = errInvalidPath
	ErrStorageClosed  = errStorageClosed
)

// TimeoutError reports a network operation cut short by its context.
type TimeoutError struct {
	Operation string
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("git %s interrupted: %v", e.Operation, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Author is the identity recorded on commits.
type Author struct {
	Name  string
	Email string
}

// Options configures [Open].
type Options struct {
	// URL is the clone URL of the hosted repository.
	URL string
	// LocalDir is where the working copy lives. It is created when missing.
	LocalDir string
	// Auth is passed to every clone, fetch and push. Nil means anonymous.
	Auth   transport.AuthMethod
	Author Author
	Logger *bullets.Logger
}

// Storage is the working copy of one repository. Methods are safe for
// concurrent use; mutations are serialized.
type Storage struct {
	mu         sync.Mutex
	repo       *gogit.Repository
	dir        string
	url        string
	auth       transport.AuthMethod
	author     Author
	log        *bullets.Logger
	baseBranch string
	closed     bool
}

// Open clones opts.URL into opts.LocalDir, or reuses the clone already there
// and fetches every branch with pruning.
func Open(ctx context.Context, opts Options) (*Storage, error) {
	if opts.URL == "" {
		return nil, errNoURL
	}
	if opts.LocalDir == "" {
		return nil, errNoLocalDir
	}
	log := opts.Logger
	if log == nil {
		log = logger.NoLogger()
	}

	s := &Storage{
		dir:    opts.LocalDir,
		url:    opts.URL,
		auth:   opts.Auth,
		author: opts.Author,
		log:    log,
	}

	repo, err := gogit.PlainOpen(opts.LocalDir)
	switch {
	case errors.Is(err, gogit.ErrRepositoryNotExists):
		if err := os.MkdirAll(opts.LocalDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create local directory: %w", err)
		}
		log.Debug("Cloning " + security.SanitizeURL(opts.URL) + " into " + opts.LocalDir)
		repo, err = gogit.PlainCloneContext(ctx, opts.LocalDir, false, &gogit.CloneOptions{
			URL:        opts.URL,
			Auth:       opts.Auth,
			RemoteName: remoteName,
		})
		if err != nil {
			return nil, wrapNetErr(ctx, "clone", err)
		}
		s.repo = repo
	case err != nil:
		return nil, fmt.Errorf("failed to open local repository: %w", err)
	default:
		s.repo = repo
		if err := s.ensureRemote(); err != nil {
			return nil, err
		}
		if err := s.fetch(ctx); err != nil {
			return nil, err
		}
		if err := s.pruneLocalBranches(); err != nil {
			return nil, err
		}
	}

	base, err := s.headBranch()
	if err != nil {
		return nil, err
	}
	s.baseBranch = base
	return s, nil
}

// ensureRemote points origin at s.url, replacing a stale remote.
func (s *Storage) ensureRemote() error {
	remote, err := s.repo.Remote(remoteName)
	if err == nil {
		urls := remote.Config().URLs
		if len(urls) > 0 && urls[0] == s.url {
			return nil
		}
		if err := s.repo.DeleteRemote(remoteName); err != nil {
			return fmt.Errorf("failed to replace remote: %w", err)
		}
	}
	_, err = s.repo.CreateRemote(&config.RemoteConfig{
		Name:  remoteName,
		URLs:  []string{s.url},
		Fetch: []config.RefSpec{fetchRefSpec},
	})
	if err != nil {
		return fmt.Errorf("failed to create remote: %w", err)
	}
	return nil
}

func (s *Storage) fetch(ctx context.Context) error {
	s.log.Debug("Fetching " + security.SanitizeURL(s.url))
	err := s.repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{fetchRefSpec},
		Auth:       s.auth,
		Prune:      true,
		Force:      true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return wrapNetErr(ctx, "fetch", err)
	}
	return nil
}

// Fetch refreshes the remote-tracking refs.
func (s *Storage) Fetch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStorageClosed
	}
	return s.fetch(ctx)
}

// push sends refspecs to origin. An up-to-date remote is not an error.
func (s *Storage) push(ctx context.Context, op string, specs ...config.RefSpec) error {
	err := s.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   specs,
		Auth:       s.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return wrapNetErr(ctx, op, err)
	}
	return nil
}

// Dir returns the working copy location.
func (s *Storage) Dir() string {
	return s.dir
}

// BaseBranch returns the branch new commits are parented on by default.
func (s *Storage) BaseBranch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseBranch
}

// Close releases the storage. The working copy stays on disk so the next
// Open can reuse it.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.repo = nil
	return nil
}

func wrapNetErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &TimeoutError{Operation: op, Err: ctxErr}
	}
	return fmt.Errorf("failed to %s: %w", op, security.SanitizeError(err))
}

func (s *Storage) headBranch() (string, error) {
	head, err := s.repo.Head()
	if err == nil && head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	for _, name := range []string{"main", "master"} {
		if _, err := s.resolveBranch(name); err == nil {
			return name, nil
		}
	}
	return "", errNoBaseBranch
}

// resolveBranch returns the commit hash of branch as last seen on the
// remote. Local branch refs are never consulted.
func (s *Storage) resolveBranch(branch string) (plumbing.Hash, error) {
	if branch == "" {
		return plumbing.ZeroHash, errEmptyBranchName
	}
	ref, err := s.repo.Reference(plumbing.NewRemoteReferenceName(remoteName, branch), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", errBranchNotFound, branch)
	}
	return ref.Hash(), nil
}

// pruneLocalBranches drops local branch refs whose remote-tracking
// counterpart is gone, leaving the checked-out branch alone.
func (s *Storage) pruneLocalBranches() error {
	var current plumbing.ReferenceName
	if head, err := s.repo.Head(); err == nil {
		current = head.Name()
	}

	refs, err := s.repo.Branches()
	if err != nil {
		return fmt.Errorf("failed to list local branches: %w", err)
	}
	var stale []plumbing.ReferenceName
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name() == current {
			return nil
		}
		remote := plumbing.NewRemoteReferenceName(remoteName, ref.Name().Short())
		if _, err := s.repo.Reference(remote, false); errors.Is(err, plumbing.ErrReferenceNotFound) {
			stale = append(stale, ref.Name())
		}
		return nil
	})
	refs.Close()
	if err != nil {
		return fmt.Errorf("failed to iterate local branches: %w", err)
	}

	for _, name := range stale {
		if err := s.repo.Storer.RemoveReference(name); err != nil {
			return fmt.Errorf("failed to prune %s: %w", name, err)
		}
		s.log.Debug("Pruned local branch " + name.Short())
	}
	return nil
}

// setBranchRefs moves both the local and the remote-tracking ref of branch.
func (s *Storage) setBranchRefs(branch string, hash plumbing.Hash) error {
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(branch),
		plumbing.NewRemoteReferenceName(remoteName, branch),
	} {
		if err := s.repo.Storer.SetReference(plumbing.NewHashReference(name, hash)); err != nil {
			return fmt.Errorf("failed to update %s: %w", name, err)
		}
	}
	return nil
}

func (s *Storage) removeBranchRefs(branch string) {
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(branch),
		plumbing.NewRemoteReferenceName(remoteName, branch),
	} {
		_ = s.repo.Storer.RemoveReference(name)
	}
}

func (s *Storage) checkOpen() error {
	if s.closed || s.repo == nil {
		return errStorageClosed
	}
	return nil
}
