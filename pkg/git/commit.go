package git

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// FileChange is one file to write or delete in a commit.
type FileChange struct {
	Path     string
	Contents string
	Delete   bool
}

// CommitOptions describes a commit created by [Storage.CommitFiles].
type CommitOptions struct {
	Branch  string
	Message string
	Files   []FileChange
	// Parent is the branch the commit is based on. Empty means the base branch.
	Parent string
}

// CommitFiles writes Files as a single commit on top of Parent and force
// pushes it to Branch. Local refs only move after the push succeeded, so a
// failure leaves the branch as it was. Returns the new commit SHA.
func (s *Storage) CommitFiles(ctx context.Context, opts CommitOptions) (string, error) {
	if opts.Branch == "" {
		return "", errEmptyBranchName
	}
	if len(opts.Files) == 0 {
		return "", errEmptyCommit
	}
	changes, err := normalizeChanges(opts.Files)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	parentName := opts.Parent
	if parentName == "" {
		parentName = s.baseBranch
	}
	parent, err := s.commit(parentName)
	if err != nil {
		return "", err
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return "", fmt.Errorf("failed to read tree of %s: %w", parentName, err)
	}

	treeHash, _, err := s.writeTree(parentTree, changes)
	if err != nil {
		return "", err
	}
	if treeHash == parentTree.Hash {
		return "", fmt.Errorf("%w: files already match %s", errEmptyCommit, parentName)
	}

	commitHash, err := s.writeCommit(treeHash, parent.Hash, opts.Message)
	if err != nil {
		return "", err
	}

	spec := config.RefSpec("+" + commitHash.String() + ":" + plumbing.NewBranchReferenceName(opts.Branch).String())
	if err := s.push(ctx, "push commit", spec); err != nil {
		return "", err
	}
	if err := s.setBranchRefs(opts.Branch, commitHash); err != nil {
		return "", err
	}
	if opts.Branch == s.baseBranch {
		if err := s.syncWorktree(); err != nil {
			return "", err
		}
	}

	s.log.Debug(fmt.Sprintf("Committed %d file(s) to %s at %s", len(opts.Files), opts.Branch, commitHash))
	return commitHash.String(), nil
}

// normalizeChanges cleans paths and keeps the last change per path.
func normalizeChanges(files []FileChange) (map[string]FileChange, error) {
	changes := make(map[string]FileChange, len(files))
	for _, f := range files {
		p := path.Clean(strings.TrimPrefix(f.Path, "/"))
		if p == "." || p == ".." || strings.HasPrefix(p, "../") || f.Path == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidPath, f.Path)
		}
		f.Path = p
		changes[p] = f
	}
	return changes, nil
}

// writeTree stores a copy of base with changes applied and returns its hash.
// empty is true when nothing is left in the tree. base may be nil.
func (s *Storage) writeTree(base *object.Tree, changes map[string]FileChange) (hash plumbing.Hash, empty bool, err error) {
	entries := map[string]object.TreeEntry{}
	if base != nil {
		for _, e := range base.Entries {
			entries[e.Name] = e
		}
	}

	nested := map[string]map[string]FileChange{}
	for p, c := range changes {
		dir, rest, isNested := strings.Cut(p, "/")
		if isNested {
			if nested[dir] == nil {
				nested[dir] = map[string]FileChange{}
			}
			nested[dir][rest] = c
			continue
		}
		if c.Delete {
			delete(entries, p)
			continue
		}
		blob, err := s.writeBlob(c.Contents)
		if err != nil {
			return plumbing.ZeroHash, false, err
		}
		mode := filemode.Regular
		if old, ok := entries[p]; ok && old.Mode == filemode.Executable {
			mode = filemode.Executable
		}
		entries[p] = object.TreeEntry{Name: p, Mode: mode, Hash: blob}
	}

	for dir, sub := range nested {
		var subTree *object.Tree
		if old, ok := entries[dir]; ok && old.Mode == filemode.Dir {
			subTree, err = s.repo.TreeObject(old.Hash)
			if err != nil {
				return plumbing.ZeroHash, false, fmt.Errorf("failed to read tree %s: %w", dir, err)
			}
		}
		h, subEmpty, err := s.writeTree(subTree, sub)
		if err != nil {
			return plumbing.ZeroHash, false, err
		}
		if subEmpty {
			delete(entries, dir)
			continue
		}
		entries[dir] = object.TreeEntry{Name: dir, Mode: filemode.Dir, Hash: h}
	}

	tree := &object.Tree{Entries: make([]object.TreeEntry, 0, len(entries))}
	for _, e := range entries {
		tree.Entries = append(tree.Entries, e)
	}
	sort.Sort(object.TreeEntrySorter(tree.Entries))

	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("failed to encode tree: %w", err)
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("failed to store tree: %w", err)
	}
	return h, len(tree.Entries) == 0, nil
}

func (s *Storage) writeBlob(contents string) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(contents)))
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to open blob writer: %w", err)
	}
	if _, err := w.Write([]byte(contents)); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob: %w", err)
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}
	return h, nil
}

func (s *Storage) writeCommit(tree, parent plumbing.Hash, message string) (plumbing.Hash, error) {
	sig := object.Signature{Name: s.author.Name, Email: s.author.Email, When: time.Now()}
	if sig.Name == "" {
		sig.Name = "scm-adapter"
	}
	if sig.Email == "" {
		sig.Email = "scm-adapter@localhost"
	}
	c := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: []plumbing.Hash{parent},
	}
	obj := s.repo.Storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode commit: %w", err)
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store commit: %w", err)
	}
	return h, nil
}
