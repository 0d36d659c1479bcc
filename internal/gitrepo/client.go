// Package gitrepo clones the site repository and pushes new posts to it.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/rs/zerolog"
)

// Config holds the repository location and commit identity.
type Config struct {
	URL         string
	Path        string
	Branch      string
	AuthorName  string
	AuthorEmail string
}

// Client clones a fresh working copy for every post.
type Client struct {
	cfg Config
	log zerolog.Logger
}

// NewClient creates a client for cfg.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	return &Client{cfg: cfg, log: log}
}

// Checkout is a cloned working copy.
type Checkout struct {
	repo   *git.Repository
	dir    string
	branch string
	author object.Signature
	log    zerolog.Logger
}

func auth(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "x-access-token", Password: token}
}

// Clone removes any previous working copy and clones the configured branch.
func (c *Client) Clone(ctx context.Context, token string) (*Checkout, error) {
	if err := os.RemoveAll(c.cfg.Path); err != nil {
		return nil, fmt.Errorf("failed to remove old working copy: %w", err)
	}

	start := time.Now()
	repo, err := git.PlainCloneContext(ctx, c.cfg.Path, false, &git.CloneOptions{
		URL:           c.cfg.URL,
		Auth:          auth(token),
		ReferenceName: plumbing.NewBranchReferenceName(c.cfg.Branch),
		SingleBranch:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}

	c.log.Info().
		Str("path", c.cfg.Path).
		Dur("duration", time.Since(start)).
		Msg("Repository cloned")

	return &Checkout{
		repo:   repo,
		dir:    c.cfg.Path,
		branch: c.cfg.Branch,
		author: object.Signature{Name: c.cfg.AuthorName, Email: c.cfg.AuthorEmail},
		log:    c.log,
	}, nil
}

// Dir is the working copy root.
func (w *Checkout) Dir() string {
	return w.dir
}

// WriteFile writes data to a slash separated path inside the working copy.
func (w *Checkout) WriteFile(rel string, data []byte) error {
	full, err := w.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}

func (w *Checkout) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the working copy", rel)
	}
	return filepath.Join(w.dir, clean), nil
}

// CommitAndPush stages rel, commits it and pushes the branch to origin.
func (w *Checkout) CommitAndPush(ctx context.Context, token, rel, message string) error {
	full, err := w.resolve(rel)
	if err != nil {
		return err
	}
	if _, err := os.Stat(full); err != nil {
		return fmt.Errorf("file to commit does not exist: %s", rel)
	}

	tree, err := w.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	if _, err := tree.Add(filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))); err != nil {
		return fmt.Errorf("failed to stage %s: %w", rel, err)
	}

	author := w.author
	author.When = time.Now()
	hash, err := tree.Commit(message, &git.CommitOptions{Author: &author, Committer: &author})
	if err != nil {
		return fmt.Errorf("failed to create commit: %w", err)
	}

	ref := plumbing.NewBranchReferenceName(w.branch)
	err = w.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       auth(token),
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(ref + ":" + ref)},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push changes: %w", err)
	}

	w.log.Info().
		Str("commit", hash.String()).
		Str("file", rel).
		Msg("Changes pushed")
	return nil
}
