package pipeline

import (
	"context"

	"github.com/kyrremann/plogtion/internal/gitrepo"
)

// GitRepository adapts a gitrepo.Client to VersionControl.
type GitRepository struct {
	Client *gitrepo.Client
}

func (g GitRepository) Clone(ctx context.Context, token string) (WorkingCopy, error) {
	checkout, err := g.Client.Clone(ctx, token)
	if err != nil {
		return nil, err
	}
	return checkout, nil
}
