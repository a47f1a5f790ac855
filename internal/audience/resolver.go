// Package audience turns an alert's targeting scope into concrete recipients.
package audience

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mr1hm/go-alert-dispatch/internal/models"
	"github.com/mr1hm/go-alert-dispatch/internal/repository"
)

var ErrDirectoryUnavailable = errors.New("membership directory unavailable")

// ResolutionError reports malformed targeting input.
type ResolutionError struct {
	Scope  models.TargetScope
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve scope %q: %s", e.Scope, e.Reason)
}

type Resolution struct {
	Recipients []models.Recipient
	Count      int
}

const defaultRosterConcurrency = 4

type Resolver struct {
	directory   repository.Directory
	concurrency int
}

func NewResolver(directory repository.Directory) *Resolver {
	return &Resolver{
		directory:   directory,
		concurrency: defaultRosterConcurrency,
	}
}

// Resolve returns a fresh recipient set for one dispatch. For the "all"
// scope the rosters of every community led by the sender are concatenated
// without deduplication: a member of two communities appears twice.
func (r *Resolver) Resolve(ctx context.Context, senderID string, scope models.TargetScope, communityID string) (Resolution, error) {
	if !scope.Valid() {
		return Resolution{}, &ResolutionError{Scope: scope, Reason: "unknown scope"}
	}

	var (
		members []models.Member
		err     error
	)
	if scope == models.TargetScopeAll {
		members, err = r.ledCommunityMembers(ctx, senderID)
	} else {
		if communityID == "" {
			return Resolution{}, &ResolutionError{Scope: scope, Reason: "community id is required"}
		}
		members, err = r.directory.MembersOf(ctx, communityID)
	}
	if err != nil {
		// The caller giving up is not a directory outage.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Resolution{}, ctxErr
		}
		return Resolution{}, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}

	recipients := make([]models.Recipient, 0, len(members))
	for _, m := range members {
		recipients = append(recipients, models.NewRecipient(m))
	}
	return Resolution{Recipients: recipients, Count: len(recipients)}, nil
}

func (r *Resolver) ledCommunityMembers(ctx context.Context, senderID string) ([]models.Member, error) {
	communities, err := r.directory.CommunitiesLedBy(ctx, senderID)
	if err != nil {
		return nil, err
	}

	rosters := make([][]models.Member, len(communities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, c := range communities {
		g.Go(func() error {
			members, err := r.directory.MembersOf(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("roster of %s: %w", c.ID, err)
			}
			rosters[i] = members
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.Member
	for _, roster := range rosters {
		all = append(all, roster...)
	}
	return all, nil
}
