package retention

import (
	"context"
	"fmt"
	"strings"

	"wp-guardian/internal/archive"
	"wp-guardian/internal/errors"
	"wp-guardian/internal/logging"
	"wp-guardian/internal/remote"
)

// Result reports one pruning pass over a store.
type Result struct {
	// Kept are the bundle names retained, newest last.
	Kept []string
	// Deleted are the names removed, sidecars included.
	Deleted []string
	// Failed are the names whose deletion failed this pass. They stay
	// candidates for the next pass.
	Failed []string
}

// Pruner applies a keep-N policy to a store. Pruning is best effort and
// idempotent: a failed deletion is reported but never aborts the pass,
// and re-running against the same store converges to the same survivor
// set. Names outside the archive naming convention are never touched.
type Pruner struct {
	store  remote.Store
	keep   int
	logger *logging.Logger
}

// NewPruner creates a pruner keeping the newest keep archives. A keep of
// zero retains nothing; a negative keep disables pruning.
func NewPruner(store remote.Store, keep int, logger *logging.Logger) *Pruner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Pruner{store: store, keep: keep, logger: logger}
}

// Plan lists the store and splits the recognized archives into survivors
// and deletion candidates without deleting anything.
func (p *Pruner) Plan(ctx context.Context) (kept, victims []string, err error) {
	names, err := p.store.List(ctx)
	if err != nil {
		return nil, nil, errors.NewPruneFailure("cannot list store for pruning", err)
	}

	bundles := archive.FilterBundles(names)
	if p.keep < 0 || len(bundles) <= p.keep {
		return bundles, nil, nil
	}

	cut := len(bundles) - p.keep
	return bundles[cut:], bundles[:cut], nil
}

// Prune deletes every archive group beyond the newest keep. Each victim
// bundle is removed together with every same-stem artifact, so a bundle
// and its checksum sidecar leave the store as a unit.
func (p *Pruner) Prune(ctx context.Context) (*Result, error) {
	kept, victims, err := p.Plan(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Kept: kept}
	if len(victims) == 0 {
		return result, nil
	}

	names, err := p.store.List(ctx)
	if err != nil {
		return nil, errors.NewPruneFailure("cannot list store for pruning", err)
	}

	for _, bundle := range victims {
		group := groupMembers(names, bundle)
		if err := p.store.Delete(ctx, group); err != nil {
			p.logger.Warnf("Failed to prune %s: %v", bundle, err)
			result.Failed = append(result.Failed, bundle)
			continue
		}
		p.logger.Debugf("Pruned archive group %s (%d files)", bundle, len(group))
		result.Deleted = append(result.Deleted, group...)
	}

	if len(result.Failed) > 0 {
		return result, errors.NewPruneFailure(
			fmt.Sprintf("failed to prune %d of %d archives", len(result.Failed), len(victims)), nil)
	}
	return result, nil
}

// groupMembers returns every name sharing the victim bundle's stem. The
// bundle itself is always included even if the listing is stale.
func groupMembers(names []string, bundle string) []string {
	stem := archive.Stem(bundle)
	group := []string{bundle}
	for _, name := range names {
		if name != bundle && strings.HasPrefix(name, stem) {
			group = append(group, name)
		}
	}
	return group
}
