// Package retention decides which off-site backup sets must be pruned to
// keep the archive bounded. It is pure logic over remote descriptors; the
// orchestrator performs the actual deletions.
package retention

import (
	"fmt"
	"slices"

	"github.com/dmitrijs2005/offsitebkp/internal/backup"
	"github.com/dmitrijs2005/offsitebkp/internal/common"
)

// DefaultKeepCount matches the operational policy of keeping the four most
// recent off-site backup sets.
const DefaultKeepCount = 4

// Decision partitions a remote listing into the sets to keep and the sets to
// delete. The two slices are disjoint and together cover the input exactly.
type Decision struct {
	Keep   []backup.RemoteDescriptor
	Delete []backup.RemoteDescriptor
}

// Compute returns the retention decision for the given descriptors: keep the
// k newest (by CreatedAt, ties broken by tag descending), delete the rest.
//
// k <= 0 fails with ErrValidation so retention can never be configured to
// implicitly delete everything. Running Compute again on the kept set yields
// an empty delete set.
func Compute(descriptors []backup.RemoteDescriptor, k int) (Decision, error) {
	if k <= 0 {
		return Decision{}, fmt.Errorf("%w: retention count must be positive, got %d", common.ErrValidation, k)
	}

	sorted := slices.Clone(descriptors)
	backup.SortNewestFirst(sorted)

	if len(sorted) <= k {
		return Decision{Keep: sorted}, nil
	}
	return Decision{Keep: sorted[:k], Delete: sorted[k:]}, nil
}
