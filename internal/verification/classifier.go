package verification

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/internal/platform"
)

// ActionSet holds the two disjoint member sets a classification pass
// produces: members to receive the marker role and members to remove.
// It is consumed by a single lifecycle run and then discarded.
type ActionSet struct {
	ForRole []platform.Member
	ForKick []platform.Member
}

// Classifier partitions a roster snapshot into an ActionSet.
// It is pure: no I/O, no mutation of the snapshot, repeatable on the same input.
type Classifier struct {
	unverifiedRoleID snowflake.ID
	thresholds       Thresholds
	logger           *zap.Logger
}

// NewClassifier creates a classifier for the given marker role and thresholds.
func NewClassifier(unverifiedRoleID snowflake.ID, thresholds Thresholds, logger *zap.Logger) *Classifier {
	return &Classifier{
		unverifiedRoleID: unverifiedRoleID,
		thresholds:       thresholds,
		logger:           logger.Named("classifier"),
	}
}

// Classify partitions members by their lifecycle state at the given instant.
//
// Bots are skipped outright. Pending removal puts a member into ForKick;
// pending warning without the marker role, into ForRole. A member is in at
// most one state, so the two sets are always disjoint.
func (c *Classifier) Classify(members []platform.Member, now time.Time) *ActionSet {
	set := &ActionSet{}

	for _, member := range members {
		if member.Bot {
			continue
		}

		switch StateOf(member, c.unverifiedRoleID, now, c.thresholds) {
		case StatePendingRemoval:
			set.ForKick = append(set.ForKick, member)
		case StatePendingWarning:
			if !member.HasRole(c.unverifiedRoleID) {
				set.ForRole = append(set.ForRole, member)
			}
		case StateVerified, StateAwaitingGrace:
		}
	}

	c.logger.Debug("Classified guild members",
		zap.Int("total", len(members)),
		zap.Int("forRole", len(set.ForRole)),
		zap.Int("forKick", len(set.ForKick)))

	return set
}
