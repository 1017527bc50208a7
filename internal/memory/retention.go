package memory

import (
	"sort"
	"time"

	"github.com/xmemory/xmemory/internal/models"
)

// RetentionPolicy bounds a memory's version history. A value of
// models.Unlimited (-1) or zero disables the corresponding rule.
type RetentionPolicy struct {
	MaxVersions int
	MaxAgeDays  int
}

// PolicyForPlan derives the retention policy from a plan's limits.
func PolicyForPlan(limits models.PlanLimits) RetentionPolicy {
	return RetentionPolicy{
		MaxVersions: limits.MaxVersions,
		MaxAgeDays:  limits.VersionDays,
	}
}

// Unbounded reports whether the policy never deletes anything.
func (p RetentionPolicy) Unbounded() bool {
	return p.MaxVersions <= 0 && p.MaxAgeDays <= 0
}

// SelectForDeletion returns the ids of versions that fall outside the policy.
// Both rules run independently and their deletion sets are unioned: the count
// rule keeps the MaxVersions highest version numbers regardless of age, the
// age rule drops everything created before now minus MaxAgeDays regardless of
// count. The owning memory's head content is never touched by retention.
func SelectForDeletion(versions []models.MemoryVersion, policy RetentionPolicy, now time.Time) []models.UUID {
	if policy.Unbounded() || len(versions) == 0 {
		return nil
	}

	doomed := make(map[models.UUID]bool)

	if policy.MaxVersions > 0 && len(versions) > policy.MaxVersions {
		byNumber := make([]models.MemoryVersion, len(versions))
		copy(byNumber, versions)
		sort.Slice(byNumber, func(i, j int) bool {
			return byNumber[i].VersionNumber > byNumber[j].VersionNumber
		})
		for _, v := range byNumber[policy.MaxVersions:] {
			doomed[v.ID] = true
		}
	}

	if policy.MaxAgeDays > 0 {
		cutoff := now.AddDate(0, 0, -policy.MaxAgeDays).Unix()
		for _, v := range versions {
			if v.CreatedAt < cutoff {
				doomed[v.ID] = true
			}
		}
	}

	if len(doomed) == 0 {
		return nil
	}

	// Deterministic order for logging and tests: oldest version number first.
	ids := make([]models.UUID, 0, len(doomed))
	ordered := make([]models.MemoryVersion, len(versions))
	copy(ordered, versions)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].VersionNumber < ordered[j].VersionNumber
	})
	for _, v := range ordered {
		if doomed[v.ID] {
			ids = append(ids, v.ID)
		}
	}
	return ids
}
