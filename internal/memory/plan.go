package memory

import "github.com/xmemory/xmemory/internal/models"

// planTable holds the per-tier quota constants. models.Unlimited (-1)
// disables the corresponding limit.
var planTable = map[string]models.PlanLimits{
	models.PlanFree: {
		MaxAccounts: 1,
		VersionDays: 7,
		MaxVersions: 10,
		CloudSync:   true,
	},
	models.PlanPro: {
		MaxAccounts: 10,
		VersionDays: 90,
		MaxVersions: 100,
		CloudSync:   true,
	},
	models.PlanLifetime: {
		MaxAccounts: models.Unlimited,
		VersionDays: models.Unlimited,
		MaxVersions: models.Unlimited,
		CloudSync:   true,
	},
}

// PlanLimits returns the quota constants for a subscription tier. Unknown
// plan strings fall back to the free tier.
func PlanLimits(plan string) models.PlanLimits {
	if limits, ok := planTable[plan]; ok {
		return limits
	}
	return planTable[models.PlanFree]
}
