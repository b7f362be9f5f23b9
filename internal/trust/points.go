package trust

import (
	"time"

	"github.com/wardenhq/warden/internal/database/types"
)

// BaseTrust is the starting score before any signal is applied.
const BaseTrust = 20

const day = 24 * time.Hour

// clampTrust bounds a raw score to the [0,100] range.
func clampTrust(trust int) int {
	if trust < 0 {
		return 0
	}

	if trust > 100 {
		return 100
	}

	return trust
}

// pointsForRegistration penalizes accounts younger than six months.
func pointsForRegistration(regDate, now time.Time) int {
	if now.Sub(regDate) < 180*day {
		return -10
	}

	return 0
}

// pointsForTenure rewards time spent in the managed community.
func pointsForTenure(joinDate, now time.Time) int {
	days := int(now.Sub(joinDate) / day)

	switch {
	case days < 180:
		return 0
	case days <= 360:
		return 5
	case days <= 720:
		return 15
	case days <= 1440:
		return 20
	default:
		return 25
	}
}

// pointsForProfile scores the public profile signals.
func pointsForProfile(info *types.TrustInfo) int {
	output := 0

	if info.ClosedProfile {
		output -= 7
	}

	if info.HasPhoto {
		output += 3
	}

	if info.HasWallPosts {
		output += 3
	}

	if info.HasFriends {
		output += 3
	}

	if info.Verified {
		output += 25
	}

	return output
}

// pointsForBehavior scores community and behavioral signals.
func pointsForBehavior(info *types.TrustInfo) int {
	output := 0

	if info.OddGroups {
		output -= 15
	}

	if info.JoinedTestGroup {
		output += 10
	}

	if info.JoinedMainGroup {
		output += 3
	}

	if info.Activism {
		output += 40
	}

	if info.Donate {
		output += 10
	}

	return output
}

// pointsForViolations scores the violation history. An active ban saturates
// the penalty so a banned user can never clear the eligibility bar.
func pointsForViolations(info *types.TrustInfo) int {
	output := 0

	if info.HasViolation {
		output -= 100
	}

	if info.HadViolation {
		output -= 5
	}

	if info.HasWarning {
		output -= 10
	}

	if info.HadWarning {
		output -= 5
	}

	return output
}
