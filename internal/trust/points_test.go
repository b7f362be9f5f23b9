package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wardenhq/warden/internal/database/types"
)

func TestClampTrust(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "below range", in: -50, want: 0},
		{name: "lower bound", in: 0, want: 0},
		{name: "in range", in: 42, want: 42},
		{name: "upper bound", in: 100, want: 100},
		{name: "above range", in: 250, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, clampTrust(tt.in))
		})
	}
}

func TestPointsForTenure(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name string
		days int
		want int
	}{
		{name: "new member", days: 30, want: 0},
		{name: "half year", days: 180, want: 5},
		{name: "one year", days: 361, want: 15},
		{name: "two years", days: 721, want: 20},
		{name: "four years plus", days: 1441, want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			joinDate := now.Add(-time.Duration(tt.days) * 24 * time.Hour)
			assert.Equal(t, tt.want, pointsForTenure(joinDate, now))
		})
	}
}

func TestPointsForRegistration(t *testing.T) {
	t.Parallel()

	now := time.Now()

	assert.Equal(t, -10, pointsForRegistration(now.Add(-24*time.Hour), now))
	assert.Equal(t, 0, pointsForRegistration(now.AddDate(-1, 0, 0), now))
}

func TestPointsForViolations(t *testing.T) {
	t.Parallel()

	active := &types.TrustInfo{HasViolation: true}
	assert.Equal(t, -100, pointsForViolations(active))

	history := &types.TrustInfo{HadViolation: true, HasWarning: true, HadWarning: true}
	assert.Equal(t, -20, pointsForViolations(history))
}

func TestPointsForProfile(t *testing.T) {
	t.Parallel()

	full := &types.TrustInfo{
		HasPhoto:     true,
		HasWallPosts: true,
		HasFriends:   true,
		Verified:     true,
	}
	assert.Equal(t, 34, pointsForProfile(full))

	closed := &types.TrustInfo{ClosedProfile: true}
	assert.Equal(t, -7, pointsForProfile(closed))
}
