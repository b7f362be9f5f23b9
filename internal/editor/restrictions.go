package editor

// MinEditorTrust is the score a user must exceed to receive editor rights.
const MinEditorTrust = 10

// AllowedToReceiveEditor reports whether the trust score clears the
// eligibility bar.
func AllowedToReceiveEditor(trust int) bool {
	return trust > MinEditorTrust
}

// GroupLimit returns the maximum number of groups a user may hold editor
// rights in at the given trust score.
func GroupLimit(trust int) int {
	switch {
	case trust <= 10:
		return 0
	case trust <= 20:
		return 1
	case trust <= 30:
		return 3
	case trust <= 40:
		return 5
	case trust <= 50:
		return 10
	case trust <= 60:
		return 15
	case trust <= 70:
		return 20
	case trust <= 80:
		return 25
	default:
		return 30
	}
}
