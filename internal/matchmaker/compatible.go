package matchmaker

// Compatible reports whether a and b may be paired: different users, at least
// one shared topic, at least one shared difficulty, and overlapping
// [MinTime, MaxTime] ranges with inclusive bounds.
//
// The Redis pool evaluates the same rules inside matchScript; keep them in sync.
func Compatible(a, b Preference) bool {
	if a.UserID == b.UserID {
		return false
	}
	if !intersects(a.Topics, b.Topics) || !intersects(a.Difficulties, b.Difficulties) {
		return false
	}
	return a.MinTime <= b.MaxTime && b.MinTime <= a.MaxTime
}

func intersects(a, b []string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; ok {
			return true
		}
	}
	return false
}
