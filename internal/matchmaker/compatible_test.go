package matchmaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPref(t testing.TB, userID string, topics, difficulties []string, minTime, maxTime int) Preference {
	t.Helper()
	p, err := NewPreference(PreferenceRequest{
		UserID:       userID,
		Topics:       topics,
		Difficulties: difficulties,
		MinTime:      minTime,
		MaxTime:      maxTime,
	})
	require.NoError(t, err)
	return p
}

func TestCompatible(t *testing.T) {
	base := func(user string) Preference {
		return mustPref(t, user, []string{"DP", "Graph"}, []string{"Easy", "Medium"}, 15, 30)
	}

	tests := []struct {
		name string
		a, b Preference
		want bool
	}{
		{"identical preferences, different users", base("alice"), base("bob"), true},
		{"same user never pairs", base("alice"), base("alice"), false},
		{"one shared topic is enough",
			base("alice"), mustPref(t, "bob", []string{"Graph", "Trees"}, []string{"Easy"}, 15, 30), true},
		{"disjoint topics",
			base("alice"), mustPref(t, "bob", []string{"Strings"}, []string{"Easy"}, 15, 30), false},
		{"disjoint difficulties",
			base("alice"), mustPref(t, "bob", []string{"DP"}, []string{"Hard"}, 15, 30), false},
		{"ranges touch at upper bound",
			base("alice"), mustPref(t, "bob", []string{"DP"}, []string{"Easy"}, 30, 45), true},
		{"ranges touch at lower bound",
			base("alice"), mustPref(t, "bob", []string{"DP"}, []string{"Easy"}, 5, 15), true},
		{"ranges disjoint above",
			base("alice"), mustPref(t, "bob", []string{"DP"}, []string{"Easy"}, 31, 45), false},
		{"ranges disjoint below",
			base("alice"), mustPref(t, "bob", []string{"DP"}, []string{"Easy"}, 1, 14), false},
		{"range contained",
			base("alice"), mustPref(t, "bob", []string{"DP"}, []string{"Easy"}, 20, 25), true},
		// minTime > maxTime is allowed and simply yields an empty interval on one side
		{"inverted range never overlaps",
			base("alice"), mustPref(t, "bob", []string{"DP"}, []string{"Easy"}, 40, 10), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compatible(tt.a, tt.b))
			assert.Equal(t, tt.want, Compatible(tt.b, tt.a), "predicate must be symmetric")
		})
	}
}

// Every pair drawn from a small grid: compatible exactly when all three
// conditions hold.
func TestCompatible_Grid(t *testing.T) {
	topicSets := [][]string{{"DP"}, {"Graph"}, {"DP", "Graph"}}
	diffSets := [][]string{{"Easy"}, {"Hard"}, {"Easy", "Hard"}}
	ranges := [][2]int{{10, 20}, {20, 30}, {25, 40}, {50, 60}}

	var prefs []Preference
	n := 0
	for _, ts := range topicSets {
		for _, ds := range diffSets {
			for _, r := range ranges {
				n++
				prefs = append(prefs, mustPref(t, string(rune('a'+n%26))+string(rune('A'+n/26)), ts, ds, r[0], r[1]))
			}
		}
	}

	for _, a := range prefs {
		for _, b := range prefs {
			want := a.UserID != b.UserID &&
				intersects(a.Topics, b.Topics) &&
				intersects(a.Difficulties, b.Difficulties) &&
				a.MinTime <= b.MaxTime && b.MinTime <= a.MaxTime
			assert.Equal(t, want, Compatible(a, b), "%+v vs %+v", a, b)
		}
	}
}

func TestIntersects(t *testing.T) {
	assert.True(t, intersects([]string{"a", "b"}, []string{"c", "b"}))
	assert.False(t, intersects([]string{"a"}, []string{"b", "c"}))
	assert.False(t, intersects(nil, []string{"a"}))
}
