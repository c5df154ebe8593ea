package decay

import (
	"testing"
	"time"
)

func TestDecayedScoreNeverExceedsSalience(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name        string
		salience    float64
		hoursAgo    float64
		accessCount int
		isLongTerm  bool
	}{
		{"just touched, heavily accessed", 0.8, 0, 50, false},
		{"just touched, never accessed", 0.8, 0, 0, false},
		{"one hour ago, heavily accessed", 0.6, 1, 100, false},
		{"one day ago, moderate access", 0.9, 24, 5, false},
		{"long-term, just touched", 0.7, 0, 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lastAccessed := now.Add(-time.Duration(tt.hoursAgo * float64(time.Hour)))
			score := DecayedScore(tt.salience, lastAccessed, now, tt.accessCount, tt.isLongTerm, BaseDecayRate)
			if score > tt.salience {
				t.Errorf("decayed_score %f exceeds salience %f", score, tt.salience)
			}
		})
	}
}

func TestDecayedScoreDecreasesWithAge(t *testing.T) {
	now := time.Now().UTC()
	salience := 0.8

	fresh := DecayedScore(salience, now, now, 0, false, BaseDecayRate)
	old := DecayedScore(salience, now.Add(-100*time.Hour), now, 0, false, BaseDecayRate)

	if old >= fresh {
		t.Errorf("expected older memory to have decayed further: fresh=%f old=%f", fresh, old)
	}
}

func TestDecayedScoreLongTermDecaysSlower(t *testing.T) {
	now := time.Now().UTC()
	salience := 0.8
	lastAccessed := now.Add(-240 * time.Hour)

	shortTerm := DecayedScore(salience, lastAccessed, now, 0, false, BaseDecayRate)
	longTerm := DecayedScore(salience, lastAccessed, now, 0, true, BaseDecayRate)

	if longTerm <= shortTerm {
		t.Errorf("expected long-term decay to be slower: short=%f long=%f", shortTerm, longTerm)
	}
}

func TestDecayedScoreClampsToZero(t *testing.T) {
	now := time.Now().UTC()
	score := DecayedScore(0.5, now.Add(-100000*time.Hour), now, 0, false, BaseDecayRate)
	if score < 0 {
		t.Errorf("expected clamp to 0, got %f", score)
	}
}

func TestAccessSlowdownSaturates(t *testing.T) {
	low := AccessSlowdown(0)
	if low != 1.0 {
		t.Errorf("expected zero accesses to give slowdown 1.0, got %f", low)
	}

	high := AccessSlowdown(100000)
	if high > 1.3+1e-9 {
		t.Errorf("expected slowdown to saturate at 1.3, got %f", high)
	}

	negative := AccessSlowdown(-5)
	if negative != low {
		t.Errorf("expected negative access_count to behave like 0, got %f", negative)
	}
}

func TestAccessSlowdownMonotonic(t *testing.T) {
	prev := AccessSlowdown(0)
	for _, n := range []int{1, 5, 20, 100} {
		cur := AccessSlowdown(n)
		if cur < prev {
			t.Errorf("expected AccessSlowdown to be non-decreasing, got %f after %f at n=%d", cur, prev, n)
		}
		prev = cur
	}
}
