package quota

import "testing"

func TestTierForPercentage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		pct  float64
		want Tier
	}{
		{0, TierNormal},
		{69.9, TierNormal},
		{70, TierCaution},
		{89.9, TierCaution},
		{90, TierCritical},
		{100, TierCritical},
	}
	for _, tt := range tests {
		if got := TierForPercentage(tt.pct); got != tt.want {
			t.Errorf("TierForPercentage(%v) = %s, want %s", tt.pct, got, tt.want)
		}
	}
}

func TestMaxTier(t *testing.T) {
	t.Parallel()
	if got := MaxTier(); got != TierNormal {
		t.Fatalf("MaxTier() = %s, want normal", got)
	}
	got := MaxTier(TierCaution, TierCritical, TierNormal, TierWarning)
	if got != TierCritical {
		t.Fatalf("MaxTier = %s, want critical", got)
	}
}

func TestTierForSeverity(t *testing.T) {
	t.Parallel()
	if TierForSeverity(SeverityCritical) != TierCritical {
		t.Fatal("critical severity should map to critical tier")
	}
	if TierForSeverity(SeverityWarning) != TierWarning {
		t.Fatal("warning severity should map to warning tier")
	}
	if TierForSeverity(SeverityInfo) != TierNormal {
		t.Fatal("info severity should map to normal tier")
	}
}

func TestTierOrdering(t *testing.T) {
	t.Parallel()
	if !(TierCritical > TierWarning && TierWarning > TierCaution && TierCaution > TierNormal) {
		t.Fatal("tier ranks out of order")
	}
}
