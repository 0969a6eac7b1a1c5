package quota

// Tier is the aggregate-display severity rank. Consumers showing one overall
// level across multiple usage percentages take the maximum tier observed.
type Tier int

const (
	TierNormal Tier = iota
	TierCaution
	TierWarning
	TierCritical
)

func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierWarning:
		return "warning"
	case TierCaution:
		return "caution"
	default:
		return "normal"
	}
}

// TierForPercentage maps a usage percentage to its display tier. The 90/70
// display thresholds are deliberately distinct from the 95/85 warning
// emission thresholds; different consumers, different scales.
func TierForPercentage(pct float64) Tier {
	switch {
	case pct >= 90:
		return TierCritical
	case pct >= 70:
		return TierCaution
	default:
		return TierNormal
	}
}

// TierForSeverity maps a live warning severity onto the display scale.
func TierForSeverity(sev Severity) Tier {
	switch sev {
	case SeverityCritical:
		return TierCritical
	case SeverityWarning:
		return TierWarning
	default:
		return TierNormal
	}
}

// MaxTier returns the highest tier in ts, TierNormal when empty.
func MaxTier(ts ...Tier) Tier {
	max := TierNormal
	for _, t := range ts {
		if t > max {
			max = t
		}
	}
	return max
}
