package staging

import "math"

// tierCeiling maps the configured max tier onto the compressor-count
// ceiling: tiers 1..4 allow 2, 4, 6, 8 compressors.
func tierCeiling(maxTier int) int {
	if maxTier < 1 {
		return 0
	}
	if maxTier > 4 {
		maxTier = 4
	}
	return 2 * maxTier
}

// tierFor reports the capacity band a compressor count falls in. An idle
// plant sits in the lowest band; the tier never leaves 1..4.
func tierFor(compressors int) int {
	if compressors <= 2 {
		return 1
	}
	return (compressors + 1) / 2
}

// requiredCompressors maps a capacity percentage onto a compressor count
// against the staging base (the lesser of availability and tier ceiling).
// Rounding is round-half-up.
func requiredCompressors(capacityPct float64, maxCompressors int) int {
	if maxCompressors <= 0 {
		return 0
	}
	if capacityPct < 0 {
		capacityPct = 0
	}
	if capacityPct > 100 {
		capacityPct = 100
	}
	n := int(math.Floor(capacityPct/100*float64(maxCompressors) + 0.5))
	if n > maxCompressors {
		n = maxCompressors
	}
	return n
}

// deriveTargets computes the tier and the per-class unit targets for a
// demand. Condensers follow compressors at one bank per two compressors,
// at least one whenever any compressor is called for, never more than are
// available.
func deriveTargets(capacityPct float64, availComp, availCond, maxTier int) (tier, compressors, condensers int) {
	base := availComp
	if c := tierCeiling(maxTier); c < base {
		base = c
	}
	compressors = requiredCompressors(capacityPct, base)
	tier = tierFor(compressors)
	if compressors > 0 {
		condensers = (compressors + 1) / 2
		if condensers > availCond {
			condensers = availCond
		}
	}
	return tier, compressors, condensers
}
