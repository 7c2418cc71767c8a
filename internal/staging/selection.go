package staging

import (
	"math"
	"sort"

	"github.com/akhgr1-design/chillerd/internal/plant"
)

// scoreEnv snapshots the fleet-level scoring inputs for one pass.
func (c *Controller) scoreEnv() ScoreEnv {
	var total int64
	var n int
	for i := range c.reg.Condensers {
		u := &c.reg.Condensers[i]
		if u.Available {
			total += u.RuntimeMinutes
			n++
		}
	}
	avg := 0.0
	if n > 0 {
		avg = float64(total) / float64(n)
	}
	return ScoreEnv{
		Strategy:        c.ctl.Strategy,
		SeasonalFactor:  c.seasonalFactor,
		FleetAvgRuntime: avg,
		Zone:            c.zone,
	}
}

// rescoreCondensers refreshes the stored per-bank scores. Banks ineligible
// for an automatic start carry the sentinel score -1.
func (c *Controller) rescoreCondensers() {
	env := c.scoreEnv()
	for i := range c.reg.Condensers {
		u := &c.reg.Condensers[i]
		if startEligible(u) {
			u.Score = PriorityScore(*u, env)
		} else {
			u.Score = -1
		}
		c.met.SetScore(i, u.Score)
	}
}

// selectCondensersToStart returns up to n bank indexes, best score first.
// Ties keep index order through the stable sort. Fewer than n back means
// equipment-constrained, not an error.
func (c *Controller) selectCondensersToStart(n int) []int {
	c.rescoreCondensers()
	order := make([]int, 0, plant.MaxCondensers)
	for i := range c.reg.Condensers {
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return c.reg.Condensers[order[a]].Score > c.reg.Condensers[order[b]].Score
	})
	out := make([]int, 0, n)
	for _, i := range order {
		if len(out) == n {
			break
		}
		if c.reg.Condensers[i].Score > 0 {
			out = append(out, i)
		}
	}
	return out
}

// selectCondensersToStop inverts the preference: the lowest-value running
// bank stops first. Running banks are always stop candidates, whatever
// their start eligibility; the epsilon clamp keeps zero scores finite.
func (c *Controller) selectCondensersToStop(n int) []int {
	env := c.scoreEnv()
	type candidate struct {
		index    int
		inverted float64
	}
	cands := make([]candidate, 0, plant.MaxCondensers)
	for i := range c.reg.Condensers {
		u := &c.reg.Condensers[i]
		if !u.Running || u.Mode != plant.ModeAuto {
			continue
		}
		score := PriorityScore(*u, env)
		cands = append(cands, candidate{index: i, inverted: 1 / math.Max(score, stopScoreEpsilon)})
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].inverted > cands[b].inverted })
	out := make([]int, 0, n)
	for _, cd := range cands {
		if len(out) == n {
			break
		}
		out = append(out, cd.index)
	}
	return out
}

func compressorStartable(u *plant.UnitState) bool {
	return u.Available && !u.Running && u.Mode == plant.ModeAuto
}

func compressorStoppable(u *plant.UnitState) bool {
	return u.Running && u.Mode == plant.ModeAuto
}

// selectCompressorToStart picks the next compressor: lowest runtime first
// under RuntimeBalanced, otherwise round-robin from the start cursor.
func (c *Controller) selectCompressorToStart() (int, bool) {
	if c.ctl.Algorithm == AlgorithmRuntimeBalanced {
		best := -1
		for i := range c.reg.Compressors {
			u := &c.reg.Compressors[i]
			if !compressorStartable(u) {
				continue
			}
			if best < 0 || u.RuntimeMinutes < c.reg.Compressors[best].RuntimeMinutes {
				best = i
			}
		}
		return best, best >= 0
	}
	for off := 0; off < plant.MaxCompressors; off++ {
		i := (c.compStartCursor + off) % plant.MaxCompressors
		if compressorStartable(&c.reg.Compressors[i]) {
			return i, true
		}
	}
	return -1, false
}

// selectCompressorToStop picks the next compressor to shed: highest runtime
// under RuntimeBalanced, otherwise round-robin from the stop cursor.
func (c *Controller) selectCompressorToStop() (int, bool) {
	if c.ctl.Algorithm == AlgorithmRuntimeBalanced {
		best := -1
		for i := range c.reg.Compressors {
			u := &c.reg.Compressors[i]
			if !compressorStoppable(u) {
				continue
			}
			if best < 0 || u.RuntimeMinutes > c.reg.Compressors[best].RuntimeMinutes {
				best = i
			}
		}
		return best, best >= 0
	}
	for off := 0; off < plant.MaxCompressors; off++ {
		i := (c.compStopCursor + off) % plant.MaxCompressors
		if compressorStoppable(&c.reg.Compressors[i]) {
			return i, true
		}
	}
	return -1, false
}
