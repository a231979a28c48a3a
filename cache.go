// cache.go: per-site type feedback.
//
// Method calls, binary operations, property accesses, and variable loads each
// record the types they observe at their source offset, and every site moves
// through the usual inline-cache states: uninitialized, monomorphic,
// polymorphic (up to four types), megamorphic. The feedback feeds two
// consumers: the REPL's debug statistics, and the specialization-candidate
// report for sites dominated by a single type.
package ruchy

import "sort"

// CacheState is the lifecycle state of one call site.
type CacheState int

const (
	CacheUninit CacheState = iota
	CacheMono
	CachePoly
	CacheMega
)

func (s CacheState) String() string {
	switch s {
	case CacheUninit:
		return "uninitialized"
	case CacheMono:
		return "monomorphic"
	case CachePoly:
		return "polymorphic"
	default:
		return "megamorphic"
	}
}

// polyLimit is how many distinct types a site may hold before going
// megamorphic.
const polyLimit = 4

// SiteCache is the feedback record of one call site.
type SiteCache struct {
	State  CacheState
	Types  []string // observed receiver types, first-seen order
	Counts map[string]uint64
	Hits   uint64
	Misses uint64
}

func (s *SiteCache) observations() uint64 { return s.Hits + s.Misses }

// hitRate is 0 for a site with no observations.
func (s *SiteCache) hitRate() float64 {
	total := s.observations()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// dominant returns the most frequent type and its share of observations.
func (s *SiteCache) dominant() (string, float64) {
	total := s.observations()
	if total == 0 {
		return "", 0
	}
	best, bestN := "", uint64(0)
	for t, n := range s.Counts {
		if n > bestN {
			best, bestN = t, n
		}
	}
	return best, float64(bestN) / float64(total)
}

// TypeFeedback owns all site caches of one session.
type TypeFeedback struct {
	enabled bool
	cap     int
	sites   map[uint32]*SiteCache
}

// NewTypeFeedback creates the feedback store. A cap of 0 means no limit.
func NewTypeFeedback(enabled bool, cap int) *TypeFeedback {
	return &TypeFeedback{enabled: enabled, cap: cap, sites: map[uint32]*SiteCache{}}
}

// Enabled reports whether recording is active.
func (tf *TypeFeedback) Enabled() bool { return tf.enabled }

// SetEnabled toggles recording at runtime.
func (tf *TypeFeedback) SetEnabled(on bool) { tf.enabled = on }

// Record notes one observation of typeName at the given site. A hit is an
// observation of a type the site has already seen.
func (tf *TypeFeedback) Record(site uint32, typeName string) {
	if !tf.enabled {
		return
	}
	sc, ok := tf.sites[site]
	if !ok {
		if tf.cap > 0 && len(tf.sites) >= tf.cap {
			tf.evictColdest()
		}
		sc = &SiteCache{Counts: map[string]uint64{}}
		tf.sites[site] = sc
	}
	sc.Counts[typeName]++
	seen := false
	for _, t := range sc.Types {
		if t == typeName {
			seen = true
			break
		}
	}
	if seen {
		sc.Hits++
		return
	}
	sc.Misses++
	sc.Types = append(sc.Types, typeName)
	switch {
	case len(sc.Types) == 1:
		sc.State = CacheMono
	case len(sc.Types) <= polyLimit:
		sc.State = CachePoly
	default:
		sc.State = CacheMega
	}
}

// evictColdest removes the site with the lowest hit rate, breaking ties by
// fewest observations.
func (tf *TypeFeedback) evictColdest() {
	var victim uint32
	found := false
	var vRate float64
	var vObs uint64
	for site, sc := range tf.sites {
		r, o := sc.hitRate(), sc.observations()
		if !found || r < vRate || (r == vRate && o < vObs) {
			victim, vRate, vObs, found = site, r, o, true
		}
	}
	if found {
		delete(tf.sites, victim)
	}
}

// Site exposes one site's cache, mainly for tests and the REPL inspector.
func (tf *TypeFeedback) Site(site uint32) *SiteCache { return tf.sites[site] }

// Clear drops all recorded feedback.
func (tf *TypeFeedback) Clear() { tf.sites = map[uint32]*SiteCache{} }

// CacheStats is the aggregate view rendered by the REPL's debug mode.
type CacheStats struct {
	Sites       int
	Monomorphic int
	Polymorphic int
	Megamorphic int
	Hits        uint64
	Misses      uint64
}

// Stats aggregates over all live sites.
func (tf *TypeFeedback) Stats() CacheStats {
	var st CacheStats
	st.Sites = len(tf.sites)
	for _, sc := range tf.sites {
		switch sc.State {
		case CacheMono:
			st.Monomorphic++
		case CachePoly:
			st.Polymorphic++
		case CacheMega:
			st.Megamorphic++
		}
		st.Hits += sc.Hits
		st.Misses += sc.Misses
	}
	return st
}

// SpecializationCandidate is a site dominated by one receiver type.
type SpecializationCandidate struct {
	Site         uint32
	Type         string
	Share        float64
	Observations uint64
}

// minSpecObservations is the observation floor before a site qualifies.
const minSpecObservations = 10

// specShareThreshold is the dominant-type share a candidate must exceed.
const specShareThreshold = 0.9

// Candidates lists sites where one type accounts for more than 90% of at
// least ten observations, sorted by observation count descending.
func (tf *TypeFeedback) Candidates() []SpecializationCandidate {
	var out []SpecializationCandidate
	for site, sc := range tf.sites {
		obs := sc.observations()
		if obs < minSpecObservations {
			continue
		}
		t, share := sc.dominant()
		if share > specShareThreshold {
			out = append(out, SpecializationCandidate{Site: site, Type: t, Share: share, Observations: obs})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Observations != out[j].Observations {
			return out[i].Observations > out[j].Observations
		}
		return out[i].Site < out[j].Site
	})
	return out
}
