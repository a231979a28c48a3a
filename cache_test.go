package ruchy

import "testing"

func TestCacheStateTransitions(t *testing.T) {
	tf := NewTypeFeedback(true, 0)

	tf.Record(1, "integer")
	sc := tf.Site(1)
	if sc.State != CacheMono {
		t.Fatalf("after one type: %v", sc.State)
	}
	if sc.Misses != 1 || sc.Hits != 0 {
		t.Fatalf("first observation is a miss: hits=%d misses=%d", sc.Hits, sc.Misses)
	}

	tf.Record(1, "integer")
	tf.Record(1, "integer")
	if sc.State != CacheMono || sc.Hits != 2 {
		t.Fatalf("repeat type stays monomorphic: %v hits=%d", sc.State, sc.Hits)
	}

	tf.Record(1, "string")
	if sc.State != CachePoly {
		t.Fatalf("second type goes polymorphic: %v", sc.State)
	}

	tf.Record(1, "float")
	tf.Record(1, "array")
	if sc.State != CachePoly {
		t.Fatalf("four types still polymorphic: %v", sc.State)
	}
	tf.Record(1, "object")
	if sc.State != CacheMega {
		t.Fatalf("fifth type goes megamorphic: %v", sc.State)
	}
}

func TestCacheDisabledRecordsNothing(t *testing.T) {
	tf := NewTypeFeedback(false, 0)
	tf.Record(1, "integer")
	if tf.Site(1) != nil {
		t.Fatal("disabled feedback must not allocate sites")
	}
	tf.SetEnabled(true)
	tf.Record(1, "integer")
	if tf.Site(1) == nil {
		t.Fatal("re-enabled feedback records")
	}
}

func TestCacheEviction(t *testing.T) {
	tf := NewTypeFeedback(true, 2)
	// site 1 is hot, site 2 is cold
	for i := 0; i < 10; i++ {
		tf.Record(1, "integer")
	}
	tf.Record(2, "string")
	tf.Record(3, "float") // exceeds the cap; the coldest site goes
	if tf.Site(2) != nil {
		t.Fatal("cold site should have been evicted")
	}
	if tf.Site(1) == nil || tf.Site(3) == nil {
		t.Fatal("hot and new sites survive")
	}
}

func TestCacheStats(t *testing.T) {
	tf := NewTypeFeedback(true, 0)
	tf.Record(1, "integer")
	tf.Record(1, "integer")
	tf.Record(2, "integer")
	tf.Record(2, "string")
	st := tf.Stats()
	if st.Sites != 2 || st.Monomorphic != 1 || st.Polymorphic != 1 {
		t.Fatalf("stats: %+v", st)
	}
	if st.Hits != 1 || st.Misses != 3 {
		t.Fatalf("hit accounting: %+v", st)
	}
	tf.Clear()
	if tf.Stats().Sites != 0 {
		t.Fatal("Clear drops all sites")
	}
}

func TestSpecializationCandidates(t *testing.T) {
	tf := NewTypeFeedback(true, 0)
	// 95% integer over 20 observations: a candidate
	for i := 0; i < 19; i++ {
		tf.Record(1, "integer")
	}
	tf.Record(1, "string")
	// an even split: not a candidate
	for i := 0; i < 10; i++ {
		tf.Record(2, "integer")
		tf.Record(2, "string")
	}
	// too few observations: not a candidate
	tf.Record(3, "integer")

	cands := tf.Candidates()
	if len(cands) != 1 {
		t.Fatalf("candidates: %+v", cands)
	}
	c := cands[0]
	if c.Site != 1 || c.Type != "integer" || c.Share <= 0.9 || c.Observations != 20 {
		t.Fatalf("candidate: %+v", c)
	}
}

// Feedback observes method-call receivers during execution, and turning it
// off must never change program results.
func TestFeedbackObservesMethodCalls(t *testing.T) {
	s := NewSession()
	if _, err := s.Eval("for i in 0..20 { [i].len() }"); err != nil {
		t.Fatal(err)
	}
	st := s.Interp().Feedback().Stats()
	if st.Sites == 0 {
		t.Fatal("method calls should create feedback sites")
	}
	if st.Monomorphic == 0 {
		t.Fatalf("a single-receiver site is monomorphic: %+v", st)
	}
}

// Binary operations, variable loads, and property accesses feed the cache
// too, so a program without a single method call still accumulates sites.
func TestFeedbackObservesNonCallSites(t *testing.T) {
	src := `let o = { v: 2 }
let mut total = 0
for i in 0..10 { total = total + i * o.v }
total`

	s := NewSession()
	if _, err := s.Eval(src); err != nil {
		t.Fatal(err)
	}
	st := s.Interp().Feedback().Stats()
	if st.Sites == 0 {
		t.Fatal("operator and load sites should create feedback sites")
	}

	vs := NewSession()
	if _, err := vs.Compile(src); err != nil {
		t.Fatal(err)
	}
	if vs.Interp().Feedback().Stats().Sites == 0 {
		t.Fatal("the bytecode engine feeds the same sites")
	}
}

func TestCacheTransparency(t *testing.T) {
	src := `let xs = [1, 2.5, "x", [1]]
let mut out = ""
for x in xs { out = out + type_of(x) + "," }
out`
	cfg := LoadConfig()
	cfg.CacheEnabled = true
	on, err := NewSessionWith(cfg).Eval(src)
	if err != nil {
		t.Fatal(err)
	}
	cfg.CacheEnabled = false
	off, err := NewSessionWith(cfg).Eval(src)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(on, off) {
		t.Fatalf("cache toggling changed results: %s vs %s", FormatValue(on), FormatValue(off))
	}
}
