package hashtable

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestSetGetDelete_NoTTL(t *testing.T) {
	tbl := New()

	type row struct {
		k string
		v string
	}
	data := []row{
		{"name", "Hervé"},
		{"city", "Mazaugues"},
		{"job", "Dev web"},
		{"hello", "world"},
	}

	for _, r := range data {
		tbl.Set(r.k, r.v)
	}
	if got := tbl.Stats().Count; got != len(data) {
		t.Fatalf("Count = %d, want %d", got, len(data))
	}

	for _, r := range data {
		got, ok := tbl.Get(r.k)
		if !ok || got != r.v {
			t.Fatalf("Get(%q) = (%q,%v), want (%q,true)", r.k, got, ok, r.v)
		}
	}

	if _, ok := tbl.Get("unknown"); ok {
		t.Fatalf("Get(unknown) ok, want absent")
	}

	if !tbl.Delete("city") {
		t.Fatalf("Delete(city) = false, want true")
	}
	if _, ok := tbl.Get("city"); ok {
		t.Fatalf("Get(city) ok after delete")
	}
	if tbl.Delete("city") {
		t.Fatalf("second Delete(city) = true, want false")
	}
	if tbl.Delete("unknown") {
		t.Fatalf("Delete(unknown) = true, want false")
	}
	if got := tbl.Stats().Count; got != len(data)-1 {
		t.Fatalf("Count after delete = %d, want %d", got, len(data)-1)
	}
}

func TestOverwriteKeepsCount(t *testing.T) {
	tbl := New()
	tbl.Set("x", "one")
	tbl.Set("x", "two")
	if got := tbl.Stats().Count; got != 1 {
		t.Fatalf("Count after overwrite = %d, want 1", got)
	}
	if v, ok := tbl.Get("x"); !ok || v != "two" {
		t.Fatalf("Get(x) = %q,%v want two,true", v, ok)
	}
}

func TestTTLExpiry(t *testing.T) {
	clk := clock.NewMock()
	tbl := New(WithDefaultTTL(50*time.Millisecond), WithClock(clk))

	tbl.Set("k", "v")
	if v, ok := tbl.Get("k"); !ok || v != "v" {
		t.Fatalf("fresh key with TTL should be readable, got %q,%v", v, ok)
	}

	clk.Add(60 * time.Millisecond)
	if _, ok := tbl.Get("k"); ok {
		t.Fatalf("expected key to expire")
	}
	if got := tbl.Stats().Count; got != 0 {
		t.Fatalf("Count after lazy expiry = %d, want 0", got)
	}
}

func TestTTLNotYetElapsed(t *testing.T) {
	clk := clock.NewMock()
	tbl := New(WithDefaultTTL(50*time.Millisecond), WithClock(clk))

	tbl.Set("k", "v")
	clk.Add(50 * time.Millisecond)
	if _, ok := tbl.Get("k"); !ok {
		t.Fatalf("key must stay readable until its deadline has passed")
	}
}

func TestOverwriteRefreshesTTL(t *testing.T) {
	clk := clock.NewMock()
	tbl := New(WithDefaultTTL(50*time.Millisecond), WithClock(clk))

	tbl.Set("k", "v")
	clk.Add(40 * time.Millisecond)
	tbl.Set("k", "v") // same value still refreshes
	clk.Add(40 * time.Millisecond)

	if v, ok := tbl.Get("k"); !ok || v != "v" {
		t.Fatalf("Get(k) = %q,%v after refresh, want v,true", v, ok)
	}

	clk.Add(20 * time.Millisecond)
	if _, ok := tbl.Get("k"); ok {
		t.Fatalf("expected key to expire 50ms after the last set")
	}
}

func TestDeleteExpiredReturnsTrue(t *testing.T) {
	clk := clock.NewMock()
	tbl := New(WithDefaultTTL(10*time.Millisecond), WithClock(clk))

	tbl.Set("k", "v")
	clk.Add(time.Second)
	if !tbl.Delete("k") {
		t.Fatalf("Delete of an expired but unswept key = false, want true")
	}
	if got := tbl.Stats().Count; got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
}

func TestResizePreservesData(t *testing.T) {
	var resized [][2]int
	tbl := New(WithSize(4), WithResizeHook(func(oldSize, newSize, _ int) {
		resized = append(resized, [2]int{oldSize, newSize})
	}))

	want := map[string]string{"alpha": "1", "beta": "2", "gamma": "3"}
	for k, v := range want {
		tbl.Set(k, v)
	}

	if got := tbl.Stats().Size; got != 8 {
		t.Fatalf("Size = %d, want 8", got)
	}
	if len(resized) != 1 || resized[0] != [2]int{4, 8} {
		t.Fatalf("resize hook calls = %v, want [[4 8]]", resized)
	}
	for k, v := range want {
		if got, ok := tbl.Get(k); !ok || got != v {
			t.Fatalf("Get(%q) = (%q,%v) after resize, want (%q,true)", k, got, ok, v)
		}
	}
	if got := tbl.Stats().Count; got != 3 {
		t.Fatalf("Count = %d, want 3", got)
	}
}

func TestResizeDropsExpiredKeepsDeadlines(t *testing.T) {
	clk := clock.NewMock()
	dropped := -1
	tbl := New(
		WithSize(4),
		WithDefaultTTL(100*time.Millisecond),
		WithClock(clk),
		WithResizeHook(func(_, _, d int) { dropped = d }),
	)

	tbl.Set("a", "1")
	tbl.Set("b", "2")
	clk.Add(150 * time.Millisecond) // a and b are now expired
	tbl.Set("c", "3")               // 3/4 > 0.7 triggers resize

	if dropped != 2 {
		t.Fatalf("dropped during resize = %d, want 2", dropped)
	}
	st := tbl.Stats()
	if st.Size != 8 || st.Count != 1 {
		t.Fatalf("Stats = %+v, want Size=8 Count=1", st)
	}

	// c was set at t=150ms; its deadline must survive the rehash untouched.
	clk.Add(90 * time.Millisecond)
	if _, ok := tbl.Get("c"); !ok {
		t.Fatalf("c expired too early after resize")
	}
	clk.Add(20 * time.Millisecond)
	if _, ok := tbl.Get("c"); ok {
		t.Fatalf("c outlived its deadline after resize")
	}
}

func TestTableOnlyGrows(t *testing.T) {
	tbl := New(WithSize(2))
	for i := 0; i < 20; i++ {
		tbl.Set(fmt.Sprintf("k%d", i), "v")
	}
	size := tbl.Stats().Size
	for i := 0; i < 20; i++ {
		tbl.Delete(fmt.Sprintf("k%d", i))
	}
	if got := tbl.Stats().Size; got != size {
		t.Fatalf("Size after deletes = %d, want %d", got, size)
	}
	if got := tbl.Stats().LoadFactor; got > MaxLoadFactor {
		t.Fatalf("LoadFactor = %v, want <= %v", got, MaxLoadFactor)
	}
}

func TestKeysSweepsExpired(t *testing.T) {
	clk := clock.NewMock()
	var expired []string
	tbl := New(
		WithSize(64),
		WithDefaultTTL(50*time.Millisecond),
		WithClock(clk),
		WithExpireHook(func(k string) { expired = append(expired, k) }),
	)

	tbl.Set("old1", "v")
	tbl.Set("old2", "v")
	clk.Add(40 * time.Millisecond)
	tbl.Set("fresh", "v")
	clk.Add(20 * time.Millisecond)

	// Stats never sweeps.
	if got := tbl.Stats().Count; got != 3 {
		t.Fatalf("Count before Keys = %d, want 3", got)
	}

	keys := tbl.Keys()
	if !slices.Equal(keys, []string{"fresh"}) {
		t.Fatalf("Keys() = %v, want [fresh]", keys)
	}
	if got := tbl.Stats().Count; got != 1 {
		t.Fatalf("Count after Keys = %d, want 1", got)
	}
	slices.Sort(expired)
	if !slices.Equal(expired, []string{"old1", "old2"}) {
		t.Fatalf("expire hook saw %v, want [old1 old2]", expired)
	}
}

func TestKeysBucketOrder(t *testing.T) {
	tbl := New()
	// "ab" and "ba" collide under the additive hash and keep insertion order.
	tbl.Set("ba", "1")
	tbl.Set("ab", "2")
	tbl.Set("a", "3")

	keys := tbl.Keys()
	if !slices.Equal(keys, []string{"a", "ba", "ab"}) {
		t.Fatalf("Keys() = %v, want [a ba ab]", keys)
	}
}

func TestClear(t *testing.T) {
	tbl := New(WithSize(4))
	for i := 0; i < 10; i++ {
		tbl.Set(fmt.Sprintf("k%d", i), "v")
	}
	size := tbl.Stats().Size

	tbl.Clear()

	st := tbl.Stats()
	if st.Count != 0 || st.Size != size || st.LoadFactor != 0 {
		t.Fatalf("Stats after Clear = %+v, want Count=0 Size=%d", st, size)
	}
	if keys := tbl.Keys(); len(keys) != 0 {
		t.Fatalf("Keys() after Clear = %v, want empty", keys)
	}
	tbl.Set("k1", "again")
	if v, ok := tbl.Get("k1"); !ok || v != "again" {
		t.Fatalf("Get(k1) after Clear+Set = %q,%v", v, ok)
	}
}

func TestStats(t *testing.T) {
	tbl := New(WithDefaultTTL(time.Minute))
	tbl.Set("a", "1")
	tbl.Set("b", "2")

	st := tbl.Stats()
	if st.Size != DefaultSize || st.Count != 2 || st.LoadFactor != 0.25 || st.DefaultTTL != time.Minute {
		t.Fatalf("Stats = %+v", st)
	}
}

func TestAlternativeHashers(t *testing.T) {
	for _, name := range []string{"additive", "fnv", "murmur3", "xxhash"} {
		h, err := HasherByName(name)
		if err != nil {
			t.Fatalf("HasherByName(%q): %v", name, err)
		}
		tbl := New(WithHasher(h), WithSize(3))
		for i := 0; i < 100; i++ {
			tbl.Set(fmt.Sprintf("user_%d", i), fmt.Sprint(i))
		}
		for i := 0; i < 100; i++ {
			k := fmt.Sprintf("user_%d", i)
			if v, ok := tbl.Get(k); !ok || v != fmt.Sprint(i) {
				t.Fatalf("%s: Get(%q) = %q,%v", name, k, v, ok)
			}
		}
		if got := len(tbl.Keys()); got != 100 {
			t.Fatalf("%s: len(Keys()) = %d, want 100", name, got)
		}
	}
}
