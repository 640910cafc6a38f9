package stable

import (
	"strconv"
	"testing"
)

// collidingKeys returns n distinct keys that share one bucket under mask.
func collidingKeys(n int, mask uint32) []string {
	var keys []string
	var want uint32
	for i := 0; len(keys) < n; i++ {
		k := "key" + strconv.Itoa(i)
		h := hashKey(k) & mask
		if len(keys) == 0 {
			want = h
		}
		if h == want {
			keys = append(keys, k)
		}
	}
	return keys
}

func TestHashKey(t *testing.T) {
	if h := hashKey(""); h != 0 {
		t.Fatalf("hashKey(\"\") = %d", h)
	}
	// h = 1; h ^= (1<<5) + (1>>2) + 'a'
	if h := hashKey("a"); h != 128 {
		t.Fatalf("hashKey(\"a\") = %d", h)
	}
	if hashKey("alpha") != hashKey("alpha") {
		t.Fatal("hash must be deterministic")
	}
}

func TestMapRehashOnDeepChain(t *testing.T) {
	tb := New()
	defer tb.Release()

	keys := collidingKeys(maxHashDepth+1, minMapBuckets-1)
	for i, k := range keys[:maxHashDepth] {
		if err := tb.SetNumber(Name(k), float64(i)); err != nil {
			t.Fatal(err)
		}
	}
	stats := tb.Stats()
	if stats.Buckets != minMapBuckets || stats.MaxDepth != maxHashDepth || stats.MapGrowths != 0 {
		t.Fatalf("unexpected stats before rehash:\n%s", stats.ToString())
	}

	if err := tb.SetNumber(Name(keys[maxHashDepth]), maxHashDepth); err != nil {
		t.Fatal(err)
	}
	stats = tb.Stats()
	if stats.Buckets != minMapBuckets*2 || stats.MapGrowths != 1 || stats.MapEntries != len(keys) {
		t.Fatalf("unexpected stats after rehash:\n%s", stats.ToString())
	}
	for i, k := range keys {
		if got := tb.Number(Name(k)); got != float64(i) {
			t.Fatalf("%s = %v after rehash", k, got)
		}
	}
}

func TestMapManyKeys(t *testing.T) {
	const n = 10000
	tb := New()
	defer tb.Release()

	for i := 0; i < n; i++ {
		if err := tb.SetNumber(Name(strconv.Itoa(i)), float64(i)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < n; i++ {
		if got := tb.Number(Name(strconv.Itoa(i))); got != float64(i) {
			t.Fatalf("%d = %v", i, got)
		}
	}
	stats := tb.Stats()
	if stats.MapEntries != n {
		t.Fatalf("map entries: %d", stats.MapEntries)
	}
	if stats.Buckets&(stats.Buckets-1) != 0 {
		t.Fatalf("bucket count is not a power of two: %d", stats.Buckets)
	}
	t.Log(stats.ToString())
}

func TestMapRehashSharesKeySlots(t *testing.T) {
	tb := New()
	defer tb.Release()

	keys := collidingKeys(maxHashDepth+1, minMapBuckets-1)
	_ = tb.SetNumber(Name(keys[0]), 0)
	old := tb.hash.Load()
	slot := old.find(keys[0], hashKey(keys[0])).key
	for _, k := range keys[1:] {
		_ = tb.SetNumber(Name(k), 1)
	}
	m := tb.hash.Load()
	if m == old {
		t.Fatal("expected a rehash")
	}
	if n := m.find(keys[0], hashKey(keys[0])); n == nil || n.key != slot {
		t.Fatal("rehash must reuse the key slot")
	}
	if slot.ref.Load() != 1 {
		t.Fatalf("key slot refs: %d", slot.ref.Load())
	}
}
