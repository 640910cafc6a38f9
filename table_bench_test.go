package stable

import (
	"strconv"
	"testing"
)

const benchmarkNumEntries = 1_000

var benchmarkKeys = func() []string {
	keys := make([]string, benchmarkNumEntries)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}
	return keys
}()

func benchmarkTable(b *testing.B) *Table {
	tb := New()
	for i, k := range benchmarkKeys {
		_ = tb.SetNumber(Name(k), float64(i))
		_ = tb.SetNumber(Index(i), float64(i))
	}
	return tb
}

func BenchmarkTable_GetName(b *testing.B) {
	tb := benchmarkTable(b)
	defer tb.Release()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = tb.Number(Name(benchmarkKeys[i%benchmarkNumEntries]))
			i++
		}
	})
}

func BenchmarkTable_GetIndex(b *testing.B) {
	tb := benchmarkTable(b)
	defer tb.Release()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = tb.Number(Index(i % benchmarkNumEntries))
			i++
		}
	})
}

func BenchmarkTable_ReadString(b *testing.B) {
	tb := New()
	defer tb.Release()
	_ = tb.SetString(Name("s"), "some string value")
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		n := 0
		for pb.Next() {
			tb.ReadString(Name("s"), func(b []byte) { n += len(b) })
		}
	})
}

func BenchmarkTable_WarmUp(b *testing.B) {
	for i := 0; i < b.N; i++ {
		tb := benchmarkTable(b)
		tb.Release()
	}
}

func BenchmarkTable_MixedReadWrite(b *testing.B) {
	tb := benchmarkTable(b)
	defer tb.Release()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			k := Name(benchmarkKeys[i%benchmarkNumEntries])
			if i%10 == 0 {
				_ = tb.SetNumber(k, float64(i))
			} else {
				_ = tb.Number(k)
			}
			i++
		}
	})
}
