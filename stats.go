package stable

import (
	"fmt"
	"strings"
)

// Stats returns statistics for the table. The numbers are collected
// without blocking writers, so they may be inconsistent under concurrent
// modification and should be used only for diagnostics or debugging.
func (t *Table) Stats() *TableStats {
	stats := &TableStats{
		Refs:         t.Refs(),
		ArrayGrowths: t.arrayGrowths.Load(),
		MapGrowths:   t.mapGrowths.Load(),
	}
	if a := t.grabArray(); a != nil {
		stats.ArrayCap = len(a.slots)
		for i := range a.slots {
			if a.slots[i].load().kind != KindNil {
				stats.ArrayEntries++
			}
		}
		a.release()
	}
	if m := t.grabMap(); m != nil {
		stats.Buckets = len(m.buckets)
		for i := range m.buckets {
			depth := 0
			for n := (*node)(loadPtr(&m.buckets[i])); n != nil; n = n.next {
				depth++
			}
			stats.MapEntries += depth
			if depth == 0 {
				stats.EmptyBuckets++
			}
			stats.MaxDepth = max(stats.MaxDepth, depth)
		}
		m.release()
	}
	return stats
}

// TableStats is Table statistics.
//
// Warning: table statistics are intended to be used for diagnostic
// purposes, not for production code.
type TableStats struct {
	// Refs is the reference count of the table.
	Refs int
	// ArrayCap is the capacity of the live array part, 0 if none.
	ArrayCap int
	// ArrayEntries is the number of non-nil array slots.
	ArrayEntries int
	// Buckets is the bucket count of the live map part, 0 if none.
	Buckets int
	// EmptyBuckets is the number of buckets without a node.
	EmptyBuckets int
	// MapEntries is the number of nodes in the map part.
	MapEntries int
	// MaxDepth is the length of the longest chain.
	MaxDepth int
	// ArrayGrowths is the number of times the array part was replaced.
	ArrayGrowths uint32
	// MapGrowths is the number of times the map part was rehashed.
	MapGrowths uint32
}

// ToString returns string representation of table stats.
func (s *TableStats) ToString() string {
	var sb strings.Builder
	sb.WriteString("TableStats{\n")
	sb.WriteString(fmt.Sprintf("Refs:         %d\n", s.Refs))
	sb.WriteString(fmt.Sprintf("ArrayCap:     %d\n", s.ArrayCap))
	sb.WriteString(fmt.Sprintf("ArrayEntries: %d\n", s.ArrayEntries))
	sb.WriteString(fmt.Sprintf("Buckets:      %d\n", s.Buckets))
	sb.WriteString(fmt.Sprintf("EmptyBuckets: %d\n", s.EmptyBuckets))
	sb.WriteString(fmt.Sprintf("MapEntries:   %d\n", s.MapEntries))
	sb.WriteString(fmt.Sprintf("MaxDepth:     %d\n", s.MaxDepth))
	sb.WriteString(fmt.Sprintf("ArrayGrowths: %d\n", s.ArrayGrowths))
	sb.WriteString(fmt.Sprintf("MapGrowths:   %d\n", s.MapGrowths))
	sb.WriteString("}\n")
	return sb.String()
}
