package stable

import (
	"errors"
	"testing"
)

func TestNestedOwnershipTransfer(t *testing.T) {
	root := New()
	defer root.Release()

	sub := New()
	_ = sub.SetString(Name("name"), "sub")
	if err := root.SetTable(Name("child"), sub); err != nil {
		t.Fatal(err)
	}
	if sub.Refs() != 1 {
		t.Fatalf("parent must take over the caller's reference: %d", sub.Refs())
	}

	got := root.Table(Name("child"))
	if got != sub {
		t.Fatal("nested table mismatch")
	}
	if got.Text(Name("name")) != "sub" {
		t.Fatal("nested table lost its content")
	}
}

func TestNestedRetainedByCaller(t *testing.T) {
	root := New()
	sub := New()
	sub.Retain()
	if err := root.SetTable(Index(0), sub); err != nil {
		t.Fatal(err)
	}
	sub.Release()
	if root.Table(Index(0)) != sub || sub.Refs() != 1 {
		t.Fatalf("sub must stay alive through its parent: refs=%d", sub.Refs())
	}

	// keep sub past the parent's lifetime
	sub.Retain()
	root.Release()
	if sub.Refs() != 1 {
		t.Fatalf("refs after parent release: %d", sub.Refs())
	}
	_ = sub.SetNumber(Name("n"), 1)
	sub.Release()
}

func TestNestedReplaceReleasesPrevious(t *testing.T) {
	root := New()
	defer root.Release()

	first := New()
	first.Retain()
	_ = root.SetTable(Name("t"), first)
	if first.Refs() != 2 {
		t.Fatalf("refs: %d", first.Refs())
	}

	second := New()
	if err := root.SetTable(Name("t"), second); err != nil {
		t.Fatal(err)
	}
	if first.Refs() != 1 {
		t.Fatalf("replaced table still owned by parent: %d", first.Refs())
	}
	first.Release()

	// storing the same table again hands over another reference
	second.Retain()
	if err := root.SetTable(Name("t"), second); err != nil {
		t.Fatal(err)
	}
	if second.Refs() != 1 {
		t.Fatalf("refs after re-store: %d", second.Refs())
	}
}

func TestNestedConflictKeepsCallerReference(t *testing.T) {
	root := New()
	defer root.Release()

	_ = root.SetNumber(Name("n"), 1)
	sub := New()
	err := root.SetTable(Name("n"), sub)
	if !errors.Is(err, ErrTypeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if sub.Refs() != 1 {
		t.Fatalf("refs after refused store: %d", sub.Refs())
	}
	if root.Number(Name("n")) != 1 {
		t.Fatal("value changed after conflict")
	}
	sub.Release()
}

func TestNestedDeepTree(t *testing.T) {
	root := New()
	cur := root
	for i := 0; i < 100; i++ {
		next := New()
		_ = next.SetNumber(Name("depth"), float64(i+1))
		_ = cur.SetTable(Name("next"), next)
		cur = next
	}

	cur = root
	for i := 0; i < 100; i++ {
		cur = cur.Table(Name("next"))
		if cur.Number(Name("depth")) != float64(i+1) {
			t.Fatalf("depth %d mismatch", i+1)
		}
	}
	cur.Retain()
	root.Release()
	if cur.Refs() != 1 {
		t.Fatalf("leaf refs after tree release: %d", cur.Refs())
	}
	cur.Release()
}
