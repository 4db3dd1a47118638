package resolve

import "testing"

func testIndex() *Index {
	return NewIndex(
		Entry{Kind: KindActor, ID: "u1", Name: "alice", Identifier: "U100", Sequence: 1},
		Entry{Kind: KindActor, ID: "u2", Name: "john smith", Sequence: 2},
		Entry{Kind: KindActor, ID: "u3", Name: "smith", Sequence: 3},
		Entry{Kind: KindActor, ID: "u4", Name: "bob", Aliases: []string{"bobby", "rob"}, Sequence: 4},
		Entry{Kind: KindItem, ID: "i1", Name: "brass lamp", Sequence: 5},
		Entry{Kind: KindItem, ID: "i2", Name: "lamp", Sequence: 6},
		Entry{Kind: KindBeverage, ID: "b1", Name: "black coffee", Sequence: 7},
	)
}

func TestResolveExactName(t *testing.T) {
	r := New(nil)
	got, ok := r.Resolve("alice", KindActor, testIndex())
	if !ok || got.ID != "u1" {
		t.Fatalf("got %+v ok=%v, want u1", got, ok)
	}
}

func TestResolveLongestMatchWins(t *testing.T) {
	r := New(nil)
	got, ok := r.Resolve("give it to john smith please", KindActor, testIndex())
	if !ok {
		t.Fatal("expected a match")
	}
	if got.ID != "u2" {
		t.Fatalf("expected john smith (u2) to beat smith, got %s", got.ID)
	}
}

func TestResolveAlias(t *testing.T) {
	r := New(nil)
	got, ok := r.Resolve("hand it to bobby", KindActor, testIndex())
	if !ok || got.ID != "u4" {
		t.Fatalf("got %+v ok=%v, want u4 via alias", got, ok)
	}
}

func TestResolveIdentifier(t *testing.T) {
	r := New(nil)
	got, ok := r.Resolve("<@U100>", KindActor, testIndex())
	if !ok || got.ID != "u1" {
		t.Fatalf("got %+v ok=%v, want u1 via identifier", got, ok)
	}
}

func TestResolveReservedNeverMatches(t *testing.T) {
	r := New([]string{"alice"})
	if got, ok := r.Resolve("alice", KindActor, testIndex()); ok {
		t.Fatalf("reserved identifier resolved to %+v", got)
	}
	// Other fragments in the same text still resolve.
	got, ok := r.Resolve("alice give it to bob", KindActor, testIndex())
	if !ok || got.ID != "u4" {
		t.Fatalf("got %+v ok=%v, want u4", got, ok)
	}
}

func TestResolveKindScoped(t *testing.T) {
	r := New(nil)
	got, ok := r.Resolve("steal the lamp", KindItem, testIndex())
	if !ok || got.Kind != KindItem {
		t.Fatalf("got %+v ok=%v, want an item", got, ok)
	}
	if _, ok := r.Resolve("lamp", KindBeverage, testIndex()); ok {
		t.Fatal("lamp should not resolve as a beverage")
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := New(nil)
	if got, ok := r.Resolve("xylophone quartet", KindAny, testIndex()); ok {
		t.Fatalf("expected no match, got %+v", got)
	}
	if _, ok := r.Resolve("", KindAny, testIndex()); ok {
		t.Fatal("empty fragment should not match")
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := New(nil)
	first, ok := r.Resolve("smith and smith", KindActor, testIndex())
	if !ok {
		t.Fatal("expected a match")
	}
	for i := 0; i < 20; i++ {
		got, ok := r.Resolve("smith and smith", KindActor, testIndex())
		if !ok || got.ID != first.ID {
			t.Fatalf("iteration %d resolved %+v, want %s", i, got, first.ID)
		}
	}
}

func TestResolveEqualLengthTieBreak(t *testing.T) {
	// "mary" and "jane" are equal-length exact matches; the older entry wins.
	ix := NewIndex(
		Entry{Kind: KindActor, ID: "a", Name: "mary", Sequence: 1},
		Entry{Kind: KindActor, ID: "b", Name: "jane", Sequence: 2},
	)
	r := New(nil)
	got, ok := r.Resolve("mary jane", KindActor, ix)
	if !ok || got.ID != "a" {
		t.Fatalf("got %+v ok=%v, want earlier entry a", got, ok)
	}
}

func TestResolveFuzzyFallback(t *testing.T) {
	r := New(nil)
	got, ok := r.Resolve("blakcoffee", KindBeverage, testIndex())
	if !ok || got.ID != "b1" {
		t.Fatalf("got %+v ok=%v, want fuzzy match b1", got, ok)
	}
	if _, ok := r.Resolve("entirely wrong", KindBeverage, testIndex()); ok {
		t.Fatal("fuzzy stage should respect the distance limit")
	}
}

func TestResolveStripsMentionsAndAt(t *testing.T) {
	r := New(nil)
	got, ok := r.Resolve("@bob", KindActor, testIndex())
	if !ok || got.ID != "u4" {
		t.Fatalf("got %+v ok=%v, want u4", got, ok)
	}
}
