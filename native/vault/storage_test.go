package vault

import "testing"

func TestOverlayReadsThroughToParent(t *testing.T) {
	parent := newMemKV()
	parent.data["a"] = []byte("one")
	ov := newOverlay(parent)

	v, ok, err := ov.KVGet([]byte("a"))
	if err != nil || !ok || string(v) != "one" {
		t.Fatalf("expected read-through value %q, got %q ok=%v err=%v", "one", v, ok, err)
	}
	if _, ok, _ := ov.KVGet([]byte("missing")); ok {
		t.Fatalf("unexpected hit for missing key")
	}
}

func TestOverlayBuffersUntilFlush(t *testing.T) {
	parent := newMemKV()
	parent.data["a"] = []byte("one")
	ov := newOverlay(parent)

	if err := ov.KVPut([]byte("a"), []byte("two")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := ov.KVPut([]byte("b"), []byte("new")); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Overlay sees the buffered values, the parent does not.
	if v, _, _ := ov.KVGet([]byte("a")); string(v) != "two" {
		t.Fatalf("overlay read got %q", v)
	}
	if string(parent.data["a"]) != "one" {
		t.Fatalf("parent mutated before flush")
	}
	if _, ok := parent.data["b"]; ok {
		t.Fatalf("new key leaked to parent before flush")
	}

	if err := ov.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if string(parent.data["a"]) != "two" || string(parent.data["b"]) != "new" {
		t.Fatalf("flush did not apply buffered writes: %v", parent.data)
	}
}

func TestOverlayDeleteShadowsParent(t *testing.T) {
	parent := newMemKV()
	parent.data["a"] = []byte("one")
	ov := newOverlay(parent)

	if err := ov.KVDelete([]byte("a")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := ov.KVGet([]byte("a")); ok {
		t.Fatalf("deleted key still visible through overlay")
	}
	if _, ok := parent.data["a"]; !ok {
		t.Fatalf("parent deleted before flush")
	}

	if err := ov.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, ok := parent.data["a"]; ok {
		t.Fatalf("delete not applied on flush")
	}
}

func TestOverlayLastMutationWins(t *testing.T) {
	parent := newMemKV()
	ov := newOverlay(parent)

	if err := ov.KVPut([]byte("a"), []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := ov.KVDelete([]byte("a")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ov.KVPut([]byte("a"), []byte("two")); err != nil {
		t.Fatalf("put: %v", err)
	}

	if v, ok, _ := ov.KVGet([]byte("a")); !ok || string(v) != "two" {
		t.Fatalf("expected final value %q, got %q ok=%v", "two", v, ok)
	}
	if err := ov.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if string(parent.data["a"]) != "two" {
		t.Fatalf("expected flushed value %q, got %q", "two", parent.data["a"])
	}
}

func TestOverlayDiscardedWithoutFlush(t *testing.T) {
	parent := newMemKV()
	parent.data["a"] = []byte("one")
	ov := newOverlay(parent)

	if err := ov.KVPut([]byte("a"), []byte("two")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := ov.KVDelete([]byte("a")); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Dropping the overlay is the rollback path; the parent never changed.
	if string(parent.data["a"]) != "one" {
		t.Fatalf("parent mutated without flush")
	}
}
