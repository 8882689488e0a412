package services

import (
	"testing"
)

func TestParseHistory_ArrayAndWrapped(t *testing.T) {
	array := []byte(`[{"local_id":"loc-1","title":"Notes","messages":[]}]`)
	items, err := parseHistory(array)
	if err != nil || len(items) != 1 || items[0].LocalID != "loc-1" {
		t.Fatalf("array form: %v %+v", err, items)
	}

	wrapped := []byte(`{"conversations":[{"local_id":"loc-2","title":"Other"}]}`)
	items, err = parseHistory(wrapped)
	if err != nil || len(items) != 1 || items[0].LocalID != "loc-2" {
		t.Fatalf("wrapped form: %v %+v", err, items)
	}
}

func TestParseHistory_Garbage(t *testing.T) {
	if _, err := parseHistory([]byte(`[{"local_id": "loc-1"`)); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}

func TestRecoverObjects_SalvagesWellFormedObjects(t *testing.T) {
	// A truncated array: the first object is intact, the second is cut off.
	payload := []byte(`[{"local_id":"loc-1","title":"ok"},{"local_id":"loc-2","tit`)

	objects := recoverObjects(payload)
	if len(objects) != 1 {
		t.Fatalf("want 1 salvaged object, got %d", len(objects))
	}
	if string(objects[0]) != `{"local_id":"loc-1","title":"ok"}` {
		t.Fatalf("unexpected object: %s", objects[0])
	}
}

func TestRecoverObjects_IgnoresBracesInsideStrings(t *testing.T) {
	payload := []byte(`garbage {"local_id":"loc-1","title":"a } in \" a { string"} trailing`)

	objects := recoverObjects(payload)
	if len(objects) != 1 {
		t.Fatalf("want 1 object, got %d: %q", len(objects), objects)
	}
}

func TestRecoverObjects_NestedObjects(t *testing.T) {
	payload := []byte(`x{"local_id":"loc-1","messages":[{"role":"user","content":"hi"}]}y`)

	objects := recoverObjects(payload)
	if len(objects) != 1 {
		t.Fatalf("want 1 top-level object, got %d", len(objects))
	}
}

func TestRecoverHistory_DropsNonConversations(t *testing.T) {
	payload := []byte(`{"local_id":"loc-1","title":"keep"} {"unrelated":true} {"role":"user"`)

	items := recoverHistory(payload)
	if len(items) != 1 || items[0].LocalID != "loc-1" {
		t.Fatalf("unexpected salvage: %+v", items)
	}
}

func TestRecoverHistory_NothingSalvageable(t *testing.T) {
	if items := recoverHistory([]byte(`complete garbage, no objects`)); len(items) != 0 {
		t.Fatalf("expected empty salvage, got %+v", items)
	}
}
