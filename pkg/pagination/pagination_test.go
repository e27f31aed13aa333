package pagination

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	encoded := EncodeCursor(Cursor{ID: 42})
	cursor, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if cursor == nil || cursor.ID != 42 {
		t.Fatalf("expected id 42, got %+v", cursor)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("empty cursor should be nil, got %+v err=%v", c, err)
	}
	if _, err := ParseCursor("!!!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseCursor(EncodeCursor(Cursor{ID: 0})); err == nil {
		t.Fatal("expected non-positive id to be rejected")
	}
}

func TestNormalizeLimit(t *testing.T) {
	if NormalizeLimit(0) != DefaultLimit {
		t.Fatal("zero limit should use default")
	}
	if NormalizeLimit(1000) != MaxLimit {
		t.Fatal("limit should be capped")
	}
	if LimitWithBuffer(10) != 11 {
		t.Fatal("buffer should add one")
	}
}
