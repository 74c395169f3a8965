package db

import (
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestFormatTime_SortsLexically(t *testing.T) {
	a := time.Date(2021, 5, 1, 9, 0, 0, 5, time.UTC)
	b := time.Date(2021, 5, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	c := time.Date(2021, 5, 1, 9, 30, 0, 0, time.UTC)

	fa, fb, fc := FormatTime(a), FormatTime(b), FormatTime(c)
	// b is 09:00:00 UTC, five nanoseconds before a.
	if !(fb < fa && fa < fc) {
		t.Errorf("unexpected order: %s %s %s", fa, fb, fc)
	}

	back, err := ParseTime(fa)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !back.Equal(a) {
		t.Errorf("ParseTime = %v; want %v", back, a)
	}
}

func TestSQLiteErr(t *testing.T) {
	if SQLiteErr(nil) != nil {
		t.Error("nil should stay nil")
	}
	if !errors.Is(SQLiteErr(sql.ErrNoRows), ErrNotFound) {
		t.Error("ErrNoRows should map to ErrNotFound")
	}
	other := errors.New("disk I/O error")
	if SQLiteErr(other) != other {
		t.Error("unknown errors pass through")
	}
}

func TestCheckID(t *testing.T) {
	id := NewID()
	got, err := CheckID(id)
	if err != nil || got != id {
		t.Errorf("CheckID(%q) = %q, %v", id, got, err)
	}
	if _, err := CheckID("not-an-id"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("CheckID(garbage) err = %v; want ErrInvalidID", err)
	}
}

func TestObjectIDFromHex(t *testing.T) {
	if _, err := ObjectIDFromHex("507f1f77bcf86cd799439011"); err != nil {
		t.Errorf("valid hex: %v", err)
	}
	if _, err := ObjectIDFromHex("507f1f77"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("short hex err = %v; want ErrInvalidID", err)
	}
}
