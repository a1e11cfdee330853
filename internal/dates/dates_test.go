package dates_test

import (
	"testing"
	"time"

	"planline/internal/dates"
)

func TestClean(t *testing.T) {
	if got := dates.Clean("2024-03-05"); got == nil || *got != "2024-03-05" {
		t.Fatalf("clean valid: %v", got)
	}
	if got := dates.Clean(""); got != nil {
		t.Fatalf("clean empty: %v", *got)
	}
	if got := dates.Clean("05/03/2024"); got != nil {
		t.Fatalf("clean malformed: %v", *got)
	}
	if got := dates.Clean("2024-02-30"); got != nil {
		t.Fatalf("clean impossible date: %v", *got)
	}
}

func TestOrdered(t *testing.T) {
	a, b := "2024-01-01", "2024-01-10"
	if !dates.Ordered(&a, &b) {
		t.Fatal("expected ordered")
	}
	if dates.Ordered(&b, &a) {
		t.Fatal("expected inverted to fail")
	}
	if !dates.Ordered(&a, &a) {
		t.Fatal("equal dates should pass")
	}
	if !dates.Ordered(nil, &b) || !dates.Ordered(&a, nil) || !dates.Ordered(nil, nil) {
		t.Fatal("nil sides should pass")
	}
}

func TestDiffDays(t *testing.T) {
	d, err := dates.DiffDays("2024-01-01", "2024-01-10")
	if err != nil || d != 9 {
		t.Fatalf("diff: %d %v", d, err)
	}
	d, err = dates.DiffDays("2024-01-10", "2024-01-01")
	if err != nil || d != -9 {
		t.Fatalf("negative diff: %d %v", d, err)
	}
	// across a month boundary
	d, err = dates.DiffDays("2024-02-28", "2024-03-01")
	if err != nil || d != 2 {
		t.Fatalf("leap year boundary: %d %v", d, err)
	}
	if _, err := dates.DiffDays("bogus", "2024-01-01"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestAddDays(t *testing.T) {
	got, err := dates.AddDays("2024-01-30", 5)
	if err != nil || got != "2024-02-04" {
		t.Fatalf("add: %s %v", got, err)
	}
	got, err = dates.AddDays("2024-01-05", -10)
	if err != nil || got != "2023-12-26" {
		t.Fatalf("subtract: %s %v", got, err)
	}
}

func TestShiftPtr(t *testing.T) {
	s := "2024-01-01"
	got, err := dates.ShiftPtr(&s, 3)
	if err != nil || got == nil || *got != "2024-01-04" {
		t.Fatalf("shift: %v %v", got, err)
	}
	got, err = dates.ShiftPtr(nil, 3)
	if err != nil || got != nil {
		t.Fatalf("nil passthrough: %v %v", got, err)
	}
}

func TestToday(t *testing.T) {
	now := time.Date(2024, 6, 15, 23, 30, 0, 0, time.UTC)
	if got := dates.Today(now); got != "2024-06-15" {
		t.Fatalf("today: %s", got)
	}
}
