package dateutil

import (
	"testing"
	"time"
)

func TestDaysBetween_Ceiling(t *testing.T) {
	base := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		b    time.Time
		want int
	}{
		{"same instant", base, 0},
		{"tenth of a day", base.Add(144 * time.Minute), 1},
		{"exact day", base.Add(Day), 1},
		{"55.9 days", base.Add(55*Day + 21*time.Hour + 36*time.Minute), 56},
		{"80 days", base.Add(80 * Day), 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(base, tt.b); got != tt.want {
				t.Errorf("DaysBetween = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDaysBetween_Symmetric(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(10*Day + time.Hour)
	if DaysBetween(a, b) != DaysBetween(b, a) {
		t.Errorf("expected symmetric result, got %d and %d", DaysBetween(a, b), DaysBetween(b, a))
	}
}

func TestDaysUntil_Signed(t *testing.T) {
	asOf := time.Date(2023, 3, 10, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		to   time.Time
		want int
	}{
		{"one day ahead", asOf.Add(Day), 1},
		{"partial day ahead", asOf.Add(2 * time.Hour), 1},
		{"same instant", asOf, 0},
		{"half a day past", asOf.Add(-12 * time.Hour), 0},
		{"one day past", asOf.Add(-Day), -1},
		{"ten days past", asOf.Add(-10 * Day), -10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysUntil(asOf, tt.to); got != tt.want {
				t.Errorf("DaysUntil = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAddDays_Rollover(t *testing.T) {
	got := AddDays(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), 42)
	want := time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("AddDays = %v, want %v", got, want)
	}

	got = AddDays(time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC), 56)
	want = time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("AddDays across year = %v, want %v", got, want)
	}

	got = AddDays(time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), 1)
	if got.Day() != 29 {
		t.Errorf("expected leap day, got %v", got)
	}
}

func TestMaxTime(t *testing.T) {
	if MaxTime() != nil {
		t.Error("expected nil for no times")
	}
	a := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(48 * time.Hour)
	got := MaxTime(a, b, a.Add(time.Hour))
	if got == nil || !got.Equal(b) {
		t.Errorf("MaxTime = %v, want %v", got, b)
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2023-03-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date: %v", got)
	}

	got, err = ParseDate("2023-03-01T10:30:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 10 {
		t.Errorf("expected hour 10, got %d", got.Hour())
	}

	if _, err := ParseDate("01/03/2023"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestParseOptionalDate(t *testing.T) {
	if got, err := ParseOptionalDate(nil); got != nil || err != nil {
		t.Errorf("expected nil, nil; got %v, %v", got, err)
	}
	empty := ""
	if got, err := ParseOptionalDate(&empty); got != nil || err != nil {
		t.Errorf("expected nil, nil for empty; got %v, %v", got, err)
	}
	s := "2024-02-29"
	got, err := ParseOptionalDate(&s)
	if err != nil || got == nil || got.Day() != 29 {
		t.Errorf("unexpected result %v, %v", got, err)
	}
}
