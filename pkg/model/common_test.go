package model

import (
	"math"
	"testing"
)

func TestLocation_Distance(t *testing.T) {
	// 东京塔到浅草寺，约 8.2 公里
	tower := Location{Latitude: 35.6586, Longitude: 139.7454}
	sensoji := Location{Latitude: 35.7148, Longitude: 139.7967}

	d := tower.Distance(sensoji)
	if d < 7.5 || d > 9.0 {
		t.Errorf("Distance = %.2f km, want ~8.2 km", d)
	}

	// 对称性
	if back := sensoji.Distance(tower); math.Abs(back-d) > 1e-9 {
		t.Errorf("Distance not symmetric: %.6f vs %.6f", d, back)
	}

	// 自身距离为零
	if self := tower.Distance(tower); self != 0 {
		t.Errorf("Self distance = %f, want 0", self)
	}
}

func TestLocation_HasCoordinates(t *testing.T) {
	if (Location{}).HasCoordinates() {
		t.Error("Zero location should not have coordinates")
	}
	if !(Location{Latitude: 35.6586, Longitude: 139.7454}).HasCoordinates() {
		t.Error("Valid location should have coordinates")
	}
}

func TestClockPeriod_Contains(t *testing.T) {
	p := ClockPeriod{Open: "09:00", Close: "17:00"}

	cases := []struct {
		clock string
		want  bool
	}{
		{"09:00", true},  // 含开始
		{"12:30", true},
		{"16:59", true},
		{"17:00", false}, // 不含结束
		{"08:59", false},
		{"20:00", false},
	}

	for _, c := range cases {
		if got := p.Contains(c.clock); got != c.want {
			t.Errorf("Contains(%s) = %v, want %v", c.clock, got, c.want)
		}
	}
}

func TestWeekdayOfTrip(t *testing.T) {
	// 2026-09-06 是周日
	if wd := WeekdayOfTrip("2026-09-06", 0); wd != 0 {
		t.Errorf("Weekday of day 0 = %d, want 0 (Sunday)", wd)
	}
	if wd := WeekdayOfTrip("2026-09-06", 2); wd != 2 {
		t.Errorf("Weekday of day 2 = %d, want 2 (Tuesday)", wd)
	}
}

func TestWalkingHours(t *testing.T) {
	if h := WalkingHours(2.0); math.Abs(h-0.5) > 1e-9 {
		t.Errorf("WalkingHours(2.0) = %f, want 0.5", h)
	}
}

func TestPace_Budgets(t *testing.T) {
	cases := []struct {
		pace   Pace
		hours  float64
		buffer float64
	}{
		{PaceRelaxed, 6.0, 1.5},
		{PaceNormal, 7.5, 1.0},
		{PacePacked, 9.0, 0.5},
		{Pace(""), 7.5, 1.0}, // 未指定时为正常节奏
	}

	for _, c := range cases {
		if got := c.pace.HoursPerDay(); got != c.hours {
			t.Errorf("%s HoursPerDay = %f, want %f", c.pace, got, c.hours)
		}
		if got := c.pace.WalkingBufferHours(); got != c.buffer {
			t.Errorf("%s WalkingBufferHours = %f, want %f", c.pace, got, c.buffer)
		}
	}
}

func TestDayBudgetHours_WalkingBuffer(t *testing.T) {
	prefs := DefaultPreferences()
	if got := prefs.DayBudgetHours(); got != 7.5 {
		t.Errorf("无固定起止点时预算 = %f, want 7.5", got)
	}

	// 固定起止点占用的首末段步行从预算里扣除
	prefs.Start = &Location{Name: "酒店", Latitude: 35.68, Longitude: 139.76}
	if got := prefs.DayBudgetHours(); got != 6.5 {
		t.Errorf("固定出发点时预算 = %f, want 6.5", got)
	}

	prefs.Start = nil
	prefs.End = &Location{Name: "酒店"}
	if got := prefs.DayBudgetHours(); got != 6.5 {
		t.Errorf("固定终点时预算 = %f, want 6.5", got)
	}

	prefs.Pace = PaceRelaxed
	if got := prefs.DayBudgetHours(); got != 4.5 {
		t.Errorf("轻松节奏固定终点时预算 = %f, want 4.5", got)
	}
}
