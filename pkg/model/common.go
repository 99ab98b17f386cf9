// Package model 定义行程规划引擎的核心数据模型
package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// 行程规划通用常量
const (
	// WalkingSpeedKmh 步行速度（公里/小时）
	WalkingSpeedKmh = 4.0

	// DateFormat 日期格式
	DateFormat = "2006-01-02"

	// ClockFormat 时刻格式
	ClockFormat = "15:04"
)

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Location 地理位置
type Location struct {
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HasCoordinates 检查位置是否有有效坐标
// 纬度和经度同时为零视为坐标缺失
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// Distance 计算两个位置之间的距离（公里）
// 使用 Haversine 公式
func (l Location) Distance(other Location) float64 {
	const earthRadius = 6371.0 // 地球半径（公里）

	lat1Rad := l.Latitude * math.Pi / 180
	lat2Rad := other.Latitude * math.Pi / 180
	deltaLat := (other.Latitude - l.Latitude) * math.Pi / 180
	deltaLon := (other.Longitude - l.Longitude) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// ClockPeriod 一天内的时刻区间（"15:04" 格式）
type ClockPeriod struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Contains 检查某时刻是否落在区间内（含开始，不含结束）
func (p ClockPeriod) Contains(clock string) bool {
	t, err := time.Parse(ClockFormat, clock)
	if err != nil {
		return false
	}
	open, err1 := time.Parse(ClockFormat, p.Open)
	close, err2 := time.Parse(ClockFormat, p.Close)
	if err1 != nil || err2 != nil {
		return false
	}
	return !t.Before(open) && t.Before(close)
}

// WalkingHours 按步行速度把距离换算为小时
func WalkingHours(distanceKm float64) float64 {
	return distanceKm / WalkingSpeedKmh
}

// WeekdayOfTrip 计算行程第 dayIndex 天（从0开始）的星期几
// 返回值与 time.Weekday 一致：0=周日
func WeekdayOfTrip(startDate string, dayIndex int) int {
	t, err := time.Parse(DateFormat, startDate)
	if err != nil {
		return -1
	}
	return int(t.AddDate(0, 0, dayIndex).Weekday())
}

// DateOfTrip 计算行程第 dayIndex 天的日期字符串
func DateOfTrip(startDate string, dayIndex int) string {
	t, err := time.Parse(DateFormat, startDate)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, dayIndex).Format(DateFormat)
}

// ClockOf 返回时间点的 "15:04" 时刻
func ClockOf(t time.Time) string {
	return t.Format(ClockFormat)
}
