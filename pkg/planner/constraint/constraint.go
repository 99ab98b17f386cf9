// Package constraint 定义行程约束接口和管理器
package constraint

import (
	"time"

	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/pkg/matrix"
	"github.com/xingcheng/xingcheng/pkg/model"
)

// Type 约束类型标识
type Type string

const (
	// 硬约束类型
	TypeOpeningHours   Type = "opening_hours"    // 开放时间
	TypeBookingWindow  Type = "booking_window"   // 预约时段
	TypeComboGroup     Type = "combo_group"      // 联票同日连续
	TypePrecedence     Type = "precedence"       // 先后顺序
	TypeCoherenceOrder Type = "coherence_order"  // 高连贯对顺序
	TypeDayBudget      Type = "day_budget"       // 每日时间预算

	// 软约束类型
	TypeStartProximity Type = "start_proximity" // 首站贴近出发点
	TypeEndProximity   Type = "end_proximity"   // 末站贴近终点
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（尽量满足）
)

// Constraint 约束接口
type Constraint interface {
	// Name 返回约束名称
	Name() string

	// Type 返回约束类型
	Type() Type

	// Category 返回约束类别
	Category() Category

	// Weight 返回约束权重 (1-100)
	Weight() int

	// Evaluate 评估整个行程布局
	// 返回：是否满足、惩罚值、违反详情
	Evaluate(ctx *Context) (valid bool, penalty int, details []ViolationDetail)

	// EvaluateAppend 评估把 POI 追加到某天末尾
	// 返回：是否满足、惩罚值
	EvaluateAppend(ctx *Context, poi *model.POI, day int) (valid bool, penalty int)
}

// ViolationDetail 约束违反详情
type ViolationDetail struct {
	ConstraintType Type      `json:"constraint_type"`
	ConstraintName string    `json:"constraint_name"`
	POIID          uuid.UUID `json:"poi_id,omitempty"`
	Day            int       `json:"day"`
	Message        string    `json:"message"`
	Severity       string    `json:"severity"` // error/warning
	Penalty        int       `json:"penalty"`
}

// Context 规划上下文
// 持有输入数据、矩阵缓存和当前布局；约束只读取，不修改
type Context struct {
	StartDate string              `json:"start_date"` // YYYY-MM-DD
	DayCount  int                 `json:"day_count"`
	Prefs     *model.Preferences  `json:"preferences"`
	Matrix    *matrix.Matrix      `json:"-"`
	POIs      []*model.POI        `json:"pois"`

	// 当前布局：每天的 POI 顺序
	DayOrders [][]uuid.UUID `json:"day_orders"`

	// 索引缓存
	poiMap map[uuid.UUID]*model.POI
}

// NewContext 创建规划上下文
func NewContext(startDate string, dayCount int, prefs *model.Preferences, m *matrix.Matrix, pois []*model.POI) *Context {
	if prefs == nil {
		prefs = model.DefaultPreferences()
	}
	prefs.Normalize()

	return &Context{
		StartDate: startDate,
		DayCount:  dayCount,
		Prefs:     prefs,
		Matrix:    m,
		POIs:      pois,
		DayOrders: make([][]uuid.UUID, dayCount),
		poiMap:    model.POIsByID(pois),
	}
}

// POI 按ID获取 POI
func (c *Context) POI(id uuid.UUID) *model.POI {
	return c.poiMap[id]
}

// SetDayOrders 整体替换布局
func (c *Context) SetDayOrders(orders [][]uuid.UUID) {
	c.DayOrders = orders
}

// Append 把 POI 追加到某天末尾
func (c *Context) Append(day int, id uuid.UUID) {
	c.DayOrders[day] = append(c.DayOrders[day], id)
}

// Clone 拷贝上下文（布局独立，输入数据与矩阵共享）
func (c *Context) Clone() *Context {
	orders := make([][]uuid.UUID, len(c.DayOrders))
	for i, o := range c.DayOrders {
		orders[i] = append([]uuid.UUID(nil), o...)
	}
	return &Context{
		StartDate: c.StartDate,
		DayCount:  c.DayCount,
		Prefs:     c.Prefs,
		Matrix:    c.Matrix,
		POIs:      c.POIs,
		DayOrders: orders,
		poiMap:    c.poiMap,
	}
}

// PlacedDay 返回 POI 所在天，未安排时返回 -1
func (c *Context) PlacedDay(id uuid.UUID) int {
	for day, order := range c.DayOrders {
		for _, pid := range order {
			if pid == id {
				return day
			}
		}
	}
	return -1
}

// GlobalSequence 返回 POI 的全局次序（跨天展开），未安排时返回 -1
func (c *Context) GlobalSequence(id uuid.UUID) int {
	seq := 0
	for _, order := range c.DayOrders {
		for _, pid := range order {
			if pid == id {
				return seq
			}
			seq++
		}
	}
	return -1
}

// Weekday 返回某天的星期几（0=周日）
func (c *Context) Weekday(day int) int {
	return model.WeekdayOfTrip(c.StartDate, day)
}

// StepTime 当天某站的时刻模拟结果
type StepTime struct {
	POIID     uuid.UUID
	Arrival   string  // 步行到达时刻
	Start     string  // 实际开始游览时刻（含等待开放）
	End       string  // 结束时刻
	WaitHours float64 // 等待开放的时长
	WalkKm    float64 // 到达本站的步行距离
	Open      bool    // 到达后当天是否还有可用开放时段
}

// SimulateDay 模拟某天的时刻推进
// 返回每站时刻、计入预算的总时长（游览+步行，不含等待）、步行总公里数
func (c *Context) SimulateDay(day int) ([]StepTime, float64, float64) {
	order := c.DayOrders[day]
	steps := make([]StepTime, 0, len(order))

	clock, err := time.Parse(model.ClockFormat, c.Prefs.DayStart)
	if err != nil {
		clock, _ = time.Parse(model.ClockFormat, "09:00")
	}

	weekday := c.Weekday(day)
	totalHours := 0.0
	totalWalkKm := 0.0

	var prev *model.POI
	for i, id := range order {
		poi := c.POI(id)
		if poi == nil {
			continue
		}

		walkKm := c.legDistance(prev, poi, i == 0)
		walkHours := model.WalkingHours(walkKm)
		clock = clock.Add(time.Duration(walkHours * float64(time.Hour)))

		step := StepTime{
			POIID:   id,
			Arrival: model.ClockOf(clock),
			WalkKm:  walkKm,
			Open:    true,
		}

		// 开放时间：到达偏早时等待开放
		start := clock
		if poi.OpeningHours != nil {
			openAt := poi.OpeningHours.FirstOpenAt(weekday, model.ClockOf(clock))
			if openAt == "" {
				step.Open = false
			} else if openAt != model.ClockOf(clock) {
				t, _ := time.Parse(model.ClockFormat, openAt)
				step.WaitHours = t.Sub(clock).Hours()
				start = t
			}
		}

		step.Start = model.ClockOf(start)
		end := start.Add(time.Duration(poi.VisitHours * float64(time.Hour)))
		step.End = model.ClockOf(end)

		clock = end
		totalHours += poi.VisitHours + walkHours
		totalWalkKm += walkKm
		prev = poi
		steps = append(steps, step)
	}

	// 配置了固定终点时计入返程步行
	if c.Prefs.End != nil && c.Prefs.End.HasCoordinates() && prev != nil && prev.Location.HasCoordinates() {
		back := prev.Location.Distance(*c.Prefs.End)
		totalHours += model.WalkingHours(back)
		totalWalkKm += back
	}

	return steps, totalHours, totalWalkKm
}

// legDistance 计算进入某站的步行距离
func (c *Context) legDistance(prev, next *model.POI, first bool) float64 {
	if first {
		// 配置了固定出发点时从出发点步行到首站
		if c.Prefs.Start != nil && c.Prefs.Start.HasCoordinates() && next.Location.HasCoordinates() {
			return c.Prefs.Start.Distance(next.Location)
		}
		return 0
	}
	if prev == nil {
		return 0
	}
	return c.Matrix.Distance(prev.ID, next.ID)
}

// DayTotals 返回某天计入预算的总时长与步行公里数
func (c *Context) DayTotals(day int) (hours, walkKm float64) {
	_, hours, walkKm = c.SimulateDay(day)
	return hours, walkKm
}

// Result 约束评估结果
type Result struct {
	IsValid        bool              `json:"is_valid"`
	TotalPenalty   int               `json:"total_penalty"`
	HardViolations []ViolationDetail `json:"hard_violations"`
	SoftViolations []ViolationDetail `json:"soft_violations"`
	Score          float64           `json:"score"` // 0-100
}

// CalculateScore 计算约束满足度得分
func (r *Result) CalculateScore(maxPenalty int) {
	if maxPenalty == 0 {
		r.Score = 100.0
		return
	}
	r.Score = 100.0 * float64(maxPenalty-r.TotalPenalty) / float64(maxPenalty)
	if r.Score < 0 {
		r.Score = 0
	}
}
