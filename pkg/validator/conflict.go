// Package validator 提供行程文档的不变量验证
package validator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictDuplicatePlacement ConflictType = "duplicate_placement" // POI 被安排多次
	ConflictMissingPOI         ConflictType = "missing_poi"         // 既未安排也未落选
	ConflictPlacedAndRejected  ConflictType = "placed_and_rejected" // 同时出现在行程和落选列表
	ConflictUnknownPOI         ConflictType = "unknown_poi"         // 行程引用了未知 POI
	ConflictComboSplit         ConflictType = "combo_split"         // 联票分组被拆散
	ConflictOpeningHours       ConflictType = "opening_hours"       // 到达时刻不在开放时段
	ConflictOverBudget         ConflictType = "over_budget"         // 超出当天节奏预算
	ConflictTimeOrder          ConflictType = "time_order"          // 当天访问时间乱序或重叠
)

// Conflict 冲突信息
type Conflict struct {
	Type     ConflictType `json:"type"`
	Severity string       `json:"severity"` // error/warning
	POIID    uuid.UUID    `json:"poi_id,omitempty"`
	Day      int          `json:"day"` // -1 表示跨天或与天无关
	Message  string       `json:"message"`
}

// TourValidator 行程验证器
type TourValidator struct {
	config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	CheckOpeningHours bool    // 是否检查开放时间
	CheckBudgets      bool    // 是否检查节奏预算
	BudgetEpsilon     float64 // 预算比较的容差（小时）
}

// DefaultValidatorConfig 返回默认配置
func DefaultValidatorConfig() *ValidatorConfig {
	return &ValidatorConfig{
		CheckOpeningHours: true,
		CheckBudgets:      true,
		BudgetEpsilon:     1e-6,
	}
}

// NewTourValidator 创建行程验证器
func NewTourValidator(config *ValidatorConfig) *TourValidator {
	if config == nil {
		config = DefaultValidatorConfig()
	}
	return &TourValidator{config: config}
}

// Validate 检查行程文档的全部不变量
// pois 是行程应覆盖的全量 POI 元数据
func (v *TourValidator) Validate(tour *model.Tour, pois []*model.POI, prefs *model.Preferences) []Conflict {
	var conflicts []Conflict

	poiMap := model.POIsByID(pois)

	conflicts = append(conflicts, v.checkCoverage(tour, pois, poiMap)...)
	conflicts = append(conflicts, v.checkComboGroups(tour, pois)...)
	conflicts = append(conflicts, v.checkTimeOrder(tour)...)

	if v.config.CheckOpeningHours {
		conflicts = append(conflicts, v.checkOpeningHours(tour, poiMap)...)
	}
	if v.config.CheckBudgets && prefs != nil {
		conflicts = append(conflicts, v.checkBudgets(tour, prefs)...)
	}

	return conflicts
}

// checkCoverage 检查每个 POI 恰好被安排一次或落选一次
func (v *TourValidator) checkCoverage(tour *model.Tour, pois []*model.POI, poiMap map[uuid.UUID]*model.POI) []Conflict {
	var conflicts []Conflict

	placedCount := make(map[uuid.UUID]int)
	for di := range tour.Days {
		for _, visit := range tour.Days[di].Visits {
			placedCount[visit.POIID]++
			if _, known := poiMap[visit.POIID]; !known {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictUnknownPOI,
					Severity: "error",
					POIID:    visit.POIID,
					Day:      di,
					Message:  fmt.Sprintf("第 %d 天引用了未知 POI %s", di+1, visit.POIID),
				})
			}
		}
	}

	for _, poi := range pois {
		count := placedCount[poi.ID]
		rejected := tour.IsRejected(poi.ID)

		switch {
		case count > 1:
			conflicts = append(conflicts, Conflict{
				Type:     ConflictDuplicatePlacement,
				Severity: "error",
				POIID:    poi.ID,
				Day:      -1,
				Message:  fmt.Sprintf("POI %s 被安排了 %d 次", poi.Name, count),
			})
		case count == 1 && rejected:
			conflicts = append(conflicts, Conflict{
				Type:     ConflictPlacedAndRejected,
				Severity: "error",
				POIID:    poi.ID,
				Day:      -1,
				Message:  fmt.Sprintf("POI %s 同时出现在行程和落选列表", poi.Name),
			})
		case count == 0 && !rejected:
			conflicts = append(conflicts, Conflict{
				Type:     ConflictMissingPOI,
				Severity: "error",
				POIID:    poi.ID,
				Day:      -1,
				Message:  fmt.Sprintf("POI %s 既未被安排也不在落选列表", poi.Name),
			})
		}
	}

	return conflicts
}

// checkComboGroups 检查联票分组同天且连续
func (v *TourValidator) checkComboGroups(tour *model.Tour, pois []*model.POI) []Conflict {
	var conflicts []Conflict

	position := make(map[uuid.UUID][2]int) // POI → (天, 当天位置)
	for di := range tour.Days {
		for pi, visit := range tour.Days[di].Visits {
			position[visit.POIID] = [2]int{di, pi}
		}
	}

	for groupID, members := range model.ComboGroupsOf(pois) {
		var placed [][2]int
		for _, poi := range members {
			if pos, ok := position[poi.ID]; ok {
				placed = append(placed, pos)
			}
		}
		if len(placed) < 2 {
			continue
		}

		day := placed[0][0]
		minPos, maxPos := placed[0][1], placed[0][1]
		sameDay := true
		for _, pos := range placed[1:] {
			if pos[0] != day {
				sameDay = false
				break
			}
			if pos[1] < minPos {
				minPos = pos[1]
			}
			if pos[1] > maxPos {
				maxPos = pos[1]
			}
		}

		if !sameDay {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictComboSplit,
				Severity: "error",
				Day:      -1,
				Message:  fmt.Sprintf("联票分组 %s 的成员被安排在不同天", groupID),
			})
			continue
		}
		if maxPos-minPos+1 != len(placed) {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictComboSplit,
				Severity: "error",
				Day:      day,
				Message:  fmt.Sprintf("联票分组 %s 在第 %d 天的位置不连续", groupID, day+1),
			})
		}
	}

	return conflicts
}

// checkTimeOrder 检查当天访问时间单调且不重叠
func (v *TourValidator) checkTimeOrder(tour *model.Tour) []Conflict {
	var conflicts []Conflict

	for di := range tour.Days {
		visits := tour.Days[di].Visits
		for pi, visit := range visits {
			if visit.End.Before(visit.Start) {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictTimeOrder,
					Severity: "error",
					POIID:    visit.POIID,
					Day:      di,
					Message:  fmt.Sprintf("第 %d 天 %s 的结束时间早于开始时间", di+1, visit.POIName),
				})
			}
			if pi > 0 && visit.Start.Before(visits[pi-1].End) {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictTimeOrder,
					Severity: "error",
					POIID:    visit.POIID,
					Day:      di,
					Message:  fmt.Sprintf("第 %d 天 %s 与上一站时间重叠", di+1, visit.POIName),
				})
			}
		}
	}

	return conflicts
}

// checkOpeningHours 检查到达时刻落在开放时段内
func (v *TourValidator) checkOpeningHours(tour *model.Tour, poiMap map[uuid.UUID]*model.POI) []Conflict {
	var conflicts []Conflict

	for di := range tour.Days {
		weekday, ok := weekdayOf(tour.Days[di].Date)
		if !ok {
			continue
		}
		for _, visit := range tour.Days[di].Visits {
			poi := poiMap[visit.POIID]
			if poi == nil || poi.OpeningHours == nil {
				continue
			}
			clock := visit.Start.Format("15:04")
			if !poi.OpeningHours.IsOpenAt(weekday, clock) {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictOpeningHours,
					Severity: "error",
					POIID:    visit.POIID,
					Day:      di,
					Message:  fmt.Sprintf("第 %d 天 %s 到达时刻 %s 不在开放时段", di+1, poi.Name, clock),
				})
			}
		}
	}

	return conflicts
}

// checkBudgets 检查每天不超出节奏预算
func (v *TourValidator) checkBudgets(tour *model.Tour, prefs *model.Preferences) []Conflict {
	var conflicts []Conflict

	budget := prefs.DayBudgetHours()
	for di := range tour.Days {
		total := tour.Days[di].TotalHours
		if total > budget+v.config.BudgetEpsilon {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictOverBudget,
				Severity: "error",
				Day:      di,
				Message:  fmt.Sprintf("第 %d 天总时长 %.2f 小时，超出预算 %.2f 小时", di+1, total, budget),
			})
		}
	}

	return conflicts
}

// weekdayOf 解析日期的星期几（0=周日）
func weekdayOf(date string) (int, bool) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, false
	}
	return int(t.Weekday()), true
}
