// Package schedule 把布局展开为逐日挂钟时间表
package schedule

import (
	"time"

	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// BuildDays 依据布局生成每天的访问时间表
// 到达偏早时在站外等待开放，等待不计入当天预算时长
func BuildDays(planCtx *constraint.Context) []model.Day {
	days := make([]model.Day, planCtx.DayCount)

	for day := 0; day < planCtx.DayCount; day++ {
		date := model.DateOfTrip(planCtx.StartDate, day)
		steps, hours, walkKm := planCtx.SimulateDay(day)

		visits := make([]model.Visit, 0, len(steps))
		for i, step := range steps {
			poi := planCtx.POI(step.POIID)
			name := ""
			if poi != nil {
				name = poi.Name
			}

			visit := model.Visit{
				POIID:   step.POIID,
				POIName: name,
				Start:   clockOnDate(date, step.Start),
				End:     clockOnDate(date, step.End),
			}

			// 前往下一站的步行段，末站为空
			if i+1 < len(steps) {
				next := steps[i+1]
				visit.Leg = &model.TravelLeg{
					ToPOIID:    next.POIID,
					DistanceKm: next.WalkKm,
					Hours:      model.WalkingHours(next.WalkKm),
				}
			}

			visits = append(visits, visit)
		}

		days[day] = model.Day{
			Index:          day,
			Date:           date,
			Visits:         visits,
			TotalHours:     hours,
			TotalWalkingKm: walkKm,
		}
	}

	return days
}

// clockOnDate 把 "15:04" 时刻挂到具体日期上
func clockOnDate(date, clock string) time.Time {
	t, err := time.Parse(model.DateFormat+" "+model.ClockFormat, date+" "+clock)
	if err != nil {
		return time.Time{}
	}
	return t
}
