package scenario

import (
	"strings"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/servicecatalog"
)

// Source records which composition step produced an allocation.
type Source string

const (
	SourceFloor        Source = "floor"
	SourceSubstitution Source = "substitution"
	SourcePrimary      Source = "primary"
	SourceCAPPackage   Source = "cap_package"
	SourceDefault      Source = "default"
)

// Frequency periods.
const (
	PerWeek = "week"
	PerDay  = "day"
)

// Allocation is one service line of a composed plan.
type Allocation struct {
	ServiceCode     string                      `json:"service_code"`
	ServiceType     *servicecatalog.ServiceType `json:"service_type,omitempty"`
	Frequency       int                         `json:"frequency"`
	FrequencyPeriod string                      `json:"frequency_period"`
	DurationMinutes int                         `json:"duration_minutes"`
	Rationale       string                      `json:"rationale,omitempty"`
	Category        string                      `json:"category"`
	Source          Source                      `json:"source"`
	CostPerVisit    float64                     `json:"cost_per_visit"`
}

// WeeklyVisits normalises the frequency to visits per week.
func (a Allocation) WeeklyVisits() float64 {
	if a.FrequencyPeriod == PerDay {
		return float64(a.Frequency) * 7
	}
	return float64(a.Frequency)
}

// addVisits adds n visits per period. When period differs from the
// allocation's own, both are normalised to visits per week first.
func (a *Allocation) addVisits(n int, period string) {
	if periodOf(period) == periodOf(a.FrequencyPeriod) {
		a.Frequency += n
		return
	}
	a.Frequency = weekly(a.Frequency, a.FrequencyPeriod) + weekly(n, period)
	a.FrequencyPeriod = PerWeek
}

func periodOf(p string) string {
	if p == "" {
		return PerWeek
	}
	return p
}

func weekly(n int, period string) int {
	if period == PerDay {
		return n * 7
	}
	return n
}

// WeeklyHours is the implied weekly service time.
func (a Allocation) WeeklyHours() float64 {
	return a.WeeklyVisits() * float64(a.DurationMinutes) / 60
}

// WeeklyCost is the implied weekly cost.
func (a Allocation) WeeklyCost() float64 {
	return a.WeeklyVisits() * a.CostPerVisit
}

// Consolidate merges allocations sharing a service code. The first entry of
// a code keeps its position; frequencies sum (per week when the periods
// differ), duration takes the max and rationales concatenate unless the text
// is already present.
func Consolidate(in []Allocation) []Allocation {
	out := make([]Allocation, 0, len(in))
	index := make(map[string]int, len(in))
	for _, a := range in {
		i, seen := index[a.ServiceCode]
		if !seen {
			index[a.ServiceCode] = len(out)
			out = append(out, a)
			continue
		}
		m := &out[i]
		m.addVisits(a.Frequency, a.FrequencyPeriod)
		if a.DurationMinutes > m.DurationMinutes {
			m.DurationMinutes = a.DurationMinutes
		}
		if a.Rationale != "" && !strings.Contains(m.Rationale, a.Rationale) {
			if m.Rationale == "" {
				m.Rationale = a.Rationale
			} else {
				m.Rationale += "; " + a.Rationale
			}
		}
		if m.ServiceType == nil {
			m.ServiceType = a.ServiceType
		}
		if m.CostPerVisit == 0 {
			m.CostPerVisit = a.CostPerVisit
		}
	}
	return out
}

// Totals sums weekly hours and cost over allocations.
func Totals(allocs []Allocation) (hours, cost float64) {
	for _, a := range allocs {
		hours += a.WeeklyHours()
		cost += a.WeeklyCost()
	}
	return hours, cost
}
