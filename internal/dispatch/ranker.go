package dispatch

import (
	"math"
	"sort"
	"time"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// distanceTolerance treats two distances as equal when closer than this many km.
const distanceTolerance = 1e-9

// RankedEngineer pairs a candidate with its distance to the ticket.
type RankedEngineer struct {
	Engineer   *domain.Engineer
	DistanceKm float64
}

// Weekday returns the English weekday name of t in loc ("Monday", ...).
func Weekday(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Weekday().String()
}

// FilterBySpecialization keeps engineers whose specialization matches the service type.
func FilterBySpecialization(engineers []*domain.Engineer, serviceType domain.ServiceType) []*domain.Engineer {
	out := make([]*domain.Engineer, 0, len(engineers))
	for _, e := range engineers {
		if e != nil && e.Specialization.Matches(serviceType) {
			out = append(out, e)
		}
	}
	return out
}

// RankEngineers orders candidates by ascending distance to the ticket, breaking
// ties by ascending current workload. Engineers without a usable location are dropped.
//
// When the ticket itself has no usable location every located candidate is kept
// with an unknown (+Inf) distance and only workload decides the order.
func RankEngineers(candidates []*domain.Engineer, ticket *domain.Ticket) []RankedEngineer {
	ranked := make([]RankedEngineer, 0, len(candidates))
	ticketLocated := ticket != nil && ticket.Location.Valid()
	for _, e := range candidates {
		if e == nil || !e.Location.Valid() {
			continue
		}
		d := math.Inf(1)
		if ticketLocated {
			d = DistanceBetween(ticket.Location, e.Location)
		}
		ranked = append(ranked, RankedEngineer{Engineer: e, DistanceKm: d})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		di, dj := ranked[i].DistanceKm, ranked[j].DistanceKm
		if !sameDistance(di, dj) {
			return di < dj
		}
		return ranked[i].Engineer.CurrentTasks < ranked[j].Engineer.CurrentTasks
	})
	return ranked
}

func sameDistance(a, b float64) bool {
	if math.IsInf(a, 1) && math.IsInf(b, 1) {
		return true
	}
	return math.Abs(a-b) <= distanceTolerance
}
