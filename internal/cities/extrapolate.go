package cities

import (
	"math"
	"sort"
	"time"

	"github.com/avasilescu/mobiplan/internal/models"
)

// Hard defaults applied when no reference cities exist at all.
const (
	defaultActivePct  = 58.0
	defaultTrafficPct = 0.5
	defaultPedPct     = 0.6
	defaultCommuteKm  = 8.0
)

func defaultModal() models.ModalSplit {
	return models.ModalSplit{Auto: 35, Walking: 27, Cycling: 4, PublicTransport: 34}
}

// Extrapolate builds a demographic record for a city the store has never
// seen, from its population. It interpolates linearly between the two
// reference cities whose populations bracket the target; out of range it
// clones the nearest reference; with no references it applies fixed
// defaults.
func (s *Store) Extrapolate(population int) models.CityRecord {
	refs := s.referenceRecords()
	if len(refs) == 0 {
		return models.CityRecord{
			Population:           population,
			ActivePopulationPct:  defaultActivePct,
			DailyTrafficTotal:    int(math.Round(float64(population) * defaultTrafficPct)),
			DailyPedestrianTotal: int(math.Round(float64(population) * defaultPedPct)),
			Modal:                defaultModal(),
			AvgCommuteDistanceKm: defaultCommuteKm,
			Source:               "extrapolated",
			LastUpdated:          time.Now().UTC(),
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Population < refs[j].Population })

	var rec models.CityRecord
	switch {
	case population <= refs[0].Population:
		rec = refs[0]
	case population >= refs[len(refs)-1].Population:
		rec = refs[len(refs)-1]
	default:
		hi := sort.Search(len(refs), func(i int) bool { return refs[i].Population >= population })
		rec = interpolate(refs[hi-1], refs[hi], population)
	}
	rec.Population = population
	rec.County = ""
	rec.Source = "extrapolated"
	rec.LastUpdated = time.Now().UTC()
	return rec
}

// referenceRecords collects each known city's current record.
func (s *Store) referenceRecords() []models.CityRecord {
	var refs []models.CityRecord
	for _, name := range s.Names() {
		rec, ok := s.CurrentRecord(name)
		if !ok || rec.Population <= 0 {
			continue
		}
		refs = append(refs, rec)
	}
	return refs
}

// interpolate blends every numeric field between lo and hi proportionally
// to where population falls between them. Integer fields round.
func interpolate(lo, hi models.CityRecord, population int) models.CityRecord {
	t := float64(population-lo.Population) / float64(hi.Population-lo.Population)
	lerp := func(a, b float64) float64 { return a + t*(b-a) }
	lerpInt := func(a, b int) int { return int(math.Round(lerp(float64(a), float64(b)))) }

	return models.CityRecord{
		ActivePopulationPct:  lerp(lo.ActivePopulationPct, hi.ActivePopulationPct),
		DailyTrafficTotal:    lerpInt(lo.DailyTrafficTotal, hi.DailyTrafficTotal),
		DailyPedestrianTotal: lerpInt(lo.DailyPedestrianTotal, hi.DailyPedestrianTotal),
		Modal: models.ModalSplit{
			Auto:            lerp(lo.Modal.Auto, hi.Modal.Auto),
			Walking:         lerp(lo.Modal.Walking, hi.Modal.Walking),
			Cycling:         lerp(lo.Modal.Cycling, hi.Modal.Cycling),
			PublicTransport: lerp(lo.Modal.PublicTransport, hi.Modal.PublicTransport),
		},
		AvgCommuteDistanceKm: lerp(lo.AvgCommuteDistanceKm, hi.AvgCommuteDistanceKm),
	}
}
