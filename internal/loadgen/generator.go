package loadgen

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/truthfuse/internal/domain/geo"
	"github.com/okian/truthfuse/internal/domain/model"
)

// Placement constants, in metres. Sites sit far outside each other's match
// radius; reports scatter well inside the auto-merge radius.
const (
	hotspotSpacing = 5_000
	scatterRadius  = 40
	verifiedEvery  = 5
)

var (
	incidents = []string{"Fire", "Flood", "Accident", "Power outage", "Gas leak", "Building collapse", "Road block"}
	places    = []string{"Metro Station", "Ring Road", "Central Market", "Harbour", "North Bridge", "City Hospital", "Sector 7"}
	severity  = []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}
)

// Generate lays out cfg.Hotspots sites on a square grid around cfg.Origin
// and scatters cfg.ReportsPerHotspot reports by distinct reporters at each.
// The output is deterministic for a given seed, except reporter IDs.
func Generate(cfg *Config) []Submission {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	side := int(math.Ceil(math.Sqrt(float64(cfg.Hotspots))))

	out := make([]Submission, 0, cfg.Hotspots*(cfg.ReportsPerHotspot+1))
	for h := 0; h < cfg.Hotspots; h++ {
		centre := geo.Offset(cfg.Origin, float64(h/side)*hotspotSpacing, float64(h%side)*hotspotSpacing)
		title := fmt.Sprintf("%s at %s", incidents[rng.IntN(len(incidents))], places[rng.IntN(len(places))])

		var first Submission
		for i := 0; i < cfg.ReportsPerHotspot; i++ {
			s := Submission{
				Hotspot:    h,
				ReporterID: uuid.NewString(),
				Role:       string(model.RoleCitizen),
				Title:      title,
				Severity:   severity[rng.IntN(len(severity))],
			}
			if i%verifiedEvery == verifiedEvery-1 {
				s.Role = string(model.RoleVerifiedSource)
			}
			s.Lat, s.Lng = scatter(rng, centre)
			out = append(out, s)
			if i == 0 {
				first = s
			}
		}
		if cfg.Duplicates && cfg.ReportsPerHotspot > 0 {
			repeat := first
			repeat.Lat, repeat.Lng = scatter(rng, centre)
			out = append(out, repeat)
		}
	}

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// scatter picks a point uniformly within scatterRadius of centre.
func scatter(rng *rand.Rand, centre model.Location) (lat, lng float64) {
	r := scatterRadius * math.Sqrt(rng.Float64())
	theta := 2 * math.Pi * rng.Float64()
	loc := geo.Offset(centre, r*math.Cos(theta), r*math.Sin(theta))
	return loc.Lat, loc.Lon
}
