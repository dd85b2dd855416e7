package soil_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
)

// bounds follow the form hints; the generator never leaves them.
var bounds = [entities.FeatureCount][2]float64{
	entities.Moisture:    {0, 100},
	entities.Temperature: {0, 50},
	entities.EC:          {0, 2000},
	entities.PH:          {0, 14},
	entities.Nitrogen:    {0, 500},
	entities.Phosphorus:  {0, 500},
	entities.Potassium:   {0, 500},
}

// defaultNoise is the standard deviation of one step per minute, per parameter.
var defaultNoise = [entities.FeatureCount]float64{
	entities.Moisture:    0.4,
	entities.Temperature: 0.15,
	entities.EC:          2,
	entities.PH:          0.01,
	entities.Nitrogen:    0.3,
	entities.Phosphorus:  0.2,
	entities.Potassium:   0.2,
}

// DataGenerator evolves one field's soil state over time: moisture dries out with
// a half life, nutrients are slowly taken up, everything else wanders.
type DataGenerator struct {
	mu           sync.Mutex
	rnd          *rand.Rand
	state        [entities.FeatureCount]float64
	last         time.Time
	dryPerMin    float64 // frazione di umidità persa al minuto
	uptakePerMin float64 // frazione di N, P, K assorbita al minuto
	noise        [entities.FeatureCount]float64
	now          func() time.Time
}

func NewDataGenerator(seed entities.SoilSample, moistureHalfLife time.Duration, rndSeed int64) *DataGenerator {
	g := &DataGenerator{
		rnd:          rand.New(rand.NewSource(rndSeed)),
		state:        seed.Values(),
		uptakePerMin: 0.0002,
		noise:        defaultNoise,
		now:          time.Now,
	}
	if moistureHalfLife > 0 {
		g.dryPerMin = 1 - math.Pow(0.5, 1/moistureHalfLife.Minutes())
	}
	return g
}

// Irrigate aggiunge acqua, in punti percentuali di umidità
func (g *DataGenerator) Irrigate(points float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state[entities.Moisture] = clamp(entities.Moisture, g.state[entities.Moisture]+points)
}

// Next advances the state to now and returns it.
func (g *DataGenerator) Next() entities.SoilSample {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.last.IsZero() {
		g.last = now
		return entities.SampleFromValues(g.state)
	}
	dtMin := now.Sub(g.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}
	g.last = now

	g.state[entities.Moisture] *= math.Pow(1-g.dryPerMin, dtMin)
	for _, f := range []entities.Feature{entities.Nitrogen, entities.Phosphorus, entities.Potassium} {
		g.state[f] *= math.Pow(1-g.uptakePerMin, dtMin)
	}
	sd := math.Sqrt(dtMin)
	for i := range g.state {
		f := entities.Feature(i)
		g.state[i] = clamp(f, g.state[i]+g.rnd.NormFloat64()*g.noise[i]*sd)
	}
	return entities.SampleFromValues(rounded(g.state))
}

func clamp(f entities.Feature, v float64) float64 {
	lo, hi := bounds[f][0], bounds[f][1]
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// rounded mimics probe resolution: one decimal, two for pH.
func rounded(v [entities.FeatureCount]float64) [entities.FeatureCount]float64 {
	for i := range v {
		scale := 10.0
		if entities.Feature(i) == entities.PH {
			scale = 100
		}
		v[i] = math.Round(v[i]*scale) / scale
	}
	return v
}
