package simulator

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Generator produces synthetic payloads from a Profile.
//
// Output depends only on the device ID, the profile and the injected random
// source, so a seeded source gives reproducible runs. Safe for concurrent use.
type Generator struct {
	profile Profile

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a Generator. A nil src uses a randomly seeded PCG.
func NewGenerator(profile Profile, src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{
		profile: profile,
		rng:     rand.New(src),
	}
}

// SeededSource returns a deterministic source for seed. A zero seed is
// replaced by a random one.
func SeededSource(seed uint64) rand.Source {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// Generate produces a payload for id. It never fails.
func (g *Generator) Generate(id DeviceID) Payload {
	specs := g.profile.fieldsFor(id)

	g.mu.Lock()
	defer g.mu.Unlock()

	fields := make([]Field, len(specs))
	for i, spec := range specs {
		fields[i] = Field{Name: spec.Name, Value: g.value(spec)}
	}
	return Payload{Device: id, Fields: fields}
}

// value draws one field value. Caller holds g.mu.
func (g *Generator) value(spec FieldSpec) any {
	switch spec.Kind {
	case FieldChoice:
		if len(spec.Choices) == 0 {
			return ""
		}
		return spec.Choices[g.rng.IntN(len(spec.Choices))]
	case FieldConst:
		return spec.Value
	default:
		v := spec.Baseline + (g.rng.Float64()*2-1)*spec.Spread
		return round(v, spec.Precision)
	}
}

// round rounds v to precision decimal places. Negative precision leaves v
// untouched.
func round(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}
