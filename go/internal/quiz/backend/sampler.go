package backend

import (
	"math/rand/v2"

	"github.com/mcdev12/smashquiz/go/internal/models"
)

// Sampler supplies the randomness of a game.
type Sampler interface {
	// Normal draws from N(mean, stdDev).
	Normal(mean, stdDev float64) float64
	// Float64 draws uniformly from [0, 1).
	Float64() float64
}

type randSampler struct {
	r *rand.Rand
}

// NewRandSampler returns a Sampler backed by a PCG source seeded from the
// runtime.
func NewRandSampler() Sampler {
	return &randSampler{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededSampler returns a reproducible Sampler.
func NewSeededSampler(seed1, seed2 uint64) Sampler {
	return &randSampler{r: rand.New(rand.NewPCG(seed1, seed2))}
}

func (s *randSampler) Normal(mean, stdDev float64) float64 {
	return mean + stdDev*s.r.NormFloat64()
}

func (s *randSampler) Float64() float64 {
	return s.r.Float64()
}

// sampleDamage draws one damage amount and applies the rule bounds.
func sampleDamage(s Sampler, rule models.DamageRule) float64 {
	return rule.Clamp(s.Normal(rule.Mean, rule.StdDev))
}
