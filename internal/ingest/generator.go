package ingest

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/olajoao/signal-desk/internal/model"
)

const (
	environmentProbability = 0.3
	regionProbability      = 0.2
)

// GeneratorConfig describes the synthetic event mix.
type GeneratorConfig struct {
	Seed       int64  // 0 seeds from the clock
	TenantDist string // e.g. "acme:70,globex:30"
	TypeDist   string // e.g. "payment.failed:50,login.failed:50"
}

// Generator produces synthetic events from weighted distributions.
// Not safe for concurrent use.
type Generator struct {
	rng     *rand.Rand
	tenants []weightedValue
	types   []weightedValue
	now     func() time.Time
}

// NewGenerator parses the distributions and seeds the generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	tenants, err := parseDistribution(cfg.TenantDist)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant-dist: %w", err)
	}
	types, err := parseDistribution(cfg.TypeDist)
	if err != nil {
		return nil, fmt.Errorf("invalid type-dist: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng:     rand.New(rand.NewSource(seed)),
		tenants: tenants,
		types:   types,
		now:     time.Now,
	}, nil
}

// Generate returns a new event without an id; Submit assigns one.
func (g *Generator) Generate() *model.Event {
	metadata := map[string]any{
		"source": "event-producer",
	}
	if g.rng.Float64() < environmentProbability {
		metadata["environment"] = g.selectFrom([]string{"prod", "staging", "dev"})
	}
	if g.rng.Float64() < regionProbability {
		metadata["region"] = g.selectFrom([]string{"us-east-1", "us-west-2", "eu-west-1"})
	}
	raw, _ := json.Marshal(metadata)

	return &model.Event{
		TenantID:  g.selectWeighted(g.tenants),
		Type:      g.selectWeighted(g.types),
		Metadata:  raw,
		Timestamp: g.now().UTC(),
	}
}

// selectWeighted picks a value using cumulative weights.
func (g *Generator) selectWeighted(choices []weightedValue) string {
	total := 0
	for _, c := range choices {
		total += c.weight
	}
	if total == 0 {
		return "unknown"
	}

	r := g.rng.Intn(total)
	cumulative := 0
	for _, c := range choices {
		cumulative += c.weight
		if r < cumulative {
			return c.value
		}
	}
	return choices[len(choices)-1].value
}

func (g *Generator) selectFrom(choices []string) string {
	return choices[g.rng.Intn(len(choices))]
}
