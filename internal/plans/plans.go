// Package plans provides the plan tier catalog that drives batch caps,
// exclusivity eligibility, personalization eligibility, and run ordering.
package plans

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Plan describes a single subscription tier.
type Plan struct {
	Name             string `yaml:"-"`
	MaxLeadsPerBatch int    `yaml:"max_leads_per_batch"`
	ExclusiveOption  bool   `yaml:"exclusive_option"`
	Personalization  bool   `yaml:"ai_personalization"`
	// Priority orders clients within a scheduled run; lower runs first.
	Priority int `yaml:"priority"`
}

// Catalog holds all known plan tiers.
type Catalog struct {
	plans map[string]Plan
}

type catalogFile struct {
	Plans map[string]Plan `yaml:"plans"`
}

// Default returns the built-in tier catalog used when no plans file is
// configured.
func Default() *Catalog {
	return &Catalog{plans: map[string]Plan{
		"basic":   {Name: "basic", MaxLeadsPerBatch: 100, ExclusiveOption: false, Personalization: false, Priority: 3},
		"pro":     {Name: "pro", MaxLeadsPerBatch: 250, ExclusiveOption: true, Personalization: true, Priority: 2},
		"premium": {Name: "premium", MaxLeadsPerBatch: 500, ExclusiveOption: true, Personalization: true, Priority: 1},
	}}
}

// LoadFile reads a tier catalog from a YAML file. A missing file falls back
// to the default catalog so a bare deployment still works.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read plans file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse plans file: %w", err)
	}
	if len(file.Plans) == 0 {
		return nil, fmt.Errorf("plans file %s defines no plans", path)
	}

	catalog := &Catalog{plans: make(map[string]Plan, len(file.Plans))}
	for name, plan := range file.Plans {
		if plan.MaxLeadsPerBatch < 1 {
			return nil, fmt.Errorf("plan %s: max_leads_per_batch must be at least 1", name)
		}
		plan.Name = name
		catalog.plans[name] = plan
	}

	return catalog, nil
}

// Get returns the plan for the given tier name.
func (c *Catalog) Get(name string) (Plan, bool) {
	plan, ok := c.plans[name]
	return plan, ok
}

// Names returns all tier names sorted by ascending priority value, which is
// the order clients are processed in a scheduled run.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.plans))
	for name := range c.plans {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := c.plans[names[i]], c.plans[names[j]]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return names[i] < names[j]
	})
	return names
}
