package config

// Keyword is a weighted classification keyword or phrase.
type Keyword struct {
	Term   string  `yaml:"term" json:"term"`
	Weight float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// LegalArea is a topical partition of the decision corpus. The ID doubles
// as the shard name; the keyword set drives query classification.
type LegalArea struct {
	ID       string    `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Keywords []Keyword `yaml:"keywords" json:"keywords"`
}

// DefaultAreaID is the routing fallback area.
const DefaultAreaID = "general"

// DefaultAreas returns the built-in legal-area set. Deployments override
// this via the areas section of the config file.
func DefaultAreas() []LegalArea {
	return []LegalArea{
		{
			ID:   "family_law",
			Name: "Family Law",
			Keywords: []Keyword{
				{Term: "divorce", Weight: 2.0},
				{Term: "custody", Weight: 2.0},
				{Term: "alimony", Weight: 1.5},
				{Term: "child support", Weight: 1.5},
				{Term: "marriage", Weight: 1.0},
				{Term: "adoption", Weight: 1.0},
			},
		},
		{
			ID:   "contract_law",
			Name: "Contract Law",
			Keywords: []Keyword{
				{Term: "breach", Weight: 2.0},
				{Term: "damages", Weight: 1.5},
				{Term: "contract", Weight: 1.5},
				{Term: "obligation", Weight: 1.0},
				{Term: "penalty clause", Weight: 1.0},
				{Term: "termination", Weight: 1.0},
			},
		},
		{
			ID:   "labor_law",
			Name: "Labor Law",
			Keywords: []Keyword{
				{Term: "dismissal", Weight: 2.0},
				{Term: "severance", Weight: 1.5},
				{Term: "employment", Weight: 1.5},
				{Term: "wage", Weight: 1.0},
				{Term: "overtime", Weight: 1.0},
				{Term: "workplace", Weight: 1.0},
			},
		},
		{
			ID:   "criminal_law",
			Name: "Criminal Law",
			Keywords: []Keyword{
				{Term: "theft", Weight: 2.0},
				{Term: "fraud", Weight: 1.5},
				{Term: "assault", Weight: 1.5},
				{Term: "sentence", Weight: 1.0},
				{Term: "probation", Weight: 1.0},
				{Term: "defendant", Weight: 1.0},
			},
		},
		{
			ID:   "property_law",
			Name: "Property Law",
			Keywords: []Keyword{
				{Term: "easement", Weight: 2.0},
				{Term: "deed", Weight: 1.5},
				{Term: "landlord", Weight: 1.5},
				{Term: "tenant", Weight: 1.0},
				{Term: "eviction", Weight: 1.0},
				{Term: "zoning", Weight: 1.0},
			},
		},
		{
			ID:       DefaultAreaID,
			Name:     "General",
			Keywords: []Keyword{},
		},
	}
}

// AreaByID returns the area with the given ID, or nil.
func (c *Config) AreaByID(id string) *LegalArea {
	for i := range c.Areas {
		if c.Areas[i].ID == id {
			return &c.Areas[i]
		}
	}
	return nil
}

// AreaIDs returns the configured area IDs in configuration order.
func (c *Config) AreaIDs() []string {
	ids := make([]string, len(c.Areas))
	for i, a := range c.Areas {
		ids[i] = a.ID
	}
	return ids
}
