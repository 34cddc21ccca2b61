// Package classifier routes free-text legal queries to legal areas using
// weighted keyword scoring. It performs no I/O and is safe for concurrent use.
package classifier

import (
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jurisearch/jurisearch/internal/config"
)

// DefaultCacheSize is the LRU cache size for classification results.
const DefaultCacheSize = 10000

// DefaultRelativeThreshold is the fraction of the best area's score an area
// must reach to be included in multi-area detection. Relative, not absolute,
// because raw scores shrink with query length.
const DefaultRelativeThreshold = 0.05

// substringWeight discounts keyword hits that are not whole-word matches.
const substringWeight = 0.5

// AreaScore is one ranked classification outcome.
type AreaScore struct {
	Area  string  `json:"area"`
	Score float64 `json:"score"`
}

// Classifier scores query text against the configured legal areas.
type Classifier struct {
	areas       []config.LegalArea
	defaultArea string
	cache       *lru.Cache[string, []AreaScore]
}

// tokenRegex matches letter/digit runs for whole-word normalization.
var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// New creates a classifier from the configured area set.
func New(cfg *config.Config) *Classifier {
	size := cfg.Search.ClassifierCacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []AreaScore](size)
	return &Classifier{
		areas:       cfg.Areas,
		defaultArea: cfg.DefaultArea,
		cache:       cache,
	}
}

// DefaultArea returns the configured fallback area.
func (c *Classifier) DefaultArea() string {
	return c.defaultArea
}

// Classify scores the text against every area and returns areas with a
// positive score, sorted descending. Ties keep configuration order (stable
// sort). Empty or whitespace-only text returns an empty list.
func (c *Classifier) Classify(text string) []AreaScore {
	key := normalize(text)
	if key == "" {
		return []AreaScore{}
	}

	if cached, ok := c.cache.Get(key); ok {
		out := make([]AreaScore, len(cached))
		copy(out, cached)
		return out
	}

	// Whole-word matching uses a space-delimited token form so that phrase
	// keywords ("child support") match across the original punctuation.
	wordForm := " " + strings.Join(tokenRegex.FindAllString(key, -1), " ") + " "

	scores := make([]AreaScore, 0, len(c.areas))
	for _, area := range c.areas {
		if len(area.Keywords) == 0 {
			continue
		}

		var hit, total float64
		for _, kw := range area.Keywords {
			total += kw.Weight

			term := strings.ToLower(kw.Term)
			phrase := " " + strings.Join(tokenRegex.FindAllString(term, -1), " ") + " "
			switch {
			case strings.Contains(wordForm, phrase):
				hit += kw.Weight
			case strings.Contains(key, term):
				hit += kw.Weight * substringWeight
			}
		}

		if hit > 0 && total > 0 {
			scores = append(scores, AreaScore{Area: area.ID, Score: hit / total})
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	c.cache.Add(key, scores)

	out := make([]AreaScore, len(scores))
	copy(out, scores)
	return out
}

// Primary returns the single best area for the text. It never fails: when
// no keyword scores, it falls back to a substring match of area names
// against the text, and finally to the configured default area.
func (c *Classifier) Primary(text string) string {
	scores := c.Classify(text)
	if len(scores) > 0 {
		return scores[0].Area
	}

	// No keyword signal: the query may name an area directly
	// ("family law precedents on ...").
	key := normalize(text)
	for _, area := range c.areas {
		if area.ID == c.defaultArea {
			continue
		}
		id := strings.ReplaceAll(area.ID, "_", " ")
		if strings.Contains(key, id) || strings.Contains(key, strings.ToLower(area.Name)) {
			return area.ID
		}
	}

	return c.defaultArea
}

// Multiple returns all areas scoring at least rel times the best area's
// score, in rank order. rel <= 0 uses DefaultRelativeThreshold.
func (c *Classifier) Multiple(text string, rel float64) []string {
	if rel <= 0 {
		rel = DefaultRelativeThreshold
	}

	scores := c.Classify(text)
	if len(scores) == 0 {
		return []string{}
	}

	cutoff := scores[0].Score * rel
	areas := make([]string, 0, len(scores))
	for _, s := range scores {
		if s.Score >= cutoff {
			areas = append(areas, s.Area)
		}
	}
	return areas
}

// normalize lowercases and trims text for scoring and cache keys.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
