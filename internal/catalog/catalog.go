package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"guesswho-server/internal/models"
)

//go:embed data/questions.json
var questionData embed.FS

// Question is one yes/no attribute question. AttributePath is a dotted path
// into a board member's attribute groups; AttributeValue is present only for
// array-membership and exact-match questions.
type Question struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	AttributePath  string `json:"attributePath"`
	AttributeValue any    `json:"attributeValue,omitempty"`
	CategoryID     string `json:"categoryId"`
	Index          int    `json:"index"`
}

// Category is an immutable grouping of questions. Question order within a
// category must never change once games reference it, because the composite
// "categoryId:index" form derives identity from position.
type Category struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Catalog resolves question ids to definitions. Lookup is a plain id map:
// every question carries a stable id from its definition, and the positional
// "categoryId:index" form is accepted as an alias so index-based clients and
// historic move logs keep resolving.
type Catalog struct {
	categories []Category
	byID       map[string]*Question
}

// FormatQuestionID builds the composite question id.
func FormatQuestionID(categoryID string, index int) string {
	return categoryID + ":" + strconv.Itoa(index)
}

// ParseQuestionID splits a composite id on the first ':' and parses the
// remainder as a non-negative index.
func ParseQuestionID(id string) (categoryID string, index int, err error) {
	sep := strings.Index(id, ":")
	if sep <= 0 || sep == len(id)-1 {
		return "", 0, fmt.Errorf("%w: malformed id %q", models.ErrQuestionNotFound, id)
	}
	index, err = strconv.Atoi(id[sep+1:])
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("%w: malformed index in %q", models.ErrQuestionNotFound, id)
	}
	return id[:sep], index, nil
}

// New builds a catalog from category definitions. Questions without a stable
// id fall back to the composite form; both resolve through the same map.
func New(categories []Category) (*Catalog, error) {
	c := &Catalog{
		categories: categories,
		byID:       make(map[string]*Question),
	}
	for ci := range c.categories {
		cat := &c.categories[ci]
		if cat.ID == "" {
			return nil, fmt.Errorf("category %d has no id", ci)
		}
		if strings.Contains(cat.ID, ":") {
			return nil, fmt.Errorf("category id %q must not contain ':'", cat.ID)
		}
		for qi := range cat.Questions {
			q := &cat.Questions[qi]
			q.CategoryID = cat.ID
			q.Index = qi
			if q.ID == "" {
				q.ID = FormatQuestionID(cat.ID, qi)
			}
			if _, dup := c.byID[q.ID]; dup {
				return nil, fmt.Errorf("duplicate question id %q", q.ID)
			}
			c.byID[q.ID] = q
			// Composite alias for positional lookups.
			if alias := FormatQuestionID(cat.ID, qi); alias != q.ID {
				if _, dup := c.byID[alias]; dup {
					return nil, fmt.Errorf("duplicate question id %q", alias)
				}
				c.byID[alias] = q
			}
		}
	}
	return c, nil
}

// Load builds the catalog from the embedded question definitions.
func Load() (*Catalog, error) {
	raw, err := questionData.ReadFile("data/questions.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded question data: %w", err)
	}
	var categories []Category
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, fmt.Errorf("failed to parse question data: %w", err)
	}
	return New(categories)
}

// Categories returns the catalog's categories in definition order.
func (c *Catalog) Categories() []Category {
	return c.categories
}

// Question resolves an id (stable or composite) to its definition.
// Returns models.ErrQuestionNotFound for malformed or unknown ids.
func (c *Catalog) Question(id string) (*Question, error) {
	if q, ok := c.byID[id]; ok {
		return q, nil
	}
	// Not in the map: either a malformed id or a composite pointing at a
	// category/index that does not exist. Parse to report which.
	if _, _, err := ParseQuestionID(id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %q", models.ErrQuestionNotFound, id)
}

// Effectiveness is the fraction of candidates answering "yes" to a question.
// Values near 0.5 split the candidate set evenly and carry the most
// information; values near 0 or 1 carry almost none.
func (c *Catalog) Effectiveness(q *Question, candidates []models.BoardMember) float64 {
	if len(candidates) == 0 {
		return 0
	}
	yes := 0
	for i := range candidates {
		if ResolveAnswer(q, &candidates[i]) {
			yes++
		}
	}
	return float64(yes) / float64(len(candidates))
}
