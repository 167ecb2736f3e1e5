package deduction

import (
	"math"
	"sort"

	"guesswho-server/internal/catalog"
	"guesswho-server/internal/models"
)

// Suggestion ranks one unasked question by how evenly it splits the
// remaining candidate set.
type Suggestion struct {
	QuestionID    string  `json:"questionId"`
	Text          string  `json:"text"`
	CategoryID    string  `json:"categoryId"`
	Effectiveness float64 `json:"effectiveness"`
}

// Rank returns unasked questions sorted ascending by |0.5 - effectiveness|
// over the remaining candidates, best splitters first. Already-asked ids are
// excluded. Ties keep catalog definition order, so the output is stable.
func Rank(cat *catalog.Catalog, remaining []models.BoardMember, askedIDs map[string]struct{}) []Suggestion {
	var suggestions []Suggestion
	for _, category := range cat.Categories() {
		for i := range category.Questions {
			q := &category.Questions[i]
			if _, asked := askedIDs[q.ID]; asked {
				continue
			}
			suggestions = append(suggestions, Suggestion{
				QuestionID:    q.ID,
				Text:          q.Text,
				CategoryID:    q.CategoryID,
				Effectiveness: cat.Effectiveness(q, remaining),
			})
		}
	}
	sort.SliceStable(suggestions, func(a, b int) bool {
		return math.Abs(0.5-suggestions[a].Effectiveness) < math.Abs(0.5-suggestions[b].Effectiveness)
	})
	return suggestions
}

// AskedQuestionIDs collects the question ids a player has already asked.
func AskedQuestionIDs(ownMoves []models.Move) map[string]struct{} {
	asked := make(map[string]struct{}, len(ownMoves))
	for _, m := range ownMoves {
		asked[m.QuestionID] = struct{}{}
	}
	return asked
}
