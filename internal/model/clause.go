package model

// CategoryKey names one semantic bucket of a taxonomy (e.g. "Obligations")
type CategoryKey string

// Universal taxonomy keys
const (
	CategoryObligations      CategoryKey = "Obligations"
	CategoryRights           CategoryKey = "Rights"
	CategoryRisksLiabilities CategoryKey = "Risks_Liabilities"
	CategoryTermTermination  CategoryKey = "Term_Termination"
	CategoryLevers           CategoryKey = "Levers"
)

// Benefit/liability taxonomy keys
const (
	CategoryBenefits    CategoryKey = "Benefits"
	CategoryLiabilities CategoryKey = "Liabilities"
)

// ClauseSet maps each category to the ordered clause texts extracted for one document.
// A missing key means no clauses were extracted for that bucket.
type ClauseSet map[CategoryKey][]string

// Count returns the total number of clauses across all categories
func (s ClauseSet) Count() int {
	n := 0
	for _, clauses := range s {
		n += len(clauses)
	}
	return n
}

// Owner identifies which side of a comparison a clause came from
type Owner string

const (
	OwnerA Owner = "A"
	OwnerB Owner = "B"
)

// Other returns the opposite side
func (o Owner) Other() Owner {
	if o == OwnerA {
		return OwnerB
	}
	return OwnerA
}

// MatchedPair is a clause from each document judged to be the same provision
type MatchedPair struct {
	TextA      string  `json:"text_a"`
	TextB      string  `json:"text_b"`
	Similarity float64 `json:"similarity"`          // Score that caused the pairing, always above the threshold
	Identical  bool    `json:"identical,omitempty"` // Similarity also exceeds the identical threshold
}

// UniqueClause is a clause with no sufficiently similar counterpart on the other side
type UniqueClause struct {
	Text  string `json:"text"`
	Owner Owner  `json:"owner"`
}

// CategoryComparison partitions the clauses of one category.
// Every input clause appears in exactly one pair or exactly one unique entry.
type CategoryComparison struct {
	Matched   []MatchedPair  `json:"matched"`
	UniqueToA []UniqueClause `json:"unique_to_a"`
	UniqueToB []UniqueClause `json:"unique_to_b"`
}

// IsEmpty reports whether the category has no clauses on either side
func (c CategoryComparison) IsEmpty() bool {
	return len(c.Matched) == 0 && len(c.UniqueToA) == 0 && len(c.UniqueToB) == 0
}

// ClauseCount returns how many input clauses the comparison accounts for
func (c CategoryComparison) ClauseCount() int {
	return 2*len(c.Matched) + len(c.UniqueToA) + len(c.UniqueToB)
}

// Document is a loaded input document ready for clause extraction
type Document struct {
	Name        string `json:"name"`                   // Display name (file base name or URL subject)
	Source      string `json:"source"`                 // Path or URL it was loaded from
	ContentType string `json:"content_type,omitempty"` // Detected or declared content type
	Text        string `json:"-"`                      // Raw content
}
