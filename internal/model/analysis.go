package model

// EntityLabel classifies a recognized party
type EntityLabel string

const (
	LabelOrg    EntityLabel = "ORG"
	LabelPerson EntityLabel = "PERSON"
	LabelParty  EntityLabel = "PARTY" // Captured from a role phrase such as "Lessor:" or "between X and Y"
)

// Entity is a party named in the document
type Entity struct {
	Text  string      `json:"text"`
	Label EntityLabel `json:"label"`
}

// KeyClause is a paragraph judged significant by legal-term density
type KeyClause struct {
	Title      string `json:"title"`
	Content    string `json:"content"`    // At most 300 characters
	Importance int    `json:"importance"` // Distinct legal terms matched, at least 2
}

// KeyTerm is a key clause condensed for display
type KeyTerm struct {
	Title   string `json:"title"`
	Content string `json:"content"` // At most 200 characters
}

// TextAnalysis is the output of the text analyzer
type TextAnalysis struct {
	Summary            []string    `json:"summary"`
	DocumentType       string      `json:"document_type"`
	Parties            []Entity    `json:"parties"`
	Dates              []string    `json:"dates"`
	KeyClauses         []KeyClause `json:"key_clauses"`
	PaymentTerms       []string    `json:"payment_terms"`
	TerminationClauses []string    `json:"termination_clauses"`
	KeyTerms           []KeyTerm   `json:"key_terms"`
	WordCount          int         `json:"word_count"`
}
