package entity

// ResultEntry is one row of the persisted result mapping.
type ResultEntry struct {
	ID          string
	Text        string
	Confidence  float64 // rounded to 4 decimal places
	Status      string
	Quarantined bool
}
