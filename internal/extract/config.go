package extract

import "time"

// Config holds the keyword sets and limits that drive header detection and
// column resolution. Zero-valued fields fall back to the defaults.
type Config struct {
	HeaderKeywords    []string
	MinHeaderMatches  int
	MaxHeaderScanRows int

	DateKeywords        []string
	DescriptionKeywords []string
	PayeeKeywords       []string
	AmountKeywords      []string
	DebitKeywords       []string
	CreditKeywords      []string

	// SummaryMarkers drop a row when any appears in its joined values.
	SummaryMarkers []string

	// Now supplies the date for rows without one. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the stock keyword sets.
func DefaultConfig() Config {
	return Config{
		HeaderKeywords:      []string{"date", "amount", "balance", "description", "reference", "details", "payee"},
		MinHeaderMatches:    2,
		MaxHeaderScanRows:   20,
		DateKeywords:        []string{"date", "time"},
		DescriptionKeywords: []string{"desc", "memo", "detail", "narrative"},
		PayeeKeywords:       []string{"payee", "merchant"},
		AmountKeywords:      []string{"amount", "amt", "value", "price", "cost"},
		DebitKeywords:       []string{"payment", "debit", "withdrawal", "decrea", "out"},
		CreditKeywords:      []string{"deposit", "credit", "increa", "in"},
		SummaryMarkers:      []string{"total", "balance"},
		Now:                 time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.HeaderKeywords) == 0 {
		c.HeaderKeywords = d.HeaderKeywords
	}
	if c.MinHeaderMatches <= 0 {
		c.MinHeaderMatches = d.MinHeaderMatches
	}
	if c.MaxHeaderScanRows <= 0 {
		c.MaxHeaderScanRows = d.MaxHeaderScanRows
	}
	if len(c.DateKeywords) == 0 {
		c.DateKeywords = d.DateKeywords
	}
	if len(c.DescriptionKeywords) == 0 {
		c.DescriptionKeywords = d.DescriptionKeywords
	}
	if len(c.PayeeKeywords) == 0 {
		c.PayeeKeywords = d.PayeeKeywords
	}
	if len(c.AmountKeywords) == 0 {
		c.AmountKeywords = d.AmountKeywords
	}
	if len(c.DebitKeywords) == 0 {
		c.DebitKeywords = d.DebitKeywords
	}
	if len(c.CreditKeywords) == 0 {
		c.CreditKeywords = d.CreditKeywords
	}
	if len(c.SummaryMarkers) == 0 {
		c.SummaryMarkers = d.SummaryMarkers
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}
