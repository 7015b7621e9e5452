package notebook

// Summary is the lean listing view of a pad.
type Summary struct {
	ScratchID   string  `json:"scratch_id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Namespace   *string `json:"namespace"`
	CellCount   int     `json:"cell_count"`
}

// Summarize builds the listing view of p.
func (p *Scratchpad) Summarize() Summary {
	return Summary{
		ScratchID:   p.ID,
		Title:       optional(p.Field("title")),
		Description: optional(p.Field("description")),
		Namespace:   optional(p.Namespace()),
		CellCount:   len(p.Cells),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
