package domain

// Position is a holder's stake in a symbol within a game group.
// Owned by the game subsystem; the valuation pipeline reads it and never
// mutates quantity.
type Position struct {
	HolderID int64
	SymbolID int64
	GroupID  int64
	Quantity float64
	IsActive bool
}
