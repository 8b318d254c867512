package contracts

// PortfolioState is the process-wide account view. It has a single
// logical owner, the lifecycle manager, which mutates it under its own
// lock; everything else reads snapshots.
type PortfolioState struct {
	Cash      float64              `json:"cash"`
	Reserved  float64              `json:"reserved"` // cash held back for pending fills
	Positions map[string]*Position `json:"open_positions"` // ticker -> non-CLOSED position
}

// NewPortfolioState creates a portfolio with starting cash
func NewPortfolioState(cash float64) *PortfolioState {
	return &PortfolioState{
		Cash:      cash,
		Positions: make(map[string]*Position),
	}
}

// OpenCount returns the number of non-CLOSED positions
func (ps *PortfolioState) OpenCount() int {
	return len(ps.Positions)
}

// HasTicker reports whether the ticker already has a non-CLOSED position
func (ps *PortfolioState) HasTicker(ticker string) bool {
	_, ok := ps.Positions[ticker]
	return ok
}

// Exposure returns the total cost-basis notional of open positions plus
// pending reservations.
func (ps *PortfolioState) Exposure() float64 {
	total := ps.Reserved
	for _, p := range ps.Positions {
		if p.State == PositionOpen {
			total += p.Notional()
		}
	}
	return total
}

// Value returns total portfolio value at cost basis
func (ps *PortfolioState) Value() float64 {
	return ps.Cash + ps.Exposure()
}

// Clone returns a deep copy for read-only consumers. Policy evaluation
// works on clones so a rejected proposal can never leak a mutation.
func (ps *PortfolioState) Clone() *PortfolioState {
	cp := &PortfolioState{
		Cash:      ps.Cash,
		Reserved:  ps.Reserved,
		Positions: make(map[string]*Position, len(ps.Positions)),
	}
	for ticker, pos := range ps.Positions {
		p := *pos
		cp.Positions[ticker] = &p
	}
	return cp
}
