package economy

// Economy holds the points balance and the cached production rate.
// Like the grid it is owned by a single session goroutine.
type Economy struct {
	points        int64
	pointsPerTick int64
	accrued       int64
}

func New(startingPoints int64) *Economy {
	if startingPoints < 0 {
		startingPoints = 0
	}
	return &Economy{points: startingPoints}
}

func (e *Economy) Points() int64        { return e.points }
func (e *Economy) PointsPerTick() int64 { return e.pointsPerTick }

// TotalAccrued is the sum of every Accrue call so far.
func (e *Economy) TotalAccrued() int64 { return e.accrued }

// SetRate stores the evaluator output. Negative rates are clamped to 0.
func (e *Economy) SetRate(rate int64) {
	if rate < 0 {
		rate = 0
	}
	e.pointsPerTick = rate
}

// Accrue applies one accrual tick and returns the new balance.
func (e *Economy) Accrue() int64 {
	e.points += e.pointsPerTick
	e.accrued += e.pointsPerTick
	return e.points
}

func (e *Economy) CanAfford(cost int64) bool {
	return cost >= 0 && e.points >= cost
}

// Spend deducts cost only when the balance covers it.
func (e *Economy) Spend(cost int64) bool {
	if !e.CanAfford(cost) {
		return false
	}
	e.points -= cost
	return true
}
