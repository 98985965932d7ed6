package domain

// Product is owned by the remote inventory service. A copy is never treated
// as current; callers re-read before any stock-affecting decision.
type Product struct {
	ID    int64
	Price float64
	Stock int
}
