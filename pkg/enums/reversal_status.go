package enums

// ReversalStatus tracks a payout reversal from creation until it is netted
// against a later payout cycle.
type ReversalStatus string

const (
	ReversalStatusPending ReversalStatus = "pending"
	ReversalStatusApplied ReversalStatus = "applied"
)

// String implements fmt.Stringer.
func (r ReversalStatus) String() string {
	return string(r)
}
