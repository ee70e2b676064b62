package enums

// PenaltyKind categorizes garage penalty records.
type PenaltyKind string

const (
	PenaltySLABreach          PenaltyKind = "sla_breach"
	PenaltyDamagedPart        PenaltyKind = "damaged_part"
	PenaltyCompensationDenied PenaltyKind = "compensation_denied"
)

// String implements fmt.Stringer.
func (p PenaltyKind) String() string {
	return string(p)
}
