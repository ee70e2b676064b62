package enums

// FaultParty names the actor whose error caused a cancellation.
type FaultParty string

const (
	FaultNone     FaultParty = "none"
	FaultPlatform FaultParty = "platform"
	FaultGarage   FaultParty = "garage"
	FaultCustomer FaultParty = "customer"
)

// String implements fmt.Stringer.
func (f FaultParty) String() string {
	return string(f)
}
