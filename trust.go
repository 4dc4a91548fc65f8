package tradefolio

// Provider identifies the origin of an official close price. The order of
// trust between providers is fixed: primary vendor, secondary vendor, human
// repair tools, and last the price derived from the user's own transactions.
type Provider string

const (
	// ProviderEODHD is the primary market-data vendor.
	ProviderEODHD Provider = "eodhd"
	// ProviderYahoo is the secondary vendor, consulted on primary failure.
	ProviderYahoo Provider = "yahoo"
	// ProviderManual marks a human-approved price correction.
	ProviderManual Provider = "manual"
	// ProviderRepair marks a forward-filled gap repair.
	ProviderRepair Provider = "repair"
	// ProviderViaTx marks a price derived from a user transaction. It is the
	// lowest trust and always flagged as estimated.
	ProviderViaTx Provider = "via_tx"
)

// Trust returns the rank of the provider in the fixed trust order.
// Higher is more trusted. Unknown providers rank below everything.
func (p Provider) Trust() int {
	switch p {
	case ProviderEODHD:
		return 4
	case ProviderYahoo:
		return 3
	case ProviderManual, ProviderRepair:
		return 2
	case ProviderViaTx:
		return 1
	default:
		return 0
	}
}

// LowTrust reports whether prices from this provider warrant outlier
// screening: anything below the vendor tier.
func (p Provider) LowTrust() bool { return p.Trust() <= ProviderRepair.Trust() }
