package feed

// ProviderID identifies one upstream quote feed. It doubles as the
// source id for health tracking and retry bookkeeping.
type ProviderID string

const (
	// ProviderShanghai is feed A: padded-callback JSON with positional
	// arrays per security.
	ProviderShanghai ProviderID = "sse"

	// ProviderEastmoney is feed B: plain JSON with field-coded objects,
	// paginated by page number and size.
	ProviderEastmoney ProviderID = "eastmoney"
)

// RawRecord is a tagged variant holding one provider's raw snapshot row.
// Exactly one of Positional/Coded is set, matching Provider. Only the
// normalizer consumes these; downstream components never see them.
type RawRecord struct {
	Provider   ProviderID
	Positional []interface{}          // feed A row
	Coded      map[string]interface{} // feed B row
}

// Positional field order of feed A rows.
const (
	posCode = iota
	posName
	posOpen
	posHigh
	posLow
	posLast
	posPrevClose
	posChangeRate
	posVolume
	posAmount
	posTradePhase
	posChange
	posAmplitudeRate
	posSubtype
	posProductStatus
)

// Field codes of feed B rows.
const (
	codedLast       = "f2"
	codedChangeRate = "f3"
	codedChange     = "f4"
	codedVolume     = "f5"
	codedAmount     = "f6"
	codedCode       = "f12"
	codedName       = "f14"
	codedHigh       = "f15"
	codedLow        = "f16"
	codedOpen       = "f17"
	codedPrevClose  = "f18"
	codedAmplitude  = "f23"
)
