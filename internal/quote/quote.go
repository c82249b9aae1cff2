package quote

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BoardType classifies a listed security by the sub-market it trades on.
// The board determines the daily price-move limit; it is derived from the
// code prefix only, never inferred from price behaviour.
type BoardType string

const (
	BoardMainShanghai BoardType = "main_sh"
	BoardMainShenzhen BoardType = "main_sz"
	BoardSciTech      BoardType = "sci_tech" // STAR market (688/689)
	BoardGrowth       BoardType = "growth"   // ChiNext (300/301)
	BoardBeijing      BoardType = "beijing"  // Beijing Stock Exchange
	BoardOther        BoardType = "other"
)

// BoardOf maps an exchange ticker code to its board. Exactly one board per
// code; more specific prefixes are checked before the broad ones.
func BoardOf(code string) BoardType {
	switch {
	case strings.HasPrefix(code, "688"), strings.HasPrefix(code, "689"):
		return BoardSciTech
	case strings.HasPrefix(code, "60"):
		return BoardMainShanghai
	case strings.HasPrefix(code, "300"), strings.HasPrefix(code, "301"):
		return BoardGrowth
	case strings.HasPrefix(code, "000"), strings.HasPrefix(code, "001"),
		strings.HasPrefix(code, "002"), strings.HasPrefix(code, "003"):
		return BoardMainShenzhen
	case strings.HasPrefix(code, "43"), strings.HasPrefix(code, "83"),
		strings.HasPrefix(code, "87"), strings.HasPrefix(code, "88"),
		strings.HasPrefix(code, "92"):
		return BoardBeijing
	default:
		return BoardOther
	}
}

var (
	rateMain    = decimal.NewFromFloat(0.10)
	rateSciTech = decimal.NewFromFloat(0.20)
	rateBeijing = decimal.NewFromFloat(0.30)
)

// LimitRate returns the daily price-move limit for the board as a fraction
// of the previous close. Unrecognized codes fall back to the main-board 10%.
// The 5% ST tier never applies here: ST names are excluded from
// classification before any rate lookup.
func (b BoardType) LimitRate() decimal.Decimal {
	switch b {
	case BoardSciTech, BoardGrowth:
		return rateSciTech
	case BoardBeijing:
		return rateBeijing
	default:
		return rateMain
	}
}

// SecurityQuote is one normalized equity snapshot record. Immutable once
// produced by the normalizer.
type SecurityQuote struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Last          decimal.Decimal `json:"last"`
	PrevClose     decimal.Decimal `json:"prevClose"`
	Change        decimal.Decimal `json:"change"`
	ChangeRate    decimal.Decimal `json:"changeRate"` // percent
	Volume        int64           `json:"volume"`
	Turnover      decimal.Decimal `json:"turnover"`
	TradePhase    string          `json:"tradePhase,omitempty"`
	AmplitudeRate decimal.Decimal `json:"amplitudeRate"`
	BoardSubtype  string          `json:"boardSubtype,omitempty"`
}

// Board returns the board derived from the quote's code prefix.
func (q *SecurityQuote) Board() BoardType {
	return BoardOf(q.Code)
}

// IsST reports whether the security carries special-treatment status,
// judged by its display name ("ST" / "*ST" prefix).
func (q *SecurityQuote) IsST() bool {
	name := strings.TrimSpace(q.Name)
	return strings.HasPrefix(name, "ST") || strings.HasPrefix(name, "*ST")
}

// InNormalTrading reports whether the exchange phase code marks the
// security as continuously trading. Feed B carries no phase code, so an
// empty phase counts as normal.
func (q *SecurityQuote) InNormalTrading() bool {
	if q.TradePhase == "" {
		return true
	}
	return strings.HasPrefix(q.TradePhase, "T")
}

// IsSuspended reports whether the exchange phase code marks a suspension.
func (q *SecurityQuote) IsSuspended() bool {
	return strings.HasPrefix(q.TradePhase, "P")
}
