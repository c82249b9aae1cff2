package feed

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wendao/limitpulse/internal/quote"
)

// Normalizer converts provider-shaped raw rows into SecurityQuote records.
// Parsing is lenient: malformed or absent numeric fields coerce to zero so
// one broken field never discards an otherwise usable record. Records
// missing a code or name are dropped entirely.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize maps one raw row to a quote. It returns nil when the row is
// unusable (unknown provider shape, or missing code/name).
func (n *Normalizer) Normalize(raw RawRecord) *quote.SecurityQuote {
	switch raw.Provider {
	case ProviderShanghai:
		return n.fromPositional(raw.Positional)
	case ProviderEastmoney:
		return n.fromCoded(raw.Coded)
	default:
		return nil
	}
}

// NormalizeAll maps a raw batch, silently dropping unusable rows.
func (n *Normalizer) NormalizeAll(raws []RawRecord) []*quote.SecurityQuote {
	out := make([]*quote.SecurityQuote, 0, len(raws))
	for _, raw := range raws {
		if q := n.Normalize(raw); q != nil {
			out = append(out, q)
		}
	}
	return out
}

func (n *Normalizer) fromPositional(row []interface{}) *quote.SecurityQuote {
	at := func(i int) interface{} {
		if i < len(row) {
			return row[i]
		}
		return nil
	}

	code := parseString(at(posCode))
	name := parseString(at(posName))
	if code == "" || name == "" {
		return nil
	}

	return &quote.SecurityQuote{
		Code:          code,
		Name:          name,
		Open:          parseDecimal(at(posOpen)),
		High:          parseDecimal(at(posHigh)),
		Low:           parseDecimal(at(posLow)),
		Last:          parseDecimal(at(posLast)),
		PrevClose:     parseDecimal(at(posPrevClose)),
		Change:        parseDecimal(at(posChange)),
		ChangeRate:    parseDecimal(at(posChangeRate)),
		Volume:        parseInt64(at(posVolume)),
		Turnover:      parseDecimal(at(posAmount)),
		TradePhase:    parseString(at(posTradePhase)),
		AmplitudeRate: parseDecimal(at(posAmplitudeRate)),
		BoardSubtype:  parseString(at(posSubtype)),
	}
}

func (n *Normalizer) fromCoded(row map[string]interface{}) *quote.SecurityQuote {
	code := parseString(row[codedCode])
	name := parseString(row[codedName])
	if code == "" || name == "" {
		return nil
	}

	return &quote.SecurityQuote{
		Code:          code,
		Name:          name,
		Open:          parseDecimal(row[codedOpen]),
		High:          parseDecimal(row[codedHigh]),
		Low:           parseDecimal(row[codedLow]),
		Last:          parseDecimal(row[codedLast]),
		PrevClose:     parseDecimal(row[codedPrevClose]),
		Change:        parseDecimal(row[codedChange]),
		ChangeRate:    parseDecimal(row[codedChangeRate]),
		Volume:        parseInt64(row[codedVolume]),
		Turnover:      parseDecimal(row[codedAmount]),
		AmplitudeRate: parseDecimal(row[codedAmplitude]),
	}
}

func parseString(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// parseDecimal coerces feed values to a decimal. Feeds interleave strings
// and JSON numbers for the same field, pad with thousands separators and
// percent signs, and use "-" for absent values. Anything unparseable
// becomes zero.
func parseDecimal(v interface{}) decimal.Decimal {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x)
	case string:
		s := strings.TrimSpace(x)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSuffix(s, "%")
		if s == "" || s == "-" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func parseInt64(v interface{}) int64 {
	return parseDecimal(v).IntPart()
}
