package limits

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wendao/limitpulse/internal/quote"
)

// Direction marks which price band a security hit.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// priceEpsilon absorbs upstream rounding of last prices. A security within
// one cent of its computed band price still qualifies.
var priceEpsilon = decimal.NewFromFloat(0.01)

// hundred converts fractional rates to percent.
var hundred = decimal.NewFromInt(100)

// LimitFact is one classified security with its band arithmetic and rank.
type LimitFact struct {
	SecurityCode            string          `json:"securityCode"`
	SecurityName            string          `json:"securityName"`
	BoardType               quote.BoardType `json:"boardType"`
	Rank                    int             `json:"rank"`
	PrevClose               decimal.Decimal `json:"prevClose"`
	Last                    decimal.Decimal `json:"last"`
	LimitThresholdPrice     decimal.Decimal `json:"limitThresholdPrice"`
	LimitRatePercent        decimal.Decimal `json:"limitRatePercent"`
	ActualChangeRatePercent decimal.Decimal `json:"actualChangeRatePercent"`
	Turnover                decimal.Decimal `json:"turnover"`
	Volume                  int64           `json:"volume"`
	Direction               Direction       `json:"direction"`
}

// Summary aggregates board counts for one classified set.
type Summary struct {
	TotalCount       int `json:"totalCount"`
	MainBoardCount   int `json:"mainBoardCount"`
	GrowthBoardCount int `json:"growthBoardCount"`
}

// Classifier derives limit-up/limit-down facts from a normalized snapshot.
// Classification is pure arithmetic over prev close and board rate; the
// feeds' own "limit" flags are never consulted.
type Classifier struct{}

// NewClassifier creates a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// LimitUp returns the securities at their upper price band, ranked by
// actual change rate descending.
func (c *Classifier) LimitUp(quotes []*quote.SecurityQuote) []LimitFact {
	return c.classify(quotes, DirectionUp)
}

// LimitDown returns the securities at their lower price band, ranked by
// actual change rate ascending.
func (c *Classifier) LimitDown(quotes []*quote.SecurityQuote) []LimitFact {
	return c.classify(quotes, DirectionDown)
}

// Suspended returns the securities whose trade phase marks a suspension.
func (c *Classifier) Suspended(quotes []*quote.SecurityQuote) []*quote.SecurityQuote {
	var out []*quote.SecurityQuote
	for _, q := range quotes {
		if q.IsSuspended() {
			out = append(out, q)
		}
	}
	return out
}

func (c *Classifier) classify(quotes []*quote.SecurityQuote, dir Direction) []LimitFact {
	facts := make([]LimitFact, 0, 64)
	for _, q := range quotes {
		if fact, ok := c.evaluate(q, dir); ok {
			facts = append(facts, fact)
		}
	}
	rank(facts, dir)
	return facts
}

// evaluate applies the eligibility rules and band arithmetic to one quote.
func (c *Classifier) evaluate(q *quote.SecurityQuote, dir Direction) (LimitFact, bool) {
	// Special-treatment names trade under their own 5% band and are out of
	// scope; securities outside continuous trading have stale prices.
	if q.IsST() || !q.InNormalTrading() {
		return LimitFact{}, false
	}
	if q.PrevClose.LessThanOrEqual(decimal.Zero) || q.Last.LessThanOrEqual(decimal.Zero) {
		return LimitFact{}, false
	}

	board := q.Board()
	rate := board.LimitRate()

	var threshold decimal.Decimal
	var hit bool
	if dir == DirectionUp {
		threshold = q.PrevClose.Mul(decimal.NewFromInt(1).Add(rate)).Round(2)
		hit = q.Last.GreaterThanOrEqual(threshold.Sub(priceEpsilon))
	} else {
		threshold = q.PrevClose.Mul(decimal.NewFromInt(1).Sub(rate)).Round(2)
		hit = q.Last.LessThanOrEqual(threshold.Add(priceEpsilon))
	}
	if !hit {
		return LimitFact{}, false
	}

	actualRate := q.Last.Sub(q.PrevClose).Div(q.PrevClose).Mul(hundred).Round(2)

	return LimitFact{
		SecurityCode:            q.Code,
		SecurityName:            q.Name,
		BoardType:               board,
		PrevClose:               q.PrevClose,
		Last:                    q.Last,
		LimitThresholdPrice:     threshold,
		LimitRatePercent:        rate.Mul(hundred),
		ActualChangeRatePercent: actualRate,
		Turnover:                q.Turnover,
		Volume:                  q.Volume,
		Direction:               dir,
	}, true
}

// rank orders facts by actual change rate (direction-dependent), breaking
// ties by turnover then volume, and assigns dense 1-based ranks: equal
// change rates share a rank.
func rank(facts []LimitFact, dir Direction) {
	sort.SliceStable(facts, func(i, j int) bool {
		a, b := facts[i], facts[j]
		if !a.ActualChangeRatePercent.Equal(b.ActualChangeRatePercent) {
			if dir == DirectionUp {
				return a.ActualChangeRatePercent.GreaterThan(b.ActualChangeRatePercent)
			}
			return a.ActualChangeRatePercent.LessThan(b.ActualChangeRatePercent)
		}
		if !a.Turnover.Equal(b.Turnover) {
			return a.Turnover.GreaterThan(b.Turnover)
		}
		return a.Volume > b.Volume
	})

	current := 0
	for i := range facts {
		if i == 0 || !facts[i].ActualChangeRatePercent.Equal(facts[i-1].ActualChangeRatePercent) {
			current++
		}
		facts[i].Rank = current
	}
}

// Summarize counts the classified facts per board family.
func Summarize(facts []LimitFact) Summary {
	s := Summary{TotalCount: len(facts)}
	for _, f := range facts {
		switch f.BoardType {
		case quote.BoardMainShanghai, quote.BoardMainShenzhen:
			s.MainBoardCount++
		case quote.BoardGrowth:
			s.GrowthBoardCount++
		}
	}
	return s
}
