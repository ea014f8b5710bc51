//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-stock-ingest/internal/stock"
)

// maxCodes is the number of distinct four letter tickers.
const maxCodes = 26 * 26 * 26 * 26

var remarks = []string{
	"",
	"--U-3100000000000000000000000",
	"--S-3100000000000000000000000",
	"--M-3100000000000000000000000",
	"--X-2100000000000000000000000",
}

// Item is one feed entry keyed by upstream field names.
type Item map[string]any

// FeedGenerator produces daily summary feeds for a single trading date.
type FeedGenerator struct {
	faker     *Faker
	date      time.Time
	malformed float64
}

// NewFeedGenerator creates a generator for date.
func NewFeedGenerator(f *Faker, date time.Time) *FeedGenerator {
	return &FeedGenerator{faker: f, date: date}
}

// WithMalformed makes roughly ratio of the generated items fail
// normalization.
func (g *FeedGenerator) WithMalformed(ratio float64) *FeedGenerator {
	g.malformed = ratio
	return g
}

// Items generates n items with distinct stock codes.
func (g *FeedGenerator) Items(n int) []Item {
	if n > maxCodes {
		n = maxCodes
	}

	seen := make(map[string]bool, n)
	items := make([]Item, 0, n)
	for len(items) < n {
		code := g.faker.StockCode()
		if seen[code] {
			continue
		}
		seen[code] = true

		item := g.item(code)
		if g.malformed > 0 && g.faker.Chance(g.malformed) {
			g.corrupt(item)
		}
		items = append(items, item)
	}
	return items
}

// Payload returns n items wrapped the way the upstream serves them.
func (g *FeedGenerator) Payload(n int) ([]byte, error) {
	return json.Marshal(map[string]any{"data": g.Items(n)})
}

func (g *FeedGenerator) item(code string) Item {
	f := g.faker

	previous := roundToTick(f.Decimal(50, 40000, 0))
	tick := tickSize(previous)
	step := func(maxTicks int) decimal.Decimal {
		ticks := decimal.NewFromInt(int64(f.Int(-maxTicks, maxTicks)))
		return atLeast(previous.Add(tick.Mul(ticks)), tick)
	}

	open := step(5)
	closing := step(20)
	high := decimal.Max(open, closing).Add(tick.Mul(decimal.NewFromInt(int64(f.Int(0, 5)))))
	low := atLeast(decimal.Min(open, closing).Sub(tick.Mul(decimal.NewFromInt(int64(f.Int(0, 5))))), tick)

	volume := f.Shares(1, 5_000_000).Mul(decimal.NewFromInt(100))
	listed := f.Shares(100_000_000, 100_000_000_000)
	tradeable := listed.Mul(f.Decimal(0.05, 0.6, 2)).Floor()
	foreignBuy := volume.Mul(f.Decimal(0, 0.4, 2)).Floor()
	foreignSell := volume.Mul(f.Decimal(0, 0.4, 2)).Floor()

	var nonRegularVolume, nonRegularValue, nonRegularFrequency decimal.Decimal
	if f.Chance(0.2) {
		nonRegularVolume = f.Shares(100, 10_000_000)
		nonRegularValue = nonRegularVolume.Mul(closing)
		nonRegularFrequency = f.Shares(1, 50)
	}

	return Item{
		"Date":                g.date.Format(stock.FeedDateLayout),
		"StockCode":           code,
		"StockName":           f.CompanyName(),
		"Remarks":             Choose(f, remarks),
		"Previous":            number(previous),
		"OpenPrice":           number(open),
		"FirstTrade":          number(open),
		"High":                number(high),
		"Low":                 number(low),
		"Close":               number(closing),
		"Change":              number(closing.Sub(previous)),
		"Volume":              number(volume),
		"Value":               number(volume.Mul(closing)),
		"Frequency":           number(f.Shares(1, 80_000)),
		"IndexIndividual":     number(f.Decimal(10, 900, 1)),
		"Offer":               number(closing.Add(tick)),
		"OfferVolume":         number(f.Shares(1, 50_000).Mul(decimal.NewFromInt(100))),
		"Bid":                 number(atLeast(closing.Sub(tick), tick)),
		"BidVolume":           number(f.Shares(1, 50_000).Mul(decimal.NewFromInt(100))),
		"ListedShares":        number(listed),
		"TradebleShares":      number(tradeable),
		"WeightForIndex":      number(tradeable),
		"ForeignSell":         number(foreignSell),
		"ForeignBuy":          number(foreignBuy),
		"DelistingDate":       "",
		"NonRegularVolume":    number(nonRegularVolume),
		"NonRegularValue":     number(nonRegularValue),
		"NonRegularFrequency": number(nonRegularFrequency),
	}
}

// corrupt breaks one required field of item.
func (g *FeedGenerator) corrupt(item Item) {
	switch g.faker.Int(0, 3) {
	case 0:
		delete(item, "StockName")
	case 1:
		item["StockCode"] = nil
	case 2:
		item["Date"] = g.date.Format("02/01/2006")
	default:
		item["DelistingDate"] = "soon"
	}
}

// tickSize returns the IDX price fraction for price.
func tickSize(price decimal.Decimal) decimal.Decimal {
	switch {
	case price.LessThan(decimal.NewFromInt(200)):
		return decimal.NewFromInt(1)
	case price.LessThan(decimal.NewFromInt(500)):
		return decimal.NewFromInt(2)
	case price.LessThan(decimal.NewFromInt(2000)):
		return decimal.NewFromInt(5)
	case price.LessThan(decimal.NewFromInt(5000)):
		return decimal.NewFromInt(10)
	default:
		return decimal.NewFromInt(25)
	}
}

func roundToTick(price decimal.Decimal) decimal.Decimal {
	tick := tickSize(price)
	return price.Div(tick).Floor().Mul(tick)
}

func atLeast(d, floor decimal.Decimal) decimal.Decimal {
	return decimal.Max(d, floor)
}

// number renders d as a bare JSON number.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
