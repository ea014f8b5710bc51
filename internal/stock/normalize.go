//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package stock

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FeedDateLayout is the layout of the feed's Date field.
const FeedDateLayout = "2006-01-02T15:04:05"

// Skip causes.
var (
	ErrMalformedItem = errors.New("malformed feed item")
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidDate   = errors.New("invalid date")
)

// FeedItem is one raw item of the upstream feed. Pointer fields are nil
// when the key is absent or null.
type FeedItem struct {
	Date      *string `json:"Date"`
	StockCode *string `json:"StockCode"`
	StockName *string `json:"StockName"`
	Remarks   *string `json:"Remarks"`

	Previous            *decimal.Decimal `json:"Previous"`
	OpenPrice           *decimal.Decimal `json:"OpenPrice"`
	FirstTrade          *decimal.Decimal `json:"FirstTrade"`
	High                *decimal.Decimal `json:"High"`
	Low                 *decimal.Decimal `json:"Low"`
	Close               *decimal.Decimal `json:"Close"`
	Change              *decimal.Decimal `json:"Change"`
	Volume              *decimal.Decimal `json:"Volume"`
	Value               *decimal.Decimal `json:"Value"`
	Frequency           *decimal.Decimal `json:"Frequency"`
	IndexIndividual     *decimal.Decimal `json:"IndexIndividual"`
	Offer               *decimal.Decimal `json:"Offer"`
	OfferVolume         *decimal.Decimal `json:"OfferVolume"`
	Bid                 *decimal.Decimal `json:"Bid"`
	BidVolume           *decimal.Decimal `json:"BidVolume"`
	ListedShares        *decimal.Decimal `json:"ListedShares"`
	TradebleShares      *decimal.Decimal `json:"TradebleShares"` // sic, upstream spelling
	WeightForIndex      *decimal.Decimal `json:"WeightForIndex"`
	ForeignSell         *decimal.Decimal `json:"ForeignSell"`
	ForeignBuy          *decimal.Decimal `json:"ForeignBuy"`
	DelistingDate       *string          `json:"DelistingDate"`
	NonRegularVolume    *decimal.Decimal `json:"NonRegularVolume"`
	NonRegularValue     *decimal.Decimal `json:"NonRegularValue"`
	NonRegularFrequency *decimal.Decimal `json:"NonRegularFrequency"`
}

// Skip records why a feed item was left out of the batch.
type Skip struct {
	// Index is the item's position in the feed.
	Index int

	// StockCode is the item's code when it could be read.
	StockCode string

	Cause error
}

func (s *Skip) Error() string {
	if s.StockCode != "" {
		return fmt.Sprintf("item %d (%s): %v", s.Index, s.StockCode, s.Cause)
	}
	return fmt.Sprintf("item %d: %v", s.Index, s.Cause)
}

func (s *Skip) Unwrap() error { return s.Cause }

// Batch is the outcome of normalizing a whole feed.
type Batch struct {
	// Records holds the normalized items in feed order.
	Records []Summary

	// Skipped holds one entry per item left out.
	Skipped []Skip
}

// NormalizeAll normalizes every item. Malformed items are collected in
// Batch.Skipped and never stop the remaining items from being processed.
func NormalizeAll(items []json.RawMessage) Batch {
	b := Batch{Records: make([]Summary, 0, len(items))}
	for i, raw := range items {
		rec, err := Normalize(raw)
		if err != nil {
			skip := Skip{Index: i, Cause: err}
			var item struct {
				StockCode string `json:"StockCode"`
			}
			if json.Unmarshal(raw, &item) == nil {
				skip.StockCode = item.StockCode
			}
			b.Skipped = append(b.Skipped, skip)
			continue
		}
		b.Records = append(b.Records, rec)
	}
	return b
}

// Normalize decodes one raw feed item into a Summary.
func Normalize(raw json.RawMessage) (Summary, error) {
	var item FeedItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrMalformedItem, err)
	}
	return item.Summary()
}

// Summary applies the field defaults: numerics become zero when absent,
// Remarks and DelistingDate become nil when absent or empty.
func (f *FeedItem) Summary() (Summary, error) {
	if f.Date == nil {
		return Summary{}, fmt.Errorf("%w: Date", ErrMissingField)
	}
	date, err := time.Parse(FeedDateLayout, *f.Date)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %q does not match %s", ErrInvalidDate, *f.Date, FeedDateLayout)
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	if f.StockCode == nil {
		return Summary{}, fmt.Errorf("%w: StockCode", ErrMissingField)
	}
	if f.StockName == nil {
		return Summary{}, fmt.Errorf("%w: StockName", ErrMissingField)
	}

	delisting, err := optionalDate(f.DelistingDate)
	if err != nil {
		return Summary{}, err
	}

	code := *f.StockCode
	return Summary{
		IDStock:   ID(code, date),
		StockCode: code,
		Date:      date,
		StockName: *f.StockName,
		Remarks:   optionalText(f.Remarks),

		Previous:        orZero(f.Previous),
		OpenPrice:       orZero(f.OpenPrice),
		FirstTrade:      orZero(f.FirstTrade),
		High:            orZero(f.High),
		Low:             orZero(f.Low),
		Close:           orZero(f.Close),
		Change:          orZero(f.Change),
		Volume:          orZero(f.Volume),
		Value:           orZero(f.Value),
		Frequency:       orZero(f.Frequency),
		IndexIndividual: orZero(f.IndexIndividual),
		Offer:           orZero(f.Offer),
		OfferVolume:     orZero(f.OfferVolume),
		Bid:             orZero(f.Bid),
		BidVolume:       orZero(f.BidVolume),
		ListedShares:    orZero(f.ListedShares),
		TradeableShares: orZero(f.TradebleShares),
		WeightForIndex:  orZero(f.WeightForIndex),
		ForeignSell:     orZero(f.ForeignSell),
		ForeignBuy:      orZero(f.ForeignBuy),

		DelistingDate: delisting,

		NonRegularVolume:    orZero(f.NonRegularVolume),
		NonRegularValue:     orZero(f.NonRegularValue),
		NonRegularFrequency: orZero(f.NonRegularFrequency),
	}, nil
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func optionalText(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

// optionalDate accepts the feed layout or a plain date.
func optionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	for _, layout := range []string{FeedDateLayout, DateLayout} {
		if t, err := time.Parse(layout, *s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%w: DelistingDate %q", ErrInvalidDate, *s)
}
