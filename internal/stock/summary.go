//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package stock defines the daily stock summary record, its identity and
// the normalization of raw feed items into records.
package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout of the id_stock date suffix and of plain dates.
const DateLayout = "2006-01-02"

// Columns lists the stock_summary columns in write order. Summary.Values
// returns its values in the same order.
var Columns = []string{
	"id_stock", "stock_code", "date", "stock_name", "remarks", "previous",
	"open_price", "first_trade", "high", "low", "close", "change",
	"volume", "value", "frequency", "index_individual",
	"offer", "offer_volume", "bid", "bid_volume",
	"listed_shares", "tradeable_shares", "weight_for_index",
	"foreign_sell", "foreign_buy", "delisting_date",
	"non_regular_volume", "non_regular_value", "non_regular_frequency",
}

// Summary is one stock's trading summary for one date. The natural key is
// (StockCode, Date).
type Summary struct {
	IDStock   string
	StockCode string
	Date      time.Time
	StockName string
	Remarks   *string

	Previous        decimal.Decimal
	OpenPrice       decimal.Decimal
	FirstTrade      decimal.Decimal
	High            decimal.Decimal
	Low             decimal.Decimal
	Close           decimal.Decimal
	Change          decimal.Decimal
	Volume          decimal.Decimal
	Value           decimal.Decimal
	Frequency       decimal.Decimal
	IndexIndividual decimal.Decimal
	Offer           decimal.Decimal
	OfferVolume     decimal.Decimal
	Bid             decimal.Decimal
	BidVolume       decimal.Decimal
	ListedShares    decimal.Decimal
	TradeableShares decimal.Decimal
	WeightForIndex  decimal.Decimal
	ForeignSell     decimal.Decimal
	ForeignBuy      decimal.Decimal

	DelistingDate *time.Time

	NonRegularVolume    decimal.Decimal
	NonRegularValue     decimal.Decimal
	NonRegularFrequency decimal.Decimal
}

// ID derives the record identifier "{code}_{YYYY-MM-DD}". The code is used
// as given.
func ID(code string, date time.Time) string {
	return code + "_" + date.Format(DateLayout)
}

// Values returns the column values in Columns order. Numerics are passed
// as decimal strings so they are sent in text format.
func (s *Summary) Values() []any {
	return []any{
		s.IDStock, s.StockCode, s.Date, s.StockName, s.Remarks, s.Previous.String(),
		s.OpenPrice.String(), s.FirstTrade.String(), s.High.String(), s.Low.String(), s.Close.String(), s.Change.String(),
		s.Volume.String(), s.Value.String(), s.Frequency.String(), s.IndexIndividual.String(),
		s.Offer.String(), s.OfferVolume.String(), s.Bid.String(), s.BidVolume.String(),
		s.ListedShares.String(), s.TradeableShares.String(), s.WeightForIndex.String(),
		s.ForeignSell.String(), s.ForeignBuy.String(), s.DelistingDate,
		s.NonRegularVolume.String(), s.NonRegularValue.String(), s.NonRegularFrequency.String(),
	}
}
