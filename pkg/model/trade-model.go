package model

import (
	"github.com/shopspring/decimal"
)

// Trade model, a round-trip position: one opening transaction plus the
// closing transactions matched to it so far. Open while OpenAmount > 0.
type Trade struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	Symbol     string `json:"symbol" gorm:"omitempty; not null; default:''; type:varchar(64); index;"`
	Underlying string `json:"underlying" gorm:"omitempty; not null; default:''; type:varchar(32);"`
	PutCall    string `json:"putcall" gorm:"omitempty; not null; default:''; type:varchar(8);"`

	OpeningDate int64 `json:"openingdate" gorm:"omitempty; not null; default:0; index;"` // epoch millis
	ClosingDate int64 `json:"closingdate" gorm:"omitempty; not null; default:0; index;"` // 0 while the trade has open quantity

	OpeningPrice decimal.Decimal `json:"openingprice" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	ClosingPrice decimal.Decimal `json:"closingprice" gorm:"omitempty; not null; default:0; type:decimal(36,18);"` // accumulated closing costs
	OpenAmount   decimal.Decimal `json:"openamount" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`   // remaining open quantity

	TotalCommission decimal.Decimal `json:"totalcommission" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	TotalFees       decimal.Decimal `json:"totalfees" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`

	OpeningTransactions TxRefs `json:"openingtransactions" gorm:"omitempty;"` // always exactly one entry
	ClosingTransactions TxRefs `json:"closingtransactions" gorm:"omitempty;"`

	ProfitDollars decimal.Decimal `json:"profitdollars" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	ProfitPercent decimal.Decimal `json:"profitpercent" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	Reconciled    int8            `json:"reconciled" gorm:"omitempty; not null; default:0; type:tinyint(1); index;"` // 1 once profit has been computed

	Version int64 `json:"version" gorm:"omitempty; not null; default:0;"` // optimistic concurrency counter

	Model
}

// IsOpen reports whether the trade still carries open quantity
func (t *Trade) IsOpen() bool {
	return t.OpenAmount.IsPositive()
}

// TradeDelta is the additive update a closing transaction applies to a trade.
// Applied as one conditional update against the trade store.
type TradeDelta struct {
	ClosingDate     int64           // overwritten, latest closing transaction wins
	ClosingPrice    decimal.Decimal // added
	TotalCommission decimal.Decimal // added
	TotalFees       decimal.Decimal // added
	Amount          decimal.Decimal // subtracted from OpenAmount
	Ref             TxRef           // appended to ClosingTransactions
}

// ReconcileResult mirrors a bulk update outcome
type ReconcileResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}
