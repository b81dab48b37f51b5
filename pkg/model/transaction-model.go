package model

import (
	"github.com/shopspring/decimal"
)

// PositionEffect is the normalized position effect of a transaction
type PositionEffect int8

const (
	EffectOther   PositionEffect = 0 // expiration, assignment, anything not matched
	EffectOpening PositionEffect = 1
	EffectClosing PositionEffect = 2
)

const (
	RawEffectOpening = "OPENING"
	RawEffectClosing = "CLOSING"
)

// ParseEffect maps the broker's positioneffect string onto the closed enum
func ParseEffect(s string) PositionEffect {
	switch s {
	case RawEffectOpening:
		return EffectOpening
	case RawEffectClosing:
		return EffectClosing
	default:
		return EffectOther
	}
}

// Transaction model, one option/equity fill as delivered by the broker API.
// Immutable once ingested except for the Processed flag.
type Transaction struct {
	ID int64 `json:"-" gorm:"omitempty; primaryKey;"`

	TxID int64 `json:"id" gorm:"omitempty; not null; default:0; uniqueindex;"` // broker-assigned id, not the row id

	Symbol         string `json:"symbol" gorm:"omitempty; not null; default:''; type:varchar(64); index;"`
	Underlying     string `json:"underlying" gorm:"omitempty; not null; default:''; type:varchar(32);"`
	PutCall        string `json:"putcall" gorm:"omitempty; not null; default:''; type:varchar(8);"`           // CALL, PUT, empty for equities
	PositionEffect string `json:"positioneffect" gorm:"omitempty; not null; default:''; type:varchar(16);"`   // raw broker value
	TransactionDate int64 `json:"transactiondate" gorm:"omitempty; not null; default:0; index;"`              // epoch millis

	Amount decimal.Decimal `json:"amount" gorm:"omitempty; not null; default:0; type:decimal(36,18);"` // signed quantity
	Cost   decimal.Decimal `json:"cost" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`   // opening cost and closing proceeds carry opposite signs

	Commission    decimal.Decimal `json:"commission" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	OptRegFee     decimal.Decimal `json:"optregfee" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	RegFee        decimal.Decimal `json:"regfee" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	AdditionalFee decimal.Decimal `json:"additionalfee" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	CdscFee       decimal.Decimal `json:"cdscfee" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	OtherCharges  decimal.Decimal `json:"othercharges" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	RFee          decimal.Decimal `json:"rfee" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	SecFee        decimal.Decimal `json:"secfee" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`

	Processed int8 `json:"processed" gorm:"omitempty; not null; default:0; type:tinyint(1); index;"` // 0 pending, 1 folded into a trade

	Model
}

// Effect returns the normalized position effect
func (t *Transaction) Effect() PositionEffect {
	return ParseEffect(t.PositionEffect)
}

// TotalFees sums the seven broker fee fields
func (t *Transaction) TotalFees() decimal.Decimal {
	return t.OptRegFee.
		Add(t.RegFee).
		Add(t.AdditionalFee).
		Add(t.CdscFee).
		Add(t.OtherCharges).
		Add(t.RFee).
		Add(t.SecFee)
}
