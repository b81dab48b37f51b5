// Package model defines the database models, keeping mysql and redis connection instances.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Model struct {
	Status    int8      `json:"status" gorm:"omitempty; not null; type:tinyint; default:1;"`
	CreatedAt time.Time `json:"createdAt" gorm:"omitempty; not null; default:CURRENT_TIMESTAMP(3);"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"omitempty; not null; default:CURRENT_TIMESTAMP(3);"`
}

// GormArray is a gorm customer datatype, for storing string arrays in mysql using json
type GormArray []string

func (a GormArray) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	return string(b), err
}

func (a *GormArray) Scan(input interface{}) error {
	return json.Unmarshal(input.([]byte), a)
}

func (a GormArray) GormDataType() string {
	return "json"
}

func (a GormArray) Array() []string {
	return []string(a)
}

// TxRef references a broker transaction folded into a trade, by broker id and quantity
type TxRef struct {
	TxID   int64           `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

// TxRefs is a gorm customer datatype, for storing transaction references in mysql using json
type TxRefs []TxRef

func (a TxRefs) Value() (driver.Value, error) {
	if a == nil {
		a = TxRefs{}
	}
	b, err := json.Marshal(a)
	return string(b), err
}

func (a *TxRefs) Scan(input interface{}) error {
	return json.Unmarshal(input.([]byte), a)
}

func (a TxRefs) GormDataType() string {
	return "json"
}

// Has reports whether the broker transaction id is already referenced
func (a TxRefs) Has(txID int64) bool {
	for _, r := range a {
		if r.TxID == txID {
			return true
		}
	}
	return false
}

// Sum returns the total referenced quantity
func (a TxRefs) Sum() decimal.Decimal {
	s := decimal.Zero
	for _, r := range a {
		s = s.Add(r.Amount)
	}
	return s
}
