package model

// Event model
//
// Utility log of batch runs: transaction imports, matcher runs, profit passes.
// Mostly read back by operators to see what touched the stores and when.
type Event struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	LogType   string `json:"logtype" gorm:"omitempty; not null; default:''; type:varchar(32); index;"` // Import, Trades, Profits
	Timestamp int64  `json:"timestamp" gorm:"omitempty; not null; default:0; index;"`                  // epoch millis
	Author    string `json:"author" gorm:"omitempty; not null; default:''; type:varchar(64);"`         // instance that ran the batch
	RunID     string `json:"runID" gorm:"omitempty; not null; default:''; type:varchar(64);"`
	Message   string `json:"message" gorm:"omitempty; not null; default:''; type:varchar(512);"`

	Model
}

const (
	EventTypeImport  = "Import"  // import of transactions
	EventTypeTrades  = "Trades"  // creation or update of trades
	EventTypeProfits = "Profits" // update of profits
)
