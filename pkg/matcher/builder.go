package matcher

import (
	"traderev/pkg/diag"
	"traderev/pkg/model"
)

// BuildOpeningTrade computes a new trade aggregate from an opening fill.
// The opening transaction is the single entry of OpeningTransactions and the
// trade starts with its full quantity open.
func BuildOpeningTrade(tx *model.Transaction) (trade *model.Trade, err error) {
	if !tx.Amount.IsPositive() {
		err = diag.Ef(diag.KindMalformedRecord, "opening tx:%d has non-positive amount %s", tx.TxID, tx.Amount)
		return
	}

	trade = &model.Trade{
		Symbol:     tx.Symbol,
		Underlying: tx.Underlying,
		PutCall:    tx.PutCall,

		OpeningDate: tx.TransactionDate,
		ClosingDate: 0,

		OpeningPrice: tx.Cost,
		OpenAmount:   tx.Amount,

		TotalCommission: tx.Commission,
		TotalFees:       tx.TotalFees(),

		OpeningTransactions: model.TxRefs{{TxID: tx.TxID, Amount: tx.Amount}},
		ClosingTransactions: model.TxRefs{},
	}

	return
}

// ApplyClosingTransaction computes the additive update a closing fill applies
// to its trade. Everything accumulates except the closing date, which is only
// written by the close that exhausts the open quantity, so a partially closed
// trade keeps closingdate 0. Closing proceeds keep the sign the broker
// delivered, so closingprice grows by tx.Cost and profit later falls out of
// openingprice + closingprice.
func ApplyClosingTransaction(trade *model.Trade, tx *model.Transaction) (delta model.TradeDelta, err error) {
	if !tx.Amount.IsPositive() {
		err = diag.Ef(diag.KindMalformedRecord, "closing tx:%d has non-positive amount %s", tx.TxID, tx.Amount)
		return
	}
	if tx.Amount.GreaterThan(trade.OpenAmount) {
		err = diag.Ef(diag.KindMalformedRecord, "closing tx:%d amount %s exceeds open quantity %s of trade:%d",
			tx.TxID, tx.Amount, trade.OpenAmount, trade.ID)
		return
	}

	delta = model.TradeDelta{
		ClosingPrice:    tx.Cost,
		TotalCommission: tx.Commission,
		TotalFees:       tx.TotalFees(),
		Amount:          tx.Amount,
		Ref:             model.TxRef{TxID: tx.TxID, Amount: tx.Amount},
	}
	if tx.Amount.Equal(trade.OpenAmount) {
		delta.ClosingDate = tx.TransactionDate
	}

	return
}
