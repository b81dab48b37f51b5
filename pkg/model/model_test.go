package model_test

import (
	"encoding/json"
	"testing"

	"traderev/pkg/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestParseEffect(t *testing.T) {
	require.Equal(t, model.EffectOpening, model.ParseEffect("OPENING"))
	require.Equal(t, model.EffectClosing, model.ParseEffect("CLOSING"))
	require.Equal(t, model.EffectOther, model.ParseEffect(""))
	require.Equal(t, model.EffectOther, model.ParseEffect("opening"), "broker values are uppercase, no guessing")
	require.Equal(t, model.EffectOther, model.ParseEffect("DIVIDEND"))
}

func TestTransactionTotalFees(t *testing.T) {
	tx := model.Transaction{
		Commission:    dec("1.30"), // not a fee
		OptRegFee:     dec("0.01"),
		RegFee:        dec("0.02"),
		AdditionalFee: dec("0.04"),
		CdscFee:       dec("0.08"),
		OtherCharges:  dec("0.16"),
		RFee:          dec("0.32"),
		SecFee:        dec("0.64"),
	}
	require.True(t, tx.TotalFees().Equal(dec("1.27")), "got %s", tx.TotalFees())
}

func TestTransactionFromBrokerJSON(t *testing.T) {
	line := `{"id":12345,"symbol":"AAPL_073120C400","underlying":"AAPL",` +
		`"putcall":"CALL","positioneffect":"OPENING","transactiondate":1596150000000,` +
		`"amount":2,"cost":-410.0,"commission":1.3,"regfee":0.04}`

	var tx model.Transaction
	require.NoError(t, json.Unmarshal([]byte(line), &tx))
	require.Equal(t, int64(12345), tx.TxID)
	require.Equal(t, "AAPL_073120C400", tx.Symbol)
	require.Equal(t, model.EffectOpening, tx.Effect())
	require.Equal(t, int64(1596150000000), tx.TransactionDate)
	require.True(t, tx.Amount.Equal(dec("2")))
	require.True(t, tx.Cost.Equal(dec("-410")))
	require.True(t, tx.TotalFees().Equal(dec("0.04")))
}

func TestTxRefsHasAndSum(t *testing.T) {
	refs := model.TxRefs{
		{TxID: 1, Amount: dec("4")},
		{TxID: 2, Amount: dec("6")},
	}
	require.True(t, refs.Has(1))
	require.True(t, refs.Has(2))
	require.False(t, refs.Has(3))
	require.True(t, refs.Sum().Equal(dec("10")))

	var empty model.TxRefs
	require.False(t, empty.Has(1))
	require.True(t, empty.Sum().IsZero())
}

func TestTxRefsValueScan(t *testing.T) {
	refs := model.TxRefs{{TxID: 7, Amount: dec("2.5")}}

	v, err := refs.Value()
	require.NoError(t, err)

	var got model.TxRefs
	require.NoError(t, got.Scan([]byte(v.(string))))
	require.Len(t, got, 1)
	require.Equal(t, int64(7), got[0].TxID)
	require.True(t, got[0].Amount.Equal(dec("2.5")))
}

func TestTxRefsNilValue(t *testing.T) {
	var refs model.TxRefs
	v, err := refs.Value()
	require.NoError(t, err)
	require.Equal(t, "[]", v, "nil refs stored as an empty json array, not null")
}

func TestTradeIsOpen(t *testing.T) {
	tr := model.Trade{OpenAmount: dec("3")}
	require.True(t, tr.IsOpen())

	tr.OpenAmount = decimal.Zero
	require.False(t, tr.IsOpen())
}
