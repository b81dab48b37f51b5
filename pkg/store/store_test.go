package store_test

import (
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"testing"
	"time"

	"traderev/pkg/config"
	"traderev/pkg/model"
	"traderev/pkg/store"
	"traderev/pkg/xlog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	db  *gorm.DB
	st  *store.Store
	ctx = context.Background()
)

func TestMain(m *testing.M) {
	config.Shared = &config.Config{
		IsDebug: true,
	}

	config.Shared.MySQL.Main = config.MySQLServer{
		Host:         "127.0.0.1",
		User:         "aaronn",
		Pass:         "localdbtestpwd",
		DB:           "traderev",
		Port:         3306,
		MaxOpenConns: 8,
	}

	conn, err := net.DialTimeout("tcp", "127.0.0.1:3306", time.Second)
	if err != nil {
		fmt.Println("mysql unreachable, skipping store tests")
		os.Exit(0)
	}
	conn.Close()

	xlog.Init("test", path.Join(os.TempDir(), "traderev-test.log"), nil)

	db = model.OpenMySQL()
	st = store.New(db, 10*time.Second)

	if err := st.EnsureIndexes(ctx); err != nil {
		fmt.Println("migrate failed:", err)
		os.Exit(1)
	}

	db.Where("`id` > 0").Delete(&model.Transaction{})
	db.Where("`id` > 0").Delete(&model.Trade{})
	db.Where("`id` > 0").Delete(&model.Event{})
	db.Where("`id` > 0").Delete(&model.Week{})

	os.Exit(m.Run())
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestInsertTransactionsReplay(t *testing.T) {
	txs := []model.Transaction{
		{TxID: 9001, Symbol: "STORETEST1", PositionEffect: model.RawEffectOpening,
			TransactionDate: 1000, Amount: dec("2"), Cost: dec("-100")},
		{TxID: 9002, Symbol: "STORETEST1", PositionEffect: model.RawEffectClosing,
			TransactionDate: 2000, Amount: dec("2"), Cost: dec("120")},
	}

	inserted, err := st.InsertTransactions(ctx, txs)
	require.Nil(t, err)
	require.EqualValues(t, 2, inserted)

	// replaying the same broker ids inserts nothing
	inserted, err = st.InsertTransactions(ctx, []model.Transaction{
		{TxID: 9001, Symbol: "STORETEST1"},
	})
	require.Nil(t, err)
	require.EqualValues(t, 0, inserted)
}

func TestFetchUnprocessedAndMark(t *testing.T) {
	_, err := st.InsertTransactions(ctx, []model.Transaction{
		{TxID: 9101, Symbol: "STORETEST2", TransactionDate: 5000, Amount: dec("1")},
		{TxID: 9102, Symbol: "STORETEST2", TransactionDate: 3000, Amount: dec("1")},
	})
	require.Nil(t, err)

	txs, err := st.FetchUnprocessed(ctx, 1000)
	require.Nil(t, err)

	// oldest first regardless of insert order
	var last int64
	for _, tx := range txs {
		require.GreaterOrEqual(t, tx.TransactionDate, last)
		last = tx.TransactionDate
	}

	updated, err := st.MarkProcessed(ctx, []int64{9101, 9102})
	require.Nil(t, err)
	require.EqualValues(t, 2, updated)

	// marked rows drop out of the page
	txs, err = st.FetchUnprocessed(ctx, 1000)
	require.Nil(t, err)
	for _, tx := range txs {
		require.NotContains(t, []int64{9101, 9102}, tx.TxID)
	}

	// re-marking matches nothing
	updated, err = st.MarkProcessed(ctx, []int64{9101, 9102})
	require.Nil(t, err)
	require.EqualValues(t, 0, updated)
}

func TestTradeLifecycle(t *testing.T) {
	trade := &model.Trade{
		Symbol:              "STORETEST3",
		OpeningDate:         1000,
		OpeningPrice:        dec("-500"),
		OpenAmount:          dec("10"),
		OpeningTransactions: model.TxRefs{{TxID: 9201, Amount: dec("10")}},
		ClosingTransactions: model.TxRefs{},
	}
	id, err := st.InsertTrade(ctx, trade)
	require.Nil(t, err)
	require.NotZero(t, id)

	// a later trade for the same symbol never shadows the older one
	_, err = st.InsertTrade(ctx, &model.Trade{
		Symbol:              "STORETEST3",
		OpeningDate:         9000,
		OpenAmount:          dec("5"),
		OpeningTransactions: model.TxRefs{{TxID: 9202, Amount: dec("5")}},
		ClosingTransactions: model.TxRefs{},
	})
	require.Nil(t, err)

	found, err := st.FindOldestOpenTrade(ctx, "STORETEST3")
	require.Nil(t, err)
	require.NotNil(t, found)
	require.Equal(t, id, found.ID)

	delta := model.TradeDelta{
		ClosingDate:  2000,
		ClosingPrice: dec("600"),
		Amount:       dec("10"),
		Ref:          model.TxRef{TxID: 9203, Amount: dec("10")},
	}
	err = st.ApplyTradeDelta(ctx, found, delta)
	require.Nil(t, err)

	// the stale snapshot lost its version and must not apply again
	err = st.ApplyTradeDelta(ctx, found, delta)
	require.ErrorIs(t, err, store.ErrStale)

	var reloaded model.Trade
	require.Nil(t, db.First(&reloaded, id).Error)
	require.True(t, reloaded.OpenAmount.IsZero())
	require.Equal(t, int64(2000), reloaded.ClosingDate)
	require.True(t, reloaded.ClosingPrice.Equal(dec("600")))
	require.True(t, reloaded.ClosingTransactions.Has(9203))
	require.Equal(t, int64(1), reloaded.Version)

	applied, err := st.AppliedTxIDs(ctx)
	require.Nil(t, err)
	require.True(t, applied[9201])
	require.True(t, applied[9203])
}

func TestFindOldestOpenTradeMissing(t *testing.T) {
	found, err := st.FindOldestOpenTrade(ctx, "NOSUCHSYMBOL")
	require.Nil(t, err)
	require.Nil(t, found)
}

func TestBulkReconcileProfits(t *testing.T) {
	_, err := st.InsertTrade(ctx, &model.Trade{
		Symbol:              "STORETEST4",
		OpeningDate:         1000,
		ClosingDate:         2000,
		OpeningPrice:        dec("-500"),
		ClosingPrice:        dec("600"),
		OpenAmount:          decimal.Zero,
		OpeningTransactions: model.TxRefs{{TxID: 9301, Amount: dec("1")}},
		ClosingTransactions: model.TxRefs{{TxID: 9302, Amount: dec("1")}},
	})
	require.Nil(t, err)

	// zero opening price, percent must stay unset
	_, err = st.InsertTrade(ctx, &model.Trade{
		Symbol:              "STORETEST5",
		OpeningDate:         1000,
		ClosingDate:         2000,
		ClosingPrice:        dec("120"),
		OpenAmount:          decimal.Zero,
		OpeningTransactions: model.TxRefs{{TxID: 9303, Amount: dec("1")}},
		ClosingTransactions: model.TxRefs{{TxID: 9304, Amount: dec("1")}},
	})
	require.Nil(t, err)

	res, err := st.BulkReconcileProfits(ctx)
	require.Nil(t, err)
	require.GreaterOrEqual(t, res.Modified, int64(2))

	var normal model.Trade
	require.Nil(t, db.Where("`symbol` = ?", "STORETEST4").First(&normal).Error)
	require.True(t, normal.ProfitDollars.Equal(dec("100")))
	require.True(t, normal.ProfitPercent.Equal(dec("0.2")))
	require.EqualValues(t, 1, normal.Reconciled)

	var degenerate model.Trade
	require.Nil(t, db.Where("`symbol` = ?", "STORETEST5").First(&degenerate).Error)
	require.True(t, degenerate.ProfitDollars.Equal(dec("120")))
	require.True(t, degenerate.ProfitPercent.IsZero())
	require.EqualValues(t, 1, degenerate.Reconciled)

	// nothing left to reconcile
	res, err = st.BulkReconcileProfits(ctx)
	require.Nil(t, err)
	require.EqualValues(t, 0, res.Modified)
}

func TestWeeks(t *testing.T) {
	week := model.Week{
		StartDate: "2020-07-27",
		EndDate:   "2020-08-01",
		Tags:      model.GormArray{"earnings", "volatile"},
	}
	require.Nil(t, st.UpsertWeek(ctx, week))

	// upsert by start date updates in place
	week.Tags = model.GormArray{"earnings", "volatile", "fomc"}
	require.Nil(t, st.UpsertWeek(ctx, week))

	got, err := st.WeekByDate(ctx, "2020-07-27")
	require.Nil(t, err)
	require.NotNil(t, got)
	require.Equal(t, []string{"earnings", "volatile", "fomc"}, got.Tags.Array())

	require.Nil(t, st.DeleteWeekTag(ctx, "2020-07-27", "volatile"))
	got, err = st.WeekByDate(ctx, "2020-07-27")
	require.Nil(t, err)
	require.Equal(t, []string{"earnings", "fomc"}, got.Tags.Array())
}

func TestEvents(t *testing.T) {
	require.Nil(t, st.AddEvent(ctx, model.Event{
		LogType: model.EventTypeTrades,
		Author:  "Matcher",
		RunID:   "test-run",
		Message: "pages:1 txs:2",
	}))

	evs, err := st.Events(ctx, model.EventTypeTrades, 10)
	require.Nil(t, err)
	require.NotEmpty(t, evs)
	require.Equal(t, model.EventTypeTrades, evs[0].LogType)
	require.NotZero(t, evs[0].Timestamp)
}

func TestRebuildTradeCalendar(t *testing.T) {
	entries, err := st.RebuildTradeCalendar(ctx)
	require.Nil(t, err)
	require.NotEmpty(t, entries)

	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		require.True(t, prev.Year < cur.Year || (prev.Year == cur.Year && prev.Month < cur.Month))
	}
}
