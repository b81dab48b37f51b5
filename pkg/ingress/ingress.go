// Package ingress loads broker transaction records into the transaction
// store, either by following an export feed file or by consuming the broker
// feed from NATS. Loading is idempotent: replayed ids are skipped.
package ingress

import (
	"context"
	"encoding/json"
	"fmt"

	"traderev/pkg/config"
	"traderev/pkg/feedfile"
	"traderev/pkg/model"
	"traderev/pkg/xetcd"
	"traderev/pkg/xlog"

	"github.com/nats-io/nats.go"
)

var logger = xlog.GetLogger()

// Loader is the ingress view of the transaction store
type Loader interface {
	InsertTransactions(ctx context.Context, txs []model.Transaction) (int64, error)
	AddEvent(ctx context.Context, ev model.Event) error
}

// Worker loads broker transactions
type Worker struct {
	Name  string
	State string

	Store Loader

	Loaded  int64 // transactions inserted
	Skipped int64 // replayed ids and bad lines
}

func New(st Loader) (w *Worker, err error) {
	if st == nil {
		err = fmt.Errorf("nil store")
		return
	}

	w = &Worker{
		Name:  "Ingress",
		State: "Init",
		Store: st,
	}

	logger.Info("ingress worker created")

	return
}

// RunFeed follows a broker export feed file and loads every line
func (w *Worker) RunFeed(ctx context.Context, filePath string) (err error) {
	logger.Infof("RunFeed started with file:%s", filePath)
	defer func() {
		if err != nil {
			logger.Errorf("RunFeed failed with err:%s", err)
		} else {
			logger.Infof("RunFeed finished with loaded:%d, skipped:%d", w.Loaded, w.Skipped)
		}
	}()

	fdb, err := feedfile.New(filePath)
	if err != nil {
		return
	}
	defer fdb.Close()

	fdb.ToStoreHandler = func(ss []string) error {
		return w.LoadLines(ctx, ss)
	}

	ch := make(chan string, 1000)
	go func() {
		terr := fdb.Tailf(ch)
		if terr != nil {
			logger.Errorf("feed tail failed with err:%s", terr)
			close(ch)
		}
	}()

	w.State = "Loading"
	err = fdb.ToStore(ch)

	return
}

// RunNats consumes the broker transaction feed from NATS JetStream.
// The NATS url comes from etcd when discovery is enabled, otherwise from the
// config file.
func (w *Worker) RunNats(ctx context.Context) (err error) {
	logger.Infof("RunNats started")
	defer func() {
		if err != nil {
			logger.Errorf("RunNats failed with err:%s", err)
		} else {
			logger.Infof("RunNats finished with loaded:%d, skipped:%d", w.Loaded, w.Skipped)
		}
	}()

	cfg := config.Shared.Nats.Main

	natsUrl := cfg.Url
	if config.Shared.Etcd.Main.Enable {
		natsUrl, err = xetcd.Get(xetcd.KeyBrokerNats())
		if err != nil {
			return
		}
	}

	nc, err := nats.Connect(natsUrl)
	if err != nil {
		return
	}
	defer nc.Close()

	js, err := nc.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		return
	}

	subject := cfg.Subject
	if subject == "" {
		subject = "BROKER.transactions"
	}

	ch := make(chan *nats.Msg, 256)
	sub, err := js.ChanSubscribe(subject, ch, nats.AckAll())
	if err != nil {
		return
	}
	defer sub.Unsubscribe()

	w.State = "Loading"
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return
			}
			err = w.LoadLines(ctx, []string{string(m.Data)})
			if err != nil {
				return
			}
		}
	}
}

// LoadLines parses a batch of raw transaction json lines and inserts them.
// Bad lines are logged and skipped so one bent record cannot wedge the feed.
func (w *Worker) LoadLines(ctx context.Context, ss []string) (err error) {
	txs := make([]model.Transaction, 0, len(ss))
	for _, s := range ss {
		if s == "" {
			continue
		}
		var tx model.Transaction
		if uerr := json.Unmarshal([]byte(s), &tx); uerr != nil || tx.TxID == 0 {
			w.Skipped++
			logger.Warningf("skipping bad feed line: %.120s", s)
			continue
		}
		txs = append(txs, tx)
	}
	if len(txs) == 0 {
		return nil
	}

	inserted, err := w.Store.InsertTransactions(ctx, txs)
	if err != nil {
		return
	}
	w.Loaded += inserted
	w.Skipped += int64(len(txs)) - inserted

	ev := model.Event{
		LogType: model.EventTypeImport,
		Author:  w.Name,
		Message: fmt.Sprintf("loaded:%d of %d", inserted, len(txs)),
	}
	if err = w.Store.AddEvent(ctx, ev); err != nil {
		return
	}

	return nil
}
