package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"traderev/pkg/config"
	"traderev/pkg/info"
	"traderev/pkg/ingress"
	"traderev/pkg/matcher"
	"traderev/pkg/model"
	"traderev/pkg/profit"
	"traderev/pkg/store"
	"traderev/pkg/xetcd"
	"traderev/pkg/xlog"
)

var logger = xlog.GetLogger()

var (
	fApp      string
	fPageSize int
	fFeedFile string
	fLogDir   string
	fLogFile  string
)

var (
	apps = map[string]bool{"matcher": true, "profits": true, "import": true, "ingress": true, "toc": true}
)

func init() {
	flag.StringVar(&fApp, "app", "", "")
	flag.IntVar(&fPageSize, "pagesize", 0, "")
	flag.StringVar(&fFeedFile, "feedfile", "", "")
	flag.StringVar(&fLogDir, "logdir", "", "")
	flag.StringVar(&fLogFile, "logfile", "", "")
}

func main() {
	var err error
	flag.Parse()

	if !apps[fApp] {
		validApps := ""
		for k := range apps {
			validApps += k + ", "
		}
		panic("invalid app, only (" + validApps + ") avaliable")
	}

	// Initialize the Shared config
	config.EasyInit()

	// Initialize the logger
	if fLogDir == "" {
		fLogDir = filepath.Join(config.Shared.DataDir, "logs")
	}
	if fLogFile == "" {
		fLogFile = fApp + ".log"
	}
	logPath := filepath.Join(fLogDir, fLogFile)
	xlog.Init(fApp, logPath, nil)
	logger.Infof("%s started with instance:%s", fApp, info.InstanceID)
	logger.Infof("xlog in %s", logPath)

	// Handle signals
	go handleSignals()

	// Cancel running batches cleanly; unmarked pages are retried by the next run
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the etcd instance when discovery is on
	if config.Shared.Etcd.Main.Enable {
		err = xetcd.InitShared([]string{config.Shared.Etcd.Main.Url})
		if err != nil {
			logger.Errorf("xetcd.InitShared failed with err:%s", err)
			panic(err)
		}
	}

	// Initialize the database instances(mysql, redis)
	// fatal if failed
	model.DBInit()

	// Start the app
	switch fApp {
	case "":
		return
	case "matcher":
		err = startMatcher(ctx)
	case "profits":
		err = startProfits(ctx)
	case "import":
		err = startImport(ctx)
	case "ingress":
		err = startIngress(ctx)
	case "toc":
		err = startToc(ctx)
	default:
		return
	}

	if err != nil {
		logger.Error(err)
		panic(err)
	}
}

// handleSignals handles linux signals
//
//	Function 1: Change log level via SIGUSR1 signal
//		docker exec <container_id> sh -c 'export XLOG_LVL=TRACE && kill -SIGUSR1 1'
func handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1)

	for sig := range sigChan {
		if sig == syscall.SIGUSR1 {
			level := os.Getenv("XLOG_LVL")
			if level != "" {
				xlog.GetLogger().SetLevel(level)
			}
		}
	}
}

func sharedStore() *store.Store {
	return store.New(model.GetMySQL(), config.Shared.Matcher.OpTimeout())
}

// startMatcher runs the matching engine over the whole unprocessed backlog
// and exits
func startMatcher(ctx context.Context) (err error) {
	st := sharedStore()

	w, err := matcher.New(st, st)
	if err != nil {
		return
	}
	w.Events = st

	if fPageSize > 0 {
		w.PageSize = fPageSize
	} else if config.Shared.Matcher.PageSize > 0 {
		w.PageSize = config.Shared.Matcher.PageSize
	}

	if rds := model.GetRedis(); rds != nil {
		w.WithLock(matcher.NewRunLock(rds, config.Shared.Matcher.LockTTL()))
	}

	res, err := w.Run(ctx)
	if err != nil {
		return
	}

	fmt.Printf(
		"Matcher: run %s processed %d transactions in %d pages (opened %d, closed %d, skipped %d) in %s at %s\n",
		res.RunID, res.Transactions, res.Pages, res.Opened, res.Closed, res.Skipped,
		res.Elapsed, time.Now().Format(time.RFC3339),
	)
	for _, d := range res.Diags {
		fmt.Printf("  diag: %s\n", d)
	}

	return
}

// startProfits runs the profit reconcile pass and exits
func startProfits(ctx context.Context) (err error) {
	st := sharedStore()

	w, err := profit.New(st)
	if err != nil {
		return
	}
	w.Events = st

	res, err := w.Run(ctx)
	if err != nil {
		return
	}

	fmt.Printf(
		"Profits: run %s matched %d, modified %d in %s at %s\n",
		res.RunID, res.Matched, res.Modified, res.Elapsed, time.Now().Format(time.RFC3339),
	)

	return
}

// startImport follows a broker export feed file and loads transactions
func startImport(ctx context.Context) (err error) {
	feedPath := fFeedFile
	if feedPath == "" {
		feedPath = config.Shared.Feed.File
	}
	if feedPath == "" {
		return fmt.Errorf("empty feed file, use -feedfile or feed.file in config")
	}

	w, err := ingress.New(sharedStore())
	if err != nil {
		return
	}

	err = w.RunFeed(ctx, feedPath)

	return
}

// startIngress consumes the broker transaction feed from NATS
func startIngress(ctx context.Context) (err error) {
	w, err := ingress.New(sharedStore())
	if err != nil {
		return
	}

	err = w.RunNats(ctx)

	return
}

// startToc rebuilds the year/month trade calendar
func startToc(ctx context.Context) (err error) {
	st := sharedStore()

	entries, err := st.RebuildTradeCalendar(ctx)
	if err != nil {
		return
	}

	fmt.Printf("Toc: rebuilt trade calendar with %d months at %s\n",
		len(entries), time.Now().Format(time.RFC3339))

	return
}
