package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/ngaut/log"

	"github.com/pingcap-incubator/tinytxn/kv/config"
	"github.com/pingcap-incubator/tinytxn/kv/storage"
	"github.com/pingcap-incubator/tinytxn/kv/txn"
	"github.com/pingcap-incubator/tinytxn/metrics"
	"github.com/pingcap-incubator/tinytxn/workload"
)

var (
	threads       = flag.Int("threads", 4, "number of worker threads")
	txnsPerThread = flag.Int("txns-per-thread", 100, "transactions each worker runs")
	totalKeys     = flag.Int("total-keys", 1000, "number of accounts in the key space")
	hotsetSize    = flag.Int("hotset-size", 10, "number of keys in the hot set")
	hotsetProb    = flag.Float64("hotset-prob", 0.5, "probability a draw hits the hot set")
	protocol      = flag.String("protocol", "occ", "concurrency control protocol (occ/2pl)")
	dbPath        = flag.String("db-path", "transaction_db", "directory to store the data in")
	configPath    = flag.String("config", "", "optional TOML config file; flags win over file values")
	logLevel      = flag.String("L", "", "log level")
)

func main() {
	flag.Parse()

	conf := config.NewDefaultConfig()
	if *configPath != "" {
		if err := conf.LoadFromFile(*configPath); err != nil {
			log.Errorf("failed to load config %s: %v", *configPath, err)
			os.Exit(1)
		}
	}
	applyFlags(conf)

	log.SetLevelByString(conf.LogLevel)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)

	if err := conf.Validate(); err != nil {
		log.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}

	store := storage.NewBadgerStorage(conf)
	if err := store.Start(); err != nil {
		log.Errorf("failed to open database: %v", err)
		os.Exit(1)
	}
	defer store.Stop()

	// Preload every account with the initial balance.
	initial := make(map[string]string, conf.TotalKeys)
	for i := 0; i < conf.TotalKeys; i++ {
		initial[fmt.Sprintf("account_%d", i)] = strconv.Itoa(conf.InitialBalance)
	}
	if err := store.InitializeWithData(initial); err != nil {
		log.Errorf("failed to initialize database: %v", err)
		os.Exit(1)
	}
	log.Infof("database holds %d keys", store.KeyCount())
	if v, ok := store.Get("account_0"); ok {
		log.Infof("sample account_0 balance: %s", v)
	}

	var mgr txn.Manager
	switch conf.Protocol {
	case config.ProtocolOCC:
		mgr = txn.NewOCCManager(store)
	case config.ProtocolTwoPL:
		mgr = txn.NewTwoPLManager(store, conf.LockBackoffBaseUs)
	}

	execConf := workload.ExecutorConfig{
		NumThreads:    conf.NumThreads,
		TxnsPerThread: conf.TxnsPerThread,
		Contention: workload.ContentionConfig{
			TotalKeys:  conf.TotalKeys,
			HotsetSize: conf.HotsetSize,
			HotsetProb: conf.HotsetProb,
		},
		Templates: []workload.Template{
			workload.NewTransferTemplate(),
			workload.NewBalanceCheckTemplate(),
			workload.NewWriteHeavyTemplate(4),
		},
		RetryBackoffBaseUs: conf.RetryBackoffBaseUs,
	}
	if err := execConf.Validate(); err != nil {
		log.Errorf("invalid workload: %v", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()
	executor := workload.NewExecutor(mgr, collector, execConf)

	log.Infof("running %s: %d threads x %d txns over %d keys (hot %d @ %.2f)",
		mgr.ProtocolName(), conf.NumThreads, conf.TxnsPerThread,
		conf.TotalKeys, conf.HotsetSize, conf.HotsetProb)
	executor.Run()

	fmt.Print(collector.Report(executor.ElapsedSeconds()))
}

// applyFlags overlays explicitly-set command line flags onto conf.
func applyFlags(conf *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threads":
			conf.NumThreads = *threads
		case "txns-per-thread":
			conf.TxnsPerThread = *txnsPerThread
		case "total-keys":
			conf.TotalKeys = *totalKeys
		case "hotset-size":
			conf.HotsetSize = *hotsetSize
		case "hotset-prob":
			conf.HotsetProb = *hotsetProb
		case "protocol":
			conf.Protocol = *protocol
		case "db-path":
			conf.DBPath = *dbPath
		case "L":
			conf.LogLevel = *logLevel
		}
	})
}
