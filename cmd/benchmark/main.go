package main

import (
	"fmt"
	"os"
	"time"

	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/urfave/cli"

	"github.com/multiversx/mx-chain-parallel-executor-go/config"
	"github.com/multiversx/mx-chain-parallel-executor-go/executor"
	"github.com/multiversx/mx-chain-parallel-executor-go/storage"
)

var (
	benchmarkHelpTemplate = `NAME:
   {{.Name}} - {{.Usage}}
USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}
   {{if len .Authors}}
AUTHOR:
   {{range .Authors}}{{ . }}{{end}}
   {{end}}{{if .Commands}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}
VERSION:
   {{.Version}}
   {{end}}
`
	configurationFile = cli.StringFlag{
		Name:  "config",
		Usage: "The main configuration file to load",
		Value: "./config/config.toml",
	}
	numTransactions = cli.IntFlag{
		Name:  "transactions",
		Usage: "Number of transactions in the synthetic block",
		Value: 10000,
	}
	numAccounts = cli.IntFlag{
		Name:  "accounts",
		Usage: "Number of accounts touched by the synthetic block",
		Value: 1000,
	}
	logLevel = cli.StringFlag{
		Name:  "log-level",
		Usage: "This flag specifies the logger levels and patterns",
		Value: "*:" + logger.LogInfo.String(),
	}

	log = logger.GetOrCreate("benchmark")
)

func main() {
	app := cli.NewApp()
	cli.AppHelpTemplate = benchmarkHelpTemplate
	app.Name = "Parallel executor benchmark"
	app.Version = "v1.0.0"
	app.Usage = "This binary runs a synthetic transfer block sequentially and in parallel, compares the outputs and reports timings"
	app.Flags = []cli.Flag{
		configurationFile,
		numTransactions,
		numAccounts,
		logLevel,
	}
	app.Authors = []cli.Author{
		{
			Name:  "The MultiversX Team",
			Email: "contact@multiversx.com",
		},
	}

	app.Action = func(c *cli.Context) error {
		return runBenchmark(c)
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}

func runBenchmark(ctx *cli.Context) error {
	err := logger.SetLogLevel(ctx.GlobalString(logLevel.Name))
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(ctx.GlobalString(configurationFile.Name))
	if err != nil {
		return err
	}

	blockSize := ctx.GlobalInt(numTransactions.Name)
	accounts := ctx.GlobalInt(numAccounts.Name)
	if blockSize < 1 || accounts < 1 {
		return fmt.Errorf("transactions and accounts must be positive")
	}

	task := &transferTask{numAccounts: accounts}
	codec := &uint64Codec{}

	var storageView executor.StorageView[benchKey, uint64] = &benchStorageView{numAccounts: accounts}
	if cfg.Execution.StorageCacheCapacity > 0 {
		storageView, err = storage.NewCachingStorageView[benchKey, uint64](storageView, cfg.Execution.StorageCacheCapacity)
		if err != nil {
			return err
		}
	}

	log.Info("running synthetic block",
		"transactions", blockSize,
		"accounts", accounts,
		"workers", cfg.Execution.NumWorkers,
		"maxIncarnations", cfg.Execution.MaxIncarnations,
	)

	reference, sequentialDuration, err := runSequential(blockSize, task, storageView, codec)
	if err != nil {
		return err
	}
	log.Info("sequential run finished", "duration", sequentialDuration)

	for _, workers := range workerCounts(cfg.Execution.NumWorkers) {
		parallelResult, parallelDuration, err := runParallel(blockSize, workers, cfg.Execution.MaxIncarnations, task, storageView, codec)
		if err != nil {
			return err
		}

		if parallelResult.RequiresFallback() {
			log.Warn("parallel run requested fallback", "workers", workers, "reason", parallelResult.Fallback.String())
			continue
		}

		err = compareResults(reference, parallelResult)
		if err != nil {
			return err
		}

		log.Info("parallel run finished",
			"workers", workers,
			"duration", parallelDuration,
			"speedup", fmt.Sprintf("%.2fx", float64(sequentialDuration)/float64(parallelDuration)),
			"executions", parallelResult.Stats.NumExecutions,
			"aborts", parallelResult.Stats.NumAborts,
		)
	}

	return nil
}

func workerCounts(configured int) []int {
	counts := []int{1, 2, 4}
	for _, existing := range counts {
		if existing == configured {
			return counts
		}
	}

	return append(counts, configured)
}

func runSequential(
	blockSize int,
	task *transferTask,
	storageView executor.StorageView[benchKey, uint64],
	codec *uint64Codec,
) (*executor.BlockResult[benchKey, uint64], time.Duration, error) {
	sequentialExecutor, err := executor.NewSequentialBlockExecutor(executor.ArgsSequentialBlockExecutor[benchKey, uint64]{
		BlockSize:   blockSize,
		Task:        task,
		StorageView: storageView,
		Codec:       codec,
	})
	if err != nil {
		return nil, 0, err
	}

	startTime := time.Now()
	result, err := sequentialExecutor.Execute()
	return result, time.Since(startTime), err
}

func runParallel(
	blockSize int,
	workers int,
	maxIncarnations uint32,
	task *transferTask,
	storageView executor.StorageView[benchKey, uint64],
	codec *uint64Codec,
) (*executor.BlockResult[benchKey, uint64], time.Duration, error) {
	parallelExecutor, err := executor.NewParallelBlockExecutor(executor.ArgsParallelBlockExecutor[benchKey, uint64]{
		BlockSize:       blockSize,
		NumWorkers:      workers,
		MaxIncarnations: maxIncarnations,
		Task:            task,
		StorageView:     storageView,
		Codec:           codec,
	})
	if err != nil {
		return nil, 0, err
	}

	startTime := time.Now()
	result, err := parallelExecutor.Execute()
	return result, time.Since(startTime), err
}

func compareResults(reference *executor.BlockResult[benchKey, uint64], candidate *executor.BlockResult[benchKey, uint64]) error {
	if len(reference.Outputs) != len(candidate.Outputs) {
		return fmt.Errorf("output count mismatch: %d vs %d", len(reference.Outputs), len(candidate.Outputs))
	}

	for i := range reference.Outputs {
		err := compareTransactionResults(i, reference.Outputs[i], candidate.Outputs[i])
		if err != nil {
			return err
		}
	}

	return nil
}

func compareTransactionResults(txIndex int, reference executor.TransactionResult[benchKey, uint64], candidate executor.TransactionResult[benchKey, uint64]) error {
	if (reference.Err == nil) != (candidate.Err == nil) || reference.Skipped != candidate.Skipped {
		return fmt.Errorf("transaction %d: status mismatch", txIndex)
	}
	if reference.Err != nil {
		return nil
	}

	referenceWrites := reference.Output.GetWrites()
	candidateWrites := candidate.Output.GetWrites()
	if len(referenceWrites) != len(candidateWrites) {
		return fmt.Errorf("transaction %d: writes count mismatch", txIndex)
	}
	for j := range referenceWrites {
		if referenceWrites[j] != candidateWrites[j] {
			return fmt.Errorf("transaction %d: write %d mismatch", txIndex, j)
		}
	}

	if len(reference.AggregatorValues) != len(candidate.AggregatorValues) {
		return fmt.Errorf("transaction %d: aggregator values count mismatch", txIndex)
	}
	for j := range reference.AggregatorValues {
		if reference.AggregatorValues[j] != candidate.AggregatorValues[j] {
			return fmt.Errorf("transaction %d: aggregator value %d mismatch", txIndex, j)
		}
	}

	return nil
}
