package kv

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/rpc/client"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for rKV servers",
		Long:    "Runs parallel benchmarks against a running server. Every benchmark goroutine uses its own connection.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)

	// latency percentiles reported for every benchmark
	perfPercentiles = []float64{0.5, 0.9, 0.99}
)

// perfResult holds the outcome of one benchmark
type perfResult struct {
	name    string
	bench   testing.BenchmarkResult
	latency gometrics.Timer
	errors  int64
}

func (r perfResult) skipped() bool {
	return r.bench.N == 0 || r.bench.NsPerOp() == 0
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of parallel connections to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread <= 0 {
		return fmt.Errorf("keys must be positive, got %d", perfKeySpread)
	}
	if perfNumThreads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", perfNumThreads)
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for rKV servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	// the connection of the kv command group doubles as reachability check
	if err := rpcClient.Ping(); err != nil {
		return fmt.Errorf("server is not reachable: %w", err)
	}

	fmt.Println("starting tests...")

	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	getKey, iter := getKeys("get")
	mixedKey, _ := getKeys("mixed")

	// keys read by the get benchmark
	var prepErr error
	iter(func(k string) {
		if err := rpcClient.Set(k, []byte("test")); err != nil && prepErr == nil {
			prepErr = err
		}
	})
	if prepErr != nil {
		return fmt.Errorf("failed to prepare keys: %w", prepErr)
	}

	setKey, _ := getKeys("set")
	setLargeKey, _ := getKeys("set-large")

	benchmarks := []struct {
		name string
		op   func(c *client.Client, i int) error
	}{
		{"ping", func(c *client.Client, _ int) error {
			return c.Ping()
		}},
		{"set", func(c *client.Client, i int) error {
			return c.Set(setKey(i), []byte("test"))
		}},
		{"set-large", func(c *client.Client, i int) error {
			return c.Set(setLargeKey(i), largeValue)
		}},
		{"get", func(c *client.Client, i int) error {
			_, _, err := c.Get(getKey(i))
			return err
		}},
		{"get-missing", func(c *client.Client, i int) error {
			_, _, err := c.Get(fmt.Sprintf("%s/missing-%d", perfKeyPrefix, i%perfKeySpread))
			return err
		}},
		{"mixed", func(c *client.Client, i int) error {
			if i%2 == 0 {
				return c.Set(mixedKey(i), []byte("test"))
			}
			_, _, err := c.Get(mixedKey(i))
			return err
		}},
	}

	results := make([]perfResult, 0, len(benchmarks))
	for _, bm := range benchmarks {
		result := perfResult{name: bm.name, latency: gometrics.NilTimer{}}
		if !shouldSkip(bm.name) {
			result = runBenchmark(bm.name, bm.op)
		}
		results = append(results, result)
		printResult(result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// runBenchmark runs op in parallel, every goroutine on its own connection
func runBenchmark(name string, op func(c *client.Client, i int) error) perfResult {
	timer := gometrics.NewTimer()
	errCount := xsync.NewCounter()

	bench := testing.Benchmark(func(b *testing.B) {
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			c, err := newPerfClient()
			if err != nil {
				log.Printf("(%s) - error connecting: %v\n", name, err)
				// the iterations still have to be consumed
				for pb.Next() {
					errCount.Inc()
				}
				return
			}
			defer func() { _ = c.Close() }()

			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := op(c, counter); err != nil {
					errCount.Inc()
					log.Printf("(%s) - error: %v\n", name, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	timer.Stop()
	return perfResult{
		name:    name,
		bench:   bench,
		latency: timer.Snapshot(),
		errors:  errCount.Value(),
	}
}

// newPerfClient opens a dedicated connection with the configuration of the kv command group
func newPerfClient() (*client.Client, error) {
	t, err := util.GetTransport()
	if err != nil {
		return nil, err
	}
	return client.NewRPCClient(*util.GetClientConfig(), t)
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// opsPerSec derives the throughput of a benchmark
func opsPerSec(result testing.BenchmarkResult) (float64, float64) {
	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	return nsPerOp, 1.0 / (nsPerOp / 1e9)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(result perfResult) {
	if result.skipped() {
		fmt.Printf("%-20sskipped\n", result.name)
		return
	}

	nsPerOp, ops := opsPerSec(result.bench)
	ps := result.latency.Percentiles(perfPercentiles)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p90=%s p99=%s\terrors=%d\n",
		result.name, nsPerOp, time.Duration(nsPerOp), ops,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]),
		result.errors)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped", "Errors",
		"P50Ns", "P90Ns", "P99Ns", "MaxNs",
		"Endpoint", "TimeoutSec", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, result := range results {
		var nsPerOp, ops float64
		skipped := strconv.FormatBool(result.skipped())
		if !result.skipped() {
			nsPerOp, ops = opsPerSec(result.bench)
		}
		ps := result.latency.Percentiles(perfPercentiles)

		row := []string{
			result.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", ops),
			skipped,
			strconv.FormatInt(result.errors, 10),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(result.latency.Max(), 10),
			config.Transport.Endpoint,
			strconv.Itoa(config.TimeoutSecond),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", result.name, err)
		}
	}

	return nil
}
