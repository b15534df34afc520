package kvmap

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kvmkrao/hdf5/cmd/util"
	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/dtype"
	"github.com/kvmkrao/hdf5/lib/mapsvc"
	"github.com/kvmkrao/hdf5/rpc/client"
	"github.com/kvmkrao/hdf5/rpc/common"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for iodmap servers",
		Long:    "Creates a map per test below --path and measures the latency of the map operations with --threads concurrent workers.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfPath         = "/__perf"
	perfOps          = 1000
	perfValueSize    = 64
	perfNumThreads   = 10
	perfKeySpread    = 100
	perfSkip         = make([]string, 0)
	perfKeyTypes     = mapsvc.KeyTypes{KeyMem: dtype.NativeUint64, KeyMap: dtype.StdI64LE}
	perfFixedValues  = mapsvc.ValueTypes{ValueMem: dtype.NativeInt64, ValueMap: dtype.StdI64BE}
	perfStringValues = mapsvc.ValueTypes{ValueMem: dtype.CString, ValueMap: dtype.CString}
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent workers"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of operations per benchmark"))
	key = "value-size"
	perfTestCmd.Flags().Int(key, 64, util.WrapString("Size in bytes of the string values of the set-vl and get-vl tests"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "path"
	perfTestCmd.Flags().String(key, "/__perf", util.WrapString("Path prefix of the maps created by the benchmark"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfOps = max(viper.GetInt("ops"), 1)
	perfValueSize = viper.GetInt("value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfPath = viper.GetString("path")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfTest is one benchmark, op is called with the global operation index
type perfTest struct {
	name   string
	values mapsvc.ValueTypes
	// prepare fills the map before the timer starts
	prepare bool
	op      func(m mapsvc.Target, i int) error
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for iodmap servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Operations: %d\n", perfNumThreads, perfOps)
	fmt.Println()

	t, err := tx()
	if err != nil {
		return err
	}

	fixed := int64Value(42)
	vl := []byte(strings.Repeat("x", perfValueSize))

	tests := []perfTest{
		{name: "set", values: perfFixedValues, op: func(m mapsvc.Target, i int) error {
			return rpcMap.Set(m, perfKeyTypes, perfFixedValues, perfKey(i), fixed, t)
		}},
		{name: "set-vl", values: perfStringValues, op: func(m mapsvc.Target, i int) error {
			return rpcMap.Set(m, perfKeyTypes, perfStringValues, perfKey(i), vl, t)
		}},
		{name: "get", values: perfFixedValues, prepare: true, op: func(m mapsvc.Target, i int) error {
			_, err := rpcMap.Get(m, perfKeyTypes, perfFixedValues, perfKey(i), 0, t)
			return err
		}},
		{name: "get-vl", values: perfStringValues, prepare: true, op: func(m mapsvc.Target, i int) error {
			_, err := rpcMap.Get(m, perfKeyTypes, perfStringValues, perfKey(i), 0, t)
			return err
		}},
		{name: "exists", values: perfFixedValues, prepare: true, op: func(m mapsvc.Target, i int) error {
			_, err := rpcMap.Exists(m, perfKeyTypes, perfKey(i), t.RTID)
			return err
		}},
		{name: "count", values: perfFixedValues, prepare: true, op: func(m mapsvc.Target, _ int) error {
			_, err := rpcMap.GetCount(m, t.RTID)
			return err
		}},
	}

	fmt.Println("starting tests...")

	// Create results map
	registry := metrics.NewRegistry()
	results := make(map[string]metrics.Timer)

	for _, test := range tests {
		if shouldSkip(test.name) {
			fmt.Printf("%-12sskipped\n", test.name)
			continue
		}

		m, err := perfMap(test, t)
		if err != nil {
			return fmt.Errorf("(%s) - failed to prepare map: %w", test.name, err)
		}

		timer := metrics.GetOrRegisterTimer(test.name, registry)
		errors := metrics.GetOrRegisterCounter(test.name+".errors", registry)
		if err := runTest(test, m, timer, errors); err != nil {
			return err
		}
		if err := rpcMap.Close(m.Handle); err != nil {
			log.Printf("(%s) - error closing map: %v\n", test.name, err)
		}

		results[test.name] = timer
		printResult(test.name, timer, errors.Count())
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

// runTest runs perfOps operations of test on perfNumThreads workers
func runTest(test perfTest, m mapsvc.Target, timer metrics.Timer, errors metrics.Counter) error {
	var g errgroup.Group
	g.SetLimit(perfNumThreads)

	for i := 0; i < perfOps; i++ {
		g.Go(func() error {
			var err error
			timer.Time(func() { err = test.op(m, i) })
			if err != nil {
				errors.Inc(1)
				log.Printf("(%s) - error: %v\n", test.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// perfMap creates a fresh map for test, filled with all keys if the test reads
func perfMap(test perfTest, t client.Tx) (mapsvc.Target, error) {
	resp, err := rpcMap.Create(mapsvc.CreateRequest{
		LocID:      db.RootID,
		Name:       fmt.Sprintf("%s-%s-%d", perfPath, test.name, time.Now().UnixNano()),
		MapID:      db.IDUndefined,
		MdkvID:     db.IDUndefined,
		AttrkvID:   db.IDUndefined,
		KeyType:    perfKeyTypes.KeyMap,
		ValType:    test.values.ValueMap,
		WTID:       t.WTID,
		RTID:       t.RTID,
		Scope:      t.Scope,
		Collective: true,
	})
	if err != nil {
		return mapsvc.Target{}, err
	}
	m := mapsvc.Target{ID: resp.ID, Handle: resp.Handle}
	if !test.prepare {
		return m, nil
	}

	value := int64Value(42)
	if test.values.ValueMem.IsVariable() {
		value = []byte(strings.Repeat("x", perfValueSize))
	}
	// the fill is not measured, so it skips the transfer checksum
	fill := client.Tx{WTID: t.WTID, RTID: t.RTID, Scope: t.Scope &^ checksum.ScopeTransfer}
	for i := 0; i < perfKeySpread; i++ {
		if err := rpcMap.Set(m, perfKeyTypes, test.values, perfKey(i), value, fill); err != nil {
			return m, err
		}
	}
	return m, nil
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

// perfKey returns the key of operation i (with wraparound)
func perfKey(i int) []byte {
	return binary.NativeEndian.AppendUint64(nil, uint64(i%perfKeySpread))
}

func int64Value(v int64) []byte {
	return binary.NativeEndian.AppendUint64(nil, uint64(v))
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, timer metrics.Timer, errors int64) {
	ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})
	fmt.Printf("%-12s%8d ops  mean %-12s p50 %-12s p95 %-12s p99 %-12s %.0f ops/sec  errors %d\n",
		test, timer.Count(),
		time.Duration(timer.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]),
		timer.RateMean(), errors)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]metrics.Timer, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Ops", "MeanNs", "P50Ns", "P95Ns", "P99Ns", "MaxNs", "OpsPerSec",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ContainerID", "Serializer", "Transport",
		"Threads", "ValueSize", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, timer := range results {
		snapshot := timer.Snapshot()
		ps := snapshot.Percentiles([]float64{0.5, 0.95, 0.99})
		row := []string{
			test,
			strconv.FormatInt(snapshot.Count(), 10),
			fmt.Sprintf("%.0f", snapshot.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(snapshot.Max(), 10),
			fmt.Sprintf("%.0f", snapshot.RateMean()),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(config.ContainerID, 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfValueSize),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
