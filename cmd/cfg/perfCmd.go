package cfg

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dCfg/cmd/util"
	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/ValentinKolb/dCfg/lib/store/ostore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Benchmarks the local configuration store",
		Long:    "Benchmarks the layered store every client uses, no server is contacted",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfComponent  = "perf"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)
)

// perfTest is one benchmark, prepare runs before the timer starts
type perfTest struct {
	name    string
	prepare func(s *ostore.Store, keys []string)
	op      func(s *ostore.Store, key string)
}

var perfTests = []perfTest{
	{
		name: "put",
		op: func(s *ostore.Store, key string) {
			store.PutInt(s, key, 42)
		},
	},
	{
		name:    "get",
		prepare: putKeys,
		op: func(s *ostore.Store, key string) {
			store.GetInt(s, key, 0)
		},
	},
	{
		name:    "get-convert",
		prepare: putKeys,
		op: func(s *ostore.Store, key string) {
			store.GetString(s, key, "")
		},
	},
	{
		name: "get-miss",
		op: func(s *ostore.Store, key string) {
			store.GetInt(s, key, 0)
		},
	},
	{
		name: "get-list",
		prepare: func(s *ostore.Store, keys []string) {
			for _, k := range keys {
				for i := 0; i < 8; i++ {
					s.Put(fmt.Sprintf("%s[%d]", k, i), db.IntCell(int32(i)))
				}
			}
		},
		op: func(s *ostore.Store, key string) {
			s.GetStringList(key, nil)
		},
	},
	{
		name: "insert-json",
		op: func(s *ostore.Store, key string) {
			_ = s.InsertJSON(`{"perf":{"json":{"a":"1","b":["1","2","3"],"c":{"d":"true"}}}}`)
		},
	},
	{
		name:    "export-json",
		prepare: putKeys,
		op: func(s *ostore.Store, _ string) {
			s.ComponentJSON(perfComponent, false)
		},
	},
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Benchmark of the local configuration store")
	fmt.Println()
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Keys:    %d\n", perfKeySpread)
	fmt.Println()
	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	for _, test := range perfTests {
		if shouldSkip(test.name) {
			results[test.name] = testing.BenchmarkResult{}
			printResult(test.name, testing.BenchmarkResult{})
			continue
		}
		result := testing.Benchmark(benchmark(test))
		results[test.name] = result
		printResult(test.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}
	return nil
}

// benchmark runs test on a fresh finalized store
func benchmark(test perfTest) func(b *testing.B) {
	return func(b *testing.B) {
		s := ostore.New("perf", false, nil)
		s.FinishInitialization()
		s.AddComponent(perfComponent)
		b.Cleanup(s.Close)

		keys := getKeys(test.name)
		if test.prepare != nil {
			test.prepare(s, keys)
		}

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				test.op(s, keys[counter%len(keys)])
				counter++
			}
		})
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// getKeys creates the test keys of one benchmark
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s:%s:key-%d", perfComponent, prefix, i)
	}
	return keys
}

func putKeys(s *ostore.Store, keys []string) {
	for i, k := range keys {
		store.PutInt(s, k, int32(i))
	}
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\t%d allocs/op\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec, result.AllocsPerOp())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "AllocsPerOp", "Skipped", "Threads", "Keys Count"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, test := range perfTests {
		result := results[test.name]
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.FormatInt(result.AllocsPerOp(), 10),
			skipped,
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %w", test.name, err)
		}
	}
	return nil
}
