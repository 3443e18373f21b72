package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to recorded-rounds fixture JSON")
	lenient := flag.Bool("lenient", false, "accept failing checks without a message")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--lenient]")
		os.Exit(2)
	}
	os.Exit(run(*fixturePath, *lenient))
}

// #endregion main

// #region fixture-mode

func run(path string, lenient bool) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	config := f.GateConfig.ToGateConfig()
	if lenient {
		config.RequireFailureMessage = false
	}
	results := replay.Replay(f.ToRounds(), config)
	mismatches := f.Compare(results)

	printResults(f, results, mismatches)
	if len(mismatches) > 0 {
		return 1
	}
	return 0
}

// #endregion fixture-mode

// #region output

func printResults(f *replay.Fixture, results []replay.ReplayResult, mismatches []replay.Mismatch) {
	drifted := make(map[string]bool, len(mismatches))
	for _, m := range mismatches {
		drifted[m.RoundID] = true
	}

	fmt.Printf("%-28s| %-6s| %-10s| %-10s| %-16s| %s\n", "Round", "Flavor", "Expected", "Replayed", "Error", "Match")
	fmt.Printf("%s\n", strings.Repeat("-", 86))
	for i, r := range results {
		expected := ""
		if i < len(f.Rounds) {
			expected = f.Rounds[i].Expected.Outcome
		}
		match := "OK"
		if drifted[r.RoundID] {
			match = "DIFF"
		}
		fmt.Printf("%-28s| %-6s| %-10s| %-10s| %-16s| %s\n",
			r.RoundID, r.Flavor, expected, r.Outcome, r.ErrorKind, match)
	}

	s := replay.Summarize(results)
	fmt.Printf("\nSummary: %d rounds, %d errors, %d mismatches\n", s.TotalRounds, s.Errors, len(mismatches))
	for _, outcome := range []string{"proceed", "suppress", "safe", "defer", "deny"} {
		if n := s.Outcomes[outcome]; n > 0 {
			fmt.Printf("  %-9s %d\n", outcome, n)
		}
	}
	for _, m := range mismatches {
		fmt.Fprintf(os.Stderr, "mismatch: %s\n", m)
	}
}

// #endregion output
