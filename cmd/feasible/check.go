package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

var (
	batchFile string
	jsonOut   bool
)

// #region commands
var checkCmd = &cobra.Command{
	Use:   "check <solution>...",
	Short: "Evaluate one or more solutions",
	Example: `  feasible check -c feasible.yaml 3,0,12 1,1,1
  feasible check -c feasible.yaml "4 4 4"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sols := make([]solution.Solution, 0, len(args))
		for _, arg := range args {
			s, err := solution.Parse(arg)
			if err != nil {
				return err
			}
			sols = append(sols, s)
		}
		return evaluateAll(cmd.Context(), sols)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Evaluate solutions read from a file, one per line",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sols, err := readSolutions(batchFile)
		if err != nil {
			return err
		}
		return evaluateAll(cmd.Context(), sols)
	},
}

func init() {
	checkCmd.Flags().BoolVar(&jsonOut, "json", false, "output decisions as JSON lines")
	batchCmd.Flags().BoolVar(&jsonOut, "json", false, "output decisions as JSON lines")
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "-", "file with one solution per line (- for stdin)")
}

// #endregion commands

// #region evaluate
type decisionRow struct {
	Session  string `json:"session_id"`
	Solution string `json:"solution"`
	Action   string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
	Micros   int64  `json:"elapsed_us"`
}

func evaluateAll(parent context.Context, sols []solution.Solution) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	a, err := openApp(cfgPath, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	h := a.harness(logger)
	decisions, runErr := h.Run(ctx, sols)

	notAdmitted := 0
	enc := json.NewEncoder(os.Stdout)
	for _, d := range decisions {
		if !d.Feasible() {
			notAdmitted++
		}
		if jsonOut {
			enc.Encode(decisionRow{
				Session:  d.SessionID,
				Solution: d.Solution.Key(),
				Action:   string(d.Action),
				Reason:   d.Reason,
				Micros:   d.Elapsed.Microseconds(),
			})
			continue
		}
		fmt.Printf("%-24s %-8s %s\n", d.Solution, d.Action, d.Reason)
	}
	if !jsonOut {
		fmt.Printf("session %s: %d/%d admitted\n", h.SessionID(), len(decisions)-notAdmitted, len(decisions))
	}

	if runErr != nil {
		return fmt.Errorf("interrupted: %w", runErr)
	}
	if notAdmitted > 0 {
		return fmt.Errorf("%d of %d solutions not admitted", notAdmitted, len(decisions))
	}
	return nil
}

// #endregion evaluate

// #region helpers
func readSolutions(path string) ([]solution.Solution, error) {
	f := os.Stdin
	if path != "-" {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open solutions: %w", err)
		}
		defer f.Close()
	}

	var sols []solution.Solution
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := solution.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		sols = append(sols, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read solutions: %w", err)
	}
	return sols, nil
}

// #endregion helpers
