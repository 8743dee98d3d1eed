package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/config"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/logging"
)

var (
	historyDB      string
	historySession string
	historyLast    int
	historyJSON    bool
)

// #region command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded decisions from the feasibility log",
	Long: `history reads the feasibility log written by check and batch.

Without --session it lists the most recent sessions with their totals.
With --session it lists that session's decisions, newest first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := historyDB
		if path == "" {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			path = cfg.LogDB
		}
		if path == "" {
			return fmt.Errorf("no log db configured (use --db, log_db in config, or FEASIBLE_LOG_DB)")
		}

		db, err := logging.OpenDB(path)
		if err != nil {
			return err
		}
		defer db.Close()

		if historySession != "" {
			return runEntriesMode(db, historySession, historyLast, historyJSON)
		}
		return runSessionsMode(db, historyLast, historyJSON)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyDB, "db", "", "path to feasibility log db (defaults to log_db from config)")
	historyCmd.Flags().StringVar(&historySession, "session", "", "show decisions of one session")
	historyCmd.Flags().IntVar(&historyLast, "last", 20, "show N most recent rows")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON instead of table")
}

// #endregion command

// #region sessions-mode
func runSessionsMode(db *sql.DB, last int, jsonOut bool) error {
	sums, err := logging.Summarize(db, last)
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}
	if jsonOut {
		return printJSON(sums)
	}

	fmt.Printf("%-36s  %6s  %6s  %6s  %6s  %6s  %s\n",
		"Session", "Total", "Admit", "Reject", "Error", "Unk", "First Seen")
	fmt.Printf("%-36s+-%6s+-%6s+-%6s+-%6s+-%6s+-%s\n",
		"------------------------------------", "------", "------", "------", "------", "------", "--------------------")
	for _, s := range sums {
		fmt.Printf("%-36s  %6d  %6d  %6d  %6d  %6d  %s\n",
			s.SessionID, s.Total, s.Admitted, s.Rejected, s.Errored, s.Unknown, s.FirstSeen)
	}
	return nil
}

// #endregion sessions-mode

// #region entries-mode
type entryRow struct {
	Solution  string `json:"solution"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
	ElapsedUS int64  `json:"elapsed_us"`
	CreatedAt string `json:"created_at"`
}

func runEntriesMode(db *sql.DB, session string, last int, jsonOut bool) error {
	entries, err := logging.ListEvaluations(db, session, last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "no decisions found for session %s\n", session)
		return nil
	}

	rows := make([]entryRow, len(entries))
	for i, e := range entries {
		rows[i] = entryRow{
			Solution:  e.Solution,
			Decision:  e.Decision,
			Reason:    e.Reason,
			ElapsedUS: e.ElapsedUS,
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-24s  %-8s  %10s  %-20s  %s\n", "Solution", "Decision", "Elapsed", "Time", "Reason")
	fmt.Printf("%-24s+-%-8s+-%10s+-%-20s+-%s\n",
		"------------------------", "--------", "----------", "--------------------", "------")
	for _, r := range rows {
		fmt.Printf("%-24s  %-8s  %8dus  %-20s  %s\n", r.Solution, r.Decision, r.ElapsedUS, r.CreatedAt, r.Reason)
	}
	return nil
}

// #endregion entries-mode

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
