package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [host]",
	Short: "Show the ledger's summary for a host",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := cfg.Host
		if len(args) == 1 {
			host = args[0]
		}

		var cl closers
		defer cl.close()
		auth, err := openAuthority(cfg, &cl)
		if err != nil {
			return err
		}
		s, err := auth.HostSummary(cmd.Context(), host)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}
		fmt.Printf("host=%s eco_band=%s lifeforce_band=%s\n", host, s.EcoBand, s.LifeforceBand)
		adapters := make([]string, 0, len(s.AdapterHealth))
		for name := range s.AdapterHealth {
			adapters = append(adapters, name)
		}
		sort.Strings(adapters)
		for _, name := range adapters {
			fmt.Printf("adapter name=%q health=%v\n", name, s.AdapterHealth[name])
		}
		fmt.Printf("history_entries=%d\n", len(s.History))
		return nil
	},
}
