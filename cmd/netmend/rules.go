package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/netmend/internal/config"
	"github.com/fyrsmithlabs/netmend/internal/knowledge"
)

var (
	rulesCategory string
	rulesJSON     bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List knowledge base rules",
	Long: `List the seed rules plus any configured rule packs.

Examples:
  # All rules
  netmend rules

  # Only OSPF rules, as JSON
  netmend rules --category ospf --json`,
	RunE: runRules,
}

func init() {
	rulesCmd.Flags().StringVar(&rulesCategory, "category", "", "filter by category (interface, eigrp, ospf)")
	rulesCmd.Flags().BoolVar(&rulesJSON, "json", false, "output as JSON")
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	kb, err := knowledge.New(nil, knowledge.NewMemoryStore(), zap.NewNop())
	if err != nil {
		return err
	}
	if err := kb.AddRules(knowledge.SeedRules()); err != nil {
		return err
	}
	for _, path := range cfg.Knowledge.RulePacks {
		pack, err := knowledge.LoadRulePack(path)
		if err != nil {
			return err
		}
		if _, err := kb.LoadPack(pack); err != nil {
			return err
		}
	}

	rules := kb.Rules()
	if rulesCategory != "" {
		filtered := rules[:0]
		for _, r := range rules {
			if string(r.Category) == rulesCategory {
				filtered = append(filtered, r)
			}
		}
		rules = filtered
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	if rulesJSON {
		encoded, err := json.MarshalIndent(rules, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tWEIGHT\tCAUSE")
	for _, r := range rules {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", r.ID, r.Category, r.Weight, r.Cause)
	}
	return w.Flush()
}
