package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/netmend/internal/config"
	"github.com/fyrsmithlabs/netmend/internal/detect"
	"github.com/fyrsmithlabs/netmend/internal/logging"
	"github.com/fyrsmithlabs/netmend/internal/session"
)

var diagnoseBaselinePath string

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <snapshot.yaml>",
	Short: "Diagnose a device state snapshot",
	Long: `Run detection and root cause inference over a YAML device state
snapshot and print the report with fix recommendations as JSON.

Examples:
  # Diagnose a snapshot
  netmend diagnose r1-state.yaml

  # Diagnose with expected-state baselines
  netmend diagnose --baseline baselines.yaml r1-state.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runDiagnose,
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseBaselinePath, "baseline", "", "path to baseline YAML file")
}

// diagnoseOutput is the one-shot command's JSON document.
type diagnoseOutput struct {
	Report          *session.Report           `json:"report"`
	Recommendations []*session.Recommendation `json:"recommendations,omitempty"`
	Errors          []string                  `json:"errors,omitempty"`
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if diagnoseBaselinePath != "" {
		cfg.Baseline.Path = diagnoseBaselinePath
	}

	logger, err := logging.New(config.LoggingConfig{Level: "error", Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(logger) }()

	st, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	state, err := detect.LoadState(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	report, err := st.manager.Diagnose(ctx, state)
	if err != nil {
		return err
	}

	out := diagnoseOutput{Report: report}
	for _, diag := range report.Diagnoses {
		rec, err := st.manager.Recommend(ctx, diag, nil, false)
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
			continue
		}
		out.Recommendations = append(out.Recommendations, rec)
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
