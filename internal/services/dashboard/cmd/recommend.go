package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/logger"
)

func newRecommendCmd(st *cliState) *cobra.Command {
	var (
		raw    = advisor.DefaultRawSample()
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Run one recommendation and print it",
		Example: `  fertadvisor recommend --n 20
  fertadvisor recommend --moisture 18 --ph 5.8 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(st.v, st.configFile)
			if err != nil {
				return err
			}
			// stdout carries the result; logs only when asked for
			log := zap.NewNop()
			if cfg.LogLevel == "debug" {
				if log, err = logger.New(cfg.LogLevel, "console"); err != nil {
					return err
				}
				defer func() { _ = log.Sync() }()
			}

			adv, _, err := buildAdvisor(cmd.Context(), cfg, log, nil)
			if err != nil {
				return err
			}
			rec, err := adv.Recommend(cmd.Context(), raw)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			printRecommendation(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	for i, f := range entities.Features {
		cmd.Flags().StringVar(&raw[i], f.Key, f.Default, f.Input)
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print json")
	return cmd
}

func printRecommendation(w io.Writer, rec *advisor.Recommendation) {
	fmt.Fprintf(w, "Recommended fertilizer: %s\n", rec.Fertilizer)
	if rec.Description != "" {
		fmt.Fprintf(w, "  %s\n", rec.Description)
	}
	fmt.Fprintf(w, "Application rate: %s\n", rec.RateText)
	if len(rec.Importances) > 0 {
		fmt.Fprintln(w, "\nFeature importance:")
		for _, fw := range rec.Importances {
			fmt.Fprintf(w, "  %-12s %.3f\n", fw.Feature, fw.Weight)
		}
	}
	fmt.Fprintln(w, "\nInput summary:")
	for _, r := range rec.Summary {
		fmt.Fprintf(w, "  %-12s %-8s %s\n", r.Parameter, r.ValueText(), r.Unit)
	}
}
