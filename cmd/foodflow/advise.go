package main

import (
	"encoding/json"
	"foodflow/internal/advisory"
	"foodflow/internal/config"
	"foodflow/internal/core"
	"foodflow/internal/logging"

	"github.com/spf13/cobra"
)

func newAdviseCmd() *cobra.Command {
	var in core.SimulationInput
	var provider string
	cmd := &cobra.Command{
		Use:   "advise",
		Short: "Print a one-off demo advisory for a region and crop",
		Example: `  foodflow advise --region west-africa --crop Cassava
  foodflow advise --region asia --crop Rice --forecast "Dry spell" --provider gemini`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadAdvisor()
			if err != nil {
				return err
			}
			if provider != "" {
				cfg.Provider = provider
			}
			logger, err := logging.New(logging.Options{Level: "warn", Format: "console"})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			gen, err := advisory.New(cmd.Context(), advisory.Config{
				Provider:        cfg.Provider,
				GeminiAPIKey:    cfg.GeminiAPIKey,
				GeminiModel:     cfg.GeminiModel,
				AnthropicAPIKey: cfg.AnthropicAPIKey,
				AnthropicModel:  cfg.AnthropicModel,
				Timeout:         cfg.Timeout,
			}, logger)
			if err != nil {
				return err
			}
			svc := core.NewInMemoryService(core.NewDefaultRulesEngine(),
				core.WithAdvisor(gen),
				core.WithLogger(logger),
			)
			res, err := svc.SimulateAdvisory(cmd.Context(), in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&in.Region, "region", "", "region value or label (required)")
	cmd.Flags().StringVar(&in.Crop, "crop", "", "crop advised in the region (required)")
	cmd.Flags().StringVar(&in.Forecast, "forecast", "", "rainfall outlook (default \""+core.DemoForecast+"\")")
	cmd.Flags().StringVar(&provider, "provider", "", "advisor provider: static, gemini or anthropic")
	_ = cmd.MarkFlagRequired("region")
	_ = cmd.MarkFlagRequired("crop")
	return cmd
}
