package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stylekeep/wardrobe-pipeline/internal/model"
)

var (
	extractUserID string
	extractSave   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <image-url> [image-url...]",
	Short: "Run one feature extraction over up to five image URLs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, model.ExtractionRequest{
			UserID:    extractUserID,
			ImageURLs: args,
		})
		if err != nil {
			return eris.Wrap(err, "extraction failed")
		}

		if extractSave {
			for _, fs := range result.Features {
				if err := env.Store.UpdateItemFeatures(ctx, fs.SourceImage, fs); err != nil {
					zap.L().Error("failed to persist features",
						zap.String("image_url", fs.SourceImage),
						zap.Error(err),
					)
				}
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractUserID, "user", "cli", "user id to attribute the extraction to")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "persist extracted features for matching pending items")
	rootCmd.AddCommand(extractCmd)
}
