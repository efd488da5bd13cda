package main

import (
	"github.com/spf13/cobra"

	"github.com/harrylevesque/photobooth/internal/models"
)

var overlaysCmd = &cobra.Command{
	Use:     "overlays",
	Aliases: []string{"overlay", "ov"},
	Short:   "List, upload and remove overlay frames",
}

var overlaysListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List overlays, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		overlays, err := api.ListOverlays(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), models.OverlayList{Overlays: overlays})
	},
}

var overlaysAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Upload up to 10 overlay images in one request",
	Long: `Upload overlay images. The server accepts png, jpeg and webp and
rejects the whole batch when more than 10 files are sent.

Examples:
  boothctl overlays add frame.png
  boothctl --token s3cret overlays add spring.png summer.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		added, err := api.AddOverlays(cmd.Context(), args)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), models.UploadResult{Uploaded: added})
	},
}

var overlaysRemoveCmd = &cobra.Command{
	Use:     "rm <name>",
	Aliases: []string{"remove", "delete"},
	Short:   "Remove an overlay by name",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.RemoveOverlay(cmd.Context(), args[0]); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), models.Status{OK: true})
	},
}

func init() {
	overlaysCmd.AddCommand(overlaysListCmd)
	overlaysCmd.AddCommand(overlaysAddCmd)
	overlaysCmd.AddCommand(overlaysRemoveCmd)
}
