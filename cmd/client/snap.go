package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrylevesque/photobooth/internal/capture"
	"github.com/harrylevesque/photobooth/internal/compose"
	"github.com/harrylevesque/photobooth/internal/models"
)

var (
	snapImage   string
	snapOverlay string
	snapFront   bool
	snapRemote  bool
	snapQROut   string
	snapWidth   int
	snapHeight  int
)

var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Composite a still with an overlay and upload it",
	Long: `Take a still image as the camera frame, composite it with an overlay
and upload the result. The QR code pointing at the photo is written to
--qr-out when set.

Examples:
  boothctl snap --image selfie.jpg --front
  boothctl snap --image group.png --overlay frame_1717000000000_0a1b2c3d4e5f6a7b.png --qr-out link.png
  boothctl snap --image group.png --remote`,
	Args: cobra.NoArgs,
	RunE: runSnap,
}

func init() {
	snapCmd.Flags().StringVar(&snapImage, "image", "", "still image used as the camera frame")
	snapCmd.Flags().StringVar(&snapOverlay, "overlay", "", "overlay name (default: newest overlay)")
	snapCmd.Flags().BoolVar(&snapFront, "front", false, "treat the still as a front camera frame (mirrored)")
	snapCmd.Flags().BoolVar(&snapRemote, "remote", false, "let the server composite the frame")
	snapCmd.Flags().StringVar(&snapQROut, "qr-out", "", "write the QR code PNG to this file")
	snapCmd.Flags().IntVar(&snapWidth, "width", compose.DefaultWidth, "output width when compositing locally")
	snapCmd.Flags().IntVar(&snapHeight, "height", compose.DefaultHeight, "output height when compositing locally")
	_ = snapCmd.MarkFlagRequired("image")
}

func runSnap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	overlay := snapOverlay
	if overlay == "" {
		overlays, err := api.ListOverlays(ctx)
		if err != nil {
			return err
		}
		if len(overlays) == 0 {
			return errors.New("no overlays on the server, upload one with 'boothctl overlays add'")
		}
		overlay = overlays[0].Name
	}

	facing := capture.FacingEnvironment
	if snapFront {
		facing = capture.FacingUser
	}

	var (
		res models.PhotoResult
		err error
	)
	if snapRemote {
		frame, rerr := os.ReadFile(snapImage)
		if rerr != nil {
			return rerr
		}
		res, err = api.ComposeRemote(ctx, frame, overlay, facing.Mirrored())
	} else {
		res, err = snapLocal(cmd, overlay, facing)
	}
	if err != nil {
		return err
	}

	if snapQROut != "" {
		if err := writeQR(snapQROut, res.QRDataURL); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "QR code written to %s\n", snapQROut)
	}
	return render(cmd.OutOrStdout(), res)
}

func snapLocal(cmd *cobra.Command, overlay string, facing capture.Facing) (models.PhotoResult, error) {
	ctx := cmd.Context()
	session := capture.NewSession(capture.StillOpener(snapImage), compose.NewComposer(snapWidth, snapHeight, api), facing)
	if err := session.Start(ctx); err != nil {
		return models.PhotoResult{}, err
	}
	defer session.Close()
	session.SelectOverlay(overlay)

	png, err := session.Capture(ctx)
	if err != nil {
		return models.PhotoResult{}, err
	}
	return api.SubmitPhoto(ctx, png)
}

func writeQR(path, dataURL string) error {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		return errors.New("unexpected qr payload")
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}
