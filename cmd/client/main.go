package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harrylevesque/photobooth/internal/client"
)

var (
	serverURL    string
	adminToken   string
	outputFormat string

	api *client.Client
)

var rootCmd = &cobra.Command{
	Use:           "boothctl",
	Short:         "Manage overlays and take photos against a booth server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat != "json" && outputFormat != "yaml" {
			return fmt.Errorf("unknown output format %q (want json or yaml)", outputFormat)
		}
		api = client.New(serverURL, adminToken)
		return nil
	},
}

func init() {
	defaultServer := os.Getenv("PHOTOBOOTH_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:3000"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "booth server base URL")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", os.Getenv("PHOTOBOOTH_ADMIN_TOKEN"), "admin token for overlay changes")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format (json, yaml)")

	rootCmd.AddCommand(overlaysCmd)
	rootCmd.AddCommand(snapCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func render(w io.Writer, v any) error {
	if outputFormat == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
