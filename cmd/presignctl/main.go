package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-presign/pkg/presign/client"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the presignctl command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "presignctl",
		Short: "Presign gateway CLI",
		Long: `Command line client for the presign gateway.

Requests presigned URLs, moves files directly to and from the object store,
and mints development tokens. Settings are read from flags, then from the
environment (PRESIGN_URL, PRESIGN_TOKEN, JWT_SECRET), which may be
populated from a .env file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("server", "", "gateway base URL (default $PRESIGN_URL or http://localhost:3000)")
	rootCmd.PersistentFlags().String("token", "", "bearer token (default $PRESIGN_TOKEN)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file to load")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "gateway request timeout")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(NewTokenCommand())
	rootCmd.AddCommand(NewVerifyCommand())
	rootCmd.AddCommand(NewUploadURLCommand())
	rootCmd.AddCommand(NewDownloadURLCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewUploadCommand())
	rootCmd.AddCommand(NewDownloadCommand())

	return rootCmd
}

// NewClientFromFlags creates a gateway client from command flags and environment variables
func NewClientFromFlags(cmd *cobra.Command, opts ...client.Option) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	if server == "" {
		server = getEnv("PRESIGN_URL", "http://localhost:3000")
	}
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("PRESIGN_TOKEN")
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Gateway: %s (token: %t)\n", server, token != "")
	}

	opts = append([]client.Option{client.WithToken(token), client.WithTimeout(timeout)}, opts...)
	return client.New(server, opts...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
