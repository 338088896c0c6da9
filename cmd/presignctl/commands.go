package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-presign/pkg/presign"
	"github.com/tendant/simple-presign/pkg/presign/auth"
	"github.com/tendant/simple-presign/pkg/presign/client"
)

// NewTokenCommand creates the token command
func NewTokenCommand() *cobra.Command {
	var (
		secret   string
		subject  string
		username string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token",
		Long: `Sign a bearer token the gateway accepts. The secret must match the
gateway's JWT_SECRET. Intended for development and smoke tests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			issuer, err := auth.NewIssuer(secret)
			if err != nil {
				return fmt.Errorf("JWT_SECRET or --secret is required: %w", err)
			}
			token, err := issuer.Issue(auth.Identity{Subject: subject, Username: username}, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default $JWT_SECRET)")
	cmd.Flags().StringVar(&subject, "sub", "dev", "token subject")
	cmd.Flags().StringVar(&username, "username", "", "username claim")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")

	return cmd
}

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Show the identity the gateway extracts from the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewClientFromFlags(cmd)
			id, err := c.VerifyToken(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), id)
		},
	}
}

// NewUploadURLCommand creates the upload-url command
func NewUploadURLCommand() *cobra.Command {
	var req presign.UploadRequest

	cmd := &cobra.Command{
		Use:   "upload-url",
		Short: "Request a presigned upload URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewClientFromFlags(cmd)
			grant, err := c.RequestUpload(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), grant)
		},
	}

	cmd.Flags().StringVar(&req.Prefix, "prefix", "", "key prefix (gateway default when empty)")
	cmd.Flags().StringVar(&req.Filename, "filename", "", "original file name")
	cmd.Flags().StringVar(&req.ContentType, "content-type", "", "content type to bind to the URL")

	return cmd
}

// NewDownloadURLCommand creates the download-url command
func NewDownloadURLCommand() *cobra.Command {
	var filename string

	cmd := &cobra.Command{
		Use:   "download-url <key>",
		Short: "Request a presigned download URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewClientFromFlags(cmd)
			grant, err := c.RequestDownload(cmd.Context(), args[0], filename)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), grant)
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "", "file name for Content-Disposition")

	return cmd
}

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	var (
		prefix string
		limit  int
		cursor string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored objects",
		Long:  `List objects in the gateway's bucket, one page at a time or with --all every page.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewClientFromFlags(cmd)
			out := cmd.OutOrStdout()

			for {
				page, err := c.List(cmd.Context(), prefix, limit, cursor)
				if err != nil {
					return fmt.Errorf("list failed: %w", err)
				}
				for _, item := range page.Items {
					fmt.Fprintf(out, "%s\t%d\t%s\n", item.Key, item.Size, item.LastModified.Format(time.RFC3339))
				}
				if !page.IsTruncated || page.NextCursor == nil {
					return nil
				}
				if !all {
					fmt.Fprintf(out, "next cursor: %s\n", *page.NextCursor)
					return nil
				}
				cursor = *page.NextCursor
			}
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "only keys starting with prefix")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (gateway default when 0)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue from a previous page")
	cmd.Flags().BoolVar(&all, "all", false, "follow cursors until the listing is complete")

	return cmd
}

// NewUploadCommand creates the upload command
func NewUploadCommand() *cobra.Command {
	var (
		prefix      string
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file through a presigned URL",
		Long:  `Request an upload URL for the file and PUT its bytes directly to the object store.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]

			f, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("failed to stat file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", filePath)
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			var opts []client.Option
			if verbose {
				opts = append(opts, client.WithProgress(progressPrinter(cmd, info.Size())))
			}
			c := NewClientFromFlags(cmd, opts...)

			grant, err := c.RequestUpload(cmd.Context(), presign.UploadRequest{
				Prefix:      prefix,
				Filename:    filepath.Base(filePath),
				ContentType: contentType,
			})
			if err != nil {
				return err
			}

			if err := c.Upload(cmd.Context(), grant, f, info.Size()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes)\n", filePath, info.Size())
			fmt.Fprintf(cmd.OutOrStdout(), "Key: %s\n", grant.Key)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "key prefix (gateway default when empty)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type (inferred from the extension when empty)")

	return cmd
}

// NewDownloadCommand creates the download command
func NewDownloadCommand() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <key>",
		Short: "Download an object through a presigned URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			// If no output path specified, use the last key segment
			if outputPath == "" {
				outputPath = filepath.Base(key)
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			var opts []client.Option
			if verbose {
				opts = append(opts, client.WithProgress(progressPrinter(cmd, -1)))
			}
			c := NewClientFromFlags(cmd, opts...)

			grant, err := c.RequestDownload(cmd.Context(), key, "")
			if err != nil {
				return err
			}

			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}

			n, err := c.Download(cmd.Context(), grant.URL, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(outputPath)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", outputPath, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: last key segment)")

	return cmd
}

func progressPrinter(cmd *cobra.Command, total int64) client.ProgressFunc {
	w := cmd.ErrOrStderr()
	return func(n int64) {
		if total > 0 {
			fmt.Fprintf(w, "\r%d/%d bytes", n, total)
			if n >= total {
				fmt.Fprintln(w)
			}
			return
		}
		fmt.Fprintf(w, "\r%d bytes", n)
	}
}
