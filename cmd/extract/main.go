package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tubegrab/internal/classify"
	"tubegrab/internal/models"
	"tubegrab/internal/results"
	"tubegrab/internal/version"
	"tubegrab/internal/youtube"
)

var (
	flagURL     string
	flagType    string
	flagOutput  string
	flagCookies string
	flagLang    string
)

var rootCmd = &cobra.Command{
	Use:          "tubegrab-extract",
	Short:        "Run a single extraction synchronously, without the service",
	Version:      version.Version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return extract(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagURL, "url", "", "YouTube video URL")
	rootCmd.Flags().StringVar(&flagType, "type", "transcript", "Download type: audio, video or transcript")
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", ".", "Directory to write results into")
	rootCmd.Flags().StringVar(&flagCookies, "cookies", "", "Netscape cookie file for authenticated access")
	rootCmd.Flags().StringVar(&flagLang, "lang", "en", "Preferred caption language")
	_ = rootCmd.MarkFlagRequired("url")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func extract(ctx context.Context) error {
	downloadType := models.DownloadType(flagType)
	if !downloadType.Valid() {
		return fmt.Errorf("invalid download type %q", flagType)
	}

	var credentials []byte
	if flagCookies != "" {
		blob, err := os.ReadFile(flagCookies)
		if err != nil {
			return err
		}
		credentials = blob
	}

	scratch, err := os.MkdirTemp("", "tubegrab-extract-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	ext := youtube.NewMediaExtractor(scratch, flagLang)
	result, err := ext.Extract(ctx, flagURL, downloadType, credentials)
	if err != nil {
		kind, _ := classify.Classify(err)
		log.WithError(err).WithField("kind", string(kind)).Error("Extraction failed")
		if hint := kind.Hint(); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		return err
	}

	if err := os.MkdirAll(flagOutput, 0o755); err != nil {
		return err
	}
	for _, out := range result.Outputs {
		name := results.ArtifactName(result.VideoID, result.LanguageCode, result.Title,
			out.FormatTag, filepath.Ext(out.Path))
		dst := filepath.Join(flagOutput, name)
		if err := copyFile(out.Path, dst); err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", out.FormatTag, dst)
	}

	log.WithFields(log.Fields{
		"video_id": result.VideoID,
		"title":    result.Title,
		"outputs":  len(result.Outputs),
	}).Info("Extraction complete")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
