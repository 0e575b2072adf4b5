package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "volctts",
	Short: "Volcano Engine bidirectional TTS tools",
	Long: `Tools around the Volcano Engine bidirectional streaming TTS service.

Credentials come from the request file or flags:
  - App ID       (X-Api-App-Key)
  - Access Key   (X-Api-Access-Key)
  - Resource ID  (X-Api-Resource-Id, e.g. seed-tts-1.0)`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})))
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(speakCmd)
	rootCmd.AddCommand(echoCmd)
}
