package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	pb "gopkg.in/cheggaaa/pb.v1"

	"deepstitch/internal/compositor"
	"deepstitch/pkg/deepzoom"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deepstitch [item-url]",
	Short: "Reconstruct full-resolution images from deep-zoom tile servers",
	Long: `deepstitch rebuilds a digitized photograph from its deep-zoom tiled
representation. Given a collection-item URL it fetches the tiles.json
descriptor, selects the maximum-resolution zoom level, downloads every tile of
that level and composes them into a single image saved under a filename
derived from the item identifier.

Examples:
  # Reconstruct one item into the current directory
  deepstitch https://collections.slsa.sa.gov.au/resource/B+43122

  # Choose output directory and PNG encoding
  deepstitch -o out -f png https://collections.slsa.sa.gov.au/resource/B+43122

  # Start HTTP server
  deepstitch serve --port 8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no args, show help
		if len(args) == 0 {
			return cmd.Help()
		}
		return runReconstruct(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.deepstitch.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug-level logging")

	// Output options
	rootCmd.Flags().StringP("output-dir", "o", ".", "directory for the output image")
	rootCmd.Flags().StringP("format", "f", "jpg", "output format (jpg|png)")
	rootCmd.Flags().String("prefix", "slsa", "output filename prefix")

	// HTTP options
	rootCmd.Flags().String("user-agent", "deepstitch/1.0.0", "HTTP User-Agent header")
	rootCmd.Flags().Duration("timeout", 30*time.Second, "per-request HTTP timeout")

	// Bind flags to viper for root command
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("output-dir", rootCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("format", rootCmd.Flags().Lookup("format"))
	viper.BindPFlag("prefix", rootCmd.Flags().Lookup("prefix"))
	viper.BindPFlag("user-agent", rootCmd.Flags().Lookup("user-agent"))
	viper.BindPFlag("timeout", rootCmd.Flags().Lookup("timeout"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".deepstitch" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".deepstitch")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger creates the CLI logger writing to w at the given level.
func newLogger(w io.Writer, level charmlog.Level) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

func runReconstruct(cmd *cobra.Command, args []string) error {
	itemURL := args[0]

	format := viper.GetString("format")
	switch format {
	case "jpg", "png":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	level := charmlog.InfoLevel
	if viper.GetBool("verbose") {
		level = charmlog.DebugLevel
	}
	logger := newLogger(cmd.ErrOrStderr(), level)

	client := &http.Client{Timeout: viper.GetDuration("timeout")}

	var bar *pb.ProgressBar
	comp := compositor.New(client, compositor.Options{
		UserAgent: viper.GetString("user-agent"),
		Logger:    logger,
		Progress: func(done, total int) {
			if bar == nil {
				bar = pb.New(total).Prefix("tiles ")
				bar.Output = os.Stderr
				bar.Start()
			}
			bar.Set(done)
			if done == total {
				bar.Finish()
			}
		},
	})

	result, err := comp.Reconstruct(cmd.Context(), itemURL)
	if err != nil {
		return err
	}

	filename := deepzoom.OutputFilename(viper.GetString("prefix"), result.Identifier, format)
	path := filepath.Join(viper.GetString("output-dir"), filename)

	if err := compositor.Save(result.Image, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	logger.Info("saved", "path", path, "size", fmt.Sprintf("%dx%d", result.Width, result.Height))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
