package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/docloom/docloom/internal/logger"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables verbose output.
	verbose bool
	// version is the application version.
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docloom",
	Short: "docloom ingests shared documents and answers questions about them",
	Long: `docloom is a document ingestion and retrieval pipeline. A set of small
daemons watch a shared directory, extract and index document text, and
answer natural-language questions over the indexed content.

Each stage runs as its own subcommand:

  docloom watcher        watch the shared root and publish file events
  docloom preprocessor   extract text from changed files
  docloom postprocessor  chunk, embed, and index extracted text
  docloom mailbox        store and serve change notifications
  docloom serve          answer questions over HTTP
  docloom chat           talk to a running serve instance`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup(viper.GetBool("verbose"))
		logger.SetCommand(cmd.Name())
		logger.SetVersion(version)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(InitConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.docloom.yaml or ./.docloom.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}
