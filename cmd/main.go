package main

import (
	"context"
	"os"
	"time"

	"github.com/dpe27/restpoll/internal/httpclient"
	"github.com/dpe27/restpoll/pkg/log"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	debugFlag    bool
	insecureFlag bool
	timeoutFlag  time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "restpoll",
	Short:         "Run REST tasks that complete on the first call or after polling",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// logs go to stderr so command output on stdout stays parseable
		log.Initialize(os.Stderr, debugFlag, nil)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&insecureFlag, "insecure", false, "skip TLS certificate and hostname verification")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 60*time.Second, "timeout of a single HTTP call")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(context.Background(), "Command failed", "error", err)
	}
}

// newExecutor builds the executor used by the one-off commands.
func newExecutor(observer httpclient.RequestObserver) *httpclient.Executor {
	logger := log.With()
	cli := httpclient.NewHttpClient(httpclient.ClientOptBuilder().
		ServiceName("restpoll").
		Logger(logger).
		Observer(observer).
		Timeout(timeoutFlag).
		InsecureSkipVerify(insecureFlag).
		Build())
	return httpclient.NewExecutor(cli, logger)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version)
	},
}
