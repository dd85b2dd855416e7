package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
)

var version = "1.0"

type cliState struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	st := &cliState{v: newViper()}

	root := &cobra.Command{
		Use:           "fertadvisor",
		Short:         "Smart Fertilizer Advisor",
		Long:          "Recommends a fertilizer type and application rate from seven soil measurements.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadDotEnv(st.envFile)
		},
	}
	root.PersistentFlags().StringVar(&st.configFile, "config", "", "yaml config file (keys as the env variables)")
	root.PersistentFlags().StringVar(&st.envFile, "env-file", ".env", "dotenv file loaded when present")

	root.AddCommand(newServeCmd(st), newRecommendCmd(st), newSimulateCmd(st), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Smart Fertilizer Advisor Version %s\n", version)
		},
	}
}

// exitCode: 2 for input the advisor rejected, 1 for everything else.
func exitCode(err error) int {
	var ve *advisor.ValidationError
	if errors.As(err, &ve) {
		return 2
	}
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, advisor.UserMessage(err))
		stop()
		os.Exit(exitCode(err))
	}
}
