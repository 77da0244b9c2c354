package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
	"github.com/cardano-community/rosetta-cardano-check/construction"
	"github.com/cardano-community/rosetta-cardano-check/journal"
	"github.com/cardano-community/rosetta-cardano-check/rosetta"
	"github.com/cardano-community/rosetta-cardano-check/wallet"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run construction scenarios against a rosetta endpoint",
	Long: `Run builds, signs, submits and confirms one transaction per configured
scenario against a live cardano rosetta endpoint, then validates what
actually landed on chain. The wallet named by --mnemonic must hold enough
ada on the target network to fund every scenario.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := cardano.LoadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		shutdownListener := make(chan os.Signal, 1)
		signal.Notify(shutdownListener, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-shutdownListener
			glog.Info("Shutting down")
			cancel()
		}()

		engineWallet, err := wallet.NewWallet(config.Mnemonic, config.Params)
		if err != nil {
			return err
		}
		glog.Infof("Wallet address: %s", engineWallet.Address())

		metrics, err := construction.NewMetrics(config.StatsdAddress)
		if err != nil {
			return err
		}
		defer metrics.Close()

		attemptJournal, err := journal.Open(config.DataDirectory)
		if err != nil {
			return err
		}
		defer func() {
			if err := attemptJournal.Close(); err != nil {
				glog.Errorf("Unable to close journal: %v", err)
			}
		}()

		client := rosetta.NewClient(config)
		tracker := construction.NewTracker(client, config.PollInterval, config.ConfirmTimeout)
		runner := construction.NewRunner(config, client, engineWallet, tracker, metrics, attemptJournal)

		names := config.Scenarios
		if len(names) == 0 {
			names = []string{"basic"}
		}

		failures := 0
		for _, name := range names {
			scenario, err := construction.ScenarioByName(name, config)
			if err != nil {
				return err
			}

			outcome, err := runner.Run(ctx, scenario)
			if err != nil {
				glog.Errorf("Scenario %s failed: %v", name, err)
				failures++
				if ctx.Err() != nil {
					break
				}
				continue
			}

			glog.Infof("Scenario %s confirmed %s in block %d (construction %s, confirmation %s)",
				outcome.Scenario, outcome.TransactionHash, outcome.Block.Index,
				outcome.ConstructionTime.Round(time.Millisecond),
				outcome.ConfirmationTime.Round(time.Second))
		}

		if failures > 0 {
			return errors.Errorf("%d of %d scenarios failed", failures, len(names))
		}
		glog.Infof("All %d scenarios confirmed", len(names))
		return nil
	},
}

func init() {
	runCmd.PersistentFlags().String("network", string(cardano.Preprod), "network to run against")
	runCmd.PersistentFlags().String("endpoint", "", "rosetta endpoint base url")
	runCmd.PersistentFlags().String("mnemonic", "", "mnemonic of the wallet funding the scenarios")
	runCmd.PersistentFlags().String("destination", "", "destination address, defaults to the wallet itself")
	runCmd.PersistentFlags().String("pool-hash", "", "stake pool key hash for delegation scenarios")
	runCmd.PersistentFlags().StringSlice("scenario", []string{"basic"}, "scenarios to run, in order")
	runCmd.PersistentFlags().Int64("fee-estimate", cardano.DefaultFeeEstimate, "declared fee per transaction in lovelace")
	runCmd.PersistentFlags().Duration("poll-interval", cardano.DefaultPollInterval, "confirmation poll interval")
	runCmd.PersistentFlags().Duration("confirm-timeout", cardano.DefaultConfirmTimeout, "how long to wait for each confirmation")
	runCmd.PersistentFlags().Duration("request-timeout", cardano.DefaultRequestTimeout, "http timeout for endpoint calls")
	runCmd.PersistentFlags().String("data-directory", "~/.rosetta-cardano-check", "location to store the attempt journal")
	runCmd.PersistentFlags().String("statsd-addr", "", "statsd agent address for metrics")
	runCmd.PersistentFlags().Bool("include-mempool", false, "count mempool coins as spendable")
	runCmd.PersistentFlags().Bool("skip-parse-check", false, "skip the parse verification rounds")

	runCmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		viper.BindPFlag(flag.Name, flag)
	})

	rootCmd.AddCommand(runCmd)
}
