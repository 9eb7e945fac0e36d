package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"mintrunner/internal/chain"
	"mintrunner/internal/config"
	"mintrunner/internal/eligibility"
	"mintrunner/internal/journal"
	"mintrunner/internal/mint"
	"mintrunner/internal/progress"
	"mintrunner/internal/runner"
	"mintrunner/internal/server"
)

const FlagYes = "yes"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mintrunner",
		Short: "Batch minter for allowlisted, daily-limited mint contracts",
		Long: `Checks allowlist membership and the daily quota of the configured account, then
submits mint() transactions one at a time until the requested count is done or the
contract reports the daily limit as reached.

PRIVATE_KEY must be set in the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		statusCmd(),
		mintCmd(),
		mintOneCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show balance, allowlist membership and remaining mints for today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.runner.Status(a.ctx)
			return err
		},
	}
}

func mintCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "mint [count]",
		Short: "Mint up to count times, capped at the remaining daily quota",
		Long: `Mint up to count times, capped at the remaining daily quota. Without count the
--count flag (MINT_COUNT) is used.

Example:
  mintrunner mint 200 --yes --metrics-addr :9100`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, !yes)
			if err != nil {
				return err
			}
			defer a.close()

			count := a.cfg.Mint.Count
			if len(args) == 1 {
				count, err = strconv.Atoi(args[0])
				if err != nil || count < 0 {
					return fmt.Errorf("invalid count %q", args[0])
				}
			}

			res, err := a.runner.Execute(a.ctx, count)
			if err != nil {
				return err
			}
			if res.Session != nil && res.Session.StopReason == mint.StopReasonInterrupted {
				log.Warn("Batch interrupted")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, FlagYes, "y", false, "Skip the confirmation prompt")
	return cmd
}

func mintOneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint-one",
		Short: "Submit a single mint and print its receipt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.runner.MintOne(a.ctx)
			return err
		},
	}
}

type app struct {
	cfg     *config.AppConfig
	ctx     context.Context
	runner  *runner.Runner
	gateway *chain.EthGateway
	metrics *server.Server
	cancel  context.CancelFunc
}

// newApp loads configuration and connects to the chain. interactive asks on stdin
// before a batch starts.
func newApp(cmd *cobra.Command, interactive bool) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	setupLogging(cfg.Log)

	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if cfg.Mint.Interruptible {
		ctx, cancel = signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	}

	account, err := chain.NewAccount(cfg.Chain.PrivateKey)
	if err != nil {
		cancel()
		return nil, err
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, cfg.Chain.RPCTimeout)
	defer dialCancel()
	gw, err := chain.NewEthGateway(dialCtx, chain.EthGatewayConfig{
		RPCURL:         cfg.Chain.RPCURL,
		Account:        account,
		PollInterval:   cfg.Chain.ReceiptPollInterval,
		RequestTimeout: cfg.Chain.RPCTimeout,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("chain client error: %w", err)
	}

	contract, err := chain.NewMintContract(gw, chain.MintContractConfig{
		Address:      cfg.Chain.ContractAddress,
		GasLimit:     cfg.Chain.GasLimit,
		QuotaMarkers: cfg.Chain.QuotaMarkers,
	})
	if err != nil {
		gw.Close()
		cancel()
		return nil, err
	}

	a := &app{cfg: cfg, ctx: ctx, gateway: gw, cancel: cancel}

	mintOpts := mint.Options{AttemptTimeout: cfg.Mint.AttemptTimeout}
	if cfg.Mint.MaxAttemptsPerSecond > 0 {
		mintOpts.Limiter = rate.NewLimiter(rate.Limit(cfg.Mint.MaxAttemptsPerSecond), 1)
	}

	j := journal.New()
	if cfg.Service.MetricsAddr != "" {
		metrics := server.NewMetrics()
		mintOpts.Observers = append(mintOpts.Observers, metrics)
		a.metrics = server.NewServer(cfg.Service.MetricsAddr, metrics, j, gw)
		go func() {
			if err := a.metrics.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	var confirm runner.Confirmer
	if interactive {
		confirm = promptConfirmer(os.Stdin, os.Stdout, cfg.Mint.Unit)
	}

	a.runner = runner.New(runner.Config{
		Wallet:   gw,
		Contract: contract,
		Eligibility: eligibility.Options{
			AssumeZeroMintedToday: cfg.Mint.AssumeZeroMintedToday,
		},
		Mint: mintOpts,
		Console: progress.ConsoleOptions{
			ProgressEvery:    cfg.Mint.ProgressEvery,
			ErrorSampleEvery: cfg.Mint.ErrorSampleEvery,
			Unit:             cfg.Mint.Unit,
		},
		Confirmer:   confirm,
		Journal:     j,
		ExplorerURL: cfg.Chain.ExplorerURL,
		Currency:    cfg.Chain.Currency,
		Out:         os.Stdout,
	})
	return a, nil
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	a.gateway.Close()
	a.cancel()
}

func setupLogging(cfg config.LogConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func promptConfirmer(in io.Reader, out io.Writer, unit string) runner.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(n int) (bool, error) {
		fmt.Fprintf(out, "\nWould you like to mint %d %s? (yes/no): ", n, unit)
		answer, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "yes", "y":
			return true, nil
		default:
			return false, nil
		}
	}
}
