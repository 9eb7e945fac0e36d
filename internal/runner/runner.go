// Package runner sequences one operator session: eligibility, confirmation, batch and
// summary.
package runner

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	log "github.com/sirupsen/logrus"

	"mintrunner/internal/chain"
	"mintrunner/internal/eligibility"
	"mintrunner/internal/journal"
	"mintrunner/internal/mint"
	"mintrunner/internal/progress"
)

var rule = strings.Repeat("━", 60)

// Wallet is the operator account as seen by the runner.
type Wallet interface {
	Address() common.Address
	Balance(ctx context.Context) (*big.Int, error)
}

// Confirmer decides whether a batch of n attempts goes ahead.
type Confirmer interface {
	Confirm(n int) (bool, error)
}

type ConfirmFunc func(n int) (bool, error)

func (f ConfirmFunc) Confirm(n int) (bool, error) {
	return f(n)
}

// AlwaysConfirm skips the prompt.
var AlwaysConfirm = ConfirmFunc(func(int) (bool, error) { return true, nil })

type Config struct {
	Wallet      Wallet
	Contract    chain.Contract
	Eligibility eligibility.Options
	Mint        mint.Options
	Console     progress.ConsoleOptions
	Confirmer   Confirmer
	// Journal receives every attempt. A fresh one is created when nil.
	Journal     *journal.Journal
	ExplorerURL string
	// Currency is printed after the balance. Empty prints the bare amount.
	Currency    string
	Out         io.Writer
}

type Runner struct {
	wallet      Wallet
	contract    chain.Contract
	checker     *eligibility.Checker
	orch        *mint.Orchestrator
	console     *progress.Console
	journal     *journal.Journal
	confirmer   Confirmer
	explorerURL string
	currency    string
	unit        string
	out         io.Writer
}

func New(cfg Config) *Runner {
	if cfg.Journal == nil {
		cfg.Journal = journal.New()
	}
	if cfg.Confirmer == nil {
		cfg.Confirmer = AlwaysConfirm
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Console.Unit == "" {
		cfg.Console.Unit = "units"
	}
	console := progress.NewConsole(cfg.Out, cfg.Console)

	mintOpts := cfg.Mint
	mintOpts.Observers = append([]mint.Observer{console, cfg.Journal}, mintOpts.Observers...)

	return &Runner{
		wallet:      cfg.Wallet,
		contract:    cfg.Contract,
		checker:     eligibility.NewChecker(cfg.Contract, cfg.Eligibility),
		orch:        mint.NewOrchestrator(cfg.Contract, mintOpts),
		console:     console,
		journal:     cfg.Journal,
		confirmer:   cfg.Confirmer,
		explorerURL: cfg.ExplorerURL,
		currency:    cfg.Currency,
		unit:        cfg.Console.Unit,
		out:         cfg.Out,
	}
}

// Result describes how a session ended. Session is nil when no batch ran.
type Result struct {
	Status    eligibility.Status
	Requested int
	Declined  bool
	Session   *mint.Session
}

// Status reads and prints the balance and quota. It never writes to the chain.
func (r *Runner) Status(ctx context.Context) (eligibility.Status, error) {
	addr := r.wallet.Address()
	fmt.Fprintf(r.out, "\n🔍 Checking mint status for wallet: %s\n%s\n", addr.Hex(), rule)

	balance, err := r.wallet.Balance(ctx)
	if err != nil {
		return eligibility.Status{}, &eligibility.RemoteReadError{Call: "balance", Err: err}
	}
	fmt.Fprintf(r.out, "💰 Wallet balance: %s\n", strings.TrimSpace(FormatEther(balance)+" "+r.currency))

	st, err := r.checker.Check(ctx, addr)
	if err != nil {
		return eligibility.Status{}, err
	}

	if !st.Allowlisted {
		fmt.Fprintf(r.out, "Allowlist status: ❌ NOT ALLOWED\n")
		fmt.Fprintf(r.out, "\n⚠️  Your wallet is not on the allowlist. You cannot mint.\n")
		return st, nil
	}
	unit := r.unit
	fmt.Fprintf(r.out, "Allowlist status: ✅ ALLOWED\n")
	fmt.Fprintf(r.out, "Daily limit per wallet: %d %s\n", st.DailyLimit, unit)
	if st.MintedTodayOverridden {
		fmt.Fprintf(r.out, "Already minted today: %d %s (reported %d, ignored)\n", st.MintedToday, unit, st.ReportedMintedToday)
	} else {
		fmt.Fprintf(r.out, "Already minted today: %d %s\n", st.MintedToday, unit)
	}
	fmt.Fprintf(r.out, "Remaining mints today: %d %s\n%s\n", st.Remaining, unit, rule)

	if st.Remaining <= 0 {
		fmt.Fprintf(r.out, "\n⚠️  You have reached your daily mint limit. Try again tomorrow!\n")
	}
	return st, nil
}

// Execute runs the full flow with up to count attempts, capped at the remaining quota.
// Not being allowlisted, having no quota left and a declined confirmation all end the
// session without error.
func (r *Runner) Execute(ctx context.Context, count int) (Result, error) {
	st, err := r.Status(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Status: st}
	if !st.CanMint() {
		return res, nil
	}

	res.Requested = capCount(count, st.Remaining)
	if res.Requested == 0 {
		fmt.Fprintf(r.out, "\nNothing to mint.\n")
		return res, nil
	}
	fmt.Fprintf(r.out, "\nYou can mint up to %d %s today.\n", st.Remaining, r.unit)

	ok, err := r.confirmer.Confirm(res.Requested)
	if err != nil {
		return res, fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		res.Declined = true
		fmt.Fprintf(r.out, "Mint cancelled. Have a great day!\n")
		return res, nil
	}

	r.console.Begin(res.Requested)
	sess := r.orch.Run(ctx, res.Requested)
	r.console.Summary(sess)
	r.writeFailureBreakdown()
	res.Session = &sess
	return res, nil
}

// MintOne checks eligibility and submits a single mint, printing its receipt.
func (r *Runner) MintOne(ctx context.Context) (chain.MintReceipt, error) {
	st, err := r.Status(ctx)
	if err != nil {
		return chain.MintReceipt{}, err
	}
	if !st.CanMint() {
		return chain.MintReceipt{}, nil
	}

	fmt.Fprintf(r.out, "\n🚀 Initiating mint transaction...\n")
	receipt, err := r.contract.Mint(ctx)
	if err != nil {
		log.WithError(err).WithField("category", mint.Classify(err)).Error("Mint failed")
		return receipt, fmt.Errorf("mint: %w", err)
	}

	fmt.Fprintf(r.out, "\n✅ Transaction confirmed!\n")
	fmt.Fprintf(r.out, "Transaction: %s\n", receipt.TxHash.Hex())
	fmt.Fprintf(r.out, "Block number: %d\n", receipt.BlockNumber)
	fmt.Fprintf(r.out, "Gas used: %d\n", receipt.GasUsed)
	if receipt.Logs > 0 {
		fmt.Fprintf(r.out, "Transaction logs: %d events emitted\n", receipt.Logs)
	}
	fmt.Fprintf(r.out, "\n🎉 Minted successfully!\n")
	if r.explorerURL != "" {
		fmt.Fprintf(r.out, "View transaction: %s%s\n", r.explorerURL, receipt.TxHash.Hex())
	}
	return receipt, nil
}

func (r *Runner) Journal() *journal.Journal {
	return r.journal
}

func (r *Runner) writeFailureBreakdown() {
	byCat := r.journal.FailuresByCategory()
	if len(byCat) == 0 {
		return
	}
	cats := make([]mint.Category, 0, len(byCat))
	for c := range byCat {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	fmt.Fprintf(r.out, "\nFailures by category:\n")
	for _, c := range cats {
		fmt.Fprintf(r.out, "   %s: %d\n", c, byCat[c])
	}
	if last, ok := r.journal.LastFailure(); ok {
		fmt.Fprintf(r.out, "Last error (mint %d): %v\n", last.Index+1, last.Err)
	}
}

func capCount(count int, remaining int64) int {
	if count <= 0 {
		return 0
	}
	if int64(count) > remaining {
		return int(remaining)
	}
	return count
}

// FormatEther renders a wei amount in whole native units.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).SetInt(wei)
	f.Quo(f, new(big.Float).SetInt64(params.Ether))
	return f.Text('f', 6)
}
