// Package app wires the configuration, gateways and orchestrator into a
// runnable command and maps workflow results to process exit codes.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/offsitebkp/internal/backup"
	"github.com/dmitrijs2005/offsitebkp/internal/common"
	"github.com/dmitrijs2005/offsitebkp/internal/config"
	"github.com/dmitrijs2005/offsitebkp/internal/cryptox"
	"github.com/dmitrijs2005/offsitebkp/internal/flagx"
	"github.com/dmitrijs2005/offsitebkp/internal/logging"
	"github.com/dmitrijs2005/offsitebkp/internal/remote"
	"github.com/dmitrijs2005/offsitebkp/internal/staging"
	"github.com/dmitrijs2005/offsitebkp/internal/sync"
)

// Operations selectable with -o.
const (
	OpUpload    = 1
	OpDownload  = 2
	OpList      = 3
	OpRetention = 4
)

// Exit codes. Non-zero values identify which stage of the run failed.
const (
	ExitOK             = 0
	ExitInvalidInput   = 2
	ExitFailedUpload   = 3
	ExitFailedDownload = 4
	ExitFailedCleanup  = 5
)

// options carries the per-invocation operation flags. Configuration flags
// (staging dir, retention count, provider) live in the config package.
type options struct {
	operation     int
	tag           string
	destination   string
	doCleanup     bool
	onsiteCleanup bool
}

func parseOptions() *options {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-o", "-t", "-d", "-cleanup", "-onsite-cleanup",
	})

	opts := &options{}
	fs := flag.NewFlagSet("offsitebkp", flag.ContinueOnError)
	fs.IntVar(&opts.operation, "o", 0, "operation: 1=upload 2=download 3=list 4=retention")
	fs.StringVar(&opts.tag, "t", "", "backup tag (required for download)")
	fs.StringVar(&opts.destination, "d", "", "download destination directory (default: staging dir)")
	fs.BoolVar(&opts.doCleanup, "cleanup", false, "after a verified upload, delete the local copy and prune old off-site sets")
	fs.BoolVar(&opts.onsiteCleanup, "onsite-cleanup", false, "additionally prune old sets from the staging area")
	if err := fs.Parse(args); err != nil {
		return nil
	}

	return opts
}

// App is one command invocation.
type App struct {
	cfg  *config.Config
	opts *options
	log  logging.Logger

	closeLog func() error
}

func NewApp(cfg *config.Config) (*App, error) {
	opts := parseOptions()
	if opts == nil {
		return nil, fmt.Errorf("%w: bad command line", common.ErrValidation)
	}

	app := &App{cfg: cfg, opts: opts}

	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.LogFile != "" {
		log, closer, err := logging.NewFileLogger(cfg.LogFile, level)
		if err != nil {
			return nil, err
		}
		app.log = log
		app.closeLog = closer
	} else {
		app.log = logging.NewTextLogger(os.Stderr, level)
	}

	return app, nil
}

// Run executes the selected operation and returns the process exit code.
func (a *App) Run(ctx context.Context) int {
	defer func() {
		if a.closeLog != nil {
			_ = a.closeLog()
		}
	}()

	if a.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.OperationTimeout)
		defer cancel()
	}

	if err := a.cfg.Validate(); err != nil {
		a.log.Error(ctx, "invalid configuration", "error", err)
		return ExitInvalidInput
	}

	switch a.opts.operation {
	case OpUpload, OpDownload, OpList, OpRetention:
	default:
		a.log.Error(ctx, "invalid operation", "operation", a.opts.operation)
		fmt.Fprintln(os.Stderr, "usage: offsitebkp -o <1=upload|2=download|3=list|4=retention> [-t tag] [-d dir] [-cleanup] [-onsite-cleanup]")
		return ExitInvalidInput
	}

	if a.opts.operation == OpDownload && a.opts.tag == "" {
		a.log.Error(ctx, "download requires a backup tag (-t)")
		return ExitInvalidInput
	}

	o, err := a.buildOrchestrator(ctx)
	if err != nil {
		a.log.Error(ctx, "startup failed", "error", err)
		if errors.Is(err, common.ErrValidation) {
			return ExitInvalidInput
		}
		return a.failureCode()
	}

	switch a.opts.operation {
	case OpUpload:
		return a.runUpload(ctx, o)
	case OpDownload:
		return a.runDownload(ctx, o)
	case OpList:
		return a.runList(ctx, o)
	default:
		return a.runRetention(ctx, o)
	}
}

// failureCode maps the current operation to its failure exit code.
func (a *App) failureCode() int {
	switch a.opts.operation {
	case OpDownload:
		return ExitFailedDownload
	case OpRetention:
		return ExitFailedCleanup
	default:
		return ExitFailedUpload
	}
}

func (a *App) buildOrchestrator(ctx context.Context) (*sync.Orchestrator, error) {
	store, err := remote.NewStore(ctx, a.cfg)
	if err != nil {
		return nil, err
	}

	var cipher *cryptox.FileCipher
	if a.opts.operation == OpUpload || a.opts.operation == OpDownload {
		passphrase, err := a.passphrase()
		if err != nil {
			return nil, err
		}
		cipher = cryptox.New(passphrase)
	}

	source := staging.New(a.cfg.StagingDir, a.cfg.MinSetFiles, a.log)

	return sync.New(cipher, store, source, a.log, sync.Options{
		RetentionCount:  a.cfg.RetentionCount,
		DoCleanup:       a.opts.doCleanup,
		DoOnsiteCleanup: a.opts.onsiteCleanup,
		OnsiteRetention: a.cfg.OnsiteRetentionCount,
	}), nil
}

// passphrase returns the configured passphrase, prompting interactively when
// none was supplied via config or environment.
func (a *App) passphrase() ([]byte, error) {
	if a.cfg.Passphrase != "" {
		return []byte(a.cfg.Passphrase), nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("%w: no passphrase: set OFFSITEBKP_PASSPHRASE or run interactively", common.ErrValidation)
	}

	fmt.Fprint(os.Stderr, "Encryption passphrase: ")
	passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("%w: reading passphrase: %v", common.ErrIO, err)
	}
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", common.ErrValidation)
	}
	return passphrase, nil
}

func (a *App) runUpload(ctx context.Context, o *sync.Orchestrator) int {
	outcomes, err := o.RunUpload(ctx)
	a.report(ctx, outcomes)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			a.log.Error(ctx, "invalid input", "error", err)
			return ExitInvalidInput
		}
		// RunUpload can also fail after the off-site copy is secured, in
		// the retention phase. That is a cleanup failure, not an upload
		// failure.
		if uploadSecured(outcomes) {
			a.log.Error(ctx, "off-site cleanup failed", "error", err)
			return ExitFailedCleanup
		}
		a.log.Error(ctx, "upload failed", "error", err)
		return ExitFailedUpload
	}
	if hasStatus(outcomes, backup.StatusDeleteFailed) {
		return ExitFailedCleanup
	}
	return ExitOK
}

// uploadSecured reports whether the primary outcome says a verified off-site
// copy exists for this run's backup set.
func uploadSecured(outcomes []backup.SyncOutcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	switch outcomes[0].Status {
	case backup.StatusUploaded, backup.StatusSkippedExists, backup.StatusLocalDeleteSkipped:
		return true
	}
	return false
}

func (a *App) runDownload(ctx context.Context, o *sync.Orchestrator) int {
	outcome, err := o.RunDownload(ctx, a.opts.tag, a.opts.destination)
	a.report(ctx, []backup.SyncOutcome{outcome})
	if err != nil {
		a.log.Error(ctx, "download failed", "tag", a.opts.tag, "error", err)
		if errors.Is(err, common.ErrValidation) {
			return ExitInvalidInput
		}
		return ExitFailedDownload
	}
	return ExitOK
}

func (a *App) runList(ctx context.Context, o *sync.Orchestrator) int {
	descs, err := o.ListAvailable(ctx)
	if err != nil {
		a.log.Error(ctx, "listing failed", "error", err)
		return ExitFailedDownload
	}
	fmt.Fprint(os.Stdout, sync.FormatListing(descs))
	return ExitOK
}

func (a *App) runRetention(ctx context.Context, o *sync.Orchestrator) int {
	outcomes, err := o.RunRetention(ctx)
	a.report(ctx, outcomes)
	if err != nil {
		a.log.Error(ctx, "retention failed", "error", err)
		if errors.Is(err, common.ErrValidation) {
			return ExitInvalidInput
		}
		return ExitFailedCleanup
	}
	if hasStatus(outcomes, backup.StatusDeleteFailed) {
		return ExitFailedCleanup
	}
	return ExitOK
}

// report logs every outcome with its tag and cause.
func (a *App) report(ctx context.Context, outcomes []backup.SyncOutcome) {
	for _, oc := range outcomes {
		if oc.Err != nil {
			a.log.Warn(ctx, "outcome", "tag", oc.Tag, "status", string(oc.Status), "error", oc.Err)
			continue
		}
		args := []any{"tag", oc.Tag, "status", string(oc.Status)}
		if oc.Path != "" {
			args = append(args, "path", oc.Path)
		}
		a.log.Info(ctx, "outcome", args...)
	}
}

func hasStatus(outcomes []backup.SyncOutcome, status backup.Status) bool {
	for _, oc := range outcomes {
		if oc.Status == status {
			return true
		}
	}
	return false
}
