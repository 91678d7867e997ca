// Package cli wires up the command line flags and dispatches to ftpsession.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/gonzalop/ftpsession"
	"github.com/gonzalop/ftpsession/internal/config"
)

// version is overridable at link time:
//
//	go build -ldflags "-X github.com/gonzalop/ftpsession/internal/cli.version=2.0.0"
var version = "0.1.0" //nolint:gochecknoglobals

// Execute parses args and runs one command against the configured server.
func Execute(ctx context.Context, args []string) error {
	r := &runner{
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		readPassword: readTerminalPassword,
	}
	return r.run(ctx, args)
}

type runner struct {
	stdout io.Writer
	stderr io.Writer

	// readPassword prompts for the password without echo.
	readPassword func() (string, error)
}

// flagValues holds what was given on the command line. Only flags the user
// actually set override the file and environment.
type flagValues struct {
	configPath     string
	server         string
	user           string
	password       string
	passwordPrompt bool
	lang           string
	mode           string
	passive        bool
	autoDisconnect bool
	transport      string
	timeoutSec     int
	bandwidth      int64
	jobs           int
	messages       string
	stats          bool
	dryRun         bool
	verbose        int
	showVersion    bool
	showHelp       bool
}

func (r *runner) run(ctx context.Context, args []string) error {
	var fv flagValues
	fs := flag.NewFlagSet("ftpsession", flag.ContinueOnError)
	fs.SetOutput(r.stderr)

	// ── connection ───────────────────────────────────────────────
	fs.StringVarP(&fv.configPath, "config", "c", "", "YAML configuration file")
	fs.StringVarP(&fv.server, "server", "s", "", "Server as host[:port]")
	fs.StringVarP(&fv.user, "user", "u", "", "Login name")
	fs.StringVarP(&fv.password, "password", "p", "", "Password (prefer --password-prompt or FTPSESSION_PASSWORD)")
	fs.BoolVarP(&fv.passwordPrompt, "password-prompt", "P", false, "Prompt for the password")
	fs.StringVar(&fv.transport, "transport", "", "FTP implementation: wire or jlaffaye")
	fs.IntVarP(&fv.timeoutSec, "timeout", "w", 0, "Per-operation timeout in seconds")

	// ── session ──────────────────────────────────────────────────
	fs.StringVarP(&fv.mode, "mode", "m", "", "Transfer mode: ascii or bin")
	fs.BoolVar(&fv.passive, "passive", true, "Use passive data connections")
	fs.BoolVar(&fv.autoDisconnect, "auto-disconnect", true, "Disconnect after each command")
	fs.Int64Var(&fv.bandwidth, "bandwidth-limit", 0, "Transfer limit in bytes per second")
	fs.IntVarP(&fv.jobs, "jobs", "j", 0, "Sessions used by the parallel command")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&fv.lang, "lang", "", "Language of error messages")
	fs.StringVar(&fv.messages, "messages", "", "YAML message catalog")
	fs.BoolVar(&fv.stats, "stats", false, "Print transfer statistics when done")
	fs.BoolVar(&fv.dryRun, "dry-run", false, "Validate the configuration and print it")
	fs.CountVarP(&fv.verbose, "verbose", "v", "Increase verbosity (repeatable)")

	fs.BoolVar(&fv.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&fv.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { r.printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fv.showHelp || len(args) == 0 {
		r.printUsage(fs)
		return nil
	}
	if fv.showVersion {
		fmt.Fprintf(r.stdout, "ftpsession %s\n", version)
		return nil
	}

	cfg, err := r.loadConfig(fs, &fv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if fv.dryRun {
		r.printConfig(cfg)
		return nil
	}

	cmdArgs := fs.Args()
	if len(cmdArgs) == 0 {
		return fmt.Errorf("command required (use --help for usage)")
	}

	// ── build components ─────────────────────────────────────────
	logger := newLogger(r.stderr, cfg.Verbose)

	var stats *ftpsession.Stats
	if fv.stats {
		stats = ftpsession.NewStats()
		defer func() { _, _ = stats.WriteTo(r.stdout) }()
	}

	newSession, err := sessionFactory(cfg, logger, stats)
	if err != nil {
		return err
	}

	switch cmdArgs[0] {
	case "batch":
		if len(cmdArgs) != 2 {
			return fmt.Errorf("usage: batch FILE")
		}
		return runBatch(ctx, cmdArgs[1], newSession)
	case "parallel":
		if len(cmdArgs) != 2 {
			return fmt.Errorf("usage: parallel FILE")
		}
		return runParallel(ctx, cmdArgs[1], cfg.Jobs, newSession)
	}

	job, err := ftpsession.NewJob(cmdArgs[0], cmdArgs[1:])
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Run(ctx, job)
}

// loadConfig layers defaults, the config file, the environment and the
// flags that were set, in that order.
func (r *runner) loadConfig(fs *flag.FlagSet, fv *flagValues) (*config.Config, error) {
	cfg := config.Default()
	if fv.configPath != "" {
		if err := config.LoadFile(cfg, fv.configPath); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)

	if fs.Changed("server") {
		cfg.Server = fv.server
	}
	if fs.Changed("user") {
		cfg.User = fv.user
	}
	if fs.Changed("password") {
		cfg.Password = fv.password
	}
	if fs.Changed("lang") {
		cfg.Language = fv.lang
	}
	if fs.Changed("mode") {
		cfg.Mode = fv.mode
	}
	if fs.Changed("passive") {
		cfg.Passive = fv.passive
	}
	if fs.Changed("auto-disconnect") {
		cfg.AutoDisconnect = fv.autoDisconnect
	}
	if fs.Changed("transport") {
		cfg.Transport = fv.transport
	}
	if fs.Changed("timeout") {
		cfg.Timeout = time.Duration(fv.timeoutSec) * time.Second
	}
	if fs.Changed("bandwidth-limit") {
		cfg.BandwidthLimit = fv.bandwidth
	}
	if fs.Changed("jobs") {
		cfg.Jobs = fv.jobs
	}
	if fs.Changed("messages") {
		cfg.Messages = fv.messages
	}
	cfg.Verbose = fv.verbose

	if fv.passwordPrompt {
		pass, err := r.readPassword()
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		cfg.Password = pass
	}
	return cfg, nil
}

// sessionFactory returns a constructor for sessions configured by cfg.
func sessionFactory(cfg *config.Config, logger *slog.Logger, stats *ftpsession.Stats) (func() (*ftpsession.Session, error), error) {
	topts := []ftpsession.TransportOption{
		ftpsession.WithDialTimeout(cfg.Timeout),
		ftpsession.WithBandwidthLimit(cfg.BandwidthLimit),
		ftpsession.WithTransportLogger(logger),
	}

	var transport ftpsession.Transport
	switch cfg.Transport {
	case config.TransportJlaffaye:
		transport = ftpsession.NewJlaffayeTransport(topts...)
	default:
		transport = ftpsession.NewWireTransport(topts...)
	}

	mode, ok := ftpsession.ParseTransferMode(cfg.Mode)
	if !ok {
		return nil, fmt.Errorf("unknown transfer mode %q", cfg.Mode)
	}

	opts := []ftpsession.Option{
		ftpsession.WithTransport(transport),
		ftpsession.WithLanguage(cfg.Language),
		ftpsession.WithLogger(logger),
		ftpsession.WithTransferMode(mode),
		ftpsession.WithPassive(cfg.Passive),
		ftpsession.WithAutoDisconnect(cfg.AutoDisconnect),
	}
	if stats != nil {
		opts = append(opts, ftpsession.WithMetrics(stats))
	}
	if cfg.Messages != "" {
		l, err := ftpsession.LoadLocalizer(cfg.Messages)
		if err != nil {
			return nil, fmt.Errorf("messages: %w", err)
		}
		opts = append(opts, ftpsession.WithLocalizer(l))
	}

	return func() (*ftpsession.Session, error) {
		return ftpsession.New(cfg.Server, cfg.User, cfg.Password, opts...)
	}, nil
}

// newLogger maps the -v count to a slog level: warnings by default, info
// with -v, debug (including the FTP dialogue) with -vv.
func newLogger(w io.Writer, verbosity int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func readTerminalPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "FTP password: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}

func (r *runner) printConfig(cfg *config.Config) {
	password := ""
	if cfg.Password != "" {
		password = "****"
	}
	fmt.Fprintf(r.stdout, `server:          %s
user:            %s
password:        %s
lang:            %s
mode:            %s
passive:         %t
auto-disconnect: %t
transport:       %s
timeout:         %s
bandwidth-limit: %d
jobs:            %d
messages:        %s
`, cfg.Server, cfg.User, password, cfg.Language, cfg.Mode, cfg.Passive,
		cfg.AutoDisconnect, cfg.Transport, cfg.Timeout, cfg.BandwidthLimit, cfg.Jobs, cfg.Messages)
}

func (r *runner) printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(r.stderr, `ftpsession %s - FTP session client

Usage:
  ftpsession [options] put LOCAL [REMOTE]      Upload a file
  ftpsession [options] get REMOTE [LOCAL]      Download a file
  ftpsession [options] delete PATH             Delete a remote file
  ftpsession [options] cd PATH                 Change directory
  ftpsession [options] mkdir PATH              Create a directory
  ftpsession [options] batch FILE              Run FILE's commands over one login
  ftpsession [options] parallel FILE           Run FILE's commands on --jobs sessions

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(r.stderr, `
Environment:
  FTPSESSION_SERVER, FTPSESSION_USER, FTPSESSION_PASSWORD, FTPSESSION_LANG,
  FTPSESSION_MODE, FTPSESSION_PASSIVE, FTPSESSION_AUTO_DISCONNECT,
  FTPSESSION_TRANSPORT, FTPSESSION_TIMEOUT, FTPSESSION_BANDWIDTH_LIMIT,
  FTPSESSION_JOBS, FTPSESSION_MESSAGES

Examples:
  ftpsession -s ftp.example.com -u alice -P put report.csv /incoming/report.csv
  ftpsession -s ftp.example.com -m bin get /pub/archive.tar.gz
  ftpsession -c site.yaml --stats parallel uploads.txt
`)
}
