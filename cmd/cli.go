package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/fzft/go-mock-epoll/deps/linenoise"
	"github.com/fzft/go-mock-epoll/endpoint"
	"github.com/fzft/go-mock-epoll/epoll"
	"github.com/fzft/go-mock-epoll/log"
	"github.com/fzft/go-mock-epoll/metrics"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"io"
	"os"
	"sort"
	"strings"
)

var (
	EpollCliHisFileEnv     = "EPOLLCLI_HISTFILE"
	EpollCliHisFileDefault = ".epollcli_history"
	EpollCliRCFileEnv      = "EPOLLCLI_RCFILE"
	EpollCliRCFileDefault  = ".epollclirc"

	DefaultPrompt    = "epoll> "
	DefaultTimeoutMs = 0
	DefaultCapacity  = 16
)

var errQuit = errors.New("quit")

type CliCfg struct {
	prompt      string
	interactive bool
	history     bool
	historyFile string
	timeoutMs   int
	capacity    int
	hints       bool
}

// EpollCli is the interactive shell. It owns a monitor table, a set of
// named endpoints and the metrics registry the table reports to.
type EpollCli struct {
	config    *CliCfg
	table     *epoll.Table
	registry  *prometheus.Registry
	endpoints map[string]epoll.Endpoint
	kernel    kernelBackend
	out       io.Writer
	line      *linenoise.LineNoise
}

// NewEpollCli builds a shell writing to out. prefs may be nil.
func NewEpollCli(out io.Writer, prefs *Preferences) *EpollCli {
	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	config := &CliCfg{
		prompt:    DefaultPrompt,
		timeoutMs: DefaultTimeoutMs,
		capacity:  DefaultCapacity,
		hints:     true,
	}
	if prefs != nil {
		prefs.apply(config)
	}

	return &EpollCli{
		config:    config,
		table:     epoll.NewTable(epoll.WithLogger(log.Logger), epoll.WithMetrics(collector)),
		registry:  reg,
		endpoints: make(map[string]epoll.Endpoint),
		kernel:    newKernelBackend(),
		out:       out,
	}
}

// Run reads commands from in: through the line editor when in is a
// terminal, line by line otherwise.
func (cli *EpollCli) Run(in *os.File, history bool) error {
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		cli.config.interactive = true
		cli.config.history = history
		if history {
			cli.config.historyFile = getDotfilePath(EpollCliHisFileEnv, EpollCliHisFileDefault)
		}
		return cli.repl()
	}
	return cli.RunScript(in)
}

func (cli *EpollCli) repl() error {
	cli.line = linenoise.New()
	defer func() {
		cli.line.Close()
		cli.line = nil
	}()

	cli.line.SetCompleter(cli.complete)
	if cli.config.historyFile != "" {
		if err := cli.line.HistoryLoad(cli.config.historyFile); err != nil && !os.IsNotExist(err) {
			log.Logger.Warn("Failed to load history", zap.String("file", cli.config.historyFile), zap.Error(err))
		}
	}

	for {
		line, err := cli.line.Prompt(cli.config.prompt)
		if err != nil {
			if err == io.EOF || err == linenoise.ErrAborted {
				return nil
			}
			return err
		}

		argv := splitArgs(line)
		if len(argv) == 0 {
			continue
		}
		if cli.config.history {
			cli.line.AppendHistory(line)
			if cli.config.historyFile != "" {
				if err := cli.line.HistorySave(cli.config.historyFile); err != nil {
					log.Logger.Debug("Failed to save history", zap.Error(err))
				}
			}
		}

		if err := cli.Exec(argv); errors.Is(err, errQuit) {
			return nil
		}
	}
}

// RunScript executes one command per line. Blank lines and lines starting
// with '#' are skipped.
func (cli *EpollCli) RunScript(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := cli.Exec(splitArgs(line)); errors.Is(err, errQuit) {
			return nil
		}
	}
	return scanner.Err()
}

// Exec runs one command and prints its reply. Command failures are
// printed, not returned; only quit is reported to the caller.
func (cli *EpollCli) Exec(argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	if argv[0][0] == ':' {
		if err := cli.cliSetPreferences(argv); err != nil {
			cli.printError(err)
		}
		return nil
	}

	c, ok := lookupCommand(argv[0])
	if !ok {
		cli.printError(fmt.Errorf("unknown command '%s', try 'help'", argv[0]))
		return nil
	}
	args := argv[1:]
	if len(args) < c.minArgs || (c.maxArgs >= 0 && len(args) > c.maxArgs) {
		cli.printError(fmt.Errorf("wrong number of arguments for '%s', usage: %s %s", c.name, c.name, c.params))
		return nil
	}

	log.Logger.Debug("command", zap.Strings("argv", argv))
	err := c.handler(cli, args)
	if err != nil && !errors.Is(err, errQuit) {
		cli.printError(err)
		return nil
	}
	return err
}

// Close tears down every monitor and endpoint the shell created.
func (cli *EpollCli) Close() error {
	err := multierr.Append(cli.table.Shutdown(), cli.kernel.close())
	for _, name := range cli.endpointNames() {
		if c, ok := cli.endpoints[name].(io.Closer); ok {
			if cerr := c.Close(); cerr != nil && !isClosed(cerr) {
				err = multierr.Append(err, fmt.Errorf("close %s: %w", name, cerr))
			}
		}
	}
	cli.endpoints = make(map[string]epoll.Endpoint)
	return err
}

func (cli *EpollCli) complete(line string) []string {
	if !cli.config.hints {
		return nil
	}
	var out []string
	for _, c := range commandTable {
		if strings.HasPrefix(c.name, strings.ToLower(line)) {
			out = append(out, c.name)
		}
	}
	return out
}

func (cli *EpollCli) printf(format string, args ...any) {
	fmt.Fprintf(cli.out, format, args...)
}

func (cli *EpollCli) printError(err error) {
	cli.printf("(error) %s\n", err)
}

func (cli *EpollCli) endpointNames() []string {
	names := make([]string, 0, len(cli.endpoints))
	for name := range cli.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func splitArgs(line string) []string {
	return strings.Fields(line)
}

func isClosed(err error) bool {
	return errors.Is(err, endpoint.ErrClosed) || errors.Is(err, epoll.ErrClosed)
}

func getDotfilePath(envOverride, dotFilename string) string {
	var dotPath string

	path := os.Getenv(envOverride)
	if path != "" {
		if path == "/dev/null" {
			return ""
		}
		dotPath = path
	} else {
		home := os.Getenv("HOME")
		if home != "" {
			dotPath = fmt.Sprintf("%s/%s", home, dotFilename)
		}
	}
	return dotPath
}
