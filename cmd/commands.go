package cmd

import (
	"errors"
	"fmt"
	"github.com/fzft/go-mock-epoll/deps/linenoise"
	"github.com/fzft/go-mock-epoll/endpoint"
	"github.com/fzft/go-mock-epoll/epoll"
	"github.com/fzft/go-mock-epoll/probe"
	"io"
	"strconv"
	"strings"
)

const readChunk = 4096

// cliCommand describes one shell command for dispatch and help.
type cliCommand struct {
	name    string
	params  string
	summary string
	group   string
	minArgs int
	maxArgs int // -1 means unbounded
	handler func(cli *EpollCli, args []string) error
}

var commandTable []*cliCommand

func init() {
	commandTable = []*cliCommand{
		{"create", "", "Create a monitor and print its handle", "monitor", 0, 0, cmdCreate},
		{"close", "<handle>", "Close a monitor, releasing blocked waits", "monitor", 1, 1, cmdClose},
		{"add", "<handle> <endpoint> <mask> [tag]", "Register an endpoint", "monitor", 3, 4, cmdControl(epoll.OpAdd)},
		{"mod", "<handle> <endpoint> <mask> [tag]", "Change a registration and reset its history", "monitor", 3, 4, cmdControl(epoll.OpModify)},
		{"del", "<handle> <endpoint>", "Remove a registration", "monitor", 2, 2, cmdControl(epoll.OpDelete)},
		{"wait", "<handle> [timeout_ms] [capacity]", "Wait for edges; negative timeout waits forever", "monitor", 1, 3, cmdWait},
		{"list", "", "List monitors and endpoints", "monitor", 0, 0, cmdList},
		{"eventfd", "<name> [initval] [semaphore]", "Create an in-memory eventfd", "endpoint", 1, 3, cmdEventFD},
		{"socketpair", "<a> <b> [capacity]", "Create a connected in-memory socket pair", "endpoint", 2, 3, cmdSocketPair},
		{"pipe", "<r> <w> [capacity]", "Create an in-memory pipe", "endpoint", 2, 3, cmdPipe},
		{"kevent", "<name> [initval]", "Create a kernel eventfd", "endpoint", 1, 2, cmdKernelEventFD},
		{"ksocketpair", "<a> <b>", "Create a kernel AF_UNIX socket pair", "endpoint", 2, 2, cmdKernelSocketPair},
		{"kpipe", "<r> <w>", "Create a kernel pipe", "endpoint", 2, 2, cmdKernelPipe},
		{"write", "<endpoint> <data...>", "Write bytes, or a counter value to an eventfd", "endpoint", 2, -1, cmdWrite},
		{"read", "<endpoint>", "Read what is available", "endpoint", 1, 1, cmdRead},
		{"shut", "<endpoint>", "Shut down the write side, or close the endpoint", "endpoint", 1, 1, cmdShut},
		{"ready", "<endpoint>", "Print the current readiness", "endpoint", 1, 1, cmdReady},
		{"probe", "[kernel]", "Run the end-to-end scenarios", "shell", 0, 1, cmdProbe},
		{"stats", "", "Print engine metrics", "shell", 0, 0, cmdStats},
		{"help", "[command]", "Show help", "shell", 0, 1, cmdHelp},
		{"clear", "", "Clear the screen", "shell", 0, 0, cmdClear},
		{"quit", "", "Leave the shell", "shell", 0, 0, cmdQuit},
		{"exit", "", "Leave the shell", "shell", 0, 0, cmdQuit},
	}
}

func lookupCommand(name string) (*cliCommand, bool) {
	for _, c := range commandTable {
		if strings.EqualFold(c.name, name) {
			return c, true
		}
	}
	return nil, false
}

func parseHandle(s string) (epoll.Handle, error) {
	h, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid handle %q", s)
	}
	return epoll.Handle(h), nil
}

func (cli *EpollCli) endpoint(name string) (epoll.Endpoint, error) {
	ep, ok := cli.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("no such endpoint '%s'", name)
	}
	return ep, nil
}

func (cli *EpollCli) addEndpoints(names []string, eps ...epoll.Endpoint) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := cli.endpoints[name]; ok || seen[name] {
			return fmt.Errorf("endpoint '%s' already exists", name)
		}
		seen[name] = true
	}
	for i, name := range names {
		cli.endpoints[name] = eps[i]
	}
	cli.printf("OK\n")
	return nil
}

func optionalInt(args []string, i int, def int, what string) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[i])
	}
	return v, nil
}

func cmdCreate(cli *EpollCli, _ []string) error {
	cli.printf("(integer) %d\n", cli.table.Create())
	return nil
}

func cmdClose(cli *EpollCli, args []string) error {
	h, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	if err := cli.table.Close(h); err != nil {
		return err
	}
	cli.printf("OK\n")
	return nil
}

func cmdControl(op epoll.Op) func(*EpollCli, []string) error {
	return func(cli *EpollCli, args []string) error {
		h, err := parseHandle(args[0])
		if err != nil {
			return err
		}
		ep, err := cli.endpoint(args[1])
		if err != nil {
			return err
		}

		var (
			mask epoll.Mask
			tag  uint64
		)
		if op != epoll.OpDelete {
			if mask, err = epoll.ParseMask(args[2]); err != nil {
				return err
			}
			if len(args) > 3 {
				if tag, err = strconv.ParseUint(args[3], 0, 64); err != nil {
					return fmt.Errorf("invalid tag %q", args[3])
				}
			}
		}
		if err := cli.table.Control(h, op, ep, mask, tag); err != nil {
			return err
		}
		cli.printf("OK\n")
		return nil
	}
}

func cmdWait(cli *EpollCli, args []string) error {
	h, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	timeout, err := optionalInt(args, 1, cli.config.timeoutMs, "timeout")
	if err != nil {
		return err
	}
	capacity, err := optionalInt(args, 2, cli.config.capacity, "capacity")
	if err != nil {
		return err
	}

	events, err := cli.table.Wait(h, capacity, timeout)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		cli.printf("(empty array)\n")
		return nil
	}
	for i, ev := range events {
		cli.printf("%d) tag=%d events=%s\n", i+1, ev.Tag, ev.Events)
	}
	return nil
}

func cmdList(cli *EpollCli, _ []string) error {
	for _, h := range cli.table.Handles() {
		m, err := cli.table.Monitor(h)
		if err != nil {
			continue
		}
		cli.printf("monitor %d registrations=%d blocked=%d\n", h, m.Len(), m.Blocked())
	}
	for _, name := range cli.endpointNames() {
		ep := cli.endpoints[name]
		cli.printf("endpoint %s kind=%s ready=%s\n", name, kindOf(ep), ep.Readiness())
	}
	return nil
}

func kindOf(ep epoll.Endpoint) string {
	switch ep := ep.(type) {
	case *endpoint.EventFD:
		return "eventfd"
	case *endpoint.Socket:
		return "socket"
	case *endpoint.PipeReader:
		return "pipe-r"
	case *endpoint.PipeWriter:
		return "pipe-w"
	case fmt.Stringer:
		return "kernel-" + ep.String()
	default:
		return fmt.Sprintf("%T", ep)
	}
}

func cmdEventFD(cli *EpollCli, args []string) error {
	initval, err := optionalInt(args, 1, 0, "initval")
	if err != nil || initval < 0 {
		return fmt.Errorf("invalid initval %q", args[1])
	}
	semaphore := len(args) > 2 && strings.EqualFold(args[2], "semaphore")
	if len(args) > 2 && !semaphore {
		return fmt.Errorf("unknown eventfd flag %q", args[2])
	}
	return cli.addEndpoints(args[:1], endpoint.NewEventFD(uint64(initval), semaphore))
}

func cmdSocketPair(cli *EpollCli, args []string) error {
	capacity, err := optionalInt(args, 2, 0, "capacity")
	if err != nil {
		return err
	}
	a, b := endpoint.NewSocketPair(capacity)
	return cli.addEndpoints(args[:2], a, b)
}

func cmdPipe(cli *EpollCli, args []string) error {
	capacity, err := optionalInt(args, 2, 0, "capacity")
	if err != nil {
		return err
	}
	r, w := endpoint.NewPipe(capacity)
	return cli.addEndpoints(args[:2], r, w)
}

func cmdKernelEventFD(cli *EpollCli, args []string) error {
	initval, err := optionalInt(args, 1, 0, "initval")
	if err != nil || initval < 0 {
		return fmt.Errorf("invalid initval %q", args[1])
	}
	if _, ok := cli.endpoints[args[0]]; ok {
		return fmt.Errorf("endpoint '%s' already exists", args[0])
	}
	ep, err := cli.kernel.eventFD(uint(initval))
	if err != nil {
		return err
	}
	return cli.addEndpoints(args[:1], ep)
}

func cmdKernelSocketPair(cli *EpollCli, args []string) error {
	if err := cli.checkNames(args); err != nil {
		return err
	}
	a, b, err := cli.kernel.socketPair()
	if err != nil {
		return err
	}
	return cli.addEndpoints(args, a, b)
}

func cmdKernelPipe(cli *EpollCli, args []string) error {
	if err := cli.checkNames(args); err != nil {
		return err
	}
	r, w, err := cli.kernel.pipe()
	if err != nil {
		return err
	}
	return cli.addEndpoints(args, r, w)
}

func (cli *EpollCli) checkNames(names []string) error {
	if len(names) == 2 && names[0] == names[1] {
		return fmt.Errorf("endpoint '%s' already exists", names[0])
	}
	for _, name := range names {
		if _, ok := cli.endpoints[name]; ok {
			return fmt.Errorf("endpoint '%s' already exists", name)
		}
	}
	return nil
}

type valueWriter interface {
	WriteValue(v uint64) error
}

type valueReader interface {
	ReadValue() (uint64, error)
}

func cmdWrite(cli *EpollCli, args []string) error {
	ep, err := cli.endpoint(args[0])
	if err != nil {
		return err
	}
	data := strings.Join(args[1:], " ")

	if w, ok := ep.(valueWriter); ok && isCounter(ep) {
		v, err := strconv.ParseUint(data, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid counter value %q", data)
		}
		if err := w.WriteValue(v); err != nil {
			return err
		}
		cli.printf("OK\n")
		return nil
	}

	w, ok := ep.(io.Writer)
	if !ok {
		return fmt.Errorf("endpoint '%s' is not writable", args[0])
	}
	n, err := w.Write([]byte(data))
	if err != nil {
		return err
	}
	cli.printf("(integer) %d\n", n)
	return nil
}

func cmdRead(cli *EpollCli, args []string) error {
	ep, err := cli.endpoint(args[0])
	if err != nil {
		return err
	}

	if r, ok := ep.(valueReader); ok && isCounter(ep) {
		v, err := r.ReadValue()
		if err != nil {
			return err
		}
		cli.printf("(integer) %d\n", v)
		return nil
	}

	r, ok := ep.(io.Reader)
	if !ok {
		return fmt.Errorf("endpoint '%s' is not readable", args[0])
	}
	buf := make([]byte, readChunk)
	n, err := r.Read(buf)
	if errors.Is(err, io.EOF) {
		cli.printf("(eof)\n")
		return nil
	}
	if err != nil {
		return err
	}
	cli.printf("%q\n", buf[:n])
	return nil
}

// kernel fds implement both the counter and the byte stream methods
func isCounter(ep epoll.Endpoint) bool {
	k := kindOf(ep)
	return k == "eventfd" || k == "kernel-eventfd"
}

func cmdShut(cli *EpollCli, args []string) error {
	ep, err := cli.endpoint(args[0])
	if err != nil {
		return err
	}

	switch c := ep.(type) {
	case interface{ CloseWrite() error }:
		err = c.CloseWrite()
	case io.Closer:
		err = c.Close()
	default:
		return fmt.Errorf("endpoint '%s' cannot be shut down", args[0])
	}
	if err != nil {
		return err
	}
	cli.printf("OK\n")
	return nil
}

func cmdReady(cli *EpollCli, args []string) error {
	ep, err := cli.endpoint(args[0])
	if err != nil {
		return err
	}
	cli.printf("%s\n", ep.Readiness())
	return nil
}

func cmdProbe(cli *EpollCli, args []string) error {
	eps := probe.InMemory()
	if len(args) == 1 {
		if !strings.EqualFold(args[0], "kernel") {
			return fmt.Errorf("unknown probe target %q", args[0])
		}
		var err error
		if eps, err = cli.kernel.probeEndpoints(); err != nil {
			return err
		}
	}

	results, err := probe.Run(cli.table, eps)
	for _, res := range results {
		cli.printf("%s\n", res)
	}
	if err != nil {
		return err
	}
	cli.printf("OK\n")
	return nil
}

func cmdHelp(cli *EpollCli, args []string) error {
	if len(args) == 1 {
		c, ok := lookupCommand(args[0])
		if !ok {
			return fmt.Errorf("unknown command '%s'", args[0])
		}
		cli.printf("\n  %s %s\n  summary: %s\n  group: %s\n\n", c.name, c.params, c.summary, c.group)
		return nil
	}

	group := ""
	for _, c := range commandTable {
		if c.group != group {
			group = c.group
			cli.printf("\n@%s\n", group)
		}
		cli.printf("  %-12s %-36s %s\n", c.name, c.params, c.summary)
	}
	cli.printf("\nMasks: in|out|pri|err|hup|rdnorm|rdband|wrnorm|wrband|msg|rdhup|et|oneshot or a number.\n")
	cli.printf("Preferences: :set hints|nohints|prompt <p>|timeout <ms>|capacity <n>\n")
	return nil
}

func cmdClear(cli *EpollCli, _ []string) error {
	return linenoise.ClearScreen(cli.out)
}

func cmdQuit(*EpollCli, []string) error {
	return errQuit
}
