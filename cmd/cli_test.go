package cmd

import (
	"bytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runScript(t *testing.T, script string) string {
	t.Helper()
	var out bytes.Buffer
	cli := NewEpollCli(&out, nil)
	require.NoError(t, cli.RunScript(strings.NewReader(script)))
	require.NoError(t, cli.Close())
	return out.String()
}

func TestScriptEdgeTriggered(t *testing.T) {
	out := runScript(t, `
# socket pair scenario
create
socketpair a b
add 1 a in|out|et 7
wait 1
wait 1
write b hello
wait 1 100
read a
wait 1
`)
	assert.Equal(t, `(integer) 1
OK
OK
1) tag=7 events=out
(empty array)
(integer) 5
1) tag=7 events=in|out
"hello"
(empty array)
`, out)
}

func TestScriptEventFD(t *testing.T) {
	out := runScript(t, `
create
eventfd e
add 1 e in|et 1
wait 1
write e 3
ready e
wait 1
read e
read e
`)
	assert.Equal(t, `(integer) 1
OK
OK
(empty array)
OK
in|out
1) tag=1 events=in
(integer) 3
(error) operation would block
`, out)
}

func TestScriptErrors(t *testing.T) {
	out := runScript(t, `
bogus
create
add 1 nope in
eventfd e
add 1 e in|et
add 1 e in|et
mod 1 e sideways
del 9 e
wait x
close 1
close 1
eventfd e
`)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 12)
	assert.Contains(t, lines[0], "unknown command 'bogus'")
	assert.Equal(t, "(integer) 1", lines[1])
	assert.Contains(t, lines[2], "no such endpoint 'nope'")
	assert.Equal(t, "OK", lines[3])
	assert.Equal(t, "OK", lines[4])
	assert.Contains(t, lines[5], "already registered")
	assert.Contains(t, lines[6], "invalid argument")
	assert.Contains(t, lines[7], "closed")
	assert.Contains(t, lines[8], "invalid handle")
	assert.Equal(t, "OK", lines[9])
	assert.Contains(t, lines[10], "closed")
	assert.Contains(t, lines[11], "already exists")
}

func TestScriptQuitStops(t *testing.T) {
	out := runScript(t, "create\nquit\ncreate\n")
	assert.Equal(t, "(integer) 1\n", out)
}

func TestScriptPipeAndShut(t *testing.T) {
	out := runScript(t, `
create
pipe r w
add 1 r in|et 2
shut w
wait 1
read r
`)
	assert.Equal(t, `(integer) 1
OK
OK
OK
1) tag=2 events=hup
(eof)
`, out)
}

func TestWrongArity(t *testing.T) {
	out := runScript(t, "wait\nhelp wait\n")
	assert.Contains(t, out, "wrong number of arguments for 'wait'")
	assert.Contains(t, out, "summary: Wait for edges")
}

func TestSetPreferences(t *testing.T) {
	var out bytes.Buffer
	cli := NewEpollCli(&out, nil)
	defer cli.Close()

	require.NoError(t, cli.Exec([]string{":set", "capacity", "1"}))
	require.NoError(t, cli.Exec([]string{":set", "timeout", "5"}))
	require.NoError(t, cli.Exec([]string{":set", "nohints"}))
	require.NoError(t, cli.Exec([]string{":set", "prompt", "ep>"}))
	assert.Equal(t, 1, cli.config.capacity)
	assert.Equal(t, 5, cli.config.timeoutMs)
	assert.False(t, cli.config.hints)
	assert.Equal(t, "ep> ", cli.config.prompt)
	assert.Empty(t, cli.complete("w"))

	require.NoError(t, cli.Exec([]string{":set", "hints"}))
	assert.Equal(t, []string{"wait", "write"}, cli.complete("w"))

	require.NoError(t, cli.Exec([]string{":set", "capacity", "0"}))
	assert.Contains(t, out.String(), "invalid capacity")
}

func TestCapacityPreferenceLimitsWait(t *testing.T) {
	out := runScript(t, `
:set capacity 1
create
eventfd a
eventfd b
add 1 a out|et 1
add 1 b out|et 2
wait 1
wait 1
`)
	assert.Equal(t, `(integer) 1
OK
OK
OK
OK
1) tag=1 events=out
1) tag=2 events=out
`, out)
}

func TestStats(t *testing.T) {
	out := runScript(t, `
create
eventfd e
add 1 e out|et
wait 1
stats
`)
	assert.Contains(t, out, "epoll_monitors_created_total 1")
	assert.Contains(t, out, "epoll_control_total{op=add,result=ok} 1")
	assert.Contains(t, out, "epoll_waits_total{result=events} 1")
	assert.Contains(t, out, "epoll_events_delivered_total 1")
}

func TestProbeCommand(t *testing.T) {
	out := runScript(t, "probe\n")
	assert.Contains(t, out, "block-without-notification")
	assert.Contains(t, out, "block-then-unblock")
	assert.True(t, strings.HasSuffix(out, "OK\n"), out)
}

func TestList(t *testing.T) {
	out := runScript(t, `
create
socketpair a b
add 1 a in
list
`)
	assert.Contains(t, out, "monitor 1 registrations=1 blocked=0")
	assert.Contains(t, out, "endpoint a kind=socket ready=out|wrnorm")
	assert.Contains(t, out, "endpoint b kind=socket ready=out|wrnorm")
}

func TestGetDotfilePath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv(EpollCliHisFileEnv, "")
	assert.Equal(t, "/home/tester/.epollcli_history", getDotfilePath(EpollCliHisFileEnv, EpollCliHisFileDefault))

	t.Setenv(EpollCliHisFileEnv, "/tmp/hist")
	assert.Equal(t, "/tmp/hist", getDotfilePath(EpollCliHisFileEnv, EpollCliHisFileDefault))

	t.Setenv(EpollCliHisFileEnv, "/dev/null")
	assert.Equal(t, "", getDotfilePath(EpollCliHisFileEnv, EpollCliHisFileDefault))
}

func TestLoadPreferences(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rc")
	require.NoError(t, os.WriteFile(path, []byte(`
prompt = "ep> "
default_timeout_ms = 25
default_capacity = 4
log_level = "debug"
hints = false
`), 0644))

	prefs, err := cliLoadPreferences(path)
	require.NoError(t, err)
	assert.Equal(t, &Preferences{
		Prompt:           "ep> ",
		DefaultTimeoutMs: 25,
		DefaultCapacity:  4,
		LogLevel:         "debug",
		Hints:            false,
	}, prefs)

	cfg := &CliCfg{}
	prefs.apply(cfg)
	assert.Equal(t, "ep> ", cfg.prompt)
	assert.Equal(t, 4, cfg.capacity)
}

func TestLoadPreferencesDefaults(t *testing.T) {
	prefs, err := cliLoadPreferences(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, defaultPreferences(), prefs)

	t.Setenv(EpollCliRCFileEnv, "/dev/null")
	prefs, err = cliLoadPreferences("")
	require.NoError(t, err)
	assert.Equal(t, defaultPreferences(), prefs)
}

func TestLoadPreferencesInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rc")
	require.NoError(t, os.WriteFile(path, []byte(`default_capacity = "many"`), 0644))
	_, err := cliLoadPreferences(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`default_capacity = 0`), 0644))
	_, err = cliLoadPreferences(path)
	assert.Error(t, err)
}

func TestRootCommandScript(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EpollCliRCFileEnv, "/dev/null")
	script := filepath.Join(dir, "script")
	require.NoError(t, os.WriteFile(script, []byte("create\ncreate\n"), 0644))

	var out bytes.Buffer
	root := NewRootCommand("test")
	root.SetOut(&out)
	root.SetArgs([]string{"--script", script, "--log-level", "error"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "(integer) 1\n(integer) 2\n", out.String())
}

func TestRootCommandStdin(t *testing.T) {
	t.Setenv(EpollCliRCFileEnv, "/dev/null")
	var out bytes.Buffer
	root := NewRootCommand("test")
	root.SetOut(&out)
	root.SetIn(strings.NewReader("create\n"))
	root.SetArgs(nil)
	require.NoError(t, root.Execute())
	assert.Equal(t, "(integer) 1\n", out.String())
}
