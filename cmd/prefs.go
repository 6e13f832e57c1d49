package cmd

import (
	"fmt"
	"github.com/pelletier/go-toml"
	"os"
	"strconv"
	"strings"
)

// Preferences come from the rc file. Unset keys keep the shell defaults.
type Preferences struct {
	Prompt           string
	DefaultTimeoutMs int
	DefaultCapacity  int
	LogLevel         string
	Hints            bool
}

func defaultPreferences() *Preferences {
	return &Preferences{
		Prompt:           DefaultPrompt,
		DefaultTimeoutMs: DefaultTimeoutMs,
		DefaultCapacity:  DefaultCapacity,
		Hints:            true,
	}
}

// cliLoadPreferences loads the rc file at path, or the ~/.epollclirc
// default when path is empty. A missing file yields the defaults.
func cliLoadPreferences(path string) (*Preferences, error) {
	prefs := defaultPreferences()
	if path == "" {
		path = getDotfilePath(EpollCliRCFileEnv, EpollCliRCFileDefault)
	}
	if path == "" {
		return prefs, nil
	}

	tree, err := toml.LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return prefs, nil
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	var ok bool
	if prefs.Prompt, ok = tree.GetDefault("prompt", prefs.Prompt).(string); !ok {
		return nil, fmt.Errorf("%s: prompt must be a string", path)
	}
	if prefs.LogLevel, ok = tree.GetDefault("log_level", "").(string); !ok {
		return nil, fmt.Errorf("%s: log_level must be a string", path)
	}
	if prefs.Hints, ok = tree.GetDefault("hints", prefs.Hints).(bool); !ok {
		return nil, fmt.Errorf("%s: hints must be a boolean", path)
	}
	if prefs.DefaultTimeoutMs, err = tomlInt(tree, "default_timeout_ms", prefs.DefaultTimeoutMs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if prefs.DefaultCapacity, err = tomlInt(tree, "default_capacity", prefs.DefaultCapacity); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if prefs.DefaultCapacity <= 0 {
		return nil, fmt.Errorf("%s: default_capacity must be positive", path)
	}
	return prefs, nil
}

func tomlInt(tree *toml.Tree, key string, def int) (int, error) {
	switch v := tree.GetDefault(key, int64(def)).(type) {
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

func (p *Preferences) apply(cfg *CliCfg) {
	if p.Prompt != "" {
		cfg.prompt = p.Prompt
	}
	cfg.timeoutMs = p.DefaultTimeoutMs
	if p.DefaultCapacity > 0 {
		cfg.capacity = p.DefaultCapacity
	}
	cfg.hints = p.Hints
}

// cliSetPreferences handles ":set <option> [value]" lines.
func (cli *EpollCli) cliSetPreferences(argv []string) error {
	if !strings.EqualFold(argv[0], ":set") || len(argv) < 2 {
		return fmt.Errorf("unknown preference command, try ':set hints|nohints|prompt|timeout|capacity'")
	}

	switch strings.ToLower(argv[1]) {
	case "hints":
		cli.config.hints = true
	case "nohints":
		cli.config.hints = false
	case "prompt":
		if len(argv) < 3 {
			return fmt.Errorf(":set prompt needs a value")
		}
		cli.config.prompt = strings.Join(argv[2:], " ") + " "
	case "timeout":
		if len(argv) != 3 {
			return fmt.Errorf(":set timeout needs a value")
		}
		ms, err := strconv.Atoi(argv[2])
		if err != nil {
			return fmt.Errorf("invalid timeout %q", argv[2])
		}
		cli.config.timeoutMs = ms
	case "capacity":
		if len(argv) != 3 {
			return fmt.Errorf(":set capacity needs a value")
		}
		n, err := strconv.Atoi(argv[2])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid capacity %q", argv[2])
		}
		cli.config.capacity = n
	default:
		return fmt.Errorf("unknown preference %q", argv[1])
	}
	return nil
}
