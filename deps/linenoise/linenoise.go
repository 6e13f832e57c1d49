package linenoise

import (
	"bytes"
	"fmt"
	"github.com/peterh/liner"
	"io"
	"os"
)

// ErrAborted is returned by Prompt when the user hits Ctrl-C.
var ErrAborted = liner.ErrPromptAborted

const clearSeq = "\x1b[H\x1b[2J"

type LineNoise struct {
	*liner.State
}

// New takes over the terminal. Close gives it back.
func New() *LineNoise {
	ln := &LineNoise{liner.NewLiner()}
	ln.SetCtrlCAborts(true)
	return ln
}

func (ln *LineNoise) HistoryLoad(filepath string) error {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return err
	}
	_, err = ln.ReadHistory(bytes.NewReader(content))
	return err
}

func (ln *LineNoise) HistorySave(filepath string) error {
	var buf bytes.Buffer
	_, err := ln.WriteHistory(&buf)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, buf.Bytes(), 0644)
}

// ClearScreen writes the ANSI clear sequence to w.
func ClearScreen(w io.Writer) error {
	_, err := fmt.Fprint(w, clearSeq)
	return err
}
