package alert

import (
	"context"
	"io"
	"os/exec"
	"strings"
)

// Sound plays the audible part of an alert.
type Sound interface {
	Play(ctx context.Context) error
}

// BellSound rings the terminal bell on Out.
type BellSound struct {
	Out io.Writer
}

func (b BellSound) Play(context.Context) error {
	_, err := io.WriteString(b.Out, "\a")
	return err
}

// CommandSound runs an external player, for example "paplay alert.wav".
type CommandSound struct {
	Args []string
}

func (c CommandSound) Play(ctx context.Context) error {
	if len(c.Args) == 0 {
		return nil
	}
	return exec.CommandContext(ctx, c.Args[0], c.Args[1:]...).Run()
}

// NewSound returns a CommandSound for a non-empty command line and a
// BellSound on out otherwise.
func NewSound(command string, out io.Writer) Sound {
	if args := strings.Fields(command); len(args) > 0 {
		return CommandSound{Args: args}
	}
	return BellSound{Out: out}
}
