// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Player shells out to a command-line audio player for the two beep files in
// the sounds directory.
type Player struct {
	bin string
	dir string
}

// NewSounder picks the first available player (paplay, then aplay). Without
// one it falls back to the terminal bell; disabled config yields the silent
// implementation.
func NewSounder(enabled bool, dir string) Sounder {
	if !enabled {
		return NopSounder{}
	}
	for _, bin := range []string{"paplay", "aplay"} {
		if path, err := exec.LookPath(bin); err == nil {
			return &Player{bin: path, dir: dir}
		}
	}
	return Bell{W: os.Stdout}
}

func (p *Player) Play(ctx context.Context, positive bool) error {
	name := "negative-beep.wav"
	if positive {
		name = "positive-beep.wav"
	}
	cmd := exec.CommandContext(ctx, p.bin, filepath.Join(p.dir, name))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("notify: play %s: %w", name, err)
	}
	return nil
}

// Bell writes the terminal bell. Positive and negative sound the same, but a
// headless box still gets audible feedback.
type Bell struct {
	W io.Writer
}

func (b Bell) Play(_ context.Context, _ bool) error {
	if _, err := b.W.Write([]byte{0x07}); err != nil {
		return fmt.Errorf("notify: bell: %w", err)
	}
	return nil
}

// NopSounder drops beeps.
type NopSounder struct{}

func (NopSounder) Play(context.Context, bool) error { return nil }
