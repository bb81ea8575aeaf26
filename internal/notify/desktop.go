// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"fmt"
	"os/exec"
)

// NotifySend shows popups through the freedesktop notify-send binary.
type NotifySend struct {
	bin string
}

// NewDesktop probes for notify-send once. Disabled config or a missing
// binary yields the silent implementation.
func NewDesktop(enabled bool) Desktop {
	if !enabled {
		return NopDesktop{}
	}
	bin, err := exec.LookPath("notify-send")
	if err != nil {
		return NopDesktop{}
	}
	return &NotifySend{bin: bin}
}

func (d *NotifySend) Show(ctx context.Context, n Notification) error {
	body, icon, urgency := n.Content()
	cmd := exec.CommandContext(ctx, d.bin,
		"-a", Summary,
		"-i", icon,
		"-u", urgency,
		Summary, body)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("notify: notify-send: %w", err)
	}
	return nil
}

// NopDesktop drops popups.
type NopDesktop struct{}

func (NopDesktop) Show(context.Context, Notification) error { return nil }
