// SPDX-License-Identifier: MIT

package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{ArmedPointer, "armed_pointer"},
		{ArmedChord, "armed_chord"},
		{Started, "started"},
		{Canceled, "canceled"},
		{Done, "done"},
		{GenericError, "generic_error"},
		{ConfigError, "config_error"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestContent(t *testing.T) {
	body, icon, urgency := Notification{Kind: Done}.Content()
	assert.Equal(t, "Backup done", body)
	assert.Equal(t, "face-smile", icon)
	assert.Equal(t, "normal", urgency)

	body, icon, _ = Notification{Kind: Canceled}.Content()
	assert.Equal(t, "Backup canceled", body)
	assert.Equal(t, "dialog-warning", icon)

	body, _, _ = Notification{Kind: ArmedPointer}.Content()
	assert.Contains(t, body, "clockwise rectangle you will confirm")
	assert.Contains(t, body, "counterclockwise rectangle you will cancel")

	body, _, _ = Notification{Kind: ArmedChord}.Content()
	assert.Contains(t, body, "3 consecutive quick clicks")
	assert.Contains(t, body, "left clicks you will confirm")

	body, icon, urgency = Notification{Kind: GenericError, Message: "No files to copy."}.Content()
	assert.Equal(t, "No files to copy.", body)
	assert.Equal(t, "dialog-error", icon)
	assert.Equal(t, "critical", urgency)

	body, _, _ = Notification{Kind: ConfigError}.Content()
	assert.Equal(t, "An error occurred", body)
}

func TestNewDesktopDisabled(t *testing.T) {
	assert.IsType(t, NopDesktop{}, NewDesktop(false))
}

func TestBellWritesBEL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Bell{W: &buf}.Play(context.Background(), true))
	assert.Equal(t, []byte{0x07}, buf.Bytes())
}

// fakePlayer builds a script that records its arguments, standing in for
// paplay.
func fakePlayer(t *testing.T) (bin, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	dir := t.TempDir()
	bin = filepath.Join(dir, "fakeplay")
	argsFile = filepath.Join(dir, "args")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, argsFile
}

func TestPlayerPicksBeepFile(t *testing.T) {
	bin, argsFile := fakePlayer(t)
	p := &Player{bin: bin, dir: "/srv/sounds"}

	require.NoError(t, p.Play(context.Background(), true))
	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "/srv/sounds/positive-beep.wav\n", string(args))

	require.NoError(t, p.Play(context.Background(), false))
	args, err = os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "/srv/sounds/negative-beep.wav\n", string(args))
}

func TestPlayerMissingBinary(t *testing.T) {
	p := &Player{bin: filepath.Join(t.TempDir(), "absent"), dir: "."}
	err := p.Play(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify: play")
}

type recordingDesktop struct {
	notes []Notification
	err   error
}

func (d *recordingDesktop) Show(_ context.Context, n Notification) error {
	d.notes = append(d.notes, n)
	return d.err
}

type recordingSounder struct {
	played chan bool
}

func (s *recordingSounder) Play(_ context.Context, positive bool) error {
	s.played <- positive
	return nil
}

func TestNotifierFansOut(t *testing.T) {
	desktop := &recordingDesktop{}
	sounder := &recordingSounder{played: make(chan bool, 1)}
	n := NewNotifier(desktop, sounder, zerolog.Nop())

	n.Notify(context.Background(), Notification{Kind: ArmedChord})
	require.Len(t, desktop.notes, 1)
	assert.Equal(t, ArmedChord, desktop.notes[0].Kind)
	select {
	case positive := <-sounder.played:
		assert.True(t, positive)
	case <-time.After(2 * time.Second):
		t.Fatal("beep never played")
	}

	n.Notify(context.Background(), Notification{Kind: Canceled})
	select {
	case positive := <-sounder.played:
		assert.False(t, positive, "cancel plays the negative beep")
	case <-time.After(2 * time.Second):
		t.Fatal("beep never played")
	}
}

func TestNotifierErrorsStaySilent(t *testing.T) {
	desktop := &recordingDesktop{}
	sounder := &recordingSounder{played: make(chan bool, 1)}
	n := NewNotifier(desktop, sounder, zerolog.Nop())

	n.Notify(context.Background(), Notification{Kind: GenericError, Message: "boom"})
	require.Len(t, desktop.notes, 1)
	select {
	case <-sounder.played:
		t.Fatal("error notifications must not beep")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifierDesktopFailureIsLoggedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	desktop := &recordingDesktop{err: errors.New("dbus is down")}
	n := NewNotifier(desktop, NopSounder{}, zerolog.New(&buf))

	n.Notify(context.Background(), Notification{Kind: Started})
	assert.Contains(t, buf.String(), "notify.desktop_failed")
	assert.Contains(t, buf.String(), "dbus is down")
}
