/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package stream

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// encodeProcess wraps the external ffmpeg invocation that produces the HLS
// output. The engine's responsibility ends at handing ffmpeg a filter graph
// and managing its lifecycle; the audio DSP itself stays outside.
type encodeProcess struct {
	bin    string
	logger zerolog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{} // closed when the process has exited
}

func newEncodeProcess(bin string, logger zerolog.Logger) *encodeProcess {
	return &encodeProcess{bin: bin, logger: logger}
}

// Start launches ffmpeg with the given arguments.
func (p *encodeProcess) Start(ctx context.Context, args []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil && p.done != nil {
		select {
		case <-p.done:
			// Previous process has exited, ok to start a new one.
		default:
			return fmt.Errorf("encode process already running")
		}
	}

	cmd := exec.CommandContext(ctx, p.bin, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.bin, err)
	}

	p.cmd = cmd
	p.done = make(chan struct{})
	p.logger.Debug().Int("pid", cmd.Process.Pid).Strs("args", args).Msg("encoder started")

	go func(done chan struct{}, c *exec.Cmd) {
		err := c.Wait()
		close(done)
		if err != nil {
			p.logger.Debug().Err(err).Msg("encoder exited")
		} else {
			p.logger.Info().Msg("encoder stopped")
		}
	}(p.done, cmd)

	return nil
}

// Running reports whether the encode process is still alive.
func (p *encodeProcess) Running() bool {
	p.mu.Lock()
	done := p.done
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil || done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Stop terminates the running process: interrupt first, kill after a grace
// period. Calling Stop with no process running is a no-op.
func (p *encodeProcess) Stop() error {
	p.mu.Lock()
	cmd := p.cmd
	done := p.done
	p.mu.Unlock()

	if cmd == nil || done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	default:
	}

	if cmd.Process != nil {
		_ = cmd.Process.Signal(os.Interrupt)
	}

	select {
	case <-time.After(5 * time.Second):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
	case <-done:
		// Process exited on its own.
	}

	return nil
}
