// Package transcoder wraps ffmpeg to remux resolved media into a
// standardized MPEG transport stream.
package transcoder

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pseudotv/pseudotv/internal/config"
)

// DefaultBinary is the ffmpeg binary resolved from PATH when no explicit
// path is configured.
const DefaultBinary = "ffmpeg"

// stderrTailLines bounds how much ffmpeg stderr is retained for error
// reporting.
const stderrTailLines = 20

// Command builds an ffmpeg invocation with a fluent API.
type Command struct {
	binary    string
	inputArgs []string
	input     string
	output    []string
}

// NewCommand creates an ffmpeg command builder.
func NewCommand(binary string) *Command {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Command{binary: binary}
}

// Seek seeks the input to the given offset. A non-positive offset is a
// no-op.
func (c *Command) Seek(offset time.Duration) *Command {
	if offset > 0 {
		c.inputArgs = append(c.inputArgs, "-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64))
	}
	return c
}

// Input sets the input URL.
func (c *Command) Input(url string) *Command {
	c.input = url
	return c
}

// Profile applies the channel output profile: H.264 video at the configured
// resolution, framerate and bitrate, AAC audio.
func (c *Command) Profile(p config.OutputProfile) *Command {
	c.output = append(c.output,
		"-c:v", "libx264",
		"-s", p.Resolution,
		"-r", strconv.Itoa(p.Framerate),
		"-b:v", p.VideoBitrate,
		"-c:a", "aac",
		"-b:a", p.AudioBitrate,
	)
	return c
}

// Args returns the full argv (excluding the binary) for the MPEG-TS pipe
// output.
func (c *Command) Args() []string {
	args := make([]string, 0, len(c.inputArgs)+len(c.output)+8)
	args = append(args, "-hide_banner", "-loglevel", "error")
	args = append(args, c.inputArgs...)
	args = append(args, "-i", c.input)
	args = append(args, c.output...)
	args = append(args, "-f", "mpegts", "pipe:1")
	return args
}

// Start launches ffmpeg and returns a reader over its MPEG-TS stdout. The
// process is killed when the reader is closed or ctx is cancelled.
func (c *Command) Start(ctx context.Context) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, c.binary, c.Args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening ffmpeg stdout: %w", err)
	}

	tail := &stderrTail{}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	return &process{cmd: cmd, stdout: stdout, stderr: tail}, nil
}

// process is a running ffmpeg instance exposed as a ReadCloser over its
// transport-stream output.
type process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *stderrTail

	closeOnce sync.Once
	closeErr  error
}

// Read reads transcoded bytes. A process exiting with an error surfaces the
// retained stderr tail.
func (p *process) Read(buf []byte) (int, error) {
	n, err := p.stdout.Read(buf)
	if err == io.EOF {
		if werr := p.cmd.Wait(); werr != nil {
			return n, fmt.Errorf("ffmpeg exited: %w: %s", werr, p.stderr.Tail())
		}
		return n, io.EOF
	}
	return n, err
}

// Close tears down the ffmpeg process promptly and releases its resources.
func (p *process) Close() error {
	p.closeOnce.Do(func() {
		p.stdout.Close()
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		p.cmd.Wait()
	})
	return p.closeErr
}

// stderrTail retains the last lines written to it.
type stderrTail struct {
	mu    sync.Mutex
	lines []string
}

func (t *stderrTail) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		if line == "" {
			continue
		}
		t.lines = append(t.lines, line)
		if len(t.lines) > stderrTailLines {
			t.lines = t.lines[len(t.lines)-stderrTailLines:]
		}
	}
	return len(b), nil
}

// Tail returns the retained stderr lines joined for error messages.
func (t *stderrTail) Tail() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "; ")
}
