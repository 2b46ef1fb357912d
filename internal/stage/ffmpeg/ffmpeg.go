// Package ffmpeg prepares and compiles ranking videos with yt-dlp and
// ffmpeg. Both binaries must be on PATH.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

const fontFile = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

// RunFunc executes an external command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Processor downloads candidates, cuts a clip from each and joins the
// clips into one video.
type Processor struct {
	outputDir   string
	clipSeconds int
	run         RunFunc
	now         func() time.Time
}

type Option func(*Processor)

// WithClipSeconds sets the length cut from each candidate.
func WithClipSeconds(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.clipSeconds = n
		}
	}
}

// WithRunner replaces command execution.
func WithRunner(fn RunFunc) Option {
	return func(p *Processor) { p.run = fn }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func New(outputDir string, opts ...Option) *Processor {
	p := &Processor{
		outputDir:   outputDir,
		clipSeconds: 30,
		run:         execRun,
		now:         time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CheckAvailable reports whether yt-dlp and ffmpeg can be found.
func CheckAvailable() error {
	var errs []error
	for _, bin := range []string{"yt-dlp", "ffmpeg"} {
		if _, err := exec.LookPath(bin); err != nil {
			errs = append(errs, fmt.Errorf("%s not found in PATH: %w", bin, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) clipsDir() string {
	return filepath.Join(p.outputDir, "clips")
}

// Prepare downloads c and cuts a clip from its middle with the rank drawn
// on top. If the overlay cannot be rendered the plain clip is used.
func (p *Processor) Prepare(ctx context.Context, c pipeline.Candidate, rank int) (pipeline.Clip, error) {
	if c.SourceURL == "" {
		return pipeline.Clip{}, errors.New("candidate has no source url")
	}
	dir := p.clipsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pipeline.Clip{}, fmt.Errorf("create clips dir: %w", err)
	}

	source := filepath.Join(dir, "src_"+safeName(c.ID)+".mp4")
	raw := filepath.Join(dir, fmt.Sprintf("clip_%d_raw.mp4", rank))
	final := filepath.Join(dir, fmt.Sprintf("clip_%d.mp4", rank))
	defer func() {
		_ = os.Remove(source)
		_ = os.Remove(raw)
	}()

	if out, err := p.run(ctx, "yt-dlp", "-f", "best[height<=720]", "-o", source, c.SourceURL); err != nil {
		return pipeline.Clip{}, fmt.Errorf("download %s: %w\nOutput: %s", c.ID, err, out)
	}

	start := 0
	if c.DurationSeconds > p.clipSeconds {
		start = (c.DurationSeconds - p.clipSeconds) / 2
	}
	if out, err := p.run(ctx, "ffmpeg", "-y",
		"-ss", strconv.Itoa(start),
		"-i", source,
		"-t", strconv.Itoa(p.clipSeconds),
		"-c", "copy",
		raw,
	); err != nil {
		return pipeline.Clip{}, fmt.Errorf("extract clip %s: %w\nOutput: %s", c.ID, err, out)
	}

	label := fmt.Sprintf("#%d - %s", rank, c.Title)
	filter := fmt.Sprintf("drawtext=text='%s':fontfile=%s:fontsize=48:fontcolor=white:bordercolor=black:borderw=3:x=(w-text_w)/2:y=50",
		escapeDrawtext(label), fontFile)
	if out, err := p.run(ctx, "ffmpeg", "-y", "-i", raw, "-vf", filter, "-codec:a", "copy", final); err != nil {
		if ctx.Err() != nil {
			return pipeline.Clip{}, ctx.Err()
		}
		slog.Warn("ffmpeg: overlay failed, using plain clip", "candidate", c.ID, "error", err, "output", string(out))
		if err := os.Rename(raw, final); err != nil {
			return pipeline.Clip{}, fmt.Errorf("keep plain clip: %w", err)
		}
	}

	return pipeline.Clip{Path: final}, nil
}

// Compile joins clips in the order given using the concat demuxer.
func (p *Processor) Compile(ctx context.Context, clips []pipeline.Clip, count int) (string, error) {
	if len(clips) == 0 {
		return "", errors.New("no clips to compile")
	}
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	output := filepath.Join(p.outputDir, fmt.Sprintf("ranking_top%d_%d.mp4", count, p.now().UnixMilli()))
	listPath := output + ".txt"

	lines := make([]string, len(clips))
	for i, c := range clips {
		lines[i] = fmt.Sprintf("file '%s'", strings.ReplaceAll(c.Path, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listPath) }()

	if out, err := p.run(ctx, "ffmpeg", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", "-y", output); err != nil {
		return "", fmt.Errorf("ffmpeg concat: %w\nOutput: %s", err, out)
	}

	for _, c := range clips {
		_ = os.Remove(c.Path)
	}
	return output, nil
}

func escapeDrawtext(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`)
	return r.Replace(s)
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
