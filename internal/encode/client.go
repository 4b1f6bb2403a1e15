package encode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"montage/internal/compile"
	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/subtitles"
)

// Client renders a composition plan to an output file. The assets map takes
// each plan source reference to a local file path; remote references must be
// fetched before rendering.
type Client interface {
	Render(ctx context.Context, plan *compile.Plan, assets map[string]string, outputPath string) error
}

// FFmpeg drives the ffmpeg binary through the operations of a plan: one pass
// per base segment, a stream-copy concat, then a single compositing pass for
// overlays, subtitle burn-in, and the audio mix.
type FFmpeg struct {
	binary        string
	workDir       string
	preset        string
	crf           int
	audioBitrate  string
	keepWorkspace bool
	executor      Executor
	logger        *slog.Logger
}

// Option adjusts client construction.
type Option func(*FFmpeg)

// WithBinary overrides the ffmpeg binary path.
func WithBinary(binary string) Option {
	return func(c *FFmpeg) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithExecutor replaces the command executor, primarily for tests.
func WithExecutor(executor Executor) Option {
	return func(c *FFmpeg) {
		if executor != nil {
			c.executor = executor
		}
	}
}

// WithLogger attaches a logger for command progress output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *FFmpeg) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds an FFmpeg client from configuration.
func New(cfg *config.Config, opts ...Option) *FFmpeg {
	client := &FFmpeg{
		binary:        cfg.Tools.FFmpegBinary,
		workDir:       cfg.Paths.WorkspaceDir,
		preset:        cfg.Output.Preset,
		crf:           cfg.Output.CRF,
		audioBitrate:  cfg.Output.AudioBitrate,
		keepWorkspace: cfg.Paths.KeepWorkspace,
		executor:      commandExecutor{},
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Render executes the plan. Encoder failures are surfaced with the tool's own
// diagnostics attached; the client never reinterprets them.
func (c *FFmpeg) Render(ctx context.Context, plan *compile.Plan, assets map[string]string, outputPath string) error {
	decoded, err := decodePlan(plan)
	if err != nil {
		return err
	}

	workspace := filepath.Join(c.workDir, "render-"+uuid.NewString())
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	if !c.keepWorkspace {
		defer os.RemoveAll(workspace)
	}

	segmentFiles := make([]string, len(decoded.segments))
	for i, seg := range decoded.segments {
		source, err := localPath(assets, seg.trim.Source)
		if err != nil {
			return err
		}
		dst := filepath.Join(workspace, fmt.Sprintf("seg_%03d.mp4", i))
		c.logger.Info("rendering segment",
			logging.Int("segment", i),
			logging.String("source", seg.trim.Source),
			logging.Bool("stretched", seg.speed != nil))
		if err := c.run(ctx, segmentArgs(seg, source, dst, c.preset, c.crf)); err != nil {
			return fmt.Errorf("render segment %d: %w", i, err)
		}
		segmentFiles[i] = dst
	}

	base, err := c.concatSegments(ctx, workspace, segmentFiles)
	if err != nil {
		return err
	}

	var srtPath string
	if decoded.subtitles != nil && len(decoded.subtitles.Cues) > 0 {
		srtPath = filepath.Join(workspace, "subtitles.srt")
		if err := subtitles.WriteSRTFile(srtPath, decoded.subtitles.Cues); err != nil {
			return err
		}
	}

	args, err := c.composeArgs(decoded, assets, base, srtPath, outputPath)
	if err != nil {
		return err
	}
	c.logger.Info("compositing output",
		logging.Int("overlays", len(decoded.overlays)),
		logging.Int("audio_layers", len(decoded.layers)),
		logging.String("output", outputPath))
	if err := c.run(ctx, args); err != nil {
		return fmt.Errorf("composite output: %w", err)
	}
	return nil
}

// concatSegments joins the rendered segments with the concat demuxer. The
// segments already share a rendition, so stream copy keeps the join lossless.
func (c *FFmpeg) concatSegments(ctx context.Context, workspace string, segmentFiles []string) (string, error) {
	if len(segmentFiles) == 1 {
		return segmentFiles[0], nil
	}
	listPath := filepath.Join(workspace, "segments.txt")
	var list strings.Builder
	for _, file := range segmentFiles {
		fmt.Fprintf(&list, "file '%s'\n", file)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}

	base := filepath.Join(workspace, "base.mp4")
	args := []string{
		"-y", "-loglevel", "error",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-c", "copy",
		base,
	}
	if err := c.run(ctx, args); err != nil {
		return "", fmt.Errorf("concat segments: %w", err)
	}
	return base, nil
}

// composeArgs builds the final pass: the base track plus one input per
// overlay and per audio layer, wired through a single filter graph.
func (c *FFmpeg) composeArgs(decoded *decodedPlan, assets map[string]string, base, srtPath, outputPath string) ([]string, error) {
	final := decoded.finalize

	args := []string{"-y", "-loglevel", "error", "-i", base}
	inputIndex := 1

	var filterParts []string
	last := "0:v"

	for _, overlay := range decoded.overlays {
		source, err := localPath(assets, overlay.Source)
		if err != nil {
			return nil, err
		}
		args = append(args, "-i", source)
		last = overlayChain(&filterParts, inputIndex, last, overlay)
		inputIndex++
	}

	if srtPath != "" {
		filterParts = append(filterParts, fmt.Sprintf("[%s]subtitles=%s[vsub]", last, srtPath))
		last = "vsub"
	}

	var audioLabels []string
	for _, layer := range decoded.layers {
		source, err := localPath(assets, layer.Source)
		if err != nil {
			return nil, err
		}
		if layer.Loop {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-i", source)
		chain, label := audioChain(inputIndex, layer)
		filterParts = append(filterParts, chain)
		audioLabels = append(audioLabels, label)
		inputIndex++
	}

	audioOut := ""
	switch len(audioLabels) {
	case 0:
	case 1:
		audioOut = audioLabels[0]
	default:
		inputs := make([]string, len(audioLabels))
		for i, label := range audioLabels {
			inputs[i] = "[" + label + "]"
		}
		filterParts = append(filterParts,
			fmt.Sprintf("%samix=inputs=%d:duration=longest:normalize=0[amix]", strings.Join(inputs, ""), len(audioLabels)))
		audioOut = "amix"
	}

	if len(filterParts) > 0 {
		args = append(args, "-filter_complex", strings.Join(filterParts, ";"))
	}

	if last == "0:v" {
		args = append(args, "-map", "0:v")
	} else {
		args = append(args, "-map", "["+last+"]")
	}
	if audioOut == "" {
		args = append(args, "-an")
	} else {
		args = append(args, "-map", "["+audioOut+"]")
	}

	args = append(args,
		"-t", formatSeconds(final.TotalDuration),
		"-r", formatFloat(final.FPS),
		"-s", fmt.Sprintf("%dx%d", final.Width, final.Height),
		"-c:v", "libx264", "-preset", c.preset, "-crf", strconv.Itoa(c.crf),
	)
	if audioOut != "" {
		args = append(args, "-c:a", "aac", "-b:a", c.audioBitrate)
	}
	args = append(args, outputPath)
	return args, nil
}

// run executes one ffmpeg invocation, retaining output lines so a failure
// carries the tool's own diagnostics.
func (c *FFmpeg) run(ctx context.Context, args []string) error {
	var tail []string
	onLine := func(line string) {
		c.logger.Debug("ffmpeg", logging.String("line", line))
		tail = append(tail, line)
		if len(tail) > 20 {
			tail = tail[1:]
		}
	}
	if err := c.executor.Run(ctx, c.binary, args, onLine); err != nil {
		if len(tail) > 0 {
			return fmt.Errorf("%w: %s", err, strings.Join(tail, "\n"))
		}
		return err
	}
	return nil
}

func localPath(assets map[string]string, ref string) (string, error) {
	if assets == nil {
		return ref, nil
	}
	if path, ok := assets[ref]; ok {
		return path, nil
	}
	return "", fmt.Errorf("no local path for asset %q", ref)
}
