package encode_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"montage/internal/compile"
	"montage/internal/config"
	"montage/internal/encode"
	"montage/internal/spec"
)

type call struct {
	binary string
	args   []string
}

type fakeExecutor struct {
	calls  []call
	failOn int
	lines  []string
	err    error
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string, onLine func(string)) error {
	f.calls = append(f.calls, call{binary: binary, args: args})
	if f.failOn > 0 && len(f.calls) == f.failOn {
		for _, line := range f.lines {
			onLine(line)
		}
		return f.err
	}
	return nil
}

func testClient(t *testing.T, executor encode.Executor) *encode.FFmpeg {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = t.TempDir()
	return encode.New(&cfg, encode.WithExecutor(executor))
}

func trimOp(segment int, source string, in, out, slotStart, slotEnd float64) compile.Op {
	return compile.Op{Kind: compile.OpTrim, Trim: &compile.TrimOp{
		Segment: segment, Source: source,
		TrimIn: in, TrimOut: out,
		SlotStart: slotStart, SlotEnd: slotEnd,
	}}
}

func scaleOp(segment int) compile.Op {
	return compile.Op{Kind: compile.OpScale, Scale: &compile.ScaleOp{
		Segment: segment, Width: 1280, Height: 720, FPS: 30,
	}}
}

func closingOps(segments int, total float64) []compile.Op {
	return []compile.Op{
		{Kind: compile.OpConcat, Concat: &compile.ConcatOp{Segments: segments}},
		{Kind: compile.OpFinalize, Finalize: &compile.FinalizeOp{
			Width: 1280, Height: 720, FPS: 30, TotalDuration: total,
		}},
	}
}

func singleSegmentPlan() *compile.Plan {
	ops := []compile.Op{trimOp(0, "clip.mp4", 0, 4, 0, 4), scaleOp(0)}
	ops = append(ops, closingOps(1, 4)...)
	return &compile.Plan{
		Version:       compile.PlanVersion,
		Output:        compile.OutputSettings{Width: 1280, Height: 720, FPS: 30},
		TotalDuration: 4,
		Ops:           ops,
	}
}

func argValue(args []string, flag string) (string, bool) {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1], true
		}
	}
	return "", false
}

func TestRenderSingleSegment(t *testing.T) {
	executor := &fakeExecutor{}
	client := testClient(t, executor)

	assets := map[string]string{"clip.mp4": "/assets/clip.mp4"}
	if err := client.Render(context.Background(), singleSegmentPlan(), assets, "/out/final.mp4"); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	// One segment skips the concat pass: segment render then composite.
	if len(executor.calls) != 2 {
		t.Fatalf("expected 2 ffmpeg invocations, got %d", len(executor.calls))
	}

	segArgs := executor.calls[0].args
	if got, _ := argValue(segArgs, "-i"); got != "/assets/clip.mp4" {
		t.Fatalf("segment input = %q, want local asset path", got)
	}
	if got, _ := argValue(segArgs, "-t"); got != "4" {
		t.Fatalf("segment duration = %q, want 4", got)
	}
	if vf, ok := argValue(segArgs, "-vf"); !ok || !strings.Contains(vf, "scale=1280:720") {
		t.Fatalf("segment filter = %q, want scale to output rendition", vf)
	}

	finalArgs := executor.calls[1].args
	if finalArgs[len(finalArgs)-1] != "/out/final.mp4" {
		t.Fatalf("final output = %q", finalArgs[len(finalArgs)-1])
	}
	found := false
	for i, arg := range finalArgs {
		if arg == "-map" && finalArgs[i+1] == "0:v" {
			found = true
		}
	}
	if !found {
		t.Fatalf("composite without overlays should map the base video directly: %v", finalArgs)
	}
	for _, arg := range finalArgs {
		if arg == "-c:a" {
			t.Fatalf("plan without mix layers should not encode audio: %v", finalArgs)
		}
	}
}

func TestRenderStretchedSegmentUsesSetpts(t *testing.T) {
	ops := []compile.Op{
		trimOp(0, "clip.mp4", 0, 4, 0, 8),
		{Kind: compile.OpSpeed, Speed: &compile.SpeedOp{Segment: 0, Factor: 0.5}},
		scaleOp(0),
	}
	ops = append(ops, closingOps(1, 8)...)
	plan := &compile.Plan{
		Version:       compile.PlanVersion,
		Output:        compile.OutputSettings{Width: 1280, Height: 720, FPS: 30},
		TotalDuration: 8,
		Ops:           ops,
	}

	executor := &fakeExecutor{}
	client := testClient(t, executor)
	assets := map[string]string{"clip.mp4": "/assets/clip.mp4"}
	if err := client.Render(context.Background(), plan, assets, "/out/final.mp4"); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	vf, ok := argValue(executor.calls[0].args, "-vf")
	if !ok || !strings.Contains(vf, "setpts=2*PTS") {
		t.Fatalf("segment filter = %q, want inverse-factor setpts", vf)
	}
	if _, hasAudio := argValue(executor.calls[0].args, "-c:a"); hasAudio {
		t.Fatalf("segment pass must drop source audio")
	}
}

func TestRenderComposite(t *testing.T) {
	ops := []compile.Op{
		trimOp(0, "a.mp4", 0, 4, 0, 4), scaleOp(0),
		trimOp(1, "b.mp4", 0, 6, 4, 10), scaleOp(1),
		{Kind: compile.OpOverlay, Overlay: &compile.OverlayOp{
			Source: "logo.png", X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2,
			Windows: []spec.Window{{Start: 1, End: 3}, {Start: 5, End: 9}},
		}},
		{Kind: compile.OpSubtitles, Subtitles: &compile.SubtitlesOp{
			Cues: []spec.Cue{{Start: 0, End: 2, Text: "hello"}},
		}},
		{Kind: compile.OpMix, Mix: &compile.MixOp{Layer: compile.AudioLayer{
			ID: "base/clip[0]", Kind: spec.KindBase, Source: "a.mp4", Duration: 4,
			Envelope: []compile.GainSpan{{Start: 0, End: 4, GainDB: 0}},
		}}},
		{Kind: compile.OpMix, Mix: &compile.MixOp{Layer: compile.AudioLayer{
			ID: "audio[0]", Kind: spec.KindBGM, Source: "bgm.mp3", Duration: 10, Loop: true,
			Envelope: []compile.GainSpan{{Start: 0, End: 10, GainDB: -6}},
		}}},
	}
	ops = append(ops, closingOps(2, 10)...)
	plan := &compile.Plan{
		Version:       compile.PlanVersion,
		Output:        compile.OutputSettings{Width: 1280, Height: 720, FPS: 30},
		TotalDuration: 10,
		Ops:           ops,
	}

	executor := &fakeExecutor{}
	client := testClient(t, executor)
	assets := map[string]string{
		"a.mp4":    "/assets/a.mp4",
		"b.mp4":    "/assets/b.mp4",
		"logo.png": "/assets/logo.png",
		"bgm.mp3":  "/assets/bgm.mp3",
	}
	if err := client.Render(context.Background(), plan, assets, "/out/final.mp4"); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	// Two segment passes, one concat, one composite.
	if len(executor.calls) != 4 {
		t.Fatalf("expected 4 ffmpeg invocations, got %d", len(executor.calls))
	}

	concatArgs := executor.calls[2].args
	if got, _ := argValue(concatArgs, "-f"); got != "concat" {
		t.Fatalf("third pass should use the concat demuxer: %v", concatArgs)
	}
	if got, _ := argValue(concatArgs, "-c"); got != "copy" {
		t.Fatalf("concat should stream-copy: %v", concatArgs)
	}

	finalArgs := executor.calls[3].args
	graph, ok := argValue(finalArgs, "-filter_complex")
	if !ok {
		t.Fatalf("composite pass missing filter graph: %v", finalArgs)
	}
	for _, want := range []string{
		"scale=iw*0.2:ih*0.2",
		"overlay=main_w*0.1:main_h*0.1",
		"between(t,1,3)+between(t,5,9)",
		"subtitles=",
		"volume=volume=-6dB",
		"amix=inputs=2:duration=longest:normalize=0",
	} {
		if !strings.Contains(graph, want) {
			t.Fatalf("filter graph missing %q:\n%s", want, graph)
		}
	}

	// The looping BGM input gets -stream_loop ahead of it.
	loopIdx := -1
	for i, arg := range finalArgs {
		if arg == "-stream_loop" {
			loopIdx = i
		}
	}
	if loopIdx == -1 || finalArgs[loopIdx+1] != "-1" {
		t.Fatalf("looping layer should use -stream_loop -1: %v", finalArgs)
	}
	if got, _ := argValue(finalArgs, "-t"); got != "10" {
		t.Fatalf("composite duration = %q, want 10", got)
	}
	if got, _ := argValue(finalArgs, "-b:a"); got != "192k" {
		t.Fatalf("audio bitrate = %q, want config default", got)
	}
}

func TestRenderSurfacesEncoderDiagnostics(t *testing.T) {
	executor := &fakeExecutor{
		failOn: 1,
		lines:  []string{"clip.mp4: Invalid data found when processing input"},
		err:    errors.New("wait command: exit status 1"),
	}
	client := testClient(t, executor)
	assets := map[string]string{"clip.mp4": "/assets/clip.mp4"}

	err := client.Render(context.Background(), singleSegmentPlan(), assets, "/out/final.mp4")
	if err == nil {
		t.Fatal("expected render error")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("error should carry encoder output: %v", err)
	}
}

func TestRenderRejectsMissingAsset(t *testing.T) {
	executor := &fakeExecutor{}
	client := testClient(t, executor)

	err := client.Render(context.Background(), singleSegmentPlan(), map[string]string{}, "/out/final.mp4")
	if err == nil || !strings.Contains(err.Error(), "no local path") {
		t.Fatalf("expected missing-asset error, got %v", err)
	}
}

func TestRenderRampsDuckedLayers(t *testing.T) {
	ops := []compile.Op{
		trimOp(0, "clip.mp4", 0, 10, 0, 10), scaleOp(0),
		{Kind: compile.OpMix, Mix: &compile.MixOp{Layer: compile.AudioLayer{
			ID: "audio[0]", Kind: spec.KindBGM, Source: "bgm.mp3", Duration: 10,
			GainRamp: 0.25,
			Envelope: []compile.GainSpan{
				{Start: 0, End: 2, GainDB: -6},
				{Start: 2, End: 6, GainDB: -18},
				{Start: 6, End: 10, GainDB: -6},
			},
		}}},
	}
	ops = append(ops, closingOps(1, 10)...)
	plan := &compile.Plan{
		Version:       compile.PlanVersion,
		Output:        compile.OutputSettings{Width: 1280, Height: 720, FPS: 30},
		TotalDuration: 10,
		Ops:           ops,
	}

	executor := &fakeExecutor{}
	client := testClient(t, executor)
	assets := map[string]string{"clip.mp4": "/assets/clip.mp4", "bgm.mp3": "/assets/bgm.mp3"}
	if err := client.Render(context.Background(), plan, assets, "/out/final.mp4"); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	graph, _ := argValue(executor.calls[len(executor.calls)-1].args, "-filter_complex")
	if !strings.Contains(graph, "eval=frame") || !strings.Contains(graph, "if(lt(t,") {
		t.Fatalf("ducked layer should use a ramped volume expression:\n%s", graph)
	}
}

func TestRenderRoundsLayerDelayToMillis(t *testing.T) {
	ops := []compile.Op{
		trimOp(0, "clip.mp4", 0, 10, 0, 10), scaleOp(0),
		{Kind: compile.OpMix, Mix: &compile.MixOp{Layer: compile.AudioLayer{
			ID: "audio[0]", Kind: spec.KindNarration, Source: "voice.mp3",
			Offset: 2.9999999, Duration: 4,
			Envelope: []compile.GainSpan{{Start: 2.9999999, End: 6.9999999, GainDB: 0}},
		}}},
	}
	ops = append(ops, closingOps(1, 10)...)
	plan := &compile.Plan{
		Version:       compile.PlanVersion,
		Output:        compile.OutputSettings{Width: 1280, Height: 720, FPS: 30},
		TotalDuration: 10,
		Ops:           ops,
	}

	executor := &fakeExecutor{}
	client := testClient(t, executor)
	assets := map[string]string{"clip.mp4": "/assets/clip.mp4", "voice.mp3": "/assets/voice.mp3"}
	if err := client.Render(context.Background(), plan, assets, "/out/final.mp4"); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	graph, _ := argValue(executor.calls[len(executor.calls)-1].args, "-filter_complex")
	if !strings.Contains(graph, "adelay=3000|3000") {
		t.Fatalf("offset should round to whole milliseconds:\n%s", graph)
	}
}

func TestRenderRejectsMalformedPlan(t *testing.T) {
	plan := &compile.Plan{
		Version: compile.PlanVersion,
		Ops: []compile.Op{
			{Kind: compile.OpSpeed, Speed: &compile.SpeedOp{Segment: 0, Factor: 0.5}},
		},
	}
	executor := &fakeExecutor{}
	client := testClient(t, executor)

	if err := client.Render(context.Background(), plan, nil, "/out/final.mp4"); err == nil {
		t.Fatal("expected decode error for dangling speed op")
	}
	if len(executor.calls) != 0 {
		t.Fatalf("no commands should run for a malformed plan, got %d", len(executor.calls))
	}
}
