// CLAUDE:SUMMARY Background generation runner: parallel audio + morph branches for posts, sequential inherit-from-parent flow for comments.
//
// Package pipeline runs the AI generation flow behind every post, recreate
// and comment. A run starts from a placeholder row in status 'generating'
// and ends with exactly one terminal write: 'ready' with all outputs, or
// 'failed' with the error message.
//
// Post runs fan out into two branches after image analysis. The audio
// branch (intent → compiled prompt → synthesis) is load-bearing: its failure
// fails the run. The morph branch (enhancement prompt → image edit) degrades
// gracefully: any failure falls back to the original image and the run still
// succeeds.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PascalJPan/re-be/intent"
	"github.com/PascalJPan/re-be/palette"
	"github.com/PascalJPan/re-be/pipetrace"
	"github.com/PascalJPan/re-be/promptc"
	"github.com/PascalJPan/re-be/squiggle"
	"github.com/PascalJPan/re-be/store"
)

// Analyzer runs the vision analysis.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*intent.ImageAnalysis, error)
}

// IntentGenerator produces the structured audio intent.
type IntentGenerator interface {
	GenerateIntent(ctx context.Context, analysis *intent.ImageAnalysis, color palette.Color, feats squiggle.Features, parent *intent.Intent) (*intent.Intent, error)
}

// Enhancer produces the morph branch's editing prompt.
type Enhancer interface {
	GenerateEnhancement(ctx context.Context, analysis *intent.ImageAnalysis, color palette.Color, feats squiggle.Features) (*intent.Enhancement, error)
}

// Morpher applies the enhancement to the image.
type Morpher interface {
	Morph(ctx context.Context, image []byte, c palette.Color, enh *intent.Enhancement) ([]byte, error)
}

// Synthesizer turns a compiled prompt into an audio file.
type Synthesizer interface {
	Generate(ctx context.Context, id, prompt string, in *intent.Intent) (string, error)
}

// Runner executes generation runs. All collaborator fields are required
// except Trace and Logger.
type Runner struct {
	Store    *store.Store
	Analyzer Analyzer
	Intents  IntentGenerator
	Enhancer Enhancer
	Morpher  Morpher
	Audio    Synthesizer
	Trace    *pipetrace.Writer
	Logger   *slog.Logger

	// Timeout bounds one full run. Default: 5 minutes.
	Timeout time.Duration
}

// Job is the input to one generation run.
type Job struct {
	ID       string
	Image    []byte
	MIMEType string
	Points   []squiggle.Point
	ColorHex string
	Username string
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) runCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return context.WithTimeout(ctx, timeout)
}

// branchResult is what the two post branches hand back at the join.
type audioResult struct {
	object   *intent.Intent
	prompt   string
	filename string
	err      error
}

type morphResult struct {
	enhancement *intent.Enhancement
	image       []byte
	status      string
}

// RunPost executes the full post pipeline and writes the terminal status.
func (r *Runner) RunPost(ctx context.Context, job Job) {
	r.runPostLike(ctx, job, "post", func(ctx context.Context, res store.GenerationResult) error {
		return r.Store.FinishPost(ctx, res, job.Image)
	})
}

// RunRecreate re-executes the pipeline for an existing post. The stored
// original image is left untouched.
func (r *Runner) RunRecreate(ctx context.Context, job Job) {
	r.runPostLike(ctx, job, "recreate", func(ctx context.Context, res store.GenerationResult) error {
		return r.Store.FinishRecreate(ctx, res)
	})
}

func (r *Runner) runPostLike(ctx context.Context, job Job, kind string, finish func(context.Context, store.GenerationResult) error) {
	ctx, cancel := r.runCtx(ctx)
	defer cancel()
	log := r.logger().With("kind", kind, "id", job.ID)

	color, feats, analysis, err := r.analyze(ctx, job)
	if err != nil {
		r.failPost(ctx, job.ID, err, log)
		return
	}

	// The branches only read shared inputs; each writes its own result.
	var (
		wg    sync.WaitGroup
		audio audioResult
		mrph  morphResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		mrph = r.morphBranch(ctx, job, color, feats, analysis, log)
	}()
	go func() {
		defer wg.Done()
		audio = r.audioBranch(ctx, job.ID, color, feats, analysis, nil)
	}()
	wg.Wait()

	if audio.err != nil {
		r.failPost(ctx, job.ID, audio.err, log)
		return
	}

	res, err := buildResult(job.ID, audio, analysis, feats)
	if err != nil {
		r.failPost(ctx, job.ID, err, log)
		return
	}
	res.ImageData = mrph.image
	if mrph.enhancement != nil {
		enh, err := json.Marshal(mrph.enhancement)
		if err != nil {
			r.failPost(ctx, job.ID, err, log)
			return
		}
		res.Enhancement = string(enh)
	}

	if err := finish(ctx, res); err != nil {
		log.Error("terminal write failed", "error", err)
		return
	}

	r.writeTrace(&pipetrace.Trace{
		Kind:           kind,
		ID:             job.ID,
		Username:       job.Username,
		ColorHex:       job.ColorHex,
		Color:          color,
		Analysis:       analysis,
		Features:       feats,
		Object:         audio.object,
		CompiledPrompt: audio.prompt,
		AudioFilename:  audio.filename,
		Enhancement:    mrph.enhancement,
		MorphStatus:    mrph.status,
	}, log)
	log.Info("generation complete", "audio", audio.filename, "morph", mrph.status)
}

// RunComment executes the comment pipeline: sequential, no morph branch,
// musically bound to the parent intent.
func (r *Runner) RunComment(ctx context.Context, job Job, parent *intent.Intent) {
	ctx, cancel := r.runCtx(ctx)
	defer cancel()
	log := r.logger().With("kind", "comment", "id", job.ID)

	color, feats, analysis, err := r.analyze(ctx, job)
	if err != nil {
		r.failComment(ctx, job.ID, err, log)
		return
	}

	audio := r.audioBranch(ctx, job.ID, color, feats, analysis, parent)
	if audio.err != nil {
		r.failComment(ctx, job.ID, audio.err, log)
		return
	}

	res, err := buildResult(job.ID, audio, analysis, feats)
	if err != nil {
		r.failComment(ctx, job.ID, err, log)
		return
	}
	if err := r.Store.FinishComment(ctx, res); err != nil {
		log.Error("terminal write failed", "error", err)
		return
	}

	r.writeTrace(&pipetrace.Trace{
		Kind:           "comment",
		ID:             job.ID,
		Username:       job.Username,
		ColorHex:       job.ColorHex,
		Color:          color,
		Analysis:       analysis,
		Features:       feats,
		Object:         audio.object,
		CompiledPrompt: audio.prompt,
		AudioFilename:  audio.filename,
		Parent:         parent,
	}, log)
	log.Info("generation complete", "audio", audio.filename)
}

// analyze derives the deterministic inputs and runs the vision call.
func (r *Runner) analyze(ctx context.Context, job Job) (palette.Color, squiggle.Features, *intent.ImageAnalysis, error) {
	color, err := palette.Classify(job.ColorHex)
	if err != nil {
		return palette.Color{}, squiggle.Features{}, nil, err
	}
	feats, err := squiggle.Extract(job.Points)
	if err != nil {
		return palette.Color{}, squiggle.Features{}, nil, err
	}
	analysis, err := r.Analyzer.AnalyzeImage(ctx, job.Image, job.MIMEType)
	if err != nil {
		return palette.Color{}, squiggle.Features{}, nil, fmt.Errorf("image analysis: %w", err)
	}
	return color, feats, analysis, nil
}

func (r *Runner) audioBranch(ctx context.Context, id string, color palette.Color, feats squiggle.Features, analysis *intent.ImageAnalysis, parent *intent.Intent) audioResult {
	obj, err := r.Intents.GenerateIntent(ctx, analysis, color, feats, parent)
	if err != nil {
		return audioResult{err: fmt.Errorf("intent generation: %w", err)}
	}
	prompt := promptc.Compile(obj, color, *analysis, feats)
	filename, err := r.Audio.Generate(ctx, id, prompt, obj)
	if err != nil {
		return audioResult{err: fmt.Errorf("audio synthesis: %w", err)}
	}
	return audioResult{object: obj, prompt: prompt, filename: filename}
}

// morphBranch never fails the run: on any error the original image is kept
// and the failure is recorded in the status string.
func (r *Runner) morphBranch(ctx context.Context, job Job, color palette.Color, feats squiggle.Features, analysis *intent.ImageAnalysis, log *slog.Logger) morphResult {
	enh, err := r.Enhancer.GenerateEnhancement(ctx, analysis, color, feats)
	if err != nil {
		log.Warn("enhancement prompt failed, skipping morph", "error", err)
		return morphResult{image: job.Image, status: "failed:enhancement_prompt:" + err.Error()}
	}

	morphed, err := r.Morpher.Morph(ctx, job.Image, color, enh)
	if err != nil {
		log.Warn("image morphing failed, using original image", "error", err)
		return morphResult{enhancement: enh, image: job.Image, status: "failed:morph:" + err.Error()}
	}
	return morphResult{enhancement: enh, image: morphed, status: "success"}
}

func buildResult(id string, audio audioResult, analysis *intent.ImageAnalysis, feats squiggle.Features) (store.GenerationResult, error) {
	obj, err := json.Marshal(audio.object)
	if err != nil {
		return store.GenerationResult{}, err
	}
	an, err := json.Marshal(analysis)
	if err != nil {
		return store.GenerationResult{}, err
	}
	ft, err := json.Marshal(feats)
	if err != nil {
		return store.GenerationResult{}, err
	}
	return store.GenerationResult{
		ID:               id,
		StructuredObject: string(obj),
		ImageAnalysis:    string(an),
		Features:         string(ft),
		CompiledPrompt:   audio.prompt,
		AudioFilename:    audio.filename,
	}, nil
}

func (r *Runner) failPost(ctx context.Context, id string, cause error, log *slog.Logger) {
	log.Error("generation failed", "error", cause)
	if err := r.Store.FailPost(ctx, id, cause.Error()); err != nil {
		log.Error("failed to mark post failed", "error", err)
	}
}

func (r *Runner) failComment(ctx context.Context, id string, cause error, log *slog.Logger) {
	log.Error("generation failed", "error", cause)
	if err := r.Store.FailComment(ctx, id, cause.Error()); err != nil {
		log.Error("failed to mark comment failed", "error", err)
	}
}

func (r *Runner) writeTrace(t *pipetrace.Trace, log *slog.Logger) {
	if r.Trace == nil {
		return
	}
	path, err := r.Trace.Write(t)
	if err != nil {
		log.Warn("failed to write pipeline trace", "error", err)
		return
	}
	if path != "" {
		log.Info("pipeline trace saved", "path", path)
	}
}
