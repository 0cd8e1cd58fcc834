// Package pipeline runs an episode through extraction, indexing, script
// generation, speech synthesis, mixing and cover art. Extraction, script
// generation and the resource guard are load-bearing; everything else
// degrades into a missing artifact plus a status message.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
	"github.com/podforge/podforge/internal/audio"
	"github.com/podforge/podforge/internal/fault"
	"github.com/podforge/podforge/internal/models"
	"github.com/podforge/podforge/internal/script"
	"github.com/podforge/podforge/internal/tts"
)

type EpisodeStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Episode, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.EpisodeStatus, progress int, message, errMsg string) error
	SaveScript(ctx context.Context, id uuid.UUID, script string, wordCount int) error
	SetTranscript(ctx context.Context, id uuid.UUID, transcript string) error
	SetAudio(ctx context.Context, id uuid.UUID, url string, durationSeconds float64) error
	SetCover(ctx context.Context, id uuid.UUID, url string) error
}

// ProgressSink receives live job progress for polling clients.
type ProgressSink interface {
	Update(ctx context.Context, jobID, status string, progress int, message, errMsg string) error
}

type Extractor interface {
	Extract(ctx context.Context, ep *models.Episode) (string, error)
}

type Indexer interface {
	Index(ctx context.Context, episodeID uuid.UUID, text string) (int, error)
	Context(ctx context.Context, episodeID uuid.UUID, query, rawContent string) string
}

type ScriptGenerator interface {
	Generate(ctx context.Context, ep *models.Episode, contextText string, targetMinutes int) (*script.Result, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, dir string, segments []models.DialogueSegment, personas []models.Persona, language string, progress func(done, total int)) ([]tts.SegmentAudio, error)
}

type Mixer interface {
	Mix(ctx context.Context, segmentPaths []string, outputPath string) (*audio.MixResult, error)
}

type CoverGenerator interface {
	Generate(ctx context.Context, title, description, style, outputPath string) error
}

type ResourceGuard interface {
	CheckStart() error
	CheckBeforeScript() error
}

type Uploader interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) error
	GetPublicURL(path string) string
}

// Result reports the artifacts a finished run produced. Nil URL fields mean
// the corresponding stage degraded.
type Result struct {
	EpisodeID       uuid.UUID
	AudioURL        *string
	CoverURL        *string
	DurationSeconds float64
	WordCount       int
}

type Orchestrator struct {
	store       EpisodeStore
	progress    ProgressSink
	extractor   Extractor
	indexer     Indexer
	scripter    ScriptGenerator
	synthesizer SpeechSynthesizer
	mixer       Mixer
	cover       CoverGenerator
	guard       ResourceGuard
	uploader    Uploader

	outputDir     string
	targetMinutes int
	logger        *slog.Logger
}

type Deps struct {
	Store       EpisodeStore
	Progress    ProgressSink
	Extractor   Extractor
	Indexer     Indexer
	Scripter    ScriptGenerator
	Synthesizer SpeechSynthesizer
	Mixer       Mixer
	Cover       CoverGenerator
	Guard       ResourceGuard
	Uploader    Uploader

	OutputDir     string
	TargetMinutes int
	Logger        *slog.Logger
}

func New(d Deps) *Orchestrator {
	return &Orchestrator{
		store:         d.Store,
		progress:      d.Progress,
		extractor:     d.Extractor,
		indexer:       d.Indexer,
		scripter:      d.Scripter,
		synthesizer:   d.Synthesizer,
		mixer:         d.Mixer,
		cover:         d.Cover,
		guard:         d.Guard,
		uploader:      d.Uploader,
		outputDir:     d.OutputDir,
		targetMinutes: d.TargetMinutes,
		logger:        d.Logger,
	}
}

// Run executes the full pipeline for one episode. Fatal failures mark the
// episode FAILED with progress reset to zero; degradable failures leave the
// artifact missing and the run finishes COMPLETED.
func (o *Orchestrator) Run(ctx context.Context, episodeID uuid.UUID, jobID string, generateCover bool) (*Result, error) {
	if err := o.guard.CheckStart(); err != nil {
		return nil, err
	}

	ep, err := o.store.GetByID(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("load episode %s: %w", episodeID, err)
	}

	log := o.logger.With("episode_id", episodeID, "job_id", jobID)

	// Pending, failed and abandoned-processing episodes are fair game for a
	// (re)run; completed and cancelled ones are final.
	if ep.Status == models.StatusCompleted || ep.Status == models.StatusCancelled {
		log.Info("episode already finalized, skipping", "status", ep.Status)
		return &Result{
			EpisodeID:       ep.ID,
			AudioURL:        ep.AudioURL,
			CoverURL:        ep.CoverURL,
			DurationSeconds: ep.DurationSeconds,
			WordCount:       ep.WordCount,
		}, nil
	}

	log.Info("starting episode pipeline", "title", ep.Title, "source_type", ep.SourceType)

	workDir := filepath.Join(o.outputDir, episodeID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	segmentsDir := filepath.Join(workDir, "segments")
	defer func() {
		// Final audio and cover stay; intermediate segments always go.
		if err := os.RemoveAll(segmentsDir); err != nil {
			log.Warn("segments cleanup failed", "error", err)
		}
		runtime.GC()
		debug.FreeOSMemory()
	}()

	result, err := o.run(ctx, log, ep, jobID, workDir, segmentsDir, generateCover)
	if err != nil {
		log.Error("pipeline failed", "error", err, "kind", fault.KindOf(err))
		// Progress resets to zero on failure. Durable artifacts written so
		// far (script, chunks) are kept for inspection and retry.
		o.report(ctx, log, ep.ID, jobID, models.StatusFailed, 0, "Processing failed", err.Error())
		return nil, err
	}

	log.Info("pipeline complete",
		"audio", result.AudioURL != nil,
		"cover", result.CoverURL != nil,
		"duration_seconds", result.DurationSeconds)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, ep *models.Episode, jobID, workDir, segmentsDir string, generateCover bool) (*Result, error) {
	o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 0, "Starting processing pipeline", "")

	// Extraction: fatal.
	o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 5, "Extracting content", "")
	content, err := o.extractor.Extract(ctx, ep)
	if err != nil {
		return nil, err
	}
	log.Info("content extracted", "chars", len(content))
	o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 10, "Content extracted", "")

	// Indexing: degradable, the script falls back to raw content windows.
	o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 15, "Creating embeddings", "")
	indexMsg := "Embeddings stored"
	if n, err := o.indexer.Index(ctx, ep.ID, content); err != nil {
		if fault.IsFatal(err) {
			return nil, err
		}
		log.Warn("indexing failed, continuing with raw content", "error", err)
		indexMsg = "Indexing skipped"
	} else {
		log.Info("content indexed", "chunks", n)
	}
	o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 30, indexMsg, "")

	// Script: fatal, gated by the looser memory check.
	o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 35, "Generating script", "")
	if err := o.guard.CheckBeforeScript(); err != nil {
		return nil, err
	}

	contextText := o.indexer.Context(ctx, ep.ID, ep.Title, content)
	content = "" // release the raw text before the LLM call

	scriptResult, err := o.scripter.Generate(ctx, ep, contextText, o.targetMinutes)
	if err != nil {
		return nil, err
	}
	if err := o.store.SaveScript(ctx, ep.ID, scriptResult.Script, scriptResult.WordCount); err != nil {
		return nil, fmt.Errorf("persist script: %w", err)
	}
	o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 50, "Script ready", "")

	result := &Result{EpisodeID: ep.ID, WordCount: scriptResult.WordCount}

	// Speech and mixing: degradable as a block. The script alone is still
	// a deliverable episode.
	if err := o.produceAudio(ctx, log, ep, jobID, workDir, segmentsDir, scriptResult.Segments, result); err != nil {
		if fault.IsFatal(err) {
			return nil, err
		}
		log.Warn("audio generation failed, continuing without audio", "error", err)
		o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 90, "Script ready (audio unavailable)", "")
	} else {
		o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 90, "Audio mixing complete", "")
	}

	// The transcript is the script; no separate rendering pass.
	if err := o.store.SetTranscript(ctx, ep.ID, scriptResult.Script); err != nil {
		log.Warn("transcript write failed", "error", err)
	}

	if generateCover {
		o.produceCover(ctx, log, ep, jobID, workDir, result)
	}

	o.report(ctx, log, ep.ID, jobID, models.StatusCompleted, 100, "Episode generated successfully", "")
	return result, nil
}

func (o *Orchestrator) produceAudio(ctx context.Context, log *slog.Logger, ep *models.Episode, jobID, workDir, segmentsDir string, segments []models.DialogueSegment, result *Result) error {
	if len(segments) == 0 {
		return fault.Degradablef(fault.KindSpeech, "no script segments to voice")
	}

	o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 55, "Generating audio", "")
	log.Info("synthesizing speech", "segments", len(segments))

	segAudio, err := o.synthesizer.Synthesize(ctx, segmentsDir, segments, ep.Personas, ep.Language,
		func(done, total int) {
			pct := 55 + done*20/total
			o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, pct,
				fmt.Sprintf("Synthesizing speech (%d/%d)", done, total), "")
		})
	if err != nil {
		return err
	}
	o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 75, "Speech synthesis complete", "")

	o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 80, "Mixing audio", "")
	paths := make([]string, 0, len(segAudio))
	for _, sa := range segAudio {
		if sa.Path != "" {
			paths = append(paths, sa.Path)
		}
	}

	mixResult, err := o.mixer.Mix(ctx, paths, filepath.Join(workDir, "podcast.mp3"))
	if err != nil {
		return err
	}

	// The mixer falls back to WAV without ffmpeg, so the remote name and
	// content type follow the file it actually produced.
	name := "audio" + filepath.Ext(mixResult.Path)
	contentType := "audio/mpeg"
	if strings.EqualFold(filepath.Ext(mixResult.Path), ".wav") {
		contentType = "audio/wav"
	}
	audioURL := o.uploadArtifact(ctx, log, ep.ID, mixResult.Path, name, contentType,
		fmt.Sprintf("/api/v1/export/%s/audio", ep.ID))
	if err := o.store.SetAudio(ctx, ep.ID, audioURL, mixResult.DurationSeconds); err != nil {
		log.Warn("audio url write failed", "error", err)
	}

	result.AudioURL = &audioURL
	result.DurationSeconds = mixResult.DurationSeconds
	return nil
}

func (o *Orchestrator) produceCover(ctx context.Context, log *slog.Logger, ep *models.Episode, jobID, workDir string, result *Result) {
	o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 92, "Creating cover", "")

	coverPath := filepath.Join(workDir, "cover.png")
	if err := o.cover.Generate(ctx, ep.Title, ep.Description, "modern", coverPath); err != nil {
		log.Warn("cover generation failed, continuing without cover", "error", err)
		o.report(ctx, log, ep.ID, jobID, models.StatusProcessing, 95, "Cover generation skipped", "")
		return
	}

	coverURL := o.uploadArtifact(ctx, log, ep.ID, coverPath, "cover.png", "image/png",
		fmt.Sprintf("/api/v1/export/%s/cover", ep.ID))
	if err := o.store.SetCover(ctx, ep.ID, coverURL); err != nil {
		log.Warn("cover url write failed", "error", err)
	}
	result.CoverURL = &coverURL
}

// uploadArtifact pushes a local file to storage and returns its public URL.
// Upload failures fall back to the worker-served export URL so the artifact
// is still reachable.
func (o *Orchestrator) uploadArtifact(ctx context.Context, log *slog.Logger, episodeID uuid.UUID, localPath, name, contentType, fallbackURL string) string {
	remotePath := fmt.Sprintf("episodes/%s/%s", episodeID, name)

	f, err := os.Open(localPath)
	if err != nil {
		log.Warn("artifact open failed, serving locally", "path", localPath, "error", err)
		return fallbackURL
	}
	defer f.Close()

	if err := o.uploader.Upload(ctx, remotePath, f, contentType); err != nil {
		log.Warn("artifact upload failed, serving locally", "path", remotePath, "error", err)
		return fallbackURL
	}
	return o.uploader.GetPublicURL(remotePath)
}

// report writes status to both the episode row and the live progress sink.
// Both writes are best-effort: a dropped status update must never abort a
// run that is otherwise producing artifacts.
func (o *Orchestrator) report(ctx context.Context, log *slog.Logger, episodeID uuid.UUID, jobID string, status models.EpisodeStatus, progress int, message, errMsg string) {
	if err := o.store.SetStatus(ctx, episodeID, status, progress, message, errMsg); err != nil {
		log.Warn("episode status write failed", "progress", progress, "error", err)
	}
	if o.progress != nil && jobID != "" {
		if err := o.progress.Update(ctx, jobID, string(status), progress, message, errMsg); err != nil {
			log.Warn("job progress write failed", "progress", progress, "error", err)
		}
	}
}
