// Package asr is the HTTP transport for the transcription service. Handlers
// are thin adapters: parse the request, hand the waveform to the one engine
// constructed at startup, stream the rendered output back.
package asr

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"asr-webservice-go/internal/domain/audio"
	"asr-webservice-go/internal/domain/engine"
	"asr-webservice-go/internal/domain/eventbus"
	"asr-webservice-go/internal/domain/format"
	"asr-webservice-go/internal/domain/language"
	platformconfig "asr-webservice-go/internal/platform/config"
	platformerrors "asr-webservice-go/internal/platform/errors"
	"asr-webservice-go/internal/platform/logging"
	httptransport "asr-webservice-go/internal/transport/http"
)

// MaxUploadSize caps the multipart form memory footprint.
const MaxUploadSize = 100 * 1024 * 1024

// Service wires the transcription endpoints onto the router.
type Service struct {
	config  *platformconfig.Config
	logger  *logging.Logger
	engine  engine.Engine
	decoder *audio.Decoder
}

// NewService creates the transcription transport service.
func NewService(config *platformconfig.Config, logger *logging.Logger, eng engine.Engine) (*Service, error) {
	if config == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "asr.new", "config is required")
	}
	if logger == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "asr.new", "logger is required")
	}
	if eng == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "asr.new", "engine is required")
	}

	return &Service{
		config:  config,
		logger:  logger,
		engine:  eng,
		decoder: audio.NewDecoder(config.ASR.SampleRate),
	}, nil
}

// Register mounts the transcription routes.
func (s *Service) Register(ctx context.Context, router gin.IRouter) error {
	router.GET("/", s.handleIndex)
	router.POST("/asr", s.handleASR)
	router.POST("/audio/transcriptions", s.handleTranscriptions)
	router.POST("/detect-language", s.handleDetectLanguage)
	router.GET("/status", s.handleStatus)

	s.logger.InfoTag("HTTP", "transcription routes registered")
	return nil
}

// handleIndex redirects to the interactive API documentation.
func (s *Service) handleIndex(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, "/docs")
}

// transcribeParams is the engine-agnostic request shape shared by /asr and
// the OpenAI-compatible endpoint.
type transcribeParams struct {
	fileField string
	filename  string
	data      []byte
	encode    bool
	opts      engine.Options
	output    format.Format
}

// handleASR transcribes or translates an uploaded file.
// @Summary Transcribe audio
// @Description Upload audio and receive the transcript in the requested output format
// @Tags Endpoints
// @Accept multipart/form-data
// @Produce plain
// @Param audio_file formData file true "audio file"
// @Param encode query bool false "decode and resample the upload first"
// @Param task query string false "transcribe or translate"
// @Param language query string false "ISO-639-1 language code, empty for auto-detect"
// @Param initial_prompt query string false "decoding prompt"
// @Param output query string false "txt, vtt, srt, tsv or json"
// @Success 200 {string} string "rendered transcript"
// @Failure 400 {object} httptransport.APIResponse
// @Router /asr [post]
func (s *Service) handleASR(c *gin.Context) {
	params := transcribeParams{fileField: "audio_file"}
	params.encode = boolQuery(c, "encode", true)

	minSpeakers, err := intQuery(c, "min_speakers")
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	maxSpeakers, err := intQuery(c, "max_speakers")
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}

	params.opts = engine.Options{
		Task:           engine.Task(c.DefaultQuery("task", string(engine.TaskTranscribe))),
		Language:       c.Query("language"),
		InitialPrompt:  c.Query("initial_prompt"),
		VADFilter:      boolQuery(c, "vad_filter", false),
		WordTimestamps: boolQuery(c, "word_timestamps", false),
		Diarization: engine.DiarizationOptions{
			Enabled:     boolQuery(c, "diarize", false),
			MinSpeakers: minSpeakers,
			MaxSpeakers: maxSpeakers,
		},
	}

	output, err := format.Parse(c.DefaultQuery("output", "txt"))
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	params.output = output

	s.transcribe(c, params)
}

// handleTranscriptions is the OpenAI-compatible surface: form-encoded fields,
// task fixed to transcribe, output defaulting to json. The model field is
// accepted for client compatibility and ignored; the served model is fixed at
// startup.
// @Summary Transcribe audio (OpenAI-compatible)
// @Description Drop-in endpoint for OpenAI audio transcription clients
// @Tags Endpoints
// @Accept multipart/form-data
// @Produce plain
// @Param file formData file true "audio file"
// @Param prompt formData string false "decoding prompt"
// @Param response_format formData string false "txt, vtt, srt, tsv or json"
// @Success 200 {string} string "rendered transcript"
// @Failure 400 {object} httptransport.APIResponse
// @Router /audio/transcriptions [post]
func (s *Service) handleTranscriptions(c *gin.Context) {
	params := transcribeParams{fileField: "file"}
	params.encode = boolForm(c, "encode", true)

	minSpeakers, err := intForm(c, "min_speakers")
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	maxSpeakers, err := intForm(c, "max_speakers")
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}

	params.opts = engine.Options{
		Task:           engine.TaskTranscribe,
		Language:       c.PostForm("language"),
		InitialPrompt:  c.PostForm("prompt"),
		VADFilter:      boolForm(c, "vad_filter", false),
		WordTimestamps: boolForm(c, "word_timestamps", false),
		Diarization: engine.DiarizationOptions{
			Enabled:     boolForm(c, "diarize", false),
			MinSpeakers: minSpeakers,
			MaxSpeakers: maxSpeakers,
		},
	}

	output, err := format.Parse(c.DefaultPostForm("response_format", "json"))
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	params.output = output

	s.transcribe(c, params)
}

// transcribe runs the shared upload -> waveform -> engine -> renderer pipeline.
func (s *Service) transcribe(c *gin.Context, params transcribeParams) {
	requestID := c.GetString("request_id")
	engineName := s.engine.Capabilities().Name

	// Contradictory options are rejected before any decoding or inference.
	if err := params.opts.Validate(); err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}

	data, filename, err := readUpload(c, params.fileField)
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	params.data = data
	params.filename = filename

	waveform, err := s.decoder.Decode(params.data, params.encode)
	if err != nil {
		s.logger.WarnTag("ASR", "rejected upload %q: %v", params.filename, err)
		httptransport.RespondDomainError(c, err)
		return
	}

	eventbus.PublishAsync(eventbus.EventTranscribeStarted, eventbus.TranscriptionEventData{
		RequestID:    requestID,
		Engine:       engineName,
		Task:         string(params.opts.Task),
		OutputFormat: string(params.output),
		DurationSec:  waveform.Duration(),
	})

	stream, err := s.engine.Transcribe(c.Request.Context(), waveform, params.opts)
	if err != nil {
		s.failTranscription(c, requestID, engineName, params, err)
		return
	}

	header := c.Writer.Header()
	header.Set("Asr-Engine", engineName)
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("Content-Disposition",
		`attachment; filename="`+url.PathEscape(params.filename)+`.`+string(params.output)+`"`)

	w := &clientWriter{ctx: c.Request.Context(), w: c.Writer}
	if err := format.Render(w, stream, params.output); err != nil {
		if w.written == 0 {
			// Nothing sent yet, a structured error response is still possible.
			header.Del("Content-Disposition")
			header.Del("Content-Type")
			s.failTranscription(c, requestID, engineName, params, err)
			return
		}
		// Mid-stream failure: sever the connection rather than dress a broken
		// body up as success. net/http skips the terminal chunk for
		// ErrAbortHandler, so the client sees a truncated stream, not a clean
		// 200.
		s.logger.ErrorTag("ASR", "transcription stream aborted after %d bytes: %v", w.written, err)
		s.publishFailure(requestID, engineName, params, err)
		panic(http.ErrAbortHandler)
	}

	eventbus.PublishAsync(eventbus.EventTranscribeCompleted, eventbus.TranscriptionEventData{
		RequestID:    requestID,
		Engine:       engineName,
		Task:         string(params.opts.Task),
		OutputFormat: string(params.output),
		DurationSec:  waveform.Duration(),
	})
	s.logger.InfoASR("%s %.1fs -> %s (%d bytes)", engineName, waveform.Duration(), params.output, w.written)
}

func (s *Service) failTranscription(c *gin.Context, requestID, engineName string, params transcribeParams, err error) {
	s.logger.WarnTag("ASR", "transcription failed: %v", err)
	s.publishFailure(requestID, engineName, params, err)
	httptransport.RespondDomainError(c, err)
}

func (s *Service) publishFailure(requestID, engineName string, params transcribeParams, err error) {
	eventbus.PublishAsync(eventbus.EventTranscribeFailed, eventbus.TranscriptionEventData{
		RequestID:    requestID,
		Engine:       engineName,
		Task:         string(params.opts.Task),
		OutputFormat: string(params.output),
		Error:        err.Error(),
	})
}

// handleDetectLanguage probes the upload for its spoken language.
// @Summary Detect spoken language
// @Description Returns the most likely language of the upload with a confidence score
// @Tags Endpoints
// @Accept multipart/form-data
// @Produce json
// @Param audio_file formData file true "audio file"
// @Param encode query bool false "decode and resample the upload first"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} httptransport.APIResponse
// @Router /detect-language [post]
func (s *Service) handleDetectLanguage(c *gin.Context) {
	requestID := c.GetString("request_id")
	engineName := s.engine.Capabilities().Name
	encode := boolQuery(c, "encode", true)

	data, _, err := readUpload(c, "audio_file")
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}

	waveform, err := s.decoder.Decode(data, encode)
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}

	detection, err := s.engine.DetectLanguage(c.Request.Context(), waveform)
	if err != nil {
		s.logger.WarnTag("ASR", "language detection failed: %v", err)
		eventbus.PublishAsync(eventbus.EventLanguageFailed, eventbus.LanguageEventData{
			RequestID: requestID,
			Engine:    engineName,
			Error:     err.Error(),
		})
		httptransport.RespondDomainError(c, err)
		return
	}

	name, ok := language.Name(detection.LanguageCode)
	if !ok {
		name = detection.LanguageCode
	}

	eventbus.PublishAsync(eventbus.EventLanguageDetected, eventbus.LanguageEventData{
		RequestID:  requestID,
		Engine:     engineName,
		Language:   detection.LanguageCode,
		Confidence: detection.Confidence,
	})

	c.JSON(http.StatusOK, gin.H{
		"detected_language": name,
		"language_code":     detection.LanguageCode,
		"confidence":        detection.Confidence,
	})
}

// handleStatus reports process health and the active engine.
// @Summary Service status
// @Tags Endpoints
// @Produce json
// @Success 200 {object} httptransport.APIResponse
// @Router /status [get]
func (s *Service) handleStatus(c *gin.Context) {
	caps := s.engine.Capabilities()

	status := gin.H{
		"engine": caps.Name,
		"model":  s.config.ASR.Model,
		"capabilities": gin.H{
			"vad_filter":         caps.VADFilter,
			"word_timestamps":    caps.WordTimestamps,
			"diarization":        caps.Diarization,
			"language_detection": caps.LanguageDetection,
		},
		"output_formats": format.All(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory_percent"] = vm.UsedPercent
	}
	if uptime, err := host.Uptime(); err == nil {
		status["host_uptime_sec"] = uptime
	}

	httptransport.RespondSuccess(c, http.StatusOK, status, "")
}

// readUpload pulls the audio file out of the multipart form. Missing or empty
// uploads are client errors, never empty-success.
func readUpload(c *gin.Context, field string) ([]byte, string, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, "", platformerrors.Wrap(platformerrors.KindInvalidAudio, "asr:read-upload", field+" field is required", err)
	}
	if fileHeader.Size > MaxUploadSize {
		return nil, "", platformerrors.New(platformerrors.KindInvalidAudio, "asr:read-upload", "upload exceeds the size limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", platformerrors.Wrap(platformerrors.KindInvalidAudio, "asr:read-upload", "failed to open upload", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", platformerrors.Wrap(platformerrors.KindInvalidAudio, "asr:read-upload", "failed to read upload", err)
	}
	if len(data) == 0 {
		return nil, "", platformerrors.New(platformerrors.KindInvalidAudio, "asr:read-upload", "empty audio upload")
	}
	return data, fileHeader.Filename, nil
}

// clientWriter streams rendered output to the client and turns writes after a
// disconnect into no-ops instead of errors.
type clientWriter struct {
	ctx     context.Context
	w       gin.ResponseWriter
	written int64
	gone    bool
}

func (cw *clientWriter) Write(p []byte) (int, error) {
	if cw.gone || cw.ctx.Err() != nil {
		cw.gone = true
		return len(p), nil
	}
	n, err := cw.w.Write(p)
	cw.written += int64(n)
	if err != nil {
		cw.gone = true
		return len(p), nil
	}
	// Push each rendered piece to the client as it is produced.
	cw.w.Flush()
	return n, nil
}

func boolQuery(c *gin.Context, name string, def bool) bool {
	return parseBool(c.Query(name), def)
}

func boolForm(c *gin.Context, name string, def bool) bool {
	return parseBool(c.PostForm(name), def)
}

func parseBool(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return def
	}
	return v
}

func intQuery(c *gin.Context, name string) (*int, error) {
	return parseIntPtr(name, c.Query(name))
}

func intForm(c *gin.Context, name string) (*int, error) {
	return parseIntPtr(name, c.PostForm(name))
}

func parseIntPtr(name, raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, platformerrors.New(platformerrors.KindInvalidOption, "asr:parse-options", name+" must be an integer")
	}
	return &v, nil
}
