package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"asr-webservice-go/internal/domain/audio"
	platformconfig "asr-webservice-go/internal/platform/config"
)

// localRuntime talks to a whisper.cpp-style inference sidecar over HTTP:
// multipart WAV upload in, verbose JSON out.
type localRuntime struct {
	baseURL string
	model   string
	client  *http.Client
}

func newLocalRuntime(cfg platformconfig.RuntimeConfig, model string) *localRuntime {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &localRuntime{
		baseURL: cfg.BaseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type localSegment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogProb   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
	Words        []struct {
		Word        string  `json:"word"`
		Start       float64 `json:"start"`
		End         float64 `json:"end"`
		Probability float64 `json:"probability"`
	} `json:"words,omitempty"`
}

type localResponse struct {
	Language            string         `json:"language"`
	LanguageProbability float64        `json:"language_probability"`
	Duration            float64        `json:"duration"`
	Segments            []localSegment `json:"segments"`
}

func (r *localRuntime) Decode(ctx context.Context, waveform *audio.Waveform, req DecodeRequest) (*DecodeResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(audio.EncodeWAV(waveform)); err != nil {
		return nil, err
	}

	fields := map[string]string{
		"model":           r.model,
		"task":            req.Task,
		"response_format": "verbose_json",
		"word_timestamps": strconv.FormatBool(req.WordTimestamps),
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if req.InitialPrompt != "" {
		fields["initial_prompt"] = req.InitialPrompt
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/inference", &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference runtime returned %d: %s", resp.StatusCode, payload)
	}

	var parsed localResponse
	if err := sonic.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("parse inference response: %w", err)
	}

	return convertLocal(&parsed), nil
}

func convertLocal(in *localResponse) *DecodeResult {
	out := &DecodeResult{
		Language:           in.Language,
		LanguageConfidence: in.LanguageProbability,
		Duration:           in.Duration,
		Segments:           make([]DecodedSegment, 0, len(in.Segments)),
	}
	for _, s := range in.Segments {
		seg := DecodedSegment{
			Start:        s.Start,
			End:          s.End,
			Text:         s.Text,
			AvgLogProb:   s.AvgLogProb,
			NoSpeechProb: s.NoSpeechProb,
		}
		for _, w := range s.Words {
			seg.Words = append(seg.Words, DecodedWord(w))
		}
		out.Segments = append(out.Segments, seg)
	}
	return out
}
