package asr

import (
	"github.com/bytedance/sonic"
	"github.com/swaggo/swag"

	"asr-webservice-go/internal/domain/engine"
	"asr-webservice-go/internal/domain/format"
	"asr-webservice-go/internal/domain/language"
)

// apiDoc satisfies swag's registry so /openapi.json can serve the document
// built at startup.
type apiDoc struct {
	doc string
}

func (d *apiDoc) ReadDoc() string { return d.doc }

// RegisterDocs builds the OpenAPI document for the active engine and makes it
// available through swag. Optional parameters are only documented when the
// engine advertises the matching capability; diarization additionally requires
// a configured credential. Every parameter is still accepted server-side.
func RegisterDocs(caps engine.Capabilities, diarizationConfigured bool) error {
	doc, err := buildDoc(caps, diarizationConfigured)
	if err != nil {
		return err
	}
	swag.Register(swag.Name, &apiDoc{doc: doc})
	return nil
}

func buildDoc(caps engine.Capabilities, diarizationConfigured bool) (string, error) {
	formats := make([]string, 0, len(format.All()))
	for _, f := range format.All() {
		formats = append(formats, string(f))
	}

	asrParams := []map[string]interface{}{
		fileParam("audio_file"),
		queryParam("encode", "boolean", "decode and resample the upload before transcription"),
		enumQueryParam("task", "transcription task", []string{"transcribe", "translate"}),
		enumQueryParam("language", "ISO-639-1 language code, omit for auto-detect", language.Codes()),
		queryParam("initial_prompt", "string", "optional decoding prompt"),
	}
	transcriptionParams := []map[string]interface{}{
		fileParam("file"),
		formParam("encode", "boolean", "decode and resample the upload before transcription"),
		enumFormParam("language", "ISO-639-1 language code, omit for auto-detect", language.Codes()),
		formParam("prompt", "string", "optional decoding prompt"),
		formParam("model", "string", "accepted for OpenAI client compatibility, ignored"),
	}

	if caps.VADFilter {
		asrParams = append(asrParams,
			queryParam("vad_filter", "boolean", "filter out non-speech audio before decoding"))
		transcriptionParams = append(transcriptionParams,
			formParam("vad_filter", "boolean", "filter out non-speech audio before decoding"))
	}
	if caps.WordTimestamps {
		asrParams = append(asrParams,
			queryParam("word_timestamps", "boolean", "word level timestamps"))
		transcriptionParams = append(transcriptionParams,
			formParam("word_timestamps", "boolean", "word level timestamps"))
	}
	if caps.Diarization && diarizationConfigured {
		asrParams = append(asrParams,
			queryParam("diarize", "boolean", "assign speaker labels to segments"),
			queryParam("min_speakers", "integer", "minimum speakers in this file"),
			queryParam("max_speakers", "integer", "maximum speakers in this file"))
		transcriptionParams = append(transcriptionParams,
			formParam("diarize", "boolean", "assign speaker labels to segments"),
			formParam("min_speakers", "integer", "minimum speakers in this file"),
			formParam("max_speakers", "integer", "maximum speakers in this file"))
	}

	asrParams = append(asrParams, enumQueryParam("output", "output format", formats))
	transcriptionParams = append(transcriptionParams,
		enumFormParam("response_format", "output format", formats))

	doc := map[string]interface{}{
		"swagger": "2.0",
		"info": map[string]interface{}{
			"title":       "ASR Webservice",
			"description": "Speech recognition over HTTP, served by the " + caps.Name + " engine",
			"version":     "1.0",
		},
		"basePath": "/",
		"paths": map[string]interface{}{
			"/asr": map[string]interface{}{
				"post": operation("Transcribe audio", "Endpoints", asrParams, "text/plain"),
			},
			"/audio/transcriptions": map[string]interface{}{
				"post": operation("Transcribe audio (OpenAI-compatible)", "Endpoints", transcriptionParams, "text/plain"),
			},
			"/detect-language": map[string]interface{}{
				"post": operation("Detect spoken language", "Endpoints", []map[string]interface{}{
					fileParam("audio_file"),
					queryParam("encode", "boolean", "decode and resample the upload before detection"),
				}, "application/json"),
			},
			"/status": map[string]interface{}{
				"get": operation("Service status", "Endpoints", nil, "application/json"),
			},
		},
	}

	payload, err := sonic.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func operation(summary, tag string, params []map[string]interface{}, produces string) map[string]interface{} {
	op := map[string]interface{}{
		"summary":  summary,
		"tags":     []string{tag},
		"produces": []string{produces},
		"responses": map[string]interface{}{
			"200": map[string]interface{}{"description": "OK"},
			"400": map[string]interface{}{"description": "invalid audio or options"},
		},
	}
	if len(params) > 0 {
		op["consumes"] = []string{"multipart/form-data"}
		op["parameters"] = params
	}
	return op
}

func fileParam(name string) map[string]interface{} {
	return map[string]interface{}{
		"name":     name,
		"in":       "formData",
		"type":     "file",
		"required": true,
	}
}

func queryParam(name, typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"type":        typ,
		"description": description,
	}
}

func enumQueryParam(name, description string, values []string) map[string]interface{} {
	p := queryParam(name, "string", description)
	p["enum"] = values
	return p
}

func formParam(name, typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "formData",
		"type":        typ,
		"description": description,
	}
}

func enumFormParam(name, description string, values []string) map[string]interface{} {
	p := formParam(name, "string", description)
	p["enum"] = values
	return p
}
