package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/notejson/internal/api"
	"github.com/jackzampolin/notejson/internal/asset"
	"github.com/jackzampolin/notejson/internal/pipeline"
	"github.com/jackzampolin/notejson/internal/providers"
	"github.com/jackzampolin/notejson/internal/reconcile"
	"github.com/jackzampolin/notejson/internal/svcctx"
)

// MaxUploadSize bounds one uploaded note image.
const MaxUploadSize = 32 << 20

// UploadField is the multipart field carrying the image.
const UploadField = "file"

// uploadTypes maps accepted file extensions to their MIME type.
var uploadTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// MIMEForFilename returns the MIME type for an accepted upload, or an error
// naming the accepted extensions.
func MIMEForFilename(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	mime, ok := uploadTypes[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file type %q: expected jpg, jpeg, or png", ext)
	}
	return mime, nil
}

// OutcomeResponse is the rendered reconciliation outcome.
type OutcomeResponse struct {
	Kind   string `json:"kind" yaml:"kind"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
	Text   string `json:"text,omitempty" yaml:"text,omitempty"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// MarshalYAML renders parsed numbers as YAML numbers rather than strings.
func (o OutcomeResponse) MarshalYAML() (any, error) {
	type plain OutcomeResponse
	p := plain(o)
	p.Value = reconcile.Native(o.Value)
	return p, nil
}

// ConvertResponse is returned by POST /api/convert and printed by the convert commands.
type ConvertResponse struct {
	RunID      string           `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Filename   string           `json:"filename,omitempty" yaml:"filename,omitempty"`
	OCRText    string           `json:"ocr_text" yaml:"ocr_text"`
	OCRStatus  string           `json:"ocr_status,omitempty" yaml:"ocr_status,omitempty"`
	OCREngine  string           `json:"ocr_engine,omitempty" yaml:"ocr_engine,omitempty"`
	OCRError   string           `json:"ocr_error,omitempty" yaml:"ocr_error,omitempty"`
	OCRConf    float64          `json:"ocr_confidence,omitempty" yaml:"ocr_confidence,omitempty"`
	Label      string           `json:"label,omitempty" yaml:"label,omitempty"`
	Outcome    *OutcomeResponse `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Model      string           `json:"model,omitempty" yaml:"model,omitempty"`
	Provider   string           `json:"provider,omitempty" yaml:"provider,omitempty"`
	Usage      *pipeline.Usage  `json:"usage,omitempty" yaml:"usage,omitempty"`
	DurationMS int64            `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	Stage      string           `json:"stage,omitempty" yaml:"stage,omitempty"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewConvertResponse renders a finished run.
func NewConvertResponse(res *pipeline.Result) ConvertResponse {
	resp := ConvertResponse{
		RunID:      res.RunID,
		Filename:   res.Filename,
		OCRText:    res.OCR.Text,
		OCRStatus:  res.OCR.Status(),
		OCREngine:  res.OCR.Engine,
		OCRConf:    res.OCR.Confidence,
		Model:      res.Model,
		Provider:   res.Provider,
		Usage:      &res.Usage,
		DurationMS: res.Timings.Total.Milliseconds(),
	}
	if res.OCR.Err != nil {
		resp.OCRError = res.OCR.Err.Error()
	}

	switch o := res.Outcome.(type) {
	case reconcile.Structured:
		resp.Label = o.Label()
		resp.Outcome = &OutcomeResponse{Kind: o.Kind(), Value: o.Value}
	case reconcile.Fallback:
		resp.Label = o.Label()
		resp.Outcome = &OutcomeResponse{Kind: o.Kind(), Text: o.Text, Reason: o.Reason}
	}
	return resp
}

// NewConvertErrorResponse renders a failed run. Typed stage errors keep
// their own message so transport failures read verbatim.
func NewConvertErrorResponse(err error) ConvertResponse {
	resp := ConvertResponse{Error: err.Error()}
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		resp.Stage = stageErr.Stage
		resp.Error = stageErr.Err.Error()
	}
	return resp
}

// StatusForError maps a pipeline error to an HTTP status.
func StatusForError(err error) int {
	var decodeErr *asset.DecodeError
	var transportErr *providers.TransportError
	var envelopeErr *providers.EnvelopeError
	switch {
	case errors.As(err, &decodeErr):
		return http.StatusBadRequest
	case errors.As(err, &transportErr), errors.As(err, &envelopeErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// String renders the response for a terminal.
func (r ConvertResponse) String() string {
	if r.Error != "" {
		return "Error: " + r.Error
	}
	if r.Outcome == nil {
		return ""
	}

	var body string
	switch r.Outcome.Kind {
	case reconcile.KindStructured:
		indented, err := reconcile.Indent(reconcile.Structured{Value: r.Outcome.Value})
		if err != nil {
			indented = fmt.Sprint(r.Outcome.Value)
		}
		body = indented
	default:
		body = r.Outcome.Text
	}
	return r.Label + "\n" + body
}

// ConvertEndpoint handles POST /api/convert.
type ConvertEndpoint struct{}

var _ api.Endpoint = (*ConvertEndpoint)(nil)

func (e *ConvertEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/convert", e.handler
}

func (e *ConvertEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Convert a handwritten note to JSON
//	@Description	Runs OCR and the vision model over one image and reconciles the reply
//	@Tags			convert
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"Note image (jpg, jpeg, png)"
//	@Success		200		{object}	ConvertResponse
//	@Failure		400		{object}	ConvertResponse
//	@Failure		502		{object}	ConvertResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/convert [post]
func (e *ConvertEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	mime, err := MIMEForFilename(header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	registry := svcctx.RegistryFrom(r.Context())
	cfg := svcctx.ConfigFrom(r.Context())
	if registry == nil || cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "providers not initialized")
		return
	}

	p, err := pipeline.FromConfig(registry, cfg, svcctx.LoggerFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	// A run is not cancellable once started.
	ctx := context.WithoutCancel(r.Context())
	res, err := p.Run(ctx, pipeline.Input{Data: file, MIME: mime, Filename: header.Filename})
	if err != nil {
		writeJSON(w, StatusForError(err), NewConvertErrorResponse(err))
		return
	}

	writeJSON(w, http.StatusOK, NewConvertResponse(res))
}

func (e *ConvertEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <image>",
		Short: "Convert a note image on the running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			mime, err := MIMEForFilename(path)
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open image: %w", err)
			}
			defer f.Close()

			client := api.NewClient(getServerURL())
			var resp ConvertResponse
			if err := client.PostFile(cmd.Context(), "/api/convert", UploadField, filepath.Base(path), mime, f, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
