package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/interfaces"
	"github.com/ochairo/sonarscan/internal/domain/interfaces/services"
	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

const (
	// multipartMemory is kept in memory; larger parts spill to temp files
	multipartMemory = 32 << 20

	// formOverhead allows for the non-file fields of the form
	formOverhead = 1 << 20
)

// scanResponse is the success body of POST /scan
type scanResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	ProjectKey string   `json:"project_key"`
	Output     []string `json:"output"`
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type toolchainResponse struct {
	Toolchain   string   `json:"toolchain"`
	Aliases     []string `json:"aliases"`
	Description string   `json:"description"`
}

type handlers struct {
	scanner        Scanner
	maxUploadBytes int64
	toolchains     []services.ToolchainInfo
	logger         interfaces.Logger
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (h *handlers) listToolchains(w http.ResponseWriter, r *http.Request) {
	out := make([]toolchainResponse, 0, len(h.toolchains))
	for _, tc := range h.toolchains {
		out = append(out, toolchainResponse{
			Toolchain:   string(tc.Toolchain),
			Aliases:     tc.Aliases,
			Description: tc.Description,
		})
	}
	render.JSON(w, r, out)
}

// scan handles POST /scan with fields file, language, projectKey,
// signature (file) and sha256
func (h *handlers) scan(w http.ResponseWriter, r *http.Request) {
	const op = "http.scan"

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			h.writeError(w, r, scanerr.Newf(scanerr.CodeTooLarge, op,
				"archive exceeds the maximum upload size of %d bytes", h.maxUploadBytes))
			return
		}
		h.writeError(w, r, scanerr.Wrap(err, scanerr.CodeInvalidInput, op, "invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	req := entities.ScanRequest{
		Toolchain:  r.FormValue("language"),
		ProjectKey: r.FormValue("projectKey"),
		Checksum:   r.FormValue("sha256"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		h.writeError(w, r, scanerr.ValidationError(op, "no file part"))
		return
	case err != nil:
		h.writeError(w, r, scanerr.Wrap(err, scanerr.CodeInvalidInput, op, "failed to read uploaded file"))
		return
	}
	//nolint:errcheck // Defer close on uploaded part
	defer file.Close()
	req.Archive = file
	req.ArchiveName = header.Filename

	signature, err := readSignature(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Signature = signature

	outcome, err := h.scanner.Run(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, scanResponse{
		Success:    true,
		Message:    "Scan completed successfully for project: " + outcome.ProjectKey,
		ProjectKey: outcome.ProjectKey,
		Output:     outcome.Outputs(),
	})
}

// readSignature returns the optional detached signature part
func readSignature(r *http.Request) ([]byte, error) {
	const op = "http.signature"

	part, _, err := r.FormFile("signature")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, scanerr.Wrap(err, scanerr.CodeInvalidInput, op, "failed to read signature")
	}
	//nolint:errcheck // Defer close on uploaded part
	defer part.Close()

	return readLimited(part, entities.MaxSignatureBytes, op)
}

func readLimited(part multipart.File, limit int64, op string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return nil, scanerr.Wrap(err, scanerr.CodeInvalidInput, op, "failed to read signature")
	}
	if int64(len(data)) > limit {
		return nil, scanerr.Newf(scanerr.CodeInvalidInput, op, "signature exceeds %d bytes", limit)
	}
	return data, nil
}

// writeError renders err with the status for its code
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := scanerr.CodeOf(err)
	status := StatusFor(code)

	fields := []interfaces.Field{
		interfaces.F("request_id", middleware.GetReqID(r.Context())),
		interfaces.F("code", string(code)),
		interfaces.F("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("scan request failed", fields...)
	} else {
		h.logger.Warn("scan request rejected", fields...)
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: scanerr.Message(err), Code: string(code)})
}

// StatusFor maps an error code to its HTTP status
func StatusFor(code scanerr.Code) int {
	switch code {
	case scanerr.CodeInvalidInput,
		scanerr.CodeExtractionFailed,
		scanerr.CodeUnsupportedToolchain,
		scanerr.CodeNotFound,
		scanerr.CodeSignatureInvalid:
		return http.StatusBadRequest
	case scanerr.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case scanerr.CodeExecutionFailed:
		return http.StatusBadGateway
	case scanerr.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
