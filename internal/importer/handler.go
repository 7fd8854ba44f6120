package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oevi/oevi/internal/shared"
)

const maxUploadBytes = 32 << 20

// Staged file names, one per sheet. The upload handler writes them and the
// background worker reads them back.
const (
	FileParameters = "parametros.csv"
	FilePartners   = "socios.csv"
	FilePurchases  = "fact_compras.csv"
	FileSales      = "fact_ventas.csv"
	FilePersonal   = "compras_personales.csv"
)

// Form field names the upload endpoint accepts, one CSV per sheet.
var sheetFields = []struct {
	field string
	file  string
}{
	{"parametros", FileParameters},
	{"socios", FilePartners},
	{"fact_compras", FilePurchases},
	{"fact_ventas", FileSales},
	{"compras_personales", FilePersonal},
}

// Enqueuer hands a staged upload directory to the background worker.
type Enqueuer interface {
	EnqueueImport(ctx context.Context, dir string) (string, error)
}

// Handler serves the sheet upload endpoint. When no enqueuer is configured
// the import runs synchronously in the request.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	queue     Enqueuer
	uploadDir string
}

// NewHandler constructs the import HTTP handler. queue may be nil.
func NewHandler(logger *slog.Logger, service *Service, queue Enqueuer, uploadDir string) *Handler {
	return &Handler{logger: logger, service: service, queue: queue, uploadDir: uploadDir}
}

// Mount registers the import routes.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/importar", h.handleImport)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "cuerpo multipart invalido")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	dir, staged, err := h.stageUpload(r)
	if err != nil {
		var bad *badUploadError
		if errors.As(err, &bad) {
			shared.RespondError(w, http.StatusBadRequest, bad.Error())
			return
		}
		h.serverError(w, "stage upload", err)
		return
	}
	if staged == 0 {
		shared.RespondError(w, http.StatusBadRequest, "ninguna hoja adjunta")
		return
	}

	if h.queue != nil {
		taskID, err := h.queue.EnqueueImport(r.Context(), dir)
		if err != nil {
			h.serverError(w, "enqueue import", err)
			return
		}
		shared.RespondJSON(w, http.StatusAccepted, map[string]any{
			"task_id": taskID,
			"hojas":   staged,
		})
		return
	}

	sheets, closeAll, err := OpenDir(dir)
	if err != nil {
		h.serverError(w, "open staged sheets", err)
		return
	}
	defer closeAll()
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			h.logger.Warn("clean staged upload", slog.Any("error", err))
		}
	}()

	result, err := h.service.Run(r.Context(), sheets)
	if err != nil {
		h.serverError(w, "run import", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, result)
}

type badUploadError struct{ msg string }

func (e *badUploadError) Error() string { return e.msg }

// stageUpload copies each attached sheet into a fresh directory under the
// upload root. Only CSV attachments are accepted.
func (h *Handler) stageUpload(r *http.Request) (string, int, error) {
	dir := filepath.Join(h.uploadDir, "import_"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}

	staged := 0
	for _, sheet := range sheetFields {
		file, header, err := r.FormFile(sheet.field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			_ = os.RemoveAll(dir)
			return "", 0, err
		}
		if err := stageSheet(file, header, filepath.Join(dir, sheet.file)); err != nil {
			_ = os.RemoveAll(dir)
			return "", 0, err
		}
		staged++
	}
	return dir, staged, nil
}

func stageSheet(file multipart.File, header *multipart.FileHeader, dest string) error {
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		return &badUploadError{msg: fmt.Sprintf("solo se aceptan archivos CSV: %s", header.Filename)}
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return err
	}
	return out.Close()
}

// OpenDir opens the staged sheet files in a directory. Absent sheets leave
// their reader nil, which Run treats as an empty sheet. The returned func
// closes every opened file.
func OpenDir(dir string) (SheetSet, func(), error) {
	var files []io.Closer
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	var sheets SheetSet
	targets := []struct {
		file string
		dst  *io.Reader
	}{
		{FileParameters, &sheets.Parameters},
		{FilePartners, &sheets.Partners},
		{FilePurchases, &sheets.Purchases},
		{FileSales, &sheets.Sales},
		{FilePersonal, &sheets.Personal},
	}
	for _, t := range targets {
		f, err := os.Open(filepath.Join(dir, t.file))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			closeAll()
			return SheetSet{}, nil, err
		}
		files = append(files, f)
		*t.dst = f
	}
	return sheets, closeAll, nil
}

func (h *Handler) serverError(w http.ResponseWriter, context string, err error) {
	h.logger.Error(context, slog.Any("error", err))
	shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
