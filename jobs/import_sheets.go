package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/oevi/oevi/internal/importer"
)

// ImportSheetsJob reloads the ledger from a staged upload directory.
type ImportSheetsJob struct {
	Importer *importer.Service
	Logger   *slog.Logger
}

// NewImportSheetsJob wires dependencies for the import handler.
func NewImportSheetsJob(svc *importer.Service, logger *slog.Logger) *ImportSheetsJob {
	return &ImportSheetsJob{Importer: svc, Logger: logger}
}

// Handle processes TaskTypeImportSheets tasks. The staged directory is
// removed after a successful run so a retry only ever sees a full sheet set.
func (j *ImportSheetsJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Importer == nil {
		return errors.New("import sheets: handler not configured")
	}
	var payload ImportSheetsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Dir == "" {
		return asynq.SkipRetry
	}

	logger := j.logger().With(slog.String("dir", payload.Dir))
	logger.Info("starting sheet import")
	start := time.Now()

	sheets, closeAll, err := importer.OpenDir(payload.Dir)
	if err != nil {
		logger.Error("open staged sheets", slog.Any("error", err))
		return err
	}
	defer closeAll()

	result, err := j.Importer.Run(ctx, sheets)
	if err != nil {
		logger.Error("sheet import failed", slog.Any("error", err))
		return err
	}

	if err := os.RemoveAll(payload.Dir); err != nil {
		logger.Warn("clean staged upload", slog.Any("error", err))
	}
	logger.Info("completed sheet import",
		slog.Int("compras", result.ImportedPurchases),
		slog.Int("ventas", result.ImportedSales),
		slog.Int("compras_personales", result.ImportedPersonal),
		slog.Int64("deleted_c", result.DeletedPurchases),
		slog.Int64("deleted_v", result.DeletedSales),
		slog.Int("rechazos", result.Rejects),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ImportSheetsJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeImportSheets))
	}
	return slog.Default().With(slog.String("job", TaskTypeImportSheets))
}
