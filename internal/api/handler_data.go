package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"partlife-backend/internal/archive"
	"partlife-backend/internal/backup"
	"partlife-backend/internal/importer"
	"partlife-backend/internal/narrative"
	"partlife-backend/internal/report"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxUploadBytes  = 10 << 20
)

// readBody reads a request body of at most maxUploadBytes. On failure the
// response is already written and ok is false.
func readBody(c *gin.Context) (body []byte, ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	body, err := c.GetRawData()
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)})
		return nil, false
	case err != nil:
		badRequest(c)
		return nil, false
	}
	return body, true
}

// ImportCSV handles POST /api/import/csv. The request body is the raw CSV
// text. With dry_run=true the reconciliation is computed but not applied.
func (h *Handler) ImportCSV(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	dryRun := c.Query("dry_run") == "true"
	var (
		res importer.Result
		err error
	)
	if dryRun {
		res, err = h.fleet.PreviewImport(string(body))
	} else {
		res, err = h.fleet.CommitImport(string(body))
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"counts": res.Counts(),
		"result": res,
		"dryRun": dryRun,
	})
}

// GetBackup handles GET /api/backup and streams the dataset as a download.
func (h *Handler) GetBackup(c *gin.Context) {
	data, err := h.fleet.ExportBackup()
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, backup.FileName(h.fleet.Now())))
	c.Data(http.StatusOK, "application/json", data)
}

// RestoreBackup handles POST /api/backup. The whole dataset is replaced.
func (h *Handler) RestoreBackup(c *gin.Context) {
	if !confirmed(c) {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}
	d, err := h.fleet.RestoreBackup(body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"machines":        len(d.Machines),
		"partDefinitions": len(d.Definitions),
		"installedParts":  len(d.Parts),
		"maintenanceLogs": len(d.Logs),
	})
}

// ArchiveBackup handles POST /api/backup/archive, uploading the current
// backup document to object storage.
func (h *Handler) ArchiveBackup(c *gin.Context) {
	if h.archive == nil {
		respondError(c, archive.ErrNotConfigured)
		return
	}
	data, err := h.fleet.ExportBackup()
	if err != nil {
		respondError(c, err)
		return
	}
	key, err := h.archive.Put(c.Request.Context(), backup.FileName(h.fleet.Now()), data)
	if err != nil {
		h.log.Error("backup archive failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to archive backup"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key})
}

// GetPartsReport handles GET /api/reports/parts.xlsx.
func (h *Handler) GetPartsReport(c *gin.Context) {
	snapshot := h.fleet.Snapshot()
	data, err := report.GeneratePartsReport(h.fleet.View().Parts, snapshot.Machines, h.fleet.Logs(""))
	if err != nil {
		h.log.Error("parts report failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate report"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="parts_report.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// PostNarrative handles POST /api/reports/narrative. The summarizer never
// fails; problems come back as a fixed message in place of the report.
func (h *Handler) PostNarrative(c *gin.Context) {
	if h.narrative == nil {
		c.JSON(http.StatusOK, gin.H{"html": narrative.NoAPIKeyMessage})
		return
	}
	text := h.narrative.Summarize(c.Request.Context(), h.fleet.View().Parts, h.fleet.Snapshot().Machines)
	c.JSON(http.StatusOK, gin.H{"html": text})
}
