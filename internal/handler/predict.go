package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fractureapi/internal/config"
	"fractureapi/internal/dto"
	"fractureapi/internal/logger"
	"fractureapi/internal/middleware"
	"fractureapi/internal/model"
	"fractureapi/internal/service"
)

// uploadField is the multipart field carrying the image.
const uploadField = "file"

// PredictHandler handles POST /predict: one multipart image in, one JSON
// prediction out.
func PredictHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetRequestID(r.Context())

		if !manager.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, dto.NewErrorResponse(service.ErrNotReady.Error()))
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("[%s] Prediction panicked: %v", requestID, rec)
				writeJSON(w, http.StatusInternalServerError, dto.NewErrorResponse(fmt.Sprint(rec)))
			}
		}()

		if r.ContentLength > cfg.MaxUploadSize {
			writeJSON(w, http.StatusBadRequest, dto.NewErrorResponse(tooLargeMessage(cfg.MaxUploadSize)))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)

		file, header, err := r.FormFile(uploadField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusBadRequest, dto.NewErrorResponse(tooLargeMessage(tooLarge.Limit)))
				return
			}
			writeJSON(w, http.StatusBadRequest, dto.NewErrorResponse(
				"No file uploaded. Use 'file' as the form field name"))
			return
		}
		defer file.Close()

		raw, err := io.ReadAll(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.NewErrorResponse("Failed to read uploaded file"))
			return
		}

		logger.Debug("[%s] Received file: %s, size: %d bytes", requestID, header.Filename, len(raw))

		prediction, err := manager.Predict(model.Image{
			RequestID:  requestID,
			Filename:   header.Filename,
			Data:       raw,
			ReceivedAt: time.Now(),
		})
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, service.ErrNotReady) {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, status, dto.NewErrorResponse(err.Error()))
			return
		}

		writeJSON(w, http.StatusOK, dto.NewPredictResponse(prediction))
	}
}

func tooLargeMessage(limit int64) string {
	return fmt.Sprintf("Upload exceeds the %d byte limit", limit)
}
