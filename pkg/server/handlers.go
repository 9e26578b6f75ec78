package server

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/models"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/preprocess"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Engine  string `json:"ocr_engine"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// debugResponse is the extraction record plus the debug extras requested
// via ?debug=true.
type debugResponse struct {
	models.ExtractionResult
	OCRText          string  `json:"ocr_text"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}

// handleExtract accepts a multipart receipt image, runs the pipeline and
// returns the extraction record.
func (s *Server) handleExtract(c *gin.Context) {
	start := time.Now()
	debug := c.Query("debug") == "true"

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "MissingFile",
			Message: "multipart field 'file' is required",
		})
		return
	}
	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "InvalidFileType",
			Message: "expected an image file, got: " + ct,
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "InvalidUpload",
			Message: "failed to open uploaded file",
			Detail:  err.Error(),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "InvalidUpload",
			Message: "failed to read uploaded file",
			Detail:  err.Error(),
		})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "EmptyFile",
			Message: "uploaded file is empty",
		})
		return
	}

	s.logger.Info("processing receipt",
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(data)),
	)

	img, err := s.normalizer.Decode(data)
	if err == nil {
		img, err = s.normalizer.Normalize(img)
	}
	if err != nil {
		if errors.Is(err, preprocess.ErrInvalidImage) {
			c.JSON(http.StatusBadRequest, errorResponse{
				Error:   "InvalidImage",
				Message: "could not decode the uploaded image",
				Detail:  err.Error(),
			})
			return
		}
		s.logger.Error("preprocessing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "ProcessingError",
			Message: "failed to process receipt image",
		})
		return
	}

	raws, err := s.engine.DetectText(c.Request.Context(), img)
	if err != nil {
		s.logger.Error("text detection failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "ProcessingError",
			Message: "text detection failed",
		})
		return
	}

	detections := s.layout.OrderByReadingPosition(s.layout.BuildDetections(raws))
	lines := s.layout.GroupIntoLines(detections)
	result := s.extractor.ExtractAll(detections, lines)

	elapsed := float64(time.Since(start).Microseconds()) / 1000

	s.logger.Info("extraction completed",
		zap.Int("detections", len(detections)),
		zap.Float64("confidence", result.ConfidenceScore),
		zap.Float64("elapsed_ms", elapsed),
	)

	if debug {
		c.JSON(http.StatusOK, debugResponse{
			ExtractionResult: result,
			OCRText:          s.layout.FullText(detections),
			ProcessingTimeMS: math.Round(elapsed*100) / 100,
		})
		return
	}
	c.JSON(http.StatusOK, result)
}
