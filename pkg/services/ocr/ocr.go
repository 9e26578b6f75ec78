// Package ocr adapts the external text-detection engine behind a narrow
// interface. The engine is a black box: it maps a normalized image to
// zero or more text detections with confidence and position. An engine
// returning nothing is a valid "no text found" outcome, not a failure.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"path"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/disintegration/imaging"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/models"
)

// Engine is the detection engine collaborator contract.
type Engine interface {
	DetectText(ctx context.Context, img image.Image) ([]models.RawDetection, error)
}

const (
	readPollInterval = 500 * time.Millisecond
	readPollTimeout  = 30 * time.Second
)

// AzureEngine runs text detection through the Azure Computer Vision Read
// API. The underlying client is constructed lazily on first use, guarded
// against concurrent double-initialization; once built it is a read-only,
// thread-safe handle for the lifetime of the process.
type AzureEngine struct {
	logger   *zap.Logger
	endpoint string
	apiKey   string

	once   sync.Once
	client *computervision.BaseClient
}

// NewAzureEngine creates an engine handle for the given endpoint and key.
// No network activity happens until the first DetectText call.
func NewAzureEngine(logger *zap.Logger, endpoint, apiKey string) *AzureEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AzureEngine{logger: logger, endpoint: endpoint, apiKey: apiKey}
}

func (e *AzureEngine) getClient() *computervision.BaseClient {
	e.once.Do(func() {
		e.logger.Info("initializing detection engine client", zap.String("endpoint", e.endpoint))
		client := computervision.New(e.endpoint)
		client.Authorizer = autorest.NewCognitiveServicesAuthorizer(e.apiKey)
		e.client = &client
	})
	return e.client
}

// DetectText submits the image to the Read API and polls the async
// operation to completion. Each detected line becomes one raw detection:
// the flat 8-number bounding box as reported, and the mean of the word
// confidences as the line confidence.
func (e *AzureEngine) DetectText(ctx context.Context, img image.Image) ([]models.RawDetection, error) {
	client := e.getClient()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	resp, err := client.ReadInStream(ctx, io.NopCloser(&buf), computervision.OcrDetectionLanguage("en"))
	if err != nil {
		return nil, fmt.Errorf("submit read operation: %w", err)
	}

	operationLocation := resp.Header.Get("Operation-Location")
	operationID, err := uuid.FromString(path.Base(operationLocation))
	if err != nil {
		return nil, fmt.Errorf("parse operation location %q: %w", operationLocation, err)
	}

	result, err := e.pollReadResult(ctx, operationID)
	if err != nil {
		return nil, err
	}
	return e.collectDetections(result), nil
}

func (e *AzureEngine) pollReadResult(ctx context.Context, operationID uuid.UUID) (computervision.ReadOperationResult, error) {
	client := e.getClient()
	deadline := time.Now().Add(readPollTimeout)

	for {
		result, err := client.GetReadResult(ctx, operationID)
		if err != nil {
			return computervision.ReadOperationResult{}, fmt.Errorf("get read result: %w", err)
		}
		switch result.Status {
		case computervision.Succeeded:
			return result, nil
		case computervision.Failed:
			return computervision.ReadOperationResult{}, fmt.Errorf("read operation %s failed", operationID)
		}
		if time.Now().After(deadline) {
			return computervision.ReadOperationResult{}, fmt.Errorf("read operation %s timed out", operationID)
		}
		select {
		case <-ctx.Done():
			return computervision.ReadOperationResult{}, ctx.Err()
		case <-time.After(readPollInterval):
		}
	}
}

func (e *AzureEngine) collectDetections(result computervision.ReadOperationResult) []models.RawDetection {
	var detections []models.RawDetection
	if result.AnalyzeResult == nil || result.AnalyzeResult.ReadResults == nil {
		return detections
	}
	for _, page := range *result.AnalyzeResult.ReadResults {
		if page.Lines == nil {
			continue
		}
		for _, line := range *page.Lines {
			if line.Text == nil {
				continue
			}
			detection := models.RawDetection{
				Text:       *line.Text,
				Confidence: lineConfidence(line),
			}
			if line.BoundingBox != nil {
				detection.Bounds = *line.BoundingBox
			}
			detections = append(detections, detection)
		}
	}
	e.logger.Info("detection engine returned text", zap.Int("detections", len(detections)))
	return detections
}

// lineConfidence is the mean word confidence of a detected line, zero
// when the engine reports no words.
func lineConfidence(line computervision.Line) float64 {
	if line.Words == nil || len(*line.Words) == 0 {
		return 0
	}
	var sum float64
	for _, word := range *line.Words {
		if word.Confidence != nil {
			sum += *word.Confidence
		}
	}
	return sum / float64(len(*line.Words))
}
