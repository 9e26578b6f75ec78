package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/config"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/server"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/currency"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/extract"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/layout"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/ocr"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/preprocess"
)

func main() {
	// Load environment variables; a missing .env file is fine in
	// containerized deployments.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to build logger: ", err)
	}
	defer logger.Sync()

	cfg := config.Load()
	if cfg.AzureEndpoint == "" || cfg.AzureKey == "" {
		logger.Fatal("AZURE_VISION_ENDPOINT and AZURE_VISION_KEY must be set")
	}

	normalizer := preprocess.NewNormalizer(logger, cfg.Image)
	engine := ocr.NewAzureEngine(logger, cfg.AzureEndpoint, cfg.AzureKey)
	reconstructor := layout.NewReconstructor(logger, cfg.Extraction.LineThreshold)
	parser := currency.NewParser(cfg.Currency)
	extractor := extract.NewExtractor(logger, cfg.Extraction, parser)

	srv := server.New(logger, cfg, normalizer, engine, reconstructor, extractor)

	logger.Info("starting receipt extraction service", zap.String("port", cfg.Port))
	if err := srv.Router().Run(":" + cfg.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
