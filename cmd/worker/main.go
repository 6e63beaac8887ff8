/**
 * PhotoScan Worker - Main Entry Point
 *
 * Go worker that turns product photos into catalog attributes.
 *
 * Architecture:
 * - BullMQ/Asynq consumer for Redis-backed job queue
 * - Multi-strategy label recognition (horizontal, vertical, embossed,
 *   multilingual) with span consolidation
 * - Eleven attribute extractors reconciled into one product record
 * - Transcript embeddings in Qdrant for similarity search
 * - PostgreSQL persistence for extractions and job tracking
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/shelfwise/catalog/photoscan-worker/internal/config"
	"github.com/shelfwise/catalog/photoscan-worker/internal/processor"
	"github.com/shelfwise/catalog/photoscan-worker/internal/queue"
	"github.com/shelfwise/catalog/photoscan-worker/internal/storage"
)

// Each concurrent pipeline runs four recognition passes and holds the decoded
// photo plus its variants, peaking around this much memory.
const perWorkerMemoryBytes = 512 << 20

func main() {
	// Load environment variables
	if err := godotenv.Load(".env.photoscan"); err != nil {
		log.Printf("Warning: .env.photoscan not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("PhotoScan Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, PostgreSQL=%s, Qdrant=%s",
		cfg.RedisURL, cfg.DatabaseURL, cfg.QdrantURL)

	reportHostResources()

	// Auto-size concurrency from the host unless pinned by WORKER_CONCURRENCY
	concurrency := cfg.WorkerConcurrency
	if concurrency == 0 {
		concurrency = autosizeConcurrency()
		log.Printf("WORKER_CONCURRENCY not set, auto-sized to %d", concurrency)
	}

	// Initialize unified storage manager (PostgreSQL + Qdrant)
	log.Printf("Connecting to storage (PostgreSQL + Qdrant)...")
	storageManager, err := storage.NewStorageManager(
		cfg.DatabaseURL,
		cfg.QdrantURL,
		cfg.QdrantCollection,
	)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()
	log.Printf("Storage manager initialized (PostgreSQL + Qdrant)")

	// Initialize photo processor
	log.Printf("Initializing photo processor...")
	proc, err := processor.NewPhotoProcessor(&processor.ProcessorConfig{
		MaxFileSize:         cfg.MaxFileSize,
		MaxImageDimension:   cfg.MaxImageDimension,
		RenderDPI:           cfg.RenderDPI,
		StorageManager:      storageManager,
		EmbeddingServiceURL: cfg.EmbeddingServiceURL,
		EmbeddingAPIKey:     cfg.EmbeddingAPIKey,
		ClassifierURL:       cfg.ClassifierURL,
		MattingURL:          cfg.MattingURL,
		CatalogURL:          cfg.CatalogURL,
		RecognitionLangs:    strings.Split(cfg.TesseractLangs, "+"),
		MultilingualLangs:   strings.Split(cfg.MultilingualLangs, "+"),
		VerticalRotations:   cfg.VerticalRotations,
		StrategyTimeout:     time.Duration(cfg.StrategyTimeout) * time.Second,
		ClassifierTimeout:   time.Duration(cfg.ClassifierTimeout) * time.Second,
		DedupThreshold:      cfg.DedupThreshold,
		EmbossedDiscount:    cfg.EmbossedDiscount,
		AcceptanceFloor:     cfg.AcceptanceFloor,
		CorroborationBonus:  cfg.CorroborationBonus,
		KeywordLimit:        cfg.KeywordLimit,
		LexiconPath:         cfg.LexiconPath,
	})
	if err != nil {
		log.Fatalf("Failed to initialize photo processor: %v", err)
	}
	log.Printf("Photo processor initialized")

	ctx := context.Background()

	// Initialize queue consumer
	log.Printf("Connecting to Redis queue...")
	queueConsumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       concurrency,
		Processor:         proc,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}
	log.Printf("Queue consumer initialized with concurrency=%d", concurrency)

	// Start queue consumer
	if err := queueConsumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	// Bridge the legacy LIST-based queue when configured, so deployments
	// still running the old catalog backend keep flowing
	var legacyConsumer *queue.RedisConsumer
	if cfg.LegacyQueueKey != "" {
		log.Printf("Bridging legacy queue %s...", cfg.LegacyQueueKey)
		legacyConsumer, err = queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.LegacyQueueKey,
			Concurrency:       concurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			log.Fatalf("Failed to initialize legacy queue consumer: %v", err)
		}
		if err := legacyConsumer.Start(); err != nil {
			log.Fatalf("Failed to start legacy queue consumer: %v", err)
		}
	}

	// Print startup summary
	log.Printf("===========================================")
	log.Printf("PhotoScan Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s", cfg.QueueName)
	log.Printf("Workers: %d", concurrency)
	log.Printf("Recognition: horizontal, vertical, embossed, multilingual")
	log.Printf("Languages: %s (multilingual: %s)", cfg.TesseractLangs, cfg.MultilingualLangs)
	log.Printf("Dedup threshold: %.2f, acceptance floor: %.2f", cfg.DedupThreshold, cfg.AcceptanceFloor)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Wait for shutdown signal
	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	// Stop queue consumers
	if err := queueConsumer.Stop(ctx); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}
	if legacyConsumer != nil {
		if err := legacyConsumer.Stop(); err != nil {
			log.Printf("Error stopping legacy queue consumer: %v", err)
		}
	}

	// Close storage manager
	log.Printf("Closing storage manager...")
	if err := storageManager.Close(); err != nil {
		log.Printf("Error closing storage manager: %v", err)
	} else {
		log.Printf("Storage manager closed")
	}

	log.Printf("Shutdown complete")
}

// reportHostResources logs what the worker has to work with.
func reportHostResources() {
	cores := runtime.NumCPU()
	if counts, err := cpu.Counts(true); err == nil && counts > 0 {
		cores = counts
	}
	log.Printf("Host: %d logical cores", cores)

	if vm, err := mem.VirtualMemory(); err == nil {
		log.Printf("Host: %.1f GB memory total, %.1f GB available",
			float64(vm.Total)/(1<<30), float64(vm.Available)/(1<<30))
	}
}

// autosizeConcurrency picks a worker count the host can actually sustain:
// one pipeline per core, capped by available memory.
func autosizeConcurrency() int {
	workers := runtime.NumCPU()
	if counts, err := cpu.Counts(true); err == nil && counts > 0 {
		workers = counts
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		byMemory := int(vm.Available / perWorkerMemoryBytes)
		if byMemory < workers {
			workers = byMemory
		}
	}

	if workers < 1 {
		workers = 1
	}
	if workers > 16 {
		workers = 16
	}
	return workers
}
