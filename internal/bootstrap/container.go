package bootstrap

import (
	"context"
	"log"

	"compliance-assistant-be/internal/config"
	"compliance-assistant-be/internal/controller"
	"compliance-assistant-be/internal/pkg/logger"
	"compliance-assistant-be/internal/repository/unitofwork"
	"compliance-assistant-be/internal/service"
	"compliance-assistant-be/internal/websocket"
	"compliance-assistant-be/pkg/analyzer"
	"compliance-assistant-be/pkg/embedding"
	"compliance-assistant-be/pkg/llm/factory"
	"compliance-assistant-be/pkg/retrieval"
	"compliance-assistant-be/pkg/source"

	pktNats "compliance-assistant-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SearchController    controller.ISearchController
	IngestionController controller.IIngestionController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets & Messaging
	WebSocketHub   *websocket.Hub
	PubSub         *gochannel.GoChannel
	NatsPublisher  *pktNats.Publisher
	NatsSubscriber *pktNats.Subscriber

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Task Queue
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	embedderFactory := func() embedding.EmbeddingProvider {
		if cfg.Ai.EmbeddingProvider == "ollama" {
			log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
			return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
		}
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
		return embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
	}
	embedder := embedding.NewClient(cfg.Ai.EmbeddingDimension, embedderFactory, sysLogger)

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.GoogleGemini,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		natsSub = nil
	}

	// Redis
	var rdb *redis.Client
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb = redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis, hub runs single-instance: %v", err)
		rdb = nil
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 5. Retrieval Pipeline
	queryAnalyzer := analyzer.NewAnalyzer(analyzer.DefaultRuleset())
	retriever := retrieval.NewRetriever(queryAnalyzer, embedder, uowFactory, sysLogger, retrieval.Config{
		MatchCount:       cfg.Retrieval.MatchCount,
		MatchThreshold:   cfg.Retrieval.MatchThreshold,
		MinContentLength: cfg.Retrieval.MinContentLength,
		SearchTimeout:    cfg.Retrieval.SearchTimeoutDuration(),
	})

	// 6. Services
	publisherService := service.NewPublisherService(cfg.Keys.PersistTopic, pubSub)
	// A nil *Publisher must not become a non-nil interface value.
	var consumerEventBus service.IEventPublisher
	if natsPub != nil {
		consumerEventBus = natsPub
	}
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.PersistTopic,
		uowFactory,
		consumerEventBus,
		logger.NewIsolatedLogger("logs/consumer.log"),
	)

	sourceClient := source.NewClient(cfg.Source.BaseURL, cfg.Source.PageSize)
	ingestionService := service.NewIngestionService(
		sourceClient,
		embedder,
		publisherService,
		natsPub,
		wsHub,
		sysLogger,
		cfg.Source.Tag,
	)

	searchService := service.NewSearchService(
		retriever,
		llmProvider,
		uowFactory,
		natsPub,
		sysLogger,
		cfg.Ai.MaxSteps,
	)

	// 7. Notifier (NATS -> websocket bridge)
	if natsSub != nil {
		notifierService := service.NewNotifierService(natsSub, wsHub)
		go func() {
			if err := notifierService.Start(); err != nil {
				sysLogger.Error("Bootstrap", "Failed to start notifier", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	return &Container{
		SearchController:    controller.NewSearchController(searchService),
		IngestionController: controller.NewIngestionController(ingestionService),
		ConsumerService:     consumerService,
		WebSocketHub:        wsHub,
		PubSub:              pubSub,
		NatsPublisher:       natsPub,
		NatsSubscriber:      natsSub,
		Logger:              sysLogger,
	}
}

// Close releases the container's long-lived resources.
func (c *Container) Close() {
	if c.PubSub != nil {
		c.PubSub.Close()
	}
	if c.NatsPublisher != nil {
		c.NatsPublisher.Close()
	}
	if c.NatsSubscriber != nil {
		c.NatsSubscriber.Close()
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
}
