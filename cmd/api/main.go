package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/HaolanLL/Medical-Chat-Agent/internal/appointment"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/config"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/conversation"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/httpapi"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/knowledge"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/llm"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/notify"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/observability/metrics"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/retry"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/webchat"
	"github.com/HaolanLL/Medical-Chat-Agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting medical-chat-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := appointment.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := appointment.NewPgStore(pool, retry.Policy{
		MaxAttempts: cfg.DBConnectAttempts,
		BaseDelay:   cfg.DBConnectBaseDelay,
		MaxDelay:    10 * time.Second,
	}, logger)

	llmClient := buildLLMClient(ctx, cfg, logger)
	retriever := buildRetriever(ctx, cfg, logger)
	notifier := buildNotifier(ctx, cfg, logger)
	history := buildHistoryStore(cfg, logger)
	conversationMetrics := metrics.NewConversationMetrics(nil)

	engine := conversation.NewEngine(conversation.Deps{
		Client:        llmClient,
		Store:         store,
		History:       history,
		Retriever:     retriever,
		Notifier:      notifier,
		Recorder:      conversationMetrics,
		Model:         cfg.OpenAIModel,
		RetrieveTopK:  cfg.RetrieveTopK,
		BookingStatus: appointment.Status(cfg.AppointmentStatus),
		Logger:        logger,
	})

	router := httpapi.New(httpapi.Config{
		Logger:  logger,
		Webchat: webchat.NewHandler(engine, logger),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func buildLLMClient(ctx context.Context, cfg *config.Config, logger *logging.Logger) llm.Client {
	primary, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		Timeout:     cfg.LLMTimeout,
		MaxAttempts: cfg.LLMMaxAttempts,
	}, logger)
	if err != nil {
		logger.Error("failed to build openai client", "error", err)
		os.Exit(1)
	}
	if cfg.GeminiAPIKey == "" {
		return primary
	}

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Warn("gemini fallback unavailable, continuing with openai only", "error", err)
		return primary
	}
	return llm.NewFallbackClient(primary, gemini, logger)
}

func buildRetriever(ctx context.Context, cfg *config.Config, logger *logging.Logger) conversation.Retriever {
	embedder := openai.NewClient(cfg.OpenAIAPIKey)
	store := knowledge.NewMemoryStore(embedder, cfg.EmbeddingModel, logger)
	loader := knowledge.NewLoader(store, cfg.ChunkSize, cfg.ChunkOverlap, logger)
	if err := loader.LoadDirectory(ctx, cfg.DataDir); err != nil {
		logger.Warn("knowledge ingestion failed, retriever starts empty", "error", err)
	}
	return store
}

func buildNotifier(ctx context.Context, cfg *config.Config, logger *logging.Logger) conversation.Notifier {
	var sms notify.SMSSender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		sms = notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	} else {
		logger.Warn("twilio not configured, SMS notifications disabled")
	}

	var email notify.EmailSender
	switch cfg.EmailProvider {
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("failed to load AWS config, email notifications disabled", "error", err)
		} else {
			email = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.SendGridFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
	default:
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			email = sender
		} else {
			logger.Warn("sendgrid not configured, email notifications disabled")
		}
	}

	return notify.NewService(sms, email, notify.Config{
		PreferredChannel: notify.Channel(cfg.PreferredChannel),
		MaxAttempts:      cfg.NotifyMaxAttempts,
		BaseDelay:        cfg.NotifyBaseDelay,
		Directory:        notify.StaticDirectory{Phone: cfg.DoctorPhone, Email: cfg.DoctorEmail},
	}, logger)
}

func buildHistoryStore(cfg *config.Config, logger *logging.Logger) conversation.HistoryStore {
	if cfg.UseMemoryHistory {
		logger.Info("using in-memory conversation history")
		return conversation.NewMemoryHistoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return conversation.NewRedisHistoryStore(client)
}
