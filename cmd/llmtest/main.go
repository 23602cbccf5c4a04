package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/cosmetology-assistant/cmd/mainconfig"
	"github.com/wolfman30/cosmetology-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/cosmetology-assistant/internal/config"
	"github.com/wolfman30/cosmetology-assistant/internal/conversation"
	"github.com/wolfman30/cosmetology-assistant/internal/intent"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// llmtest sends one question through intent classification and answer
// generation, without the knowledge base or history.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	question := flag.String("q", "Сколько стоит чистка лица и как к ней подготовиться?", "question to ask")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.New("warn")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	info, err := bootstrap.ClinicInfo(cfg)
	if err != nil {
		log.Fatal(err)
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	stack, err := bootstrap.BuildLLM(ctx, cfg, awsCfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer stack.Close()

	classifier := intent.NewClassifier(logger,
		intent.WithModel(intent.NewLLMClassifier(stack.Client, stack.Models.Fast, stack.Retry)))
	generator := conversation.NewGenerator(stack.Client, stack.Models, stack.Retry, info, nil, logger)

	start := time.Now()
	detected := classifier.Classify(ctx, 0, *question)
	fmt.Printf("provider: %s (model %s, fast %s)\n", cfg.LLMProvider, stack.Models.Full, stack.Models.Fast)
	fmt.Printf("intent:   %s (%v)\n", detected, time.Since(start).Round(time.Millisecond))

	start = time.Now()
	answer := generator.Generate(ctx, conversation.GenerateRequest{
		UserMessage: conversation.SanitizeForModel(*question),
		Context:     "Информация в базе знаний не найдена.",
		Intent:      detected,
		Fast:        detected == intent.Pricing || detected == intent.Aftercare,
	})
	fmt.Printf("answer (%v):\n%s\n", time.Since(start).Round(time.Millisecond), answer)
	if ctx.Err() != nil {
		os.Exit(1)
	}
}
