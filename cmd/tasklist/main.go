package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"tasklist/internal/bot"
	"tasklist/internal/config"
	"tasklist/internal/repository"
	"tasklist/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	store := service.NewTaskStore(storage,
		service.WithKey(cfg.StorageKey),
		service.WithWriteTimeout(cfg.WriteTimeout),
	)
	if err := store.Load(ctx); err != nil {
		log.Fatalf("load tasks: %v", err)
	}
	store.Start()

	scheduler := service.NewSchedulerService(cfg.Location)
	if cfg.SyncInterval > 0 {
		if _, err := scheduler.ScheduleResync(store, cfg.SyncInterval, cfg.WriteTimeout); err != nil {
			log.Fatalf("schedule resync: %v", err)
		}
	}
	scheduler.Start()

	telegramBot, err := bot.New(cfg.TelegramToken, store, &cfg)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("bot stopped with error: %v", err)
		}
	}()

	log.Println("Task list bot started.")

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"tasklist": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				cancel()
				select {
				case <-botDone:
				case <-ctx.Done():
				}
				scheduler.Stop()
				return errors.Join(store.Close(ctx), storage.Close())
			},
		},
	)

	exitCode := <-wait
	log.Printf("Shutdown complete with code %d.", exitCode)
	os.Exit(exitCode)
}
