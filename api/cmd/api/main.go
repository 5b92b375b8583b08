package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"neuro-scan/api/internal/app"
	"neuro-scan/api/internal/camera/gocvcam"
	"neuro-scan/api/internal/chat"
	"neuro-scan/api/internal/config"
	"neuro-scan/api/internal/handle"
	"neuro-scan/api/internal/httpserver"
)

func main() {
	cfg := config.Load()

	// Prefer platform PORT env var; fallback to cfg.Port
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, gocvcam.New(cfg.CameraDevice))
	if err != nil {
		log.Fatalf("app: %v", err)
	}
	defer a.Close()

	hub := handle.NewHub()
	go hub.Run(ctx)
	events, unsubscribe := a.Controller.Subscribe(64)
	defer unsubscribe()
	go hub.Pump(events)

	h := handle.New(handle.Deps{
		Controller:   a.Controller,
		Board:        a.Board,
		Snapshot:     a.Snapshot,
		Catalog:      a.Catalog,
		Conversation: a.NewConversation(),
		Backend:      a.Backend,
		Diagram:      a.Diagram,
		Icons:        a.Icons,
		Hub:          hub,
	})

	log.Printf("api: vision=%s chat=%s models=%v", cfg.VisionModel, cfg.ChatModel, chat.Models)
	if err := httpserver.Run(ctx, ":"+cfg.Port, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
