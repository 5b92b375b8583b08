package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"math/rand"
	"time"

	"neuro-scan/api/internal/capture"
	"neuro-scan/api/internal/catalog"
	"neuro-scan/api/internal/chat"
	chatgemini "neuro-scan/api/internal/chat/gemini"
	"neuro-scan/api/internal/config"
	"neuro-scan/api/internal/overlay"
	"neuro-scan/api/internal/session"
	"neuro-scan/api/internal/store"
	"neuro-scan/api/internal/vision"
	visiongemini "neuro-scan/api/internal/vision/gemini"
)

// App — общий граф зависимостей для HTTP-сервера и бота.
type App struct {
	Config *config.Config
	DB     *store.DB // nil, если каталог читается из папки

	Catalog    *catalog.Provider
	Board      *overlay.Board
	Snapshot   *session.Recognition
	Controller *capture.Controller
	Recognizer vision.Recognizer
	Backend    chat.Backend

	Diagram image.Image
	Icons   overlay.IconLoader
}

// Build собирает зависимости. Камера передаётся снаружи: в тестах её подменяют.
func Build(ctx context.Context, cfg *config.Config, cam capture.Camera) (*App, error) {
	a := &App{Config: cfg}

	src, err := a.catalogSource(ctx)
	if err != nil {
		return nil, err
	}
	a.Catalog = catalog.NewProvider(src)
	if cat, err := a.Catalog.Get(ctx); err != nil {
		// пустой каталог не фатален: оверлеев просто не будет
		log.Printf("app: catalog: %v", err)
	} else {
		log.Printf("app: catalog loaded, %d components", len(cat))
	}

	a.Icons = overlay.NewFileIcons(cfg.AssetDir)
	if img, err := overlay.LoadImage(cfg.DiagramPath); err != nil {
		log.Printf("app: diagram %s: %v", cfg.DiagramPath, err)
	} else {
		a.Diagram = img
	}

	a.Board = overlay.NewBoard(a.Catalog, rand.New(rand.NewSource(time.Now().UnixNano())))
	a.Snapshot = session.NewRecognition()
	a.Recognizer = visiongemini.New(cfg.GeminiAPIKey, cfg.VisionModel)

	a.Controller = capture.New(cam, a.Recognizer, a.Board, a.Snapshot)
	a.Controller.Countdown = cfg.CountdownSeconds

	a.Backend = chatgemini.New(cfg.GeminiAPIKey, cfg.ChatFallbackModel)
	return a, nil
}

func (a *App) catalogSource(ctx context.Context) (catalog.Source, error) {
	dir := catalog.DirSource{Dir: a.Config.AssetDir}
	switch a.Config.CatalogSource {
	case "", "dir":
		return dir, nil
	case "db":
	default:
		return nil, fmt.Errorf("app: unknown CATALOG_SOURCE %q", a.Config.CatalogSource)
	}

	db, err := store.Open(ctx, store.Config{
		Type:       a.Config.DBType,
		DSN:        a.Config.DatabaseURL,
		SQLitePath: a.Config.SQLitePath,
	})
	if err != nil {
		return nil, err
	}
	a.DB = db
	repo := store.NewAssetRepo(db)

	// папка с иконками засевает таблицу; строки, которых нет в папке, остаются
	if n, err := catalog.Sync(ctx, dir, repo); err != nil {
		log.Printf("app: seed catalog from %s: %v", a.Config.AssetDir, err)
	} else {
		log.Printf("app: seeded %d catalog rows", n)
	}
	return catalog.DBSource{Repo: repo}, nil
}

// NewConversation — фабрика разговоров с настройками из конфига.
func (a *App) NewConversation() *chat.Conversation {
	return chat.NewConversation(a.Backend, a.Snapshot, a.Config.ChatModel, a.Config.ChatTemperature)
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
