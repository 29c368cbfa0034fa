package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"taeu.kr/filebox/internal/account"
	accountStore "taeu.kr/filebox/internal/account/store"
	"taeu.kr/filebox/internal/auth"
	"taeu.kr/filebox/internal/config"
	"taeu.kr/filebox/internal/files"
	filesHandler "taeu.kr/filebox/internal/files/handler"
	filesStore "taeu.kr/filebox/internal/files/store"
	"taeu.kr/filebox/internal/platform/database"
	"taeu.kr/filebox/internal/platform/web"
	"taeu.kr/filebox/internal/serve"
	"taeu.kr/filebox/internal/shortlink"
	"taeu.kr/filebox/internal/status"
)

const refreshTokenTTL = 7 * 24 * time.Hour

// App은 서버와 filectl이 공유하는 구성 요소 묶음입니다
type App struct {
	Config   config.Config
	DB       *sql.DB
	Accounts *account.Service
	Auth     *auth.Service
	Files    *files.Service
	Registry *prometheus.Registry

	shortlinkConfigured bool
}

func New(cfg config.Config) (*App, error) {
	db, err := database.NewDB(cfg.Datasource.URL)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var shortener files.Shortener
	client, err := shortlink.NewHTTPClient(shortlink.Config{
		BaseURL: cfg.Shortlink.BaseURL,
		APIKey:  cfg.Shortlink.APIKey,
		Timeout: cfg.Shortlink.Timeout,
	})
	switch {
	case err == nil:
		shortener = client
	case !errors.Is(err, shortlink.ErrNotConfigured):
		db.Close()
		return nil, fmt.Errorf("failed to create shortlink client: %w", err)
	}

	filesService, err := files.NewService(files.Config{
		DataRoot:   cfg.Storage.DataRoot,
		IconsDir:   cfg.Storage.IconsDir,
		Quotas:     filesStore.NewQuotaStore(db),
		Shares:     filesStore.NewShareStore(db),
		Shortener:  shortener,
		Settings:   Settings,
		Registerer: registry,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	accountService := account.NewService(accountStore.NewStore(db))
	accountService.OnDelete(filesService.DeleteUserData)

	authService := auth.NewService(accountService, auth.Config{
		Secret:         cfg.Auth.Secret,
		Issuer:         cfg.Auth.Issuer,
		AccessTokenTTL: cfg.Auth.AccessTokenTTL,
		RefreshTTL:     refreshTokenTTL,
	})

	return &App{
		Config:              cfg,
		DB:                  db,
		Accounts:            accountService,
		Auth:                authService,
		Files:               filesService,
		Registry:            registry,
		shortlinkConfigured: shortener != nil,
	}, nil
}

// Settings는 런타임에 바뀔 수 있는 files 설정을 매 호출마다 읽습니다
func Settings() files.Settings {
	current := config.FilesSettings()
	return files.Settings{
		Quota:         current.Quota,
		UseShortlinks: current.UseShortlinks,
		ImagesPreview: current.ImagesPreview,
		PublicBaseURL: current.PublicBaseURL,
	}
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Routes는 인증 미들웨어까지 적용된 전체 라우터를 반환합니다
func (a *App) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/health", web.Handler(func(w http.ResponseWriter, r *http.Request) *web.Error {
		web.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return nil
	}))
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	publicLimit := serve.RateLimitConfig{
		RequestsPerSecond: a.Config.Public.RatePerSecond,
		Burst:             a.Config.Public.Burst,
	}

	auth.NewHandler(a.Auth).RegisterRoutes(mux)
	account.NewHandler(a.Accounts).RegisterRoutes(mux)
	config.NewHandler().RegisterRoutes(mux)
	status.NewHandler(a.DB, a.Files.Layout().DataRoot, a.Config.Server.Port, a.shortlinkConfigured).RegisterRoutes(mux)
	filesHandler.NewHandler(a.Files).WithUploadLimiter(serve.NewIPRateLimiter(publicLimit)).RegisterRoutes(mux)
	serve.NewHandler(a.Files, Settings, a.Accounts.Capabilities, serve.NewImageThumbnailer(), serve.NewIPRateLimiter(publicLimit)).RegisterRoutes(mux)

	return web.RequestLogger(a.Auth.Middleware(mux))
}

// RecomputeUsage는 사용자의 사용량을 디스크 기준으로 다시 계산합니다
func (a *App) RecomputeUsage(ctx context.Context, userID int64) (int64, error) {
	usage, err := a.Files.Ledger().Recompute(ctx, userID)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("user_id", userID).Int64("usage", usage).Msg("[App] usage recomputed")
	return usage, nil
}
