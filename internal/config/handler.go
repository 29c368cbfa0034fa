package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"taeu.kr/filebox/internal/platform/web"
)

var configFilePath string

// filesMu는 런타임에 바뀌는 Conf.Files를 보호합니다
var filesMu sync.RWMutex

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("database.url", "data/filebox.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.issuer", "filebox")
	v.SetDefault("auth.access_ttl", 12*time.Hour)
	v.SetDefault("storage.data_root", "data/users")
	v.SetDefault("storage.icons_dir", "assets/icons")
	v.SetDefault("files.images_preview", true)
	v.SetDefault("files.use_shortlinks", false)
	v.SetDefault("files.quota", 0)
	v.SetDefault("shortlink.timeout", 5*time.Second)
	v.SetDefault("public.rate_per_second", 5)
	v.SetDefault("public.burst", 20)
}

// SetConfig는 환경에 맞는 설정 파일을 읽어 Conf에 반영합니다
func SetConfig(goEnv string, configDir string) error {
	log.Info().Msgf("Loading configuration for environment: %s", goEnv)

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(configDir)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FILEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFileName := "config.dev"
	if goEnv == "production" {
		configFileName = "config.prod"
	}
	v.SetConfigName(configFileName)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configFilePath = v.ConfigFileUsed()
	log.Info().Msgf("Config file loaded: %s", configFilePath)

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&loaded); err != nil {
		return err
	}

	filesMu.Lock()
	Conf = loaded
	filesMu.Unlock()
	return nil
}

// SaveConfig는 설정을 YAML 파일에 저장합니다
func SaveConfig() error {
	if configFilePath == "" {
		return errors.New("config file path is unknown")
	}

	filesMu.RLock()
	data, err := yaml.Marshal(&Conf)
	filesMu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.WriteFile(configFilePath, data, 0644); err != nil {
		return err
	}

	log.Info().Msgf("Configuration saved to %s", configFilePath)
	return nil
}

// FilesSettings는 현재 files 설정의 복사본을 반환합니다
func FilesSettings() Files {
	filesMu.RLock()
	defer filesMu.RUnlock()
	return Conf.Files
}

// UpdateFilesValue는 값 하나를 검사 후 반영합니다
func UpdateFilesValue(name, value string) error {
	filesMu.Lock()
	defer filesMu.Unlock()

	files := Conf.Files
	if err := ApplyFilesValue(&files, name, value); err != nil {
		return err
	}
	Conf.Files = files
	return nil
}

// Handler는 config API 핸들러입니다
type Handler struct{}

type UpdateFilesRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func NewHandler() *Handler {
	return &Handler{}
}

// RegisterRoutes는 라우트를 등록합니다
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/config/files", web.Handler(h.GetFilesConfig))
	mux.Handle("PUT /api/config/files", web.Handler(h.UpdateFilesConfig))
}

// GetFilesConfig는 현재 files 설정을 반환합니다
func (h *Handler) GetFilesConfig(w http.ResponseWriter, r *http.Request) *web.Error {
	web.WriteJSON(w, http.StatusOK, FilesSettings())
	return nil
}

// UpdateFilesConfig는 files 설정 값 하나를 변경합니다
func (h *Handler) UpdateFilesConfig(w http.ResponseWriter, r *http.Request) *web.Error {
	var req UpdateFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Err: err, Code: http.StatusBadRequest, Message: "Invalid config format"}
	}
	if req.Name == "" {
		return &web.Error{Code: http.StatusBadRequest, Message: "name is required"}
	}

	if err := UpdateFilesValue(req.Name, req.Value); err != nil {
		return &web.Error{Err: err, Code: http.StatusBadRequest, Message: err.Error()}
	}

	// 파일에 저장
	if err := SaveConfig(); err != nil {
		return &web.Error{Err: err, Code: http.StatusInternalServerError, Message: "Failed to save config"}
	}

	web.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Configuration updated successfully",
	})
	return nil
}
