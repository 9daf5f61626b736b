// Package services holds small application services that sit between the
// bridge handlers and the stores.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/internal/transcript"
	"github.com/scenepilot/scenepilot/pkg/types"
)

// Setting keys persisted in the store's settings table.
const (
	keyTemperature = "temperature"
	keyMaxTokens   = "max_tokens"
	keyCaching     = "enable_caching"
	keyMultiStep   = "enable_multi_step_planning"
	keyUseCustom   = "use_custom_model"
	keyCustomModel = "custom_model"
)

// SettingsService persists assistant runtime settings so host UI adjustments
// survive bridge restarts. Persisted values are merged over the supplied
// defaults, so a fresh database yields exactly the configured defaults.
type SettingsService struct {
	store  transcript.Store
	logger *zap.Logger
}

// NewSettingsService creates a settings service over the given store.
func NewSettingsService(store transcript.Store, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{store: store, logger: logger}
}

// Load returns the defaults overlaid with every persisted setting. Persisted
// values that fail to parse are skipped, keeping the default for that field.
func (s *SettingsService) Load(ctx context.Context, defaults types.AssistantSettings) (types.AssistantSettings, error) {
	stored, err := s.store.Settings(ctx)
	if err != nil {
		return defaults, fmt.Errorf("services: failed to load settings: %w", err)
	}

	settings := defaults
	if v, ok := stored[keyTemperature]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.Temperature = f
		} else {
			s.logger.Warn("skipping unparseable setting", zap.String("key", keyTemperature), zap.String("value", v))
		}
	}
	if v, ok := stored[keyMaxTokens]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			settings.MaxTokens = n
		} else {
			s.logger.Warn("skipping unparseable setting", zap.String("key", keyMaxTokens), zap.String("value", v))
		}
	}
	if v, ok := stored[keyCaching]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.EnableCaching = b
		}
	}
	if v, ok := stored[keyMultiStep]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.EnableMultiStepPlanning = b
		}
	}
	if v, ok := stored[keyUseCustom]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.UseCustomModel = b
		}
	}
	if v, ok := stored[keyCustomModel]; ok {
		settings.CustomModel = v
	}

	return settings, nil
}

// Save validates and persists the full settings document.
func (s *SettingsService) Save(ctx context.Context, settings types.AssistantSettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("services: invalid settings: %w", err)
	}

	pairs := map[string]string{
		keyTemperature: strconv.FormatFloat(settings.Temperature, 'f', -1, 64),
		keyMaxTokens:   strconv.Itoa(settings.MaxTokens),
		keyCaching:     strconv.FormatBool(settings.EnableCaching),
		keyMultiStep:   strconv.FormatBool(settings.EnableMultiStepPlanning),
		keyUseCustom:   strconv.FormatBool(settings.UseCustomModel),
		keyCustomModel: settings.CustomModel,
	}
	for key, value := range pairs {
		if err := s.store.SetSetting(ctx, key, value); err != nil {
			return fmt.Errorf("services: failed to save setting %q: %w", key, err)
		}
	}
	return nil
}

// Get retrieves one raw setting value. Missing keys return empty with no
// error so callers can treat unset and empty uniformly.
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	value, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, transcript.ErrNotFound) {
		return "", nil
	}
	return value, err
}

// Set stores one raw setting value.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	return s.store.SetSetting(ctx, key, value)
}
