// Package settings persists the operator's last used rule and team names.
// The data is local to one operator and is never synchronized.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/rs/zerolog/log"
)

// StorageKey is the single well-known key the settings record is kept under.
const StorageKey = "smashquiz.settings"

var ErrNotFound = errors.New("settings not found")

// Settings is the operator form as last submitted.
type Settings struct {
	Rule  models.Rule `json:"rule"`
	Names []string    `json:"names"`
}

// Default returns the values a fresh operator form starts with.
func Default() Settings {
	return Settings{Rule: models.DefaultRule(), Names: models.DefaultTeamNames()}
}

// Validate rejects records that cannot start a game.
func (s Settings) Validate() error {
	if err := s.Rule.Validate(); err != nil {
		return err
	}
	for _, name := range s.Names {
		if strings.TrimSpace(name) != "" {
			return nil
		}
	}
	return errors.New("no team names")
}

type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// LoadOrDefault reads the stored settings. Missing, unreadable or invalid
// data yields defaults; it never fails.
func LoadOrDefault(ctx context.Context, store Store, defaults Settings) Settings {
	s, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		return defaults
	case err != nil:
		log.Warn().Err(err).Msg("failed to load settings, using defaults")
		return defaults
	}
	if err := s.Validate(); err != nil {
		log.Warn().Err(err).Msg("stored settings are invalid, using defaults")
		return defaults
	}
	return s
}

func decode(data []byte) (Settings, error) {
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}
