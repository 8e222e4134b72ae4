package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/llanen/nl.eneco.toon/pkg/model"
)

// LegacyTokens is the flat token pair format older deployments stored
// per display, without session identity or expiry.
type LegacyTokens struct {
	DisplayCommonName string `json:"displayCommonName"`
	AccessToken       string `json:"accessToken"`
	RefreshToken      string `json:"refreshToken"`
}

// MigrateLegacyTokens converts flat legacy token pairs into a persisted
// session. The expiry is left at zero so the first refresh happens
// immediately. The migration runs once: if any session is already
// persisted, nothing happens.
func MigrateLegacyTokens(ctx context.Context, store Store, configID string, legacy []LegacyTokens, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	existing, err := store.List(ctx)
	if err != nil {
		return false, fmt.Errorf("listing sessions: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	for _, lt := range legacy {
		if lt.AccessToken == "" || lt.RefreshToken == "" {
			continue
		}
		sess := model.Session{
			ID:       uuid.NewString(),
			ConfigID: configID,
			Title:    "Toon",
			Token: model.Token{
				AccessToken:  lt.AccessToken,
				RefreshToken: lt.RefreshToken,
			},
		}
		if err := store.Save(ctx, sess); err != nil {
			return false, fmt.Errorf("persisting migrated session: %w", err)
		}
		logger.Info("Migrated legacy tokens", "display", lt.DisplayCommonName, "session_id", sess.ID)
		return true, nil
	}

	return false, nil
}
