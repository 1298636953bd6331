package wechat

import (
	"context"
	"fmt"

	"github.com/soyeahso/gewebridge/internal/config"
	"github.com/soyeahso/gewebridge/internal/gewe"
	"github.com/soyeahso/gewebridge/internal/logging"
)

// Bootstrap prepares the gateway session: it obtains and saves a token when
// none is configured, logs the device in, and once the callback server is
// listening registers the callback URL.
func Bootstrap(ctx context.Context, client *gewe.Client, cfg config.GeweConfig, configPath string, ready <-chan struct{}, log *logging.Logger) error {
	log = log.Sub("bootstrap")

	if client.Token() == "" {
		token, err := client.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("fetching token: %w", err)
		}
		client.SetToken(token)
		if err := config.Persist(configPath, "gewe.token", token); err != nil {
			return fmt.Errorf("saving token: %w", err)
		}
		log.Info().Str("path", configPath).Msg("new gateway token saved")
	}

	appID, err := client.Login(ctx, cfg.AppID)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if appID != cfg.AppID {
		if err := config.Persist(configPath, "gewe.appId", appID); err != nil {
			return fmt.Errorf("saving app id: %w", err)
		}
		log.Info().Str("app_id", appID).Msg("app id saved")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ready:
	}

	if err := client.SetCallback(ctx, client.Token(), cfg.CallbackURL); err != nil {
		return fmt.Errorf("setting callback: %w", err)
	}
	log.Info().Str("callback", cfg.CallbackURL).Msg("callback registered")
	return nil
}
