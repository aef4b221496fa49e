package tracking

import (
	"context"
	"errors"
	"log/slog"

	"shopsphere/internal/environment"
	"shopsphere/internal/session"
	"shopsphere/internal/storage"
)

// Enabled decides whether tracking may run in this environment. Any
// uncertainty disables it: a missing provider or store, a render pass without
// client storage, an error reading either signal, Do-Not-Track, or an
// explicit "false" consent flag.
func Enabled(ctx context.Context, provider environment.Provider, longLived storage.Store, logger *slog.Logger) bool {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil || longLived == nil {
		return false
	}

	env, err := provider.Current()
	if err != nil {
		logger.Warn("Environment unreadable, tracking disabled", slog.Any("error", err))
		return false
	}
	if env.ServerRender {
		return false
	}
	if env.DoNotTrackEnabled() {
		logger.Debug("Do-Not-Track set, tracking disabled")
		return false
	}

	consent, err := longLived.Get(ctx, session.KeyConsent)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return true
	case err != nil:
		logger.Warn("Consent flag unreadable, tracking disabled", slog.Any("error", err))
		return false
	}
	return consent != "false"
}

// SetConsent persists the shopper's choice in the long-lived store. Opting
// in removes the flag, since absence already means enabled.
func SetConsent(ctx context.Context, longLived storage.Store, granted bool) error {
	if granted {
		err := longLived.Delete(ctx, session.KeyConsent)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return nil
	}
	return longLived.Set(ctx, session.KeyConsent, "false")
}
