package app

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"locallibrary/internal/util"
	"locallibrary/pkg/events"
	"locallibrary/pkg/storage"
	"locallibrary/pkg/store"
)

const defaultPresignExpiry = 15 * time.Minute

// Config holds runtime dependencies for the catalog core.
type Config struct {
	Store store.Store
	// Objects stores book covers; nil disables cover uploads.
	Objects storage.ObjectStore
	// Events receives change notifications; nil discards them.
	Events        events.Publisher
	PresignExpiry time.Duration
}

// App implements the catalog use cases on top of the injected store.
type App struct {
	store         store.Store
	objects       storage.ObjectStore
	events        events.Publisher
	validate      *validator.Validate
	presignExpiry time.Duration
}

// New constructs the application. The caller owns the store lifecycle.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	return &App{
		store:         cfg.Store,
		objects:       cfg.Objects,
		events:        publisher,
		validate:      newValidator(),
		presignExpiry: expiry,
	}, nil
}

// CoversEnabled reports whether book cover uploads are stored.
func (a *App) CoversEnabled() bool {
	return a.objects != nil
}

// publish announces a change. Failures are logged and never reach the caller.
func (a *App) publish(ctx context.Context, entity, action, id string) {
	ev := events.Event{Entity: entity, Action: action, ID: id, At: time.Now().UTC()}
	if err := a.events.Publish(ctx, ev); err != nil {
		util.LoggerFromContext(ctx).Warn("publish catalog event failed",
			"entity", entity, "action", action, "id", id, "err", err)
	}
}

func now() time.Time {
	return time.Now().UTC()
}
