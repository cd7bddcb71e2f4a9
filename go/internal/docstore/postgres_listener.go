package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL          string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel        string        // Channel name to LISTEN on
	FallbackInterval     time.Duration // How often to resync subscriptions in case a notification was missed
	PingInterval         time.Duration
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:          "",
		NotifyChannel:        DefaultNotifyChannel,
		FallbackInterval:     30 * time.Second,
		PingInterval:         90 * time.Second,
		MinReconnectInterval: 10 * time.Second,
		MaxReconnectInterval: time.Minute,
	}
}

// PostgresChangeListener forwards NOTIFY payloads written by PostgresStore to a hub.
type PostgresChangeListener struct {
	listener *pq.Listener
	hub      *Hub
	cfg      ListenerConfig
}

func NewPostgresChangeListener(hub *Hub, cfg ListenerConfig) (*PostgresChangeListener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		cfg.MinReconnectInterval,
		cfg.MaxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for document changes")

	return &PostgresChangeListener{
		listener: l,
		hub:      hub,
		cfg:      cfg,
	}, nil
}

// Start blocks until ctx is cancelled.
func (l *PostgresChangeListener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("change listener started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("change listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// nil notification means the connection was re-established;
				// anything sent meanwhile is lost, so refresh every subscriber
				log.Warn().Msg("change listener reconnected, resyncing subscriptions")
				l.hub.Resync()
				continue
			}
			if err := l.handleNotification(note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			l.hub.Resync()
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *PostgresChangeListener) Stop() error {
	return l.listener.Close()
}

// handleNotification decodes a NOTIFY payload and publishes it on the hub.
func (l *PostgresChangeListener) handleNotification(extra string) error {
	change, err := decodeChange([]byte(extra))
	if err != nil {
		return err
	}
	l.hub.Publish(change)
	return nil
}

func decodeChange(data []byte) (Change, error) {
	var change Change
	if err := json.Unmarshal(data, &change); err != nil {
		return Change{}, fmt.Errorf("invalid change payload: %w", err)
	}
	if change.Path == "" {
		return Change{}, fmt.Errorf("invalid change payload: missing path")
	}
	return change, nil
}
