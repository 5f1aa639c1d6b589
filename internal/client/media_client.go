// internal/client/media_client.go

package client

import (
	"context"
	"errors"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"

	"call-service/internal/config"
)

var ErrMediaNotConfigured = errors.New("media provider credentials not configured")

// MediaClient hands out short-lived media-session credentials and manages
// the provider-side room lifecycle. Media transport itself happens
// directly between the clients and LiveKit; this service only brokers.
type MediaClient interface {
	CreateRoom(ctx context.Context, roomName string) error
	DeleteRoom(ctx context.Context, roomName string)
	JoinToken(roomName, identity, displayName string) (string, error)
	WSUrl() string
}

type mediaClient struct {
	lkClient *lksdk.RoomServiceClient
	cfg      config.LiveKitConfig
	tokenTTL time.Duration
	logger   *zap.Logger
}

func NewMediaClient(cfg config.LiveKitConfig, tokenTTL time.Duration, logger *zap.Logger) MediaClient {
	var lkClient *lksdk.RoomServiceClient
	if cfg.Host != "" && cfg.APIKey != "" && cfg.APISecret != "" {
		lkClient = lksdk.NewRoomServiceClient(cfg.Host, cfg.APIKey, cfg.APISecret)
	}

	return &mediaClient{
		lkClient: lkClient,
		cfg:      cfg,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

func (m *mediaClient) CreateRoom(ctx context.Context, roomName string) error {
	if m.lkClient == nil {
		return nil
	}

	_, err := m.lkClient.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            roomName,
		EmptyTimeout:    300, // 5 minutes
		MaxParticipants: 2,
	})
	return err
}

// DeleteRoom is best-effort: a failed delete only means the room lingers
// until its empty timeout fires provider-side.
func (m *mediaClient) DeleteRoom(ctx context.Context, roomName string) {
	if m.lkClient == nil {
		return
	}

	if _, err := m.lkClient.DeleteRoom(ctx, &livekit.DeleteRoomRequest{
		Room: roomName,
	}); err != nil {
		m.logger.Warn("Failed to delete media room",
			zap.String("room", roomName),
			zap.Error(err))
	}
}

func (m *mediaClient) JoinToken(roomName, identity, displayName string) (string, error) {
	if m.cfg.APIKey == "" || m.cfg.APISecret == "" {
		return "", ErrMediaNotConfigured
	}

	at := auth.NewAccessToken(m.cfg.APIKey, m.cfg.APISecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.AddGrant(grant).
		SetIdentity(identity).
		SetName(displayName).
		SetValidFor(m.tokenTTL)

	return at.ToJWT()
}

func (m *mediaClient) WSUrl() string {
	return m.cfg.WSUrl
}
