package admission

import (
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/thereayou/roomgate/internal/models"
)

// CredentialIssuer выдаёт кортеж (app_id, room_id, token) для медиа-SDK.
type CredentialIssuer interface {
	Issue(roomID, userID, name string) (*models.Credentials, error)
}

type LiveKitOptions struct {
	AppID     string
	URL       string
	APIKey    string
	APISecret string
	TTL       time.Duration
}

// LiveKitIssuer подписывает access token LiveKit. Без ключа работает
// в открытом режиме и возвращает token = nil.
type LiveKitIssuer struct {
	opts LiveKitOptions
	now  func() time.Time
}

func NewLiveKitIssuer(opts LiveKitOptions) *LiveKitIssuer {
	if opts.TTL <= 0 {
		opts.TTL = 6 * time.Hour
	}
	return &LiveKitIssuer{opts: opts, now: time.Now}
}

func (i *LiveKitIssuer) OpenMode() bool {
	return i.opts.APIKey == "" || i.opts.APISecret == ""
}

func (i *LiveKitIssuer) Issue(roomID, userID, name string) (*models.Credentials, error) {
	creds := &models.Credentials{
		AppID:  i.opts.AppID,
		URL:    i.opts.URL,
		RoomID: roomID,
	}
	if i.OpenMode() {
		return creds, nil
	}

	canPublish := true
	canSubscribe := true
	canPublishData := true

	at := auth.NewAccessToken(i.opts.APIKey, i.opts.APISecret)
	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           roomID,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}
	at.AddGrant(grant).
		SetIdentity(userID).
		SetName(name).
		SetValidFor(i.opts.TTL)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("failed to generate livekit token: %w", err)
	}

	expiresAt := i.now().Add(i.opts.TTL)
	creds.Token = &token
	creds.ExpiresAt = &expiresAt
	return creds, nil
}
