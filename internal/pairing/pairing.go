// Package pairing obtains an app token from the appliance. The user has to
// confirm the request on the appliance front panel.
package pairing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/benmeehan/fbx-agent/internal/constants"
	"github.com/benmeehan/fbx-agent/internal/models"
	"github.com/benmeehan/fbx-agent/pkg/credential"
	"github.com/benmeehan/fbx-agent/pkg/fbxerr"
	"github.com/benmeehan/fbx-agent/pkg/httpclient"
	"github.com/benmeehan/fbx-agent/pkg/identity"
)

// ConfirmPrompt is shown once per pairing while the appliance waits for the user.
const ConfirmPrompt = "Please confirm the authentification on the freebox."

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config holds the tunables of a pairing run.
type Config struct {
	PollInterval time.Duration
	// UnknownIsDenied ends the run on an "unknown" status instead of polling on.
	UnknownIsDenied bool
	Prompt          io.Writer
	Sleep           SleepFunc
}

// Service runs the pairing handshake against a versioned base URL.
type Service struct {
	client  *http.Client
	baseURL string
	store   credential.Store
	cfg     Config
	logger  zerolog.Logger
}

// NewService creates a pairing Service. A nil Prompt discards the prompt.
func NewService(client *http.Client, baseURL string, store credential.Store, cfg Config, logger zerolog.Logger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.Prompt == nil {
		cfg.Prompt = io.Discard
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}
	return &Service{
		client:  client,
		baseURL: baseURL,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
}

// Authorize asks the appliance for a new app token for descriptor and waits
// until the user answers. The credential is saved only once granted.
func (s *Service) Authorize(ctx context.Context, descriptor identity.Descriptor) (credential.Credential, error) {
	if err := descriptor.Validate(); err != nil {
		return credential.Credential{}, err
	}

	logger := s.logger.With().Str("attempt_id", uuid.NewString()).Str("app_id", descriptor.AppID).Logger()
	logger.Info().Msg("Requesting app token")

	grant, err := s.requestToken(ctx, descriptor)
	if err != nil {
		logger.Error().Err(err).Msg("App token request failed")
		return credential.Credential{}, err
	}
	logger = logger.With().Str("track_id", string(grant.TrackID)).Logger()

	if err := s.waitForGrant(ctx, grant.TrackID, logger); err != nil {
		return credential.Credential{}, err
	}

	cred := credential.Credential{
		AppToken:   grant.AppToken,
		TrackID:    grant.TrackID,
		Descriptor: descriptor,
	}
	if err := s.store.Save(cred); err != nil {
		logger.Error().Err(err).Str("location", s.store.Location()).Msg("Failed to store credential")
		return credential.Credential{}, fmt.Errorf("failed to store credential: %w", err)
	}

	logger.Info().Str("location", s.store.Location()).Msg("App token granted and stored")
	return cred, nil
}

func (s *Service) requestToken(ctx context.Context, descriptor identity.Descriptor) (*models.AuthorizeResult, error) {
	resp, err := httpclient.Do(ctx, s.client, http.MethodPost, s.baseURL+"login/authorize/", descriptor, nil)
	if err != nil {
		return nil, fbxerr.NewTransport("app token request failed", err)
	}

	var envelope models.APIResponse
	if err := resp.Decode(&envelope); err != nil || !envelope.Success {
		return nil, fbxerr.NewAuthorizationRejected(resp.Body)
	}

	var result models.AuthorizeResult
	if err := json.Unmarshal(envelope.Result, &result); err != nil || result.AppToken == "" {
		return nil, fbxerr.NewAuthorizationRejected(resp.Body)
	}
	return &result, nil
}

// waitForGrant polls the track until the user grants or refuses the request.
func (s *Service) waitForGrant(ctx context.Context, trackID credential.TrackID, logger zerolog.Logger) error {
	prompted := false
	for {
		status, err := s.trackStatus(ctx, trackID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read authorization status")
			return err
		}

		switch status {
		case constants.AuthorizationGranted:
			return nil
		case constants.AuthorizationDenied:
			logger.Warn().Msg("Authorization denied on the appliance")
			return fbxerr.NewAuthorizationDenied()
		case constants.AuthorizationTimeout:
			logger.Warn().Msg("Authorization was not confirmed in time")
			return fbxerr.NewAuthorizationTimedOut()
		case constants.AuthorizationPending:
			if !prompted {
				fmt.Fprintln(s.cfg.Prompt, ConfirmPrompt)
				prompted = true
			}
		default:
			if s.cfg.UnknownIsDenied {
				logger.Warn().Str("status", string(status)).Msg("Authorization status unknown, giving up")
				return fbxerr.NewAuthorizationDenied()
			}
			logger.Warn().Str("status", string(status)).Msg("Authorization status unknown, polling again")
		}

		if err := s.cfg.Sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (s *Service) trackStatus(ctx context.Context, trackID credential.TrackID) (constants.AuthorizationStatus, error) {
	resp, err := httpclient.Do(ctx, s.client, http.MethodGet, s.baseURL+"login/authorize/"+string(trackID), nil, nil)
	if err != nil {
		return "", fbxerr.NewTransport("authorization status request failed", err)
	}

	var envelope models.APIResponse
	if err := resp.Decode(&envelope); err != nil {
		return "", fbxerr.NewTransport("unexpected authorization status answer", err)
	}
	if !envelope.Success {
		return "", fbxerr.NewRequestFailed(envelope.ErrorCode, "authorization status request failed: "+envelope.Message, resp.Body)
	}

	var result models.AuthorizationStatusResult
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return constants.AuthorizationUnknown, nil
	}
	return result.Status, nil
}
