package fixture

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/errors"
	jsonpool "github.com/talentsync/talentsync/pkg/json"
	"github.com/talentsync/talentsync/pkg/models"
)

// Webhook events accepted by the fixture handler.
const (
	EventCandidateCreated = "candidate.created"
	EventCandidateUpdated = "candidate.updated"
	EventJobCreated       = "job.created"
	EventJobUpdated       = "job.updated"
)

type webhookEnvelope struct {
	Event     string            `json:"event"`
	Candidate *models.Candidate `json:"candidate,omitempty"`
	Job       *models.Job       `json:"job,omitempty"`
}

// Webhook handles fixture push events. Payloads are an event envelope with
// the changed entity inline; signatures are hex HMAC-SHA256 of the raw
// payload.
type Webhook struct {
	source string
	logger *zap.Logger
}

// Handle applies one push event and reports what changed.
func (h *Webhook) Handle(ctx context.Context, payload []byte, headers map[string]string) (*models.SyncResult, error) {
	var env webhookEnvelope
	if err := jsonpool.Unmarshal(payload, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed webhook payload")
	}

	result := models.NewSyncResult()

	switch env.Event {
	case EventCandidateCreated, EventCandidateUpdated:
		if env.Candidate == nil || env.Candidate.ID == "" {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"event %s carries no candidate", env.Event)
		}
		result.RecordsProcessed = 1
		if env.Event == EventCandidateCreated {
			result.RecordsCreated = 1
			result.CreatedIDs = []string{env.Candidate.ID}
		} else {
			result.RecordsUpdated = 1
		}

	case EventJobCreated, EventJobUpdated:
		if env.Job == nil || env.Job.ID == "" {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"event %s carries no job", env.Event)
		}
		result.RecordsProcessed = 1
		if env.Event == EventJobCreated {
			result.RecordsCreated = 1
		} else {
			result.RecordsUpdated = 1
		}

	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown webhook event %q", env.Event)
	}

	h.logger.Debug("webhook event handled",
		zap.String("event", env.Event),
		zap.Int("created", result.RecordsCreated),
		zap.Int("updated", result.RecordsUpdated))
	return result, nil
}

// VerifySignature checks a hex HMAC-SHA256 signature, with or without the
// conventional sha256= prefix.
func (h *Webhook) VerifySignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign computes the signature the handler expects, for test drivers and
// fixture tooling.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
