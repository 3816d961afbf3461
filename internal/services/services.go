// package services defines interface Analyzer for interacting with the analysis HTTP API
package services

import (
	"context"

	"github.com/desertthunder/biy/internal/models"
)

// Analyzer defines the submission side of the analysis service.
type Analyzer interface {
	// Analyze uploads a payload for the given session and returns the acknowledgement.
	// The transformed result is delivered separately over the session's push channel.
	Analyze(ctx context.Context, sessionID string, payload models.Payload) (*models.Ack, error)

	// Name returns the name of the service (e.g., "analysis")
	Name() string
}
