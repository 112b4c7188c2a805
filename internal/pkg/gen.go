package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"

	"github.com/google/uuid"
)

// GenerateGameID - generates a short numeric identifier for a game session.
func GenerateGameID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(99999999))
	if err != nil {
		return ""
	}
	return n.String()
}

// GenerateSeatToken - mints a single-use credential for claiming a seat.
func GenerateSeatToken() string {
	return uuid.NewString()
}

// GenerateRequestID - generates an identifier for a bot request.
func GenerateRequestID() string {
	return uuid.NewString()
}

// GenerateNewSessionID - generates a new unique connection session id.
func GenerateNewSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "error-generating-session-id"
	}

	return base64.RawURLEncoding.EncodeToString(b)
}
