package pkg

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	roomIDMin = 1000
	roomIDMax = 9999

	recordIDLength = 16
)

// GenerateRoomID - generates a short numeric room code that players can type in.
func GenerateRoomID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(roomIDMax-roomIDMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate room id: %w", err)
	}

	return n.Add(n, big.NewInt(roomIDMin)).String(), nil
}

// GenerateNewSessionID - generates a new unique session or participant id.
func GenerateNewSessionID() string {
	return uuid.NewString()
}

// GenerateRecordID - generates an id for history and result records.
func GenerateRecordID() (string, error) {
	id, err := gonanoid.New(recordIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate record id: %w", err)
	}

	return id, nil
}
