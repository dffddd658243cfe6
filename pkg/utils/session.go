package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateSessionID generates a session ID based on input string
func GenerateSessionID(input string) string {
	// Create a hash of the input combined with timestamp
	hash := md5.Sum([]byte(input + fmt.Sprintf("%d", time.Now().Unix()/3600))) // Changes every hour
	return hex.EncodeToString(hash[:])[:16] // Return first 16 characters
}

// MD5Hash generates MD5 hash of input string
func MD5Hash(input string) string {
	hash := md5.Sum([]byte(input))
	return hex.EncodeToString(hash[:])
}

// NewMessageID returns a unique id for a conversation message
func NewMessageID() string {
	return uuid.NewString()
}

// NewEventID returns a unique id for an analytics event
func NewEventID() string {
	return uuid.NewString()
}

// NewConversationID returns a unique id for a new conversation
func NewConversationID() string {
	return uuid.NewString()
}

// ValidateSessionID validates if a session ID format is correct
func ValidateSessionID(sessionID string) bool {
	if len(sessionID) != 16 {
		return false
	}

	// Check if it's a valid hex string
	_, err := hex.DecodeString(sessionID)
	return err == nil
}
