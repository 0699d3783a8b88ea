package handlers

import (
	"crypto/rand"
	"math/big"
)

// generateID generates a random alphanumeric ID
func generateID(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

// generateQueueToken generates a unique quick-join queue token
func generateQueueToken() string {
	return "QUEUE_" + generateID(10)
}

// generateDeviceHandle mints a handle for guests that did not bring one
func generateDeviceHandle() string {
	return "DEV_" + generateID(12)
}
