package arena

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	RoomCodeLength = 6
	// RoomCodeChars leaves out characters that are easy to misread.
	RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateRoomCode creates a random room code.
func GenerateRoomCode() (string, error) {
	code := make([]byte, RoomCodeLength)
	limit := big.NewInt(int64(len(RoomCodeChars)))
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = RoomCodeChars[n.Int64()]
	}
	return string(code), nil
}

// NormalizeRoomCode maps user input onto the canonical form.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
