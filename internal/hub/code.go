package hub

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateCode returns a room code of the form IPL100..IPL999.
func GenerateCode() (string, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(900))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("IPL%d", 100+num.Int64()), nil
}
