package auth

import (
	"github.com/dmitrijs2005/cloudra/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewOneTimeToken returns a random token for the user to receive and the
// digest to store in its place.
func NewOneTimeToken() (raw, hashed string, err error) {
	raw, err = common.MakeRandHexString(20)
	if err != nil {
		return "", "", err
	}
	return raw, common.HashToken(raw), nil
}
