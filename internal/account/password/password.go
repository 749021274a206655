// Package password implements the Argon2id credential hashing used for
// account rows. Parameters follow the RFC 9106 recommendations.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

type params struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
}

var defaultParams = params{
	time:    1,
	memory:  64 * 1024,
	threads: 4,
	keyLen:  32,
}

const saltLen = 16

// Hash returns the encoded Argon2id hash for password.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	p := defaultParams
	hash := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.memory,
		p.time,
		p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks whether password matches the encoded Argon2id hash.
func Verify(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false
	}

	p, ok := parseParams(parts[3])
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	check := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, check) == 1
}

func parseParams(encoded string) (params, bool) {
	fields := strings.Split(encoded, ",")
	if len(fields) != 3 {
		return params{}, false
	}

	m, ok := strings.CutPrefix(fields[0], "m=")
	if !ok {
		return params{}, false
	}
	t, ok := strings.CutPrefix(fields[1], "t=")
	if !ok {
		return params{}, false
	}
	th, ok := strings.CutPrefix(fields[2], "p=")
	if !ok {
		return params{}, false
	}

	memory, err := strconv.ParseUint(m, 10, 32)
	if err != nil {
		return params{}, false
	}
	timeCost, err := strconv.ParseUint(t, 10, 32)
	if err != nil {
		return params{}, false
	}
	threads, err := strconv.ParseUint(th, 10, 8)
	if err != nil {
		return params{}, false
	}

	return params{
		time:    uint32(timeCost),
		memory:  uint32(memory),
		threads: uint8(threads),
	}, true
}
