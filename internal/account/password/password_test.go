package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct horse battery")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	assert.True(t, Verify("correct horse battery", encoded))
	assert.False(t, Verify("Correct horse battery", encoded))
}

func TestHashIsSalted(t *testing.T) {
	a, err := Hash("same password")
	assert.NoError(t, err)
	b, err := Hash("same password")
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyRejectsMalformedEncodings(t *testing.T) {
	assert.False(t, Verify("anything", ""))
	assert.False(t, Verify("anything", "$argon2id$v=19$garbage"))
	assert.False(t, Verify("anything", "plaintext"))
}
