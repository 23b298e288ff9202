package security_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nitish987/chatdrop/security"
)

func TestSealer_RoundTrip(t *testing.T) {
	sealer, err := security.NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	assert.NoError(t, err)

	sealed, err := sealer.Seal("secret value")
	assert.NoError(t, err)
	assert.NotEqual(t, "secret value", sealed)

	opened, err := sealer.Open(sealed)
	assert.NoError(t, err)
	assert.Equal(t, "secret value", opened)
}

func TestSealer_WrongKey(t *testing.T) {
	sealer, err := security.NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	assert.NoError(t, err)
	other, err := security.NewSealer([]byte("ffffffffffffffffffffffffffffffff"))
	assert.NoError(t, err)

	sealed, err := sealer.Seal("secret value")
	assert.NoError(t, err)

	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestSealer_Malformed(t *testing.T) {
	sealer, err := security.NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	assert.NoError(t, err)

	_, err = sealer.Open("not base64 !!!")
	assert.Error(t, err)

	_, err = sealer.Open("c2hvcnQ=")
	assert.Error(t, err)
}

func TestSealer_BadKeySize(t *testing.T) {
	_, err := security.NewSealer([]byte("short"))
	assert.Error(t, err)
}

func TestGenerateOTP(t *testing.T) {
	otp, hash, err := security.GenerateOTP()
	assert.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), otp)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, otp, hash)

	assert.True(t, security.CheckOTP(otp, hash))
	assert.False(t, security.CheckOTP("000000", security.HashOTP("999999")))
}

func TestHashPassword(t *testing.T) {
	encoded, err := security.HashPassword("passw0rd1")
	assert.NoError(t, err)
	assert.NotContains(t, encoded, "passw0rd1")

	assert.True(t, security.CheckPassword("passw0rd1", encoded))
	assert.False(t, security.CheckPassword("passw0rd2", encoded))
	assert.False(t, security.CheckPassword("passw0rd1", "garbage"))

	// Fresh salt every time
	again, err := security.HashPassword("passw0rd1")
	assert.NoError(t, err)
	assert.NotEqual(t, encoded, again)
}

func TestGenerateUid(t *testing.T) {
	a, err := security.GenerateUid()
	assert.NoError(t, err)
	b, err := security.GenerateUid()
	assert.NoError(t, err)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestGenerateToken(t *testing.T) {
	a, err := security.GenerateToken(32)
	assert.NoError(t, err)
	b, err := security.GenerateToken(32)
	assert.NoError(t, err)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestGenerateUsername(t *testing.T) {
	username, err := security.GenerateUsername("Asha", "Rao")
	assert.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^asharao[0-9]{8}$`), username)
}

func TestGenerateUsername_StripsProviderNames(t *testing.T) {
	handlePattern := regexp.MustCompile(`^[a-z0-9._]{3,30}$`)

	cases := []struct {
		first, last string
		prefix      string
	}{
		{"Zoë", "O'Brien-Smith", "zobriensmith"},
		{"José", "García", "josgarca"},
		{"Jean Luc", "De La Cruz", "jeanlucdelacruz"},
		{"", "", "user"},
		{"竜馬", "坂本", "user"},
	}
	for _, tc := range cases {
		username, err := security.GenerateUsername(tc.first, tc.last)
		assert.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^`+tc.prefix+`[0-9]{8}$`), username)
		assert.Regexp(t, handlePattern, username)
	}
}

func TestGenerateUsername_CapsLongNames(t *testing.T) {
	username, err := security.GenerateUsername("Wolfeschlegelsteinhausen", "Bergerdorff")
	assert.NoError(t, err)
	assert.LessOrEqual(t, len(username), 30)
	assert.Regexp(t, regexp.MustCompile(`^wolfeschlegelsteinhaus[0-9]{8}$`), username)
}
