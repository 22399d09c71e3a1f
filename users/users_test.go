package users_test

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/jrsteele09/go-surface-auth/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
)

func TestRoleType_Satisfies(t *testing.T) {
	tests := []struct {
		role users.RoleType
		min  users.RoleType
		want bool
	}{
		{users.RoleClient, users.RoleClient, true},
		{users.RoleClient, users.RoleStaff, false},
		{users.RoleStaff, users.RoleClient, true},
		{users.RoleStaff, users.RoleAdmin, false},
		{users.RoleAdmin, users.RoleSuperAdmin, true},
		{users.RoleSuperAdmin, users.RoleAdmin, true},
		{users.RoleType("ghost"), users.RoleClient, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s>=%s", tt.role, tt.min), func(t *testing.T) {
			require.Equal(t, tt.want, tt.role.Satisfies(tt.min))
		})
	}
}

func TestParseRole(t *testing.T) {
	r, err := users.ParseRole(" Super_Admin ")
	require.NoError(t, err)
	require.Equal(t, users.RoleSuperAdmin, r)

	_, err = users.ParseRole("root")
	require.Error(t, err)
}

func TestRoleType_In(t *testing.T) {
	set := []users.RoleType{users.RoleAdmin, users.RoleClient}
	require.True(t, users.RoleClient.In(set))
	require.False(t, users.RoleStaff.In(set))
}

func TestCheckPasswordHash_Bcrypt(t *testing.T) {
	hash, err := users.HashPassword("Secret123")
	require.NoError(t, err)

	require.True(t, users.CheckPasswordHash("Secret123", hash))
	require.False(t, users.CheckPasswordHash("secret123", hash))
	require.False(t, users.CheckPasswordHash("Secret123", "not-a-hash"))
}

func TestCheckPasswordHash_Argon2id(t *testing.T) {
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)

	key := argon2.IDKey([]byte("Secret123"), salt, 1, 8*1024, 1, 32)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, 8*1024, 1, 1,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))

	require.True(t, users.CheckPasswordHash("Secret123", encoded))
	require.False(t, users.CheckPasswordHash("Secret124", encoded))
	require.False(t, users.CheckPasswordHash("Secret123", "$argon2id$v=19$broken"))
}

func TestCheckPasswordHash_Argon2idBadParameters(t *testing.T) {
	tests := map[string]string{
		"zero parallelism": "$argon2id$v=19$m=65536,t=1,p=0$c2FsdHNhbHQ$aGFzaGhhc2g",
		"zero iterations":  "$argon2id$v=19$m=65536,t=0,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"huge memory":      "$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
	}
	for name, encoded := range tests {
		t.Run(name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.False(t, users.CheckPasswordHash("x", encoded))
			})
		})
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Abcdefg1"))
	require.Error(t, users.ValidatePasswordStrength("short1A"))
	require.Error(t, users.ValidatePasswordStrength("alllowercase1"))
	require.Error(t, users.ValidatePasswordStrength("ALLUPPERCASE1"))
	require.Error(t, users.ValidatePasswordStrength("NoNumbersHere"))
}

func TestNormalizeLogin(t *testing.T) {
	require.Equal(t, "alice", users.NormalizeLogin("  ALICE\t"))
}
