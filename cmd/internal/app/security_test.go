package app

import (
	"strings"
	"testing"

	"firsgate/cmd/internal/irnapi"
)

func TestValidateSecurityConfig(t *testing.T) {
	longToken := strings.Repeat("a", 32)

	cases := []struct {
		name    string
		require bool
		token   string
		wantErr bool
	}{
		{"policy off, no token", false, "", false},
		{"policy off, token present", false, longToken, false},
		{"policy on, token present", true, longToken, false},
		{"policy on, token missing", true, "", true},
		{"policy on, token too short", true, "short", true},
	}
	for _, tc := range cases {
		err := ValidateSecurityConfig(
			Config{RequireAdminToken: tc.require},
			irnapi.Config{AdminToken: tc.token},
		)
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}
