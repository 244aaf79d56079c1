package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePermission(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Permission
	}{
		{
			name:  "action and entity",
			input: "read:pass",
			want:  Permission{Action: "read", Entity: "pass"},
		},
		{
			name:  "single access scope",
			input: "update:pass:own",
			want:  Permission{Action: "update", Entity: "pass", Access: []string{"own"}},
		},
		{
			name:  "multiple access scopes",
			input: "delete:member:own,org",
			want:  Permission{Action: "delete", Entity: "member", Access: []string{"own", "org"}},
		},
		{
			name:  "whitespace trimmed",
			input: " update : pass : own , org ",
			want:  Permission{Action: "update", Entity: "pass", Access: []string{"own", "org"}},
		},
		{
			name:  "missing entity degrades to empty",
			input: "read",
			want:  Permission{Action: "read"},
		},
		{
			name:  "empty string",
			input: "",
			want:  Permission{},
		},
		{
			name:  "empty access values dropped",
			input: "read:pass:,,",
			want:  Permission{Action: "read", Entity: "pass"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePermission(tt.input))
		})
	}
}

func TestPermissionString(t *testing.T) {
	assert.Equal(t, "read:pass", Permission{Action: "read", Entity: "pass"}.String())
	assert.Equal(t, "delete:member:own,org",
		Permission{Action: "delete", Entity: "member", Access: []string{"own", "org"}}.String())
	assert.Equal(t, "", Permission{}.String())
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"read:pass", "update:pass:own", "delete:member:own,org,any"} {
		assert.Equal(t, s, ParsePermission(s).String())
	}
}
