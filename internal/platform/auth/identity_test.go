package auth

import (
	"context"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"patient", RolePatient, true},
		{"doctor", RoleDoctor, true},
		{"admin", RoleAdmin, true},
		{"superuser", "", false},
		{"", "", false},
		{"Patient", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRoleCan(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RolePatient, PermReadOwnRecords, true},
		{RolePatient, PermWriteOwnRecords, true},
		{RolePatient, PermReadAnyRecord, false},
		{RolePatient, PermWriteAnyRecord, false},
		{RolePatient, PermManageProfiles, false},
		{RoleDoctor, PermReadAnyRecord, true},
		{RoleDoctor, PermWriteAnyRecord, true},
		{RoleDoctor, PermManageProfiles, false},
		{RoleAdmin, PermReadAnyRecord, true},
		{RoleAdmin, PermManageProfiles, true},
		{Role("unknown"), PermReadOwnRecords, false},
	}
	for _, tt := range tests {
		if got := tt.role.Can(tt.perm); got != tt.want {
			t.Errorf("%s.Can(%s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	id := &Identity{UID: "u1", Role: RoleDoctor, EmailVerified: true}
	ctx := WithIdentity(context.Background(), id)

	got := IdentityFromContext(ctx)
	if got == nil {
		t.Fatal("expected identity in context")
	}
	if got.UID != "u1" || got.Role != RoleDoctor || !got.EmailVerified {
		t.Errorf("unexpected identity: %+v", got)
	}
}

func TestIdentityFromContext_Absent(t *testing.T) {
	if got := IdentityFromContext(context.Background()); got != nil {
		t.Errorf("expected nil identity, got %+v", got)
	}
}
