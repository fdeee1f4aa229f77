package models

import (
	"testing"
	"time"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"company", func() *BaseModel {
			c := &Company{}
			return &c.BaseModel
		}},
		{"invitation", func() *BaseModel {
			i := &Invitation{}
			return &i.BaseModel
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			if err := model.BeforeCreate(nil); err != nil {
				t.Fatalf("before create: %v", err)
			}
			if model.ID == "" {
				t.Fatal("expected ID to be generated")
			}
		})
	}
}

func TestUserAndRefreshTokenBeforeCreate(t *testing.T) {
	u := &User{}
	if err := u.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected user ID to be generated")
	}

	r := &RefreshToken{}
	if err := r.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if r.ID == "" {
		t.Fatal("expected refresh token ID to be generated")
	}
}

func TestInvitationExpired(t *testing.T) {
	now := time.Now()
	invite := &Invitation{ExpiresAt: now.Add(time.Hour)}
	if invite.Expired(now) {
		t.Fatal("expected invitation to still be valid")
	}
	if !invite.Expired(now.Add(2 * time.Hour)) {
		t.Fatal("expected invitation to be expired")
	}
}
