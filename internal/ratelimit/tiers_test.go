package ratelimit

import "testing"

func TestResolveTier_PrecedenceOrder(t *testing.T) {
	cases := []struct {
		name string
		subj Subject
		want string
	}{
		{"admin wins over everything", Subject{IsAdmin: true, KeyTier: TierBasic, UserTier: TierPro}, TierAdmin},
		{"key tier wins over user tier", Subject{KeyTier: TierEnterprise, UserTier: TierFree}, TierEnterprise},
		{"user tier used when no key tier", Subject{UserTier: TierPro}, TierPro},
		{"defaults to free", Subject{}, TierFree},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ResolveTier(c.subj); got != c.want {
				t.Errorf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestLimitsForTier_UnknownDefaultsToFree(t *testing.T) {
	got := LimitsForTier("not-a-real-tier")
	want := LimitsForTier(TierFree)
	if got != want {
		t.Errorf("expected unknown tier to default to free limits")
	}
}

func TestLimitsForTier_AdminUnlimited(t *testing.T) {
	if !LimitsForTier(TierAdmin).Unlimited() {
		t.Errorf("expected admin tier to be unlimited")
	}
	if LimitsForTier(TierFree).Unlimited() {
		t.Errorf("expected free tier to not be unlimited")
	}
}
