package ai

import "testing"

func TestTokenCounterHonorsTier(t *testing.T) {
	free := getRateLimits("free")

	tc := &TokenCounter{limits: getRateLimits("tier1")}
	if !tc.CanConsume(0, free.RPM+1) {
		t.Error("tier1 counter rejected a request volume above the free RPM cap")
	}

	tc = &TokenCounter{limits: free}
	if tc.CanConsume(0, free.RPM+1) {
		t.Error("free counter accepted a request volume above its RPM cap")
	}
}

func TestTokenCounterDefaultsToFreeLimits(t *testing.T) {
	tc := &TokenCounter{}
	if !tc.CanConsume(1, 1) {
		t.Error("zero-value counter rejected a minimal request")
	}
	if tc.CanConsume(0, getRateLimits("free").RPM+1) {
		t.Error("zero-value counter did not fall back to free limits")
	}
}
