package service

import (
	"testing"

	"github.com/settle-next/internal/constants"

	"github.com/shopspring/decimal"
)

func createTestPolicy(t *testing.T, deps *serviceTestDeps, scope string, targetID uint, policyType string, value float64, active bool) uint {
	t.Helper()
	policy, err := deps.policySvc.CreatePolicy(PolicyInput{
		Scope:      scope,
		TargetID:   targetID,
		PolicyType: policyType,
		Value:      decimal.NewFromFloat(value),
		IsActive:   &active,
	})
	if err != nil {
		t.Fatalf("create policy %s/%d failed: %v", scope, targetID, err)
	}
	return policy.ID
}

func TestResolvePolicyPrecedence(t *testing.T) {
	deps := setupServiceTest(t)
	createTestPolicy(t, deps, constants.PolicyScopeGlobal, 0, constants.PolicyTypeRate, 10, true)
	createTestPolicy(t, deps, constants.PolicyScopeSeller, 1001, constants.PolicyTypeRate, 15, true)
	createTestPolicy(t, deps, constants.PolicyScopeProduct, 2001, constants.PolicyTypeFixed, 5, true)

	// 商品级优先
	policy, err := deps.policySvc.ResolvePolicy(2001, 1001)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if policy.Scope != constants.PolicyScopeProduct || policy.PolicyType != constants.PolicyTypeFixed {
		t.Fatalf("want product fixed policy got %s/%s", policy.Scope, policy.PolicyType)
	}

	// 商品未配置时回落卖家级
	policy, err = deps.policySvc.ResolvePolicy(2999, 1001)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if policy.Scope != constants.PolicyScopeSeller || policy.Value.String() != "15.00" {
		t.Fatalf("want seller 15 policy got %s/%s", policy.Scope, policy.Value.String())
	}

	// 商品与卖家都未配置时回落全局级
	policy, err = deps.policySvc.ResolvePolicy(2999, 9999)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if policy.Scope != constants.PolicyScopeGlobal || policy.Value.String() != "10.00" {
		t.Fatalf("want global 10 policy got %s/%s", policy.Scope, policy.Value.String())
	}
}

func TestResolvePolicyConfigFallback(t *testing.T) {
	deps := setupServiceTest(t)

	// 没有任何策略时回落到配置默认比例
	policy, err := deps.policySvc.ResolvePolicy(2001, 1001)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if policy.ID != 0 {
		t.Fatalf("config fallback policy should not be persisted, got id %d", policy.ID)
	}
	if policy.Scope != constants.PolicyScopeGlobal || policy.PolicyType != constants.PolicyTypeRate {
		t.Fatalf("fallback want global rate got %s/%s", policy.Scope, policy.PolicyType)
	}
	if policy.Value.String() != "20.00" {
		t.Fatalf("fallback rate want 20.00 got %s", policy.Value.String())
	}
}

func TestResolvePolicySkipsInactive(t *testing.T) {
	deps := setupServiceTest(t)
	createTestPolicy(t, deps, constants.PolicyScopeProduct, 2001, constants.PolicyTypeFixed, 5, false)
	createTestPolicy(t, deps, constants.PolicyScopeSeller, 1001, constants.PolicyTypeRate, 15, true)

	policy, err := deps.policySvc.ResolvePolicy(2001, 1001)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if policy.Scope != constants.PolicyScopeSeller {
		t.Fatalf("inactive product policy should be skipped, got scope %s", policy.Scope)
	}
}

func TestCreatePolicyValidation(t *testing.T) {
	deps := setupServiceTest(t)

	cases := []struct {
		name  string
		input PolicyInput
	}{
		{"unknown scope", PolicyInput{Scope: "shop", PolicyType: constants.PolicyTypeRate, Value: decimal.NewFromInt(10)}},
		{"product without target", PolicyInput{Scope: constants.PolicyScopeProduct, PolicyType: constants.PolicyTypeRate, Value: decimal.NewFromInt(10)}},
		{"seller without target", PolicyInput{Scope: constants.PolicyScopeSeller, PolicyType: constants.PolicyTypeRate, Value: decimal.NewFromInt(10)}},
		{"global with target", PolicyInput{Scope: constants.PolicyScopeGlobal, TargetID: 5, PolicyType: constants.PolicyTypeRate, Value: decimal.NewFromInt(10)}},
		{"rate over 100", PolicyInput{Scope: constants.PolicyScopeGlobal, PolicyType: constants.PolicyTypeRate, Value: decimal.NewFromInt(120)}},
		{"negative rate", PolicyInput{Scope: constants.PolicyScopeGlobal, PolicyType: constants.PolicyTypeRate, Value: decimal.NewFromInt(-5)}},
		{"negative fixed", PolicyInput{Scope: constants.PolicyScopeGlobal, PolicyType: constants.PolicyTypeFixed, Value: decimal.NewFromInt(-5)}},
		{"unknown policy type", PolicyInput{Scope: constants.PolicyScopeGlobal, PolicyType: "tiered", Value: decimal.NewFromInt(10)}},
	}
	for _, tc := range cases {
		if _, err := deps.policySvc.CreatePolicy(tc.input); err != ErrPolicyInvalid {
			t.Fatalf("%s: want ErrPolicyInvalid got %v", tc.name, err)
		}
	}
}

func TestCreatePolicyDeactivatesPreviousActive(t *testing.T) {
	deps := setupServiceTest(t)
	firstID := createTestPolicy(t, deps, constants.PolicyScopeSeller, 1001, constants.PolicyTypeRate, 15, true)
	secondID := createTestPolicy(t, deps, constants.PolicyScopeSeller, 1001, constants.PolicyTypeRate, 12, true)

	// 同一 (scope, target_id) 只保留一条生效策略
	first, err := deps.policySvc.GetPolicy(firstID)
	if err != nil {
		t.Fatalf("get first policy failed: %v", err)
	}
	if first.IsActive {
		t.Fatalf("first policy should be deactivated after second active create")
	}
	active, err := deps.policyRepo.GetActive(constants.PolicyScopeSeller, 1001)
	if err != nil {
		t.Fatalf("get active failed: %v", err)
	}
	if active == nil || active.ID != secondID {
		t.Fatalf("active policy want %d got %+v", secondID, active)
	}

	// 新建停用策略不影响现有生效策略
	thirdID := createTestPolicy(t, deps, constants.PolicyScopeSeller, 1001, constants.PolicyTypeFixed, 3, false)
	active, err = deps.policyRepo.GetActive(constants.PolicyScopeSeller, 1001)
	if err != nil {
		t.Fatalf("get active failed: %v", err)
	}
	if active == nil || active.ID != secondID {
		t.Fatalf("inactive create should not change active policy, got %+v", active)
	}

	// 更新停用策略为生效时，旧生效策略被停用
	enable := true
	if _, err := deps.policySvc.UpdatePolicy(thirdID, PolicyInput{
		Scope:      constants.PolicyScopeSeller,
		TargetID:   1001,
		PolicyType: constants.PolicyTypeFixed,
		Value:      decimal.NewFromInt(3),
		IsActive:   &enable,
	}); err != nil {
		t.Fatalf("update policy failed: %v", err)
	}
	active, err = deps.policyRepo.GetActive(constants.PolicyScopeSeller, 1001)
	if err != nil {
		t.Fatalf("get active failed: %v", err)
	}
	if active == nil || active.ID != thirdID {
		t.Fatalf("active policy want %d got %+v", thirdID, active)
	}
	second, err := deps.policySvc.GetPolicy(secondID)
	if err != nil {
		t.Fatalf("get second policy failed: %v", err)
	}
	if second.IsActive {
		t.Fatalf("second policy should be deactivated after third enabled")
	}
}

func TestUpdateAndDeletePolicy(t *testing.T) {
	deps := setupServiceTest(t)
	id := createTestPolicy(t, deps, constants.PolicyScopeSeller, 1001, constants.PolicyTypeRate, 15, true)

	updated, err := deps.policySvc.UpdatePolicy(id, PolicyInput{
		Scope:      constants.PolicyScopeSeller,
		TargetID:   1001,
		PolicyType: constants.PolicyTypeRate,
		Value:      decimal.NewFromInt(12),
	})
	if err != nil {
		t.Fatalf("update policy failed: %v", err)
	}
	if updated.Value.String() != "12.00" {
		t.Fatalf("updated value want 12.00 got %s", updated.Value.String())
	}

	if _, err := deps.policySvc.UpdatePolicy(9999, PolicyInput{
		Scope:      constants.PolicyScopeGlobal,
		PolicyType: constants.PolicyTypeRate,
		Value:      decimal.NewFromInt(10),
	}); err != ErrPolicyNotFound {
		t.Fatalf("update missing policy want ErrPolicyNotFound got %v", err)
	}

	if err := deps.policySvc.DeletePolicy(id); err != nil {
		t.Fatalf("delete policy failed: %v", err)
	}
	if err := deps.policySvc.DeletePolicy(id); err != ErrPolicyNotFound {
		t.Fatalf("delete missing policy want ErrPolicyNotFound got %v", err)
	}
	if _, err := deps.policySvc.GetPolicy(id); err != ErrPolicyNotFound {
		t.Fatalf("get deleted policy want ErrPolicyNotFound got %v", err)
	}
}
