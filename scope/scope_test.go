package scope

import (
	"context"
	"testing"

	"github.com/goliatone/go-accessgate/gate"
)

func TestFromContextBuildsEvalContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithUserID(ctx, " user-123 ")
	ctx = WithOrgID(ctx, " org-7 ")
	ctx = WithRole(ctx, " Admin ")
	ctx = WithSector(ctx, "technology")

	got := FromContext(ctx)
	want := gate.EvalContext{
		UserID: "user-123",
		OrgID:  "org-7",
		Role:   gate.RoleAdmin,
		Sector: "technology",
	}
	if got != want {
		t.Fatalf("FromContext() = %+v, want %+v", got, want)
	}
}

func TestWithRoleFailsClosedOnGarbage(t *testing.T) {
	ctx := WithRole(context.Background(), "<UserRole.ADMIN: 'admin'>")
	if got := Role(ctx); got != gate.RoleUnknown {
		t.Fatalf("Role() = %q, want RoleUnknown", got)
	}
}

func TestFromContextNil(t *testing.T) {
	var ctx context.Context
	if got := FromContext(ctx); got != (gate.EvalContext{}) {
		t.Fatalf("FromContext(nil) = %+v, want empty", got)
	}
}
