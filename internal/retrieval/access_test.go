package retrieval

import (
	"testing"

	"github.com/northbound-policy/ingest/internal/model"
)

func TestCanAccessUploaderAlwaysSees(t *testing.T) {
	doc := model.DocumentRecord{UploaderID: "u1", Visibility: model.VisibilityConfidential, InstitutionID: "inst-a"}
	user := model.UserContext{UserID: "u1", Role: model.RoleStudent, InstitutionID: "inst-b"}
	if !CanAccess(doc, user) {
		t.Fatal("uploader must always see their own document regardless of visibility or institution")
	}
}

func TestCanAccessPublicVisibleToAnyone(t *testing.T) {
	doc := model.DocumentRecord{Visibility: model.VisibilityPublic, InstitutionID: "inst-a"}
	user := model.UserContext{UserID: "other", Role: model.RoleStudent, InstitutionID: "inst-b"}
	if !CanAccess(doc, user) {
		t.Fatal("public documents must be visible to any role from any institution")
	}
}

func TestCanAccessInstitutionOnlyRequiresMatch(t *testing.T) {
	doc := model.DocumentRecord{Visibility: model.VisibilityInstitutionOnly, InstitutionID: "inst-a"}
	sameInst := model.UserContext{UserID: "x", Role: model.RoleStudent, InstitutionID: "inst-a"}
	otherInst := model.UserContext{UserID: "y", Role: model.RoleStudent, InstitutionID: "inst-b"}
	if !CanAccess(doc, sameInst) {
		t.Fatal("same-institution student should see an institution_only document")
	}
	if CanAccess(doc, otherInst) {
		t.Fatal("different-institution student must not see an institution_only document")
	}
}

func TestCanAccessInstitutionOnlyDeveloperBypassesInstitutionCheck(t *testing.T) {
	doc := model.DocumentRecord{Visibility: model.VisibilityInstitutionOnly, InstitutionID: "inst-a"}
	dev := model.UserContext{UserID: "z", Role: model.RoleDeveloper, InstitutionID: "inst-b"}
	if !CanAccess(doc, dev) {
		t.Fatal("developer role must see institution_only documents across institutions")
	}
}

func TestCanAccessRestrictedByRole(t *testing.T) {
	doc := model.DocumentRecord{Visibility: model.VisibilityRestricted, InstitutionID: "inst-a"}
	cases := []struct {
		role model.Role
		want bool
	}{
		{model.RoleStudent, false},
		{model.RoleDocumentOfficer, true},
		{model.RoleUniversityAdmin, true},
		{model.RoleDeveloper, true},
	}
	for _, c := range cases {
		user := model.UserContext{UserID: "u", Role: c.role, InstitutionID: "inst-a"}
		if got := CanAccess(doc, user); got != c.want {
			t.Fatalf("restricted doc, role %s: got %v, want %v", c.role, got, c.want)
		}
	}
}

func TestCanAccessRestrictedDeniedAcrossInstitutions(t *testing.T) {
	doc := model.DocumentRecord{Visibility: model.VisibilityRestricted, InstitutionID: "inst-a"}
	user := model.UserContext{UserID: "u", Role: model.RoleUniversityAdmin, InstitutionID: "inst-b"}
	if CanAccess(doc, user) {
		t.Fatal("restricted document must not leak to an admin from a different institution")
	}
}

func TestCanAccessConfidentialDeniesDocumentOfficer(t *testing.T) {
	doc := model.DocumentRecord{Visibility: model.VisibilityConfidential, InstitutionID: "inst-a"}
	officer := model.UserContext{UserID: "u", Role: model.RoleDocumentOfficer, InstitutionID: "inst-a"}
	if CanAccess(doc, officer) {
		t.Fatal("confidential documents must be denied to a document officer, even same institution")
	}
	admin := model.UserContext{UserID: "u", Role: model.RoleUniversityAdmin, InstitutionID: "inst-a"}
	if !CanAccess(doc, admin) {
		t.Fatal("confidential documents must be visible to a same-institution university admin")
	}
}

func TestCanAccessMinistryAdminCarveOut(t *testing.T) {
	publicDoc := model.DocumentRecord{Visibility: model.VisibilityRestricted, InstitutionID: "inst-a"}
	admin := model.UserContext{UserID: "ma", Role: model.RoleMinistryAdmin, InstitutionID: "inst-b"}

	pending := publicDoc
	pending.ApprovalStatus = model.ApprovalPending
	if CanAccess(pending, admin) {
		t.Fatal("ministry admin from another institution must not see a pending-approval restricted document")
	}

	approvedOtherInst := publicDoc
	approvedOtherInst.ApprovalStatus = model.ApprovalApproved
	if CanAccess(approvedOtherInst, admin) {
		t.Fatal("ministry admin must not see an approved restricted document from another institution")
	}

	sameInstAdmin := model.UserContext{UserID: "ma", Role: model.RoleMinistryAdmin, InstitutionID: "inst-a"}
	if !CanAccess(approvedOtherInst, sameInstAdmin) {
		t.Fatal("ministry admin from the same institution must see the approved restricted document")
	}
}

func TestCanAccessUnknownVisibilityDenied(t *testing.T) {
	doc := model.DocumentRecord{Visibility: model.Visibility("unknown"), InstitutionID: "inst-a"}
	user := model.UserContext{UserID: "u", Role: model.RoleDeveloper, InstitutionID: "inst-a"}
	if CanAccess(doc, user) {
		t.Fatal("an unrecognized visibility value must default-deny even for a privileged role")
	}
}
