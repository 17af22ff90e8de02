package retrieval

import "github.com/northbound-policy/ingest/internal/model"

// CanAccess applies the visibility x role x institution access matrix.
// The store-level filters in Filters (vectorstore) and
// store.SearchDocuments narrow the lexical/dense legs before this runs;
// CanAccess is the final, authoritative check applied to every surviving
// candidate so a widened store-level filter can never leak a document.
func CanAccess(doc model.DocumentRecord, user model.UserContext) bool {
	if doc.UploaderID != "" && doc.UploaderID == user.UserID {
		return true
	}

	switch doc.Visibility {
	case model.VisibilityPublic:
		return true

	case model.VisibilityInstitutionOnly:
		if user.Role == model.RoleDeveloper {
			return true
		}
		return sameInstitution(doc, user)

	case model.VisibilityRestricted:
		if !sameInstitution(doc, user) {
			return false
		}
		switch user.Role {
		case model.RoleDocumentOfficer, model.RoleUniversityAdmin, model.RoleDeveloper:
			return true
		case model.RoleMinistryAdmin:
			return ministryAdminSees(doc, user)
		default:
			return false
		}

	case model.VisibilityConfidential:
		if !sameInstitution(doc, user) {
			return false
		}
		switch user.Role {
		case model.RoleUniversityAdmin, model.RoleDeveloper:
			return true
		case model.RoleMinistryAdmin:
			return ministryAdminSees(doc, user)
		default:
			return false
		}

	default:
		return false
	}
}

func sameInstitution(doc model.DocumentRecord, user model.UserContext) bool {
	return doc.InstitutionID != "" && doc.InstitutionID == user.InstitutionID
}

// ministryAdminSees applies the most restrictive consistent reading of
// the ministry/MoE admin carve-out: visible only
// if the document is public, pending approval, in the admin's own
// institution, or uploaded by them.
func ministryAdminSees(doc model.DocumentRecord, user model.UserContext) bool {
	if doc.Visibility == model.VisibilityPublic {
		return true
	}
	if doc.ApprovalStatus == model.ApprovalPending {
		return true
	}
	if sameInstitution(doc, user) {
		return true
	}
	return doc.UploaderID == user.UserID
}
