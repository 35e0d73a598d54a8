package github

import "fmt"

// OwnerType distinguishes user-owned from organization-owned repositories.
// The detector uses it to pick an installation endpoint and the flow
// selector uses it to pick the target_type URL flag.
type OwnerType string

const (
	// OwnerTypeUser is a personal GitHub account.
	OwnerTypeUser OwnerType = "user"
	// OwnerTypeOrg is a GitHub organization.
	OwnerTypeOrg OwnerType = "org"
)

// ParseOwnerType maps the account type strings returned by the GitHub API
// ("User", "Organization") to an OwnerType.
func ParseOwnerType(accountType string) (OwnerType, error) {
	switch accountType {
	case "User":
		return OwnerTypeUser, nil
	case "Organization":
		return OwnerTypeOrg, nil
	default:
		return "", fmt.Errorf("unknown account type %q", accountType)
	}
}
