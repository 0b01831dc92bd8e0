package operations

import "github.com/next-trace/scg-rpc-proxy/contract/rpc"

// Organization operations.
type Organization string

const (
	CreateOrganization      Organization = "CREATE_ORGANIZATION"
	FindOrganization        Organization = "FIND_ORGANIZATION"
	FindOrganizationByID    Organization = "FIND_BY_ID_ORGANIZATION"
	FindOneOrganization     Organization = "FIND_ONE_ORGANIZATION"
	UpdateOrganization      Organization = "UPDATE_ORGANIZATION"
	PatchOrganization       Organization = "PATCH_ORGANIZATION"
	DeleteOrganization      Organization = "DELETE_ORGANIZATION"
	RemoveOrganization      Organization = "REMOVE_ORGANIZATION"
	DeleteOrganizationEmail Organization = "DELETE_EMAIL"
	ValidOrganization       Organization = "VALID_ORGANIZATION"
	TotalOrganization       Organization = "TOTAL_ORGANIZATION"
)

// Organizations lists every Organization operation.
func Organizations() []Organization {
	return []Organization{
		CreateOrganization,
		FindOrganization,
		FindOrganizationByID,
		FindOneOrganization,
		UpdateOrganization,
		PatchOrganization,
		DeleteOrganization,
		RemoveOrganization,
		DeleteOrganizationEmail,
		ValidOrganization,
		TotalOrganization,
	}
}

func (o Organization) String() string { return string(o) }

func (Organization) Destination() rpc.Destination { return OrganizationQueue }

func (o Organization) Valid() bool { return contains(Organizations(), o) }
