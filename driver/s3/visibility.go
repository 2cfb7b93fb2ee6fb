package s3

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gobeaver/diskkit"
)

// allUsersURI is the grantee of objects readable by anyone.
const allUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"

// VisibilityConverter maps visibility onto canned object ACLs.
type VisibilityConverter struct {
	defaultVisibility diskkit.Visibility
}

// NewVisibilityConverter returns a converter whose default is private
// unless defaultVisibility is set.
func NewVisibilityConverter(defaultVisibility diskkit.Visibility) *VisibilityConverter {
	if defaultVisibility == "" {
		defaultVisibility = diskkit.Private
	}
	return &VisibilityConverter{defaultVisibility: defaultVisibility}
}

// DefaultVisibility is applied to writes that do not specify one.
func (c *VisibilityConverter) DefaultVisibility() diskkit.Visibility {
	return c.defaultVisibility
}

// ACL returns the canned ACL for visibility.
func (c *VisibilityConverter) ACL(visibility diskkit.Visibility) types.ObjectCannedACL {
	if visibility == diskkit.Public {
		return types.ObjectCannedACLPublicRead
	}
	return types.ObjectCannedACLPrivate
}

// FromGrants reports Public when everyone is granted READ.
func (c *VisibilityConverter) FromGrants(grants []types.Grant) diskkit.Visibility {
	for _, grant := range grants {
		if grant.Grantee == nil {
			continue
		}
		if aws.ToString(grant.Grantee.URI) == allUsersURI && grant.Permission == types.PermissionRead {
			return diskkit.Public
		}
	}
	return diskkit.Private
}
