package permission

// A permission string is three underscore-joined segments
// ACTION_SCOPE_ENTITY, each a literal token or the "*" wildcard.

const Wildcard = "*"

// Actions
const (
	ActionCreate = "CREATE"
	ActionRead   = "READ"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionAll    = "ALL"
)

// Scopes
const (
	ScopeMetadata    = "METADATA"
	ScopeText        = "TEXT"
	ScopeOrder       = "ORDER"
	ScopeSelector    = "SELECTOR"
	ScopeDescription = "DESCRIPTION"
	ScopeAll         = "ALL"
)

// Entities
const (
	EntityProject    = "PROJECT"
	EntityMember     = "MEMBER"
	EntityRole       = "ROLE"
	EntityPermission = "PERMISSION"
	EntityLayer      = "LAYER"
	EntityPage       = "PAGE"
	EntityLine       = "LINE"
	EntityTool       = "TOOL"
	EntityAll        = "ALL"
)

// Built-in role names
const (
	RoleOwner       = "OWNER"
	RoleLeader      = "LEADER"
	RoleContributor = "CONTRIBUTOR"
	RoleViewer      = "VIEWER"
)

// BuiltinRoles maps the four fixed role names to their permission sets.
// Custom roles defined on a Group never shadow these names.
var BuiltinRoles = map[string][]string{
	RoleOwner: {"*_*_*"},
	RoleLeader: {
		"UPDATE_*_PROJECT",
		"READ_*_PROJECT",
		"*_*_MEMBER",
		"*_*_ROLE",
		"*_*_PERMISSION",
		"*_*_LAYER",
		"*_*_PAGE",
	},
	RoleContributor: {
		"READ_*_*",
		"UPDATE_TEXT_*",
		"UPDATE_ORDER_*",
		"UPDATE_SELECTOR_*",
		"CREATE_SELECTOR_*",
		"DELETE_*_LINE",
		"UPDATE_DESCRIPTION_LAYER",
		"CREATE_*_LAYER",
	},
	RoleViewer: {
		"READ_*_PROJECT",
		"READ_*_MEMBER",
		"READ_*_LAYER",
		"READ_*_PAGE",
		"READ_*_LINE",
	},
}

// IsBuiltinRole reports whether name is one of the four reserved role names.
func IsBuiltinRole(name string) bool {
	_, ok := BuiltinRoles[name]
	return ok
}
