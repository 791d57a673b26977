package catalog

import "github.com/runabol/mountflow"

// auth methods that have no configurable fields
var noConfig = map[BackendType]struct{}{
	AppRole: {},
}

// auth methods configured through a distinctly named resource
// instead of the generic per-type one
var specialized = map[BackendType]string{
	AWS: "auth-config/aws/client",
}

// ResolveConfigType maps a mount category and backend type to the type of
// the configuration resource the mount carries. The second return value is
// false when no configuration resource is required.
func ResolveConfigType(category mountflow.Category, backendType string) (string, bool) {
	if category == mountflow.CategorySecret || backendType == "" {
		return "", false
	}
	bt := BackendType(backendType)
	if _, ok := noConfig[bt]; ok {
		return "", false
	}
	if ct, ok := specialized[bt]; ok {
		return ct, true
	}
	if b, ok := Lookup(mountflow.CategoryAuth, backendType); ok && b.ConfigType != "" {
		return b.ConfigType, true
	}
	return mountflow.ConfigTypePrefix + backendType, true
}
