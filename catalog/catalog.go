// Package catalog is the static table of mountable auth methods and
// secret engines, along with the configuration resource type each
// auth method is configured through.
package catalog

import (
	"slices"

	"github.com/runabol/mountflow"
)

// BackendType identifies a kind of auth method or secret engine.
type BackendType string

const (
	// auth methods
	AppRole    BackendType = "approle"
	AWS        BackendType = "aws"
	Azure      BackendType = "azure"
	GCP        BackendType = "gcp"
	GitHub     BackendType = "github"
	JWT        BackendType = "jwt"
	Kubernetes BackendType = "kubernetes"
	LDAP       BackendType = "ldap"
	Okta       BackendType = "okta"
	Radius     BackendType = "radius"
	Cert       BackendType = "cert"
	Userpass   BackendType = "userpass"

	// secret engines
	AD       BackendType = "ad"
	Consul   BackendType = "consul"
	Database BackendType = "database"
	KV       BackendType = "kv"
	Nomad    BackendType = "nomad"
	PKI      BackendType = "pki"
	RabbitMQ BackendType = "rabbitmq"
	SSH      BackendType = "ssh"
	Transit  BackendType = "transit"
	TOTP     BackendType = "totp"
)

// Group is the display grouping of a backend.
type Group string

const (
	GroupCloud   Group = "cloud"
	GroupInfra   Group = "infra"
	GroupGeneric Group = "generic"
)

// Backend is one row of the catalog.
type Backend struct {
	DisplayName string             `json:"displayName"`
	Value       string             `json:"value"`
	Type        BackendType        `json:"type"`
	Glyph       string             `json:"glyph,omitempty"`
	Group       Group              `json:"category"`
	Category    mountflow.Category `json:"-"`
	// ConfigType is the configuration resource type of an auth method,
	// empty when the method has nothing to configure.
	ConfigType string `json:"configType,omitempty"`
}

var authMethods = []Backend{
	{DisplayName: "AppRole", Value: "approle", Type: AppRole, Glyph: "approle", Group: GroupInfra},
	{DisplayName: "AWS", Value: "aws", Type: AWS, Glyph: "aws", Group: GroupCloud, ConfigType: "auth-config/aws/client"},
	{DisplayName: "Azure", Value: "azure", Type: Azure, Glyph: "azure", Group: GroupCloud, ConfigType: "auth-config/azure"},
	{DisplayName: "Google Cloud", Value: "gcp", Type: GCP, Glyph: "gcp", Group: GroupCloud, ConfigType: "auth-config/gcp"},
	{DisplayName: "GitHub", Value: "github", Type: GitHub, Glyph: "github", Group: GroupCloud, ConfigType: "auth-config/github"},
	{DisplayName: "JWT", Value: "jwt", Type: JWT, Glyph: "auth", Group: GroupGeneric, ConfigType: "auth-config/jwt"},
	{DisplayName: "Kubernetes", Value: "kubernetes", Type: Kubernetes, Glyph: "kubernetes", Group: GroupInfra, ConfigType: "auth-config/kubernetes"},
	{DisplayName: "LDAP", Value: "ldap", Type: LDAP, Glyph: "auth", Group: GroupInfra, ConfigType: "auth-config/ldap"},
	{DisplayName: "Okta", Value: "okta", Type: Okta, Glyph: "okta", Group: GroupInfra, ConfigType: "auth-config/okta"},
	{DisplayName: "RADIUS", Value: "radius", Type: Radius, Glyph: "auth", Group: GroupInfra, ConfigType: "auth-config/radius"},
	{DisplayName: "TLS Certificates", Value: "cert", Type: Cert, Glyph: "auth", Group: GroupGeneric, ConfigType: "auth-config/cert"},
	{DisplayName: "Username & Password", Value: "userpass", Type: Userpass, Glyph: "auth", Group: GroupGeneric, ConfigType: "auth-config/userpass"},
}

var secretEngines = []Backend{
	{DisplayName: "Active Directory", Value: "ad", Type: AD, Glyph: "azure", Group: GroupCloud},
	{DisplayName: "AWS", Value: "aws", Type: AWS, Group: GroupCloud},
	{DisplayName: "Consul", Value: "consul", Type: Consul, Group: GroupInfra},
	{DisplayName: "Databases", Value: "database", Type: Database, Group: GroupInfra},
	{DisplayName: "Google Cloud", Value: "gcp", Type: GCP, Group: GroupCloud},
	{DisplayName: "KV", Value: "kv", Type: KV, Group: GroupGeneric},
	{DisplayName: "Nomad", Value: "nomad", Type: Nomad, Group: GroupInfra},
	{DisplayName: "PKI Certificates", Value: "pki", Type: PKI, Group: GroupGeneric},
	{DisplayName: "RabbitMQ", Value: "rabbitmq", Type: RabbitMQ, Group: GroupInfra},
	{DisplayName: "SSH", Value: "ssh", Type: SSH, Group: GroupGeneric},
	{DisplayName: "Transit", Value: "transit", Type: Transit, Group: GroupGeneric},
	{DisplayName: "TOTP", Value: "totp", Type: TOTP, Group: GroupGeneric},
}

func init() {
	for i := range authMethods {
		authMethods[i].Category = mountflow.CategoryAuth
	}
	for i := range secretEngines {
		secretEngines[i].Category = mountflow.CategorySecret
	}
}

func table(category mountflow.Category) []Backend {
	if category == mountflow.CategorySecret {
		return secretEngines
	}
	return authMethods
}

// Backends returns the mountable backends of a category.
func Backends(category mountflow.Category) []Backend {
	return slices.Clone(table(category))
}

// Lookup finds a backend of the given category by its type identifier.
func Lookup(category mountflow.Category, backendType string) (Backend, bool) {
	for _, b := range table(category) {
		if string(b.Type) == backendType {
			return b, true
		}
	}
	return Backend{}, false
}

// IsType reports whether s is the type identifier of any
// backend of the given category.
func IsType(category mountflow.Category, s string) bool {
	_, ok := Lookup(category, s)
	return ok
}
