package store

// Typed shapes of the configuration resources of auth methods.
// Config types without an entry here are stored as-is.

type awsClientConfig struct {
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Region      string `mapstructure:"region"`
	IAMEndpoint string `mapstructure:"iam_endpoint" validate:"omitempty,url"`
	STSEndpoint string `mapstructure:"sts_endpoint" validate:"omitempty,url"`
	EC2Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}

type azureConfig struct {
	TenantID     string `mapstructure:"tenant_id" validate:"required"`
	Resource     string `mapstructure:"resource" validate:"required"`
	Environment  string `mapstructure:"environment"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type gcpConfig struct {
	Credentials string `mapstructure:"credentials"`
}

type githubConfig struct {
	Organization string `mapstructure:"organization" validate:"required"`
	BaseURL      string `mapstructure:"base_url" validate:"omitempty,url"`
	TTL          string `mapstructure:"ttl" validate:"duration"`
	MaxTTL       string `mapstructure:"max_ttl" validate:"duration"`
}

type jwtConfig struct {
	OIDCDiscoveryURL string   `mapstructure:"oidc_discovery_url" validate:"omitempty,url"`
	OIDCClientID     string   `mapstructure:"oidc_client_id"`
	OIDCClientSecret string   `mapstructure:"oidc_client_secret"`
	JWKSURL          string   `mapstructure:"jwks_url" validate:"omitempty,url"`
	JWTValidationKey []string `mapstructure:"jwt_validation_pubkeys"`
	BoundIssuer      string   `mapstructure:"bound_issuer"`
	DefaultRole      string   `mapstructure:"default_role"`
}

type kubernetesConfig struct {
	KubernetesHost   string `mapstructure:"kubernetes_host" validate:"required,url"`
	KubernetesCACert string `mapstructure:"kubernetes_ca_cert"`
	TokenReviewerJWT string `mapstructure:"token_reviewer_jwt"`
}

type ldapConfig struct {
	URL         string `mapstructure:"url" validate:"required"`
	UserDN      string `mapstructure:"userdn"`
	UserAttr    string `mapstructure:"userattr"`
	GroupDN     string `mapstructure:"groupdn"`
	BindDN      string `mapstructure:"binddn"`
	BindPass    string `mapstructure:"bindpass"`
	InsecureTLS bool   `mapstructure:"insecure_tls"`
	StartTLS    bool   `mapstructure:"starttls"`
}

type oktaConfig struct {
	OrgName   string `mapstructure:"org_name" validate:"required"`
	APIToken  string `mapstructure:"api_token"`
	BaseURL   string `mapstructure:"base_url"`
	BypassMFA bool   `mapstructure:"bypass_okta_mfa"`
}

type radiusConfig struct {
	Host   string `mapstructure:"host" validate:"required"`
	Port   int    `mapstructure:"port" validate:"omitempty,min=1"`
	Secret string `mapstructure:"secret" validate:"required"`
}

type certConfig struct {
	DisableBinding bool `mapstructure:"disable_binding"`
}

type userpassConfig struct {
	TokenTTL    string `mapstructure:"token_ttl" validate:"duration"`
	TokenMaxTTL string `mapstructure:"token_max_ttl" validate:"duration"`
}

var configShapes = map[string]func() any{
	"auth-config/aws/client": func() any { return &awsClientConfig{} },
	"auth-config/azure":      func() any { return &azureConfig{} },
	"auth-config/gcp":        func() any { return &gcpConfig{} },
	"auth-config/github":     func() any { return &githubConfig{} },
	"auth-config/jwt":        func() any { return &jwtConfig{} },
	"auth-config/kubernetes": func() any { return &kubernetesConfig{} },
	"auth-config/ldap":       func() any { return &ldapConfig{} },
	"auth-config/okta":       func() any { return &oktaConfig{} },
	"auth-config/radius":     func() any { return &radiusConfig{} },
	"auth-config/cert":       func() any { return &certConfig{} },
	"auth-config/userpass":   func() any { return &userpassConfig{} },
}
