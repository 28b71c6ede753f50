// Package config turns viper settings into the explicit configuration value
// that every component receives at construction time.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	TenantIDKey      = "tenant_id"
	ClientIDKey      = "client_id"
	ClientSecretKey  = "client_secret"
	ScopesKey        = "scopes"
	AuthorityHostKey = "authority_host"
	GraphURLKey      = "graph_url"
	TimeoutKey       = "timeout"
	MaxPagesKey      = "max_pages"
	AuthModeKey      = "auth_mode"
	EndpointsFileKey = "endpoints_file"

	EnvPrefix = "AUDITGRAPH"

	DefaultAuthorityHost = "https://login.microsoftonline.com"
	DefaultGraphURL      = "https://graph.microsoft.com/v1.0"
	DefaultScope         = "https://graph.microsoft.com/.default"
	DefaultTimeout       = 30 * time.Second

	AuthModeClientSecret = "client-secret"
	AuthModeAzIdentity   = "azidentity"
)

// Credentials identify the registered application. They are never persisted.
type Credentials struct {
	TenantID     string   `validate:"required"`
	ClientID     string   `validate:"required"`
	ClientSecret string   `validate:"required"`
	Scopes       []string `validate:"min=1,dive,required"`
}

// Authority is the identity-provider base for the tenant.
func (c Credentials) Authority(host string) string {
	return strings.TrimRight(host, "/") + "/" + c.TenantID
}

// TokenURL is the client-credentials endpoint for the tenant.
func (c Credentials) TokenURL(host string) string {
	return c.Authority(host) + "/oauth2/v2.0/token"
}

// String never includes the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("tenant=%s client=%s scopes=%s", c.TenantID, c.ClientID, strings.Join(c.Scopes, ","))
}

type Config struct {
	Credentials

	AuthorityHost string        `validate:"required,url"`
	GraphURL      string        `validate:"required,url"`
	Timeout       time.Duration `validate:"gt=0"`
	MaxPages      int           `validate:"gte=0"`
	AuthMode      string        `validate:"oneof=client-secret azidentity"`
	EndpointsFile string
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(ScopesKey, []string{DefaultScope})
	v.SetDefault(AuthorityHostKey, DefaultAuthorityHost)
	v.SetDefault(GraphURLKey, DefaultGraphURL)
	v.SetDefault(TimeoutKey, DefaultTimeout)
	v.SetDefault(MaxPagesKey, 0)
	v.SetDefault(AuthModeKey, AuthModeClientSecret)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// the azure sdk environment names are honored as fallbacks
	_ = v.BindEnv(TenantIDKey, EnvPrefix+"_TENANT_ID", "AZURE_TENANT_ID")
	_ = v.BindEnv(ClientIDKey, EnvPrefix+"_CLIENT_ID", "AZURE_CLIENT_ID")
	_ = v.BindEnv(ClientSecretKey, EnvPrefix+"_CLIENT_SECRET", "AZURE_CLIENT_SECRET")
}

// Load reads the configuration out of v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Credentials: Credentials{
			TenantID:     strings.TrimSpace(v.GetString(TenantIDKey)),
			ClientID:     strings.TrimSpace(v.GetString(ClientIDKey)),
			ClientSecret: v.GetString(ClientSecretKey),
			Scopes:       scopes(v),
		},
		AuthorityHost: v.GetString(AuthorityHostKey),
		GraphURL:      strings.TrimRight(v.GetString(GraphURLKey), "/"),
		Timeout:       v.GetDuration(TimeoutKey),
		MaxPages:      v.GetInt(MaxPagesKey),
		AuthMode:      v.GetString(AuthModeKey),
		EndpointsFile: v.GetString(EndpointsFileKey),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// scopes accepts either a yaml list or a comma separated env value.
func scopes(v *viper.Viper) []string {
	var out []string
	for _, s := range v.GetStringSlice(ScopesKey) {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every invalid field in a single error.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

var fieldKeys = map[string]string{
	"TenantID":      TenantIDKey,
	"ClientID":      ClientIDKey,
	"ClientSecret":  ClientSecretKey,
	"Scopes":        ScopesKey,
	"AuthorityHost": AuthorityHostKey,
	"GraphURL":      GraphURLKey,
	"Timeout":       TimeoutKey,
	"MaxPages":      MaxPagesKey,
	"AuthMode":      AuthModeKey,
}

func fieldMessage(fe validator.FieldError) string {
	key, ok := fieldKeys[fe.StructField()]
	if !ok {
		key = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required (set %s_%s)", key, EnvPrefix, strings.ToUpper(key))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", key, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}
