// Package settings resolves courier's runtime configuration from defaults,
// an optional config file, COURIER_* environment variables, and bound flags.
package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/danshapiro/courier/internal/providerspec"
)

const (
	EnvPrefix  = "COURIER"
	ConfigName = "courier"

	// DefaultProvider applies when neither the provider key nor a
	// provider-qualified model names one.
	DefaultProvider = "ark"
)

// Keys understood by Load. Flags are bound to them by the CLI.
const (
	KeyProvider    = "provider"
	KeyModel       = "model"
	KeyBaseURL     = "base_url"
	KeyAPIKey      = "api_key"
	KeyTemperature = "temperature"
	KeyMaxTokens   = "max_tokens"
	KeyLogLevel    = "log_level"
	KeyLogFormat   = "log_format"
	KeyWorkflows   = "workflows"
	KeyApp         = "app"
	KeyUser        = "user"
)

type Settings struct {
	Provider    string   `validate:"required"`
	Model       string   `validate:"required"`
	BaseURL     string   `validate:"omitempty,url"`
	APIKey      string   `validate:"-"`
	Temperature *float64 `validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `validate:"omitempty,gt=0"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=console json"`

	WorkflowsDir string
	App          string `validate:"required"`
	User         string `validate:"required"`
}

var validate = validator.New()

// New returns a viper instance with courier's defaults and environment
// binding. Callers bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyApp, "courier")
	v.SetDefault(KeyUser, "user_123")
}

// Load reads configFile when given (it must exist), otherwise an optional
// courier.yaml from the working directory or $HOME/.config/courier, and
// returns validated settings.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if v == nil {
		v = New()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/courier")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	s := &Settings{
		Provider:     providerspec.CanonicalProviderKey(v.GetString(KeyProvider)),
		Model:        strings.TrimSpace(v.GetString(KeyModel)),
		BaseURL:      strings.TrimSpace(v.GetString(KeyBaseURL)),
		APIKey:       strings.TrimSpace(v.GetString(KeyAPIKey)),
		LogLevel:     strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:    strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		WorkflowsDir: strings.TrimSpace(v.GetString(KeyWorkflows)),
		App:          strings.TrimSpace(v.GetString(KeyApp)),
		User:         strings.TrimSpace(v.GetString(KeyUser)),
	}
	// A provider prefix on the model only picks the provider when none was
	// configured. "openai/<model>" against an Ark endpoint names the wire
	// protocol, not the vendor.
	if provider, model := providerspec.SplitModelID(s.Model); provider != "" {
		s.Model = model
		if !v.IsSet(KeyProvider) {
			s.Provider = provider
		}
	}
	if s.Provider == "" {
		s.Provider = DefaultProvider
	}
	if v.IsSet(KeyTemperature) {
		t := v.GetFloat64(KeyTemperature)
		s.Temperature = &t
	}
	if v.IsSet(KeyMaxTokens) {
		n := v.GetInt(KeyMaxTokens)
		s.MaxTokens = &n
	}
	if s.Model == "" {
		if spec, ok := providerspec.Builtin(s.Provider); ok && spec.API != nil {
			s.Model = spec.API.DefaultModel
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks field constraints and that the provider is known.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	if _, ok := providerspec.Builtin(s.Provider); !ok {
		return fmt.Errorf("invalid settings: unknown provider %q (known: %s)", s.Provider, strings.Join(providerspec.Keys(), ", "))
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "url":
		return field + " must be a valid URL"
	case "gte", "gt", "lte":
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
