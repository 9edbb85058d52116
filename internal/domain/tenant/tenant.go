// Package tenant defines the per-hotel configuration that drives a chat request.
package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/syltwerk/hotelchat/internal/domain"
	"github.com/syltwerk/hotelchat/internal/domain/answer"
)

// ErrMissing is returned when a request names no tenant or an unknown one.
var ErrMissing = errors.New("missing or unknown tenant")

var keyPattern = regexp.MustCompile(`(?i)^[a-z0-9_-]+$`)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("tenantkey", func(fl validator.FieldLevel) bool {
		return ValidKey(fl.Field().String())
	})
}

// Config is one hotel's isolated configuration and knowledge base.
type Config struct {
	Key          string `yaml:"-" json:"key" validate:"required,max=64,tenantkey"`
	HotelName    string `yaml:"hotel_name" json:"hotel_name" validate:"max=200"`
	HotelURL     string `yaml:"hotel_url" json:"hotel_url" validate:"omitempty,url"`
	FAQFile      string `yaml:"faq_file" json:"faq_file"`
	FAQText      string `yaml:"-" json:"faq_text"`
	PromptExtra  string `yaml:"prompt_extra" json:"prompt_extra" validate:"max=4000"`
	UpstreamURL  string `yaml:"upstream_url" json:"upstream_url" validate:"omitempty,url"`
	ErrorLogPath string `yaml:"error_log_path" json:"error_log_path"`
}

// ValidKey reports whether key is a syntactically valid tenant key.
func ValidKey(key string) bool {
	return len(key) <= 64 && keyPattern.MatchString(key)
}

// Validate checks the struct tags and wraps failures in domain.ErrValidation.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: tenant %q: %w", domain.ErrValidation, c.Key, err)
	}
	return nil
}

// DisplayName returns the configured hotel name or the capitalised key.
func (c *Config) DisplayName() string {
	if name := strings.TrimSpace(c.HotelName); name != "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(c.Key)
	if r == utf8.RuneError {
		return c.Key
	}
	return string(unicode.ToUpper(r)) + c.Key[size:]
}

// FAQPath is the public path of the tenant's FAQ page.
func (c *Config) FAQPath() string {
	return "/" + c.Key + "/faq"
}

// Sources returns the default reference links for the tenant.
func (c *Config) Sources() []answer.Source {
	out := make([]answer.Source, 0, 2)
	if c.HotelURL != "" {
		out = append(out, answer.Source{Title: "Hotel Website", URL: c.HotelURL})
	}
	if c.FAQFile != "" || c.FAQText != "" {
		out = append(out, answer.Source{Title: "Hotel FAQ", URL: c.FAQPath()})
	}
	return out
}
