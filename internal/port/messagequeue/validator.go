package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/syltwerk/hotelchat/internal/domain/exchange"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch {
	case subject == SubjectTenantInvalidate:
		var p TenantInvalidatePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.Tenant == "" {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("tenant is required"))
		}
	case strings.HasPrefix(subject, SubjectExchange+"."):
		var r exchange.Record
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
	case strings.HasPrefix(subject, SubjectHealthCheck+"."):
		var h exchange.HealthCheck
		if err := json.Unmarshal(data, &h); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
	}
	return nil
}
