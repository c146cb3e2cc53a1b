package schema

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// devicePattern defines the valid format for device and peer names.
// Names must start with an alphanumeric and may contain dots, dashes,
// underscores and colons (IPv6 peer addresses included).
// Examples: "spine-01", "tor-3.dc1", "192.0.2.1", "2001:db8::1"
var devicePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._:-]*$`)

// Validator validates inbound telemetry records before they enter the
// aggregation path. Records that fail validation are dropped with a log
// entry; they never stop the pipeline.
type Validator struct {
	validate  *validator.Validate
	maxAge    time.Duration
	maxFuture time.Duration
}

// ValidatorConfig holds configuration for the validator.
type ValidatorConfig struct {
	MaxAge    time.Duration
	MaxFuture time.Duration
}

// DefaultValidatorConfig returns the default validator configuration.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxAge:    24 * time.Hour,
		MaxFuture: 5 * time.Minute,
	}
}

// NewValidator creates a new Validator with default configuration.
func NewValidator() *Validator {
	return NewValidatorWithConfig(DefaultValidatorConfig())
}

// NewValidatorWithConfig creates a new Validator with the specified configuration.
func NewValidatorWithConfig(cfg ValidatorConfig) *Validator {
	v := validator.New()

	v.RegisterValidation("device_format", func(fl validator.FieldLevel) bool {
		return devicePattern.MatchString(fl.Field().String())
	})

	return &Validator{
		validate:  v,
		maxAge:    cfg.MaxAge,
		maxFuture: cfg.MaxFuture,
	}
}

// ValidateBGP validates an inbound BGP update.
func (v *Validator) ValidateBGP(update *BGPUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := v.checkTimestamp(update.Timestamp); err != nil {
		return err
	}
	if !devicePattern.MatchString(update.Peer) {
		return fmt.Errorf("invalid peer name: %q", update.Peer)
	}
	if len(update.Announce) == 0 && len(update.Withdraw) == 0 {
		return fmt.Errorf("update carries no announcements or withdrawals")
	}
	return nil
}

// ValidateSNMP validates an inbound SNMP metrics record.
func (v *Validator) ValidateSNMP(metrics *SNMPMetrics) error {
	if err := v.validate.Struct(metrics); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := v.checkTimestamp(metrics.Timestamp); err != nil {
		return err
	}
	if !devicePattern.MatchString(metrics.Device) {
		return fmt.Errorf("invalid device name: %q", metrics.Device)
	}
	if len(metrics.Metrics) == 0 {
		return fmt.Errorf("metrics map is empty")
	}
	return nil
}

func (v *Validator) checkTimestamp(ts float64) error {
	if ts <= 0 {
		return fmt.Errorf("timestamp is required")
	}

	now := time.Now().UTC()
	t := time.Unix(0, int64(ts*float64(time.Second))).UTC()

	if t.Before(now.Add(-v.maxAge)) {
		return fmt.Errorf("timestamp too old: %v (max age: %v)", t, v.maxAge)
	}
	if t.After(now.Add(v.maxFuture)) {
		return fmt.Errorf("timestamp in future: %v (max future: %v)", t, v.maxFuture)
	}
	return nil
}

// ValidDeviceName checks if a name matches the required device format.
func ValidDeviceName(name string) bool {
	return devicePattern.MatchString(name)
}
