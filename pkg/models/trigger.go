package models

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// TriggerKind is what starts a flow.
type TriggerKind string

const (
	TriggerMessage    TriggerKind = "message"
	TriggerExactMatch TriggerKind = "exact_match"
	TriggerButton     TriggerKind = "button"
	TriggerAPI        TriggerKind = "api"
	TriggerSchedule   TriggerKind = "schedule"
	TriggerEvent      TriggerKind = "event"
	TriggerRegex      TriggerKind = "regex"
	TriggerIntent     TriggerKind = "intent"
)

// TriggerKinds lists every trigger kind.
var TriggerKinds = []TriggerKind{
	TriggerMessage,
	TriggerExactMatch,
	TriggerButton,
	TriggerAPI,
	TriggerSchedule,
	TriggerEvent,
	TriggerRegex,
	TriggerIntent,
}

// IsValid reports whether k is a known trigger kind.
func (k TriggerKind) IsValid() bool {
	switch k {
	case TriggerMessage, TriggerExactMatch, TriggerButton, TriggerAPI,
		TriggerSchedule, TriggerEvent, TriggerRegex, TriggerIntent:
		return true
	default:
		return false
	}
}

// TriggerConfig is the decoded form of Flow.Trigger.
type TriggerConfig struct {
	Type  TriggerKind `json:"type"`
	Value string      `json:"value"`
}

// EncodeTrigger returns the single-string form stored on Flow.Trigger.
// Message triggers are stored unprefixed so older flows keep decoding.
func EncodeTrigger(cfg TriggerConfig) string {
	if cfg.Type == TriggerMessage || cfg.Type == "" {
		return cfg.Value
	}

	return string(cfg.Type) + ":" + cfg.Value
}

// DecodeTrigger parses a stored trigger. It is total: anything that does not
// start with "{known-kind}:" is a plain message trigger. An unknown prefix is
// not split off, so "https://x" decodes to {message, "https://x"} rather than
// {message, "//x"} and round-trips through EncodeTrigger.
func DecodeTrigger(s string) TriggerConfig {
	prefix, value, found := strings.Cut(s, ":")
	if !found {
		return TriggerConfig{Type: TriggerMessage, Value: s}
	}

	kind := TriggerKind(prefix)
	if !kind.IsValid() {
		return TriggerConfig{Type: TriggerMessage, Value: s}
	}

	return TriggerConfig{Type: kind, Value: value}
}

// Validate checks the value against its kind. The codec never calls this.
func (c TriggerConfig) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: unknown trigger type %q", ErrInvalidTrigger, c.Type)
	}

	switch c.Type {
	case TriggerSchedule:
		if _, err := cron.ParseStandard(c.Value); err != nil {
			return fmt.Errorf("%w: schedule %q: %v", ErrInvalidTrigger, c.Value, err)
		}
	case TriggerRegex:
		if _, err := regexp.Compile(c.Value); err != nil {
			return fmt.Errorf("%w: regex %q: %v", ErrInvalidTrigger, c.Value, err)
		}
	case TriggerExactMatch, TriggerButton, TriggerIntent:
		if strings.TrimSpace(c.Value) == "" {
			return fmt.Errorf("%w: %s trigger requires a value", ErrInvalidTrigger, c.Type)
		}
	case TriggerMessage, TriggerAPI, TriggerEvent:
	}

	return nil
}
