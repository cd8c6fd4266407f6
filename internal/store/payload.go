package store

import (
	"encoding/json"
	"fmt"
)

// PayloadType tags the stored payload variant.
type PayloadType int

const (
	// PayloadNone means the row has no payload.
	PayloadNone PayloadType = iota
	// PayloadIntent opens a screen.
	PayloadIntent
	// PayloadInlineSwitch toggles a setting in place.
	PayloadInlineSwitch
	// PayloadInlineList picks one of several values in place.
	PayloadInlineList
	// PayloadSavedQuery replays a saved query.
	PayloadSavedQuery
)

// String returns the payload type name.
func (t PayloadType) String() string {
	switch t {
	case PayloadNone:
		return "none"
	case PayloadIntent:
		return "intent"
	case PayloadInlineSwitch:
		return "inline_switch"
	case PayloadInlineList:
		return "inline_list"
	case PayloadSavedQuery:
		return "saved_query"
	default:
		return "unknown"
	}
}

// Payload is the closed set of result payloads. Only the types in this
// file implement it.
type Payload interface {
	Type() PayloadType
	isPayload()
}

// IntentPayload opens the target described by the row's action.
type IntentPayload struct {
	Extras map[string]string `json:"extras,omitempty" yaml:"extras,omitempty" toml:"extras,omitempty"`
}

// SettingScope says which settings table an inline value lives in.
type SettingScope string

const (
	ScopeSystem SettingScope = "system"
	ScopeSecure SettingScope = "secure"
	ScopeGlobal SettingScope = "global"
)

// InlineSwitchPayload flips a boolean setting from the result row.
type InlineSwitchPayload struct {
	SettingKey string       `json:"setting_key" yaml:"setting_key" toml:"setting_key"`
	Scope      SettingScope `json:"scope" yaml:"scope" toml:"scope"`
	Default    bool         `json:"default" yaml:"default" toml:"default"`
}

// InlineListPayload chooses one value of a list setting from the result row.
type InlineListPayload struct {
	SettingKey string       `json:"setting_key" yaml:"setting_key" toml:"setting_key"`
	Scope      SettingScope `json:"scope" yaml:"scope" toml:"scope"`
	Entries    []string     `json:"entries" yaml:"entries" toml:"entries"`
	Default    int          `json:"default" yaml:"default" toml:"default"`
}

// SavedQueryPayload re-runs a previously submitted query.
type SavedQueryPayload struct {
	Query string `json:"query" yaml:"query" toml:"query"`
}

func (IntentPayload) Type() PayloadType       { return PayloadIntent }
func (InlineSwitchPayload) Type() PayloadType { return PayloadInlineSwitch }
func (InlineListPayload) Type() PayloadType   { return PayloadInlineList }
func (SavedQueryPayload) Type() PayloadType   { return PayloadSavedQuery }

func (IntentPayload) isPayload()       {}
func (InlineSwitchPayload) isPayload() {}
func (InlineListPayload) isPayload()   {}
func (SavedQueryPayload) isPayload()   {}

// EncodePayload returns the tag and body stored for p. A nil payload
// encodes as PayloadNone with no body.
func EncodePayload(p Payload) (PayloadType, []byte, error) {
	if p == nil {
		return PayloadNone, nil, nil
	}
	switch v := p.(type) {
	case IntentPayload, InlineSwitchPayload, InlineListPayload, SavedQueryPayload:
		data, err := json.Marshal(v)
		if err != nil {
			return PayloadNone, nil, fmt.Errorf("failed to encode %s payload: %w", p.Type(), err)
		}
		return p.Type(), data, nil
	default:
		return PayloadNone, nil, fmt.Errorf("unsupported payload %T", p)
	}
}

// DecodePayload is the inverse of EncodePayload.
func DecodePayload(t PayloadType, data []byte) (Payload, error) {
	switch t {
	case PayloadNone:
		return nil, nil
	case PayloadIntent:
		var p IntentPayload
		return decodeInto(t, data, &p, func() Payload { return p })
	case PayloadInlineSwitch:
		var p InlineSwitchPayload
		return decodeInto(t, data, &p, func() Payload { return p })
	case PayloadInlineList:
		var p InlineListPayload
		return decodeInto(t, data, &p, func() Payload { return p })
	case PayloadSavedQuery:
		var p SavedQueryPayload
		return decodeInto(t, data, &p, func() Payload { return p })
	default:
		return nil, fmt.Errorf("unknown payload type %d", t)
	}
}

func decodeInto(t PayloadType, data []byte, dst any, get func() Payload) (Payload, error) {
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return get(), nil
}
