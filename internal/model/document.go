package model

import (
	"encoding/json"
	"fmt"
)

// Document is one market's configuration payload. The store persists it as
// plain JSON and treats it as opaque; the validator and registry give its
// sections meaning. Documents stay human-editable on disk.
type Document map[string]any

// Well-known top-level sections.
const (
	FieldMarketType      = "market_type"
	FieldActivationGroup = "activation_group"
	FieldDataSources     = "data_sources"
	FieldAPIKeys         = "api_keys"
	FieldModelConfig     = "model_config"
	FieldAgent           = "agent"
	FieldTradingRules    = "trading_rules"
)

// PlaceholderPrefix marks an unconfigured credential value.
const PlaceholderPrefix = "YOUR_"

// Clone deep-copies the document via a JSON round trip, so callers can hand
// out documents without aliasing stored state.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

func (d Document) Section(name string) (map[string]any, bool) {
	raw, ok := d[name]
	if !ok {
		return nil, false
	}
	sec, ok := raw.(map[string]any)
	return sec, ok
}

func (d Document) StringField(name string) (string, bool) {
	raw, ok := d[name]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func (d Document) MarketType() string {
	s, _ := d.StringField(FieldMarketType)
	return s
}

// ActivationGroup returns the document's activation group, defaulting when
// the field is absent or malformed.
func (d Document) ActivationGroup() string {
	s, ok := d.StringField(FieldActivationGroup)
	if !ok || s == "" {
		return DefaultGroup
	}
	return s
}

// APIKeys returns the api_keys section as a flat string map; non-string
// values are skipped (the validator reports them).
func (d Document) APIKeys() map[string]string {
	out := map[string]string{}
	sec, ok := d.Section(FieldAPIKeys)
	if !ok {
		return out
	}
	for name, raw := range sec {
		if s, ok := raw.(string); ok {
			out[name] = s
		}
	}
	return out
}

// DataSources returns the data_sources section (source name -> endpoint URL).
func (d Document) DataSources() map[string]string {
	out := map[string]string{}
	sec, ok := d.Section(FieldDataSources)
	if !ok {
		return out
	}
	for name, raw := range sec {
		if s, ok := raw.(string); ok {
			out[name] = s
		}
	}
	return out
}

// ModelConfig decodes the model_config section into its typed form.
func (d Document) ModelConfig() (ModelConfig, error) {
	sec, ok := d.Section(FieldModelConfig)
	if !ok {
		return ModelConfig{}, fmt.Errorf("document has no %s section", FieldModelConfig)
	}
	b, err := json.Marshal(sec)
	if err != nil {
		return ModelConfig{}, err
	}
	var mc ModelConfig
	if err := json.Unmarshal(b, &mc); err != nil {
		return ModelConfig{}, fmt.Errorf("malformed %s section: %w", FieldModelConfig, err)
	}
	return mc, nil
}

// WithModelConfig returns a copy of the document with the model_config
// section replaced by the typed value.
func (d Document) WithModelConfig(mc ModelConfig) (Document, error) {
	b, err := json.Marshal(mc)
	if err != nil {
		return nil, err
	}
	var sec map[string]any
	if err := json.Unmarshal(b, &sec); err != nil {
		return nil, err
	}
	out := d.Clone()
	if out == nil {
		out = Document{}
	}
	out[FieldModelConfig] = sec
	return out, nil
}

// WithAPIKeys returns a copy of the document with the given credentials
// merged into the api_keys section.
func (d Document) WithAPIKeys(keys map[string]string) Document {
	out := d.Clone()
	if out == nil {
		out = Document{}
	}
	sec, ok := out.Section(FieldAPIKeys)
	if !ok {
		sec = map[string]any{}
	}
	for name, val := range keys {
		sec[name] = val
	}
	out[FieldAPIKeys] = sec
	return out
}
