package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
	"github.com/GoAITrader/tradegate/internal/pkg/logger"
	"github.com/GoAITrader/tradegate/internal/rules"
)

// CommonSettings reports the agent settings every market currently agrees
// on. A field the markets disagree on comes back nil; PUT writes only the
// fields the caller sent, to every market.
func (s *Switcher) CommonSettings() *model.CommonSettings {
	profiles := s.store.List()
	return &model.CommonSettings{
		MaxSteps:         commonInt(profiles, "max_steps"),
		MaxRetries:       commonInt(profiles, "max_retries"),
		BaseDelaySeconds: commonFloat(profiles, "base_delay_seconds"),
		InitialCash:      commonFloat(profiles, "initial_cash"),
		TestnetEnabled:   commonBool(profiles, "testnet_enabled"),
	}
}

// UpdateCommonSettings patches the agent section of every market document.
// Nil fields are left untouched.
func (s *Switcher) UpdateCommonSettings(cs model.CommonSettings) error {
	patch := map[string]any{}
	if cs.MaxSteps != nil {
		patch["max_steps"] = *cs.MaxSteps
	}
	if cs.MaxRetries != nil {
		patch["max_retries"] = *cs.MaxRetries
	}
	if cs.BaseDelaySeconds != nil {
		patch["base_delay_seconds"] = *cs.BaseDelaySeconds
	}
	if cs.InitialCash != nil {
		patch["initial_cash"] = *cs.InitialCash
	}
	if cs.TestnetEnabled != nil {
		patch["testnet_enabled"] = *cs.TestnetEnabled
	}
	if len(patch) == 0 {
		return apperrors.NewInvalidDocument("settings patch is empty")
	}

	for _, id := range model.MarketIDs() {
		err := s.store.UpdateDocument(id, func(doc model.Document) (model.Document, error) {
			agent, ok := doc.Section(model.FieldAgent)
			if !ok {
				agent = map[string]any{}
			}
			for field, value := range patch {
				agent[field] = value
			}
			doc[model.FieldAgent] = agent
			return doc, nil
		})
		if err != nil {
			return err
		}
	}

	logger.Info("Common agent settings updated", "fields", len(patch))
	if s.events != nil {
		s.events.Publish("settings.updated", patch)
	}
	return nil
}

// Export packs every market document and the active pointers into one
// diffable bundle.
func (s *Switcher) Export() *model.ConfigBundle {
	bundle := &model.ConfigBundle{
		ExportedAt: time.Now().UTC(),
		Markets:    map[string]model.Document{},
		Active:     s.store.ActivePointers(),
	}
	for _, profile := range s.store.List() {
		bundle.Markets[profile.ID] = profile.Document
	}
	return bundle
}

// Import replaces market documents from a bundle. The whole bundle validates
// before anything is written; one bad document rejects the entire import.
func (s *Switcher) Import(bundle model.ConfigBundle) error {
	if len(bundle.Markets) == 0 {
		return apperrors.NewInvalidDocument("bundle contains no market documents")
	}

	combined := model.NewValidationResult()
	for id, doc := range bundle.Markets {
		if !model.KnownMarket(id) {
			return apperrors.NewInvalidDocument(fmt.Sprintf("bundle references unknown market %q", id))
		}
		kind := model.KindForMarket(id)
		result := rules.Validate(doc, rules.FromDocument(kind, doc))
		for _, f := range result.Findings {
			f.Field = id + "." + f.Field
			// Credentials are machine-local (env overrides, per-host keys);
			// they gate activation, not transport between installations.
			if strings.HasPrefix(f.Rule, "credentials.") {
				f.Severity = model.SeverityWarning
			}
			combined.AddFindings(f)
		}
	}
	if !combined.Valid {
		return apperrors.New(apperrors.ErrValidationFailed,
			fmt.Sprintf("bundle failed validation with %d error(s)", combined.ErrorCount()), nil).
			WithDetails(combined)
	}

	for id, doc := range bundle.Markets {
		if err := s.store.Save(id, doc); err != nil {
			return err
		}
	}
	for group, ptr := range bundle.Active {
		if !model.KnownMarket(ptr.Market) {
			continue
		}
		if err := s.store.SetActive(group, ptr.Market); err != nil {
			return err
		}
	}

	logger.Info("Configuration bundle imported", "markets", len(bundle.Markets))
	if s.events != nil {
		s.events.Publish("config.imported", map[string]any{"markets": len(bundle.Markets)})
	}
	return nil
}

func commonInt(profiles []*model.MarketProfile, field string) *int {
	f := commonFloat(profiles, field)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

func commonFloat(profiles []*model.MarketProfile, field string) *float64 {
	var value float64
	for i, p := range profiles {
		agent, ok := p.Document.Section(model.FieldAgent)
		if !ok {
			return nil
		}
		raw, ok := agent[field].(float64)
		if !ok {
			return nil
		}
		if i == 0 {
			value = raw
		} else if raw != value {
			return nil
		}
	}
	return &value
}

func commonBool(profiles []*model.MarketProfile, field string) *bool {
	var value bool
	for i, p := range profiles {
		agent, ok := p.Document.Section(model.FieldAgent)
		if !ok {
			return nil
		}
		raw, ok := agent[field].(bool)
		if !ok {
			return nil
		}
		if i == 0 {
			value = raw
		} else if raw != value {
			return nil
		}
	}
	return &value
}
