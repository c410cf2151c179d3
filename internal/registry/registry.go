package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
	"github.com/GoAITrader/tradegate/internal/pkg/logger"
	"github.com/GoAITrader/tradegate/internal/repository"
	"github.com/GoAITrader/tradegate/internal/rules"
)

// Registry owns model-centric reads and writes. The catalog answers
// availability questions by market short code; per-market configuration is
// read and replaced through the config-key namespace ("us_market"), with the
// document store doing the persisting.
type Registry struct {
	store *repository.FileStore

	mu       sync.RWMutex
	onUpdate []func(marketID string, mc model.ModelConfig)
}

func New(store *repository.FileStore) *Registry {
	return &Registry{store: store}
}

// OnUpdate registers a hook fired after a market's model configuration is
// replaced. The selector uses it to drop per-market selection state.
func (r *Registry) OnUpdate(fn func(marketID string, mc model.ModelConfig)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUpdate = append(r.onUpdate, fn)
}

// ResolveKey maps a model-config key to its market short code. Passing a
// short code where a key belongs is the number-one operator mistake, so the
// error spells out which namespace this endpoint wants.
func (r *Registry) ResolveKey(key string) (string, error) {
	if id, ok := model.MarketIDForKey(key); ok {
		return id, nil
	}
	if model.KnownMarket(key) {
		return "", apperrors.NewNotFound(fmt.Sprintf(
			"model configuration is keyed by %q, not by market short code %q",
			model.MarketKeyForID(key), key))
	}
	return "", apperrors.NewNotFound(fmt.Sprintf("unknown model-config key %q", key))
}

// Available lists the catalog entries usable in one market, by short code.
func (r *Registry) Available(marketID string) ([]CatalogEntry, error) {
	if model.KnownMarket(marketID) {
		return catalogForMarket(marketID), nil
	}
	if id, ok := model.MarketIDForKey(marketID); ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf(
			"the catalog is keyed by market short code %q, not by config key %q", id, marketID))
	}
	return nil, apperrors.NewNotFound(fmt.Sprintf("unknown market %q", marketID))
}

// Config returns the typed model configuration behind a config key.
func (r *Registry) Config(key string) (model.ModelConfig, error) {
	marketID, err := r.ResolveKey(key)
	if err != nil {
		return model.ModelConfig{}, err
	}
	return r.ConfigForMarket(marketID)
}

// ConfigForMarket is the short-code read path used inside the gateway.
func (r *Registry) ConfigForMarket(marketID string) (model.ModelConfig, error) {
	profile, err := r.store.Load(marketID)
	if err != nil {
		return model.ModelConfig{}, err
	}
	mc, err := profile.Document.ModelConfig()
	if err != nil {
		return model.ModelConfig{}, apperrors.New(apperrors.ErrInvalidDocument,
			fmt.Sprintf("market %q has a malformed model_config section", marketID), err)
	}
	return mc, nil
}

// View returns the read shape of one market's model configuration.
func (r *Registry) View(key string) (*model.ModelConfigView, error) {
	marketID, err := r.ResolveKey(key)
	if err != nil {
		return nil, err
	}
	mc, err := r.ConfigForMarket(marketID)
	if err != nil {
		return nil, err
	}
	return buildView(key, mc), nil
}

// Update replaces a market's model configuration wholesale. The write is
// all-or-nothing: any error-severity finding rejects the request and leaves
// the stored configuration untouched. API keys in the request merge into the
// document's credential section within the same write.
func (r *Registry) Update(key string, req model.UpdateModelConfigRequest) (*model.ModelConfigView, error) {
	marketID, err := r.ResolveKey(key)
	if err != nil {
		return nil, err
	}

	next := model.ModelConfig{Policy: req.Policy, Models: req.Models}
	result := r.check(marketID, next)
	if !result.Valid {
		return nil, apperrors.New(apperrors.ErrValidationFailed,
			fmt.Sprintf("model configuration for %q failed validation", key), nil).
			WithDetails(result)
	}

	err = r.store.UpdateDocument(marketID, func(doc model.Document) (model.Document, error) {
		out, err := doc.WithModelConfig(next)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrInvalidDocument, "encode model configuration", err)
		}
		if len(req.APIKeys) > 0 {
			out = out.WithAPIKeys(req.APIKeys)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Model configuration replaced",
		"market", marketID,
		"strategy", next.Policy.Strategy,
		"models", len(next.Models),
		"enabled", len(next.EnabledModels()))
	r.fireUpdate(marketID, next)

	return buildView(key, next), nil
}

// Validate dry-runs an update without writing anything.
func (r *Registry) Validate(key string, req model.UpdateModelConfigRequest) (*model.ValidationResult, error) {
	marketID, err := r.ResolveKey(key)
	if err != nil {
		return nil, err
	}
	return r.check(marketID, model.ModelConfig{Policy: req.Policy, Models: req.Models}), nil
}

// ValidateStored checks the configuration currently on disk.
func (r *Registry) ValidateStored(key string) (*model.ValidationResult, error) {
	marketID, err := r.ResolveKey(key)
	if err != nil {
		return nil, err
	}
	mc, err := r.ConfigForMarket(marketID)
	if err != nil {
		return nil, err
	}
	return r.check(marketID, mc), nil
}

// check layers catalog-availability warnings over the structural findings.
// Models outside the catalog do not block the write; operators run private
// deployments the catalog has never heard of.
func (r *Registry) check(marketID string, mc model.ModelConfig) *model.ValidationResult {
	result := model.NewValidationResult()
	result.AddFindings(rules.ModelConfigFindings(mc, "model_config")...)
	for i, m := range mc.Models {
		if m.ID == "" {
			continue
		}
		if !catalogHas(marketID, m.ID) {
			result.AddWarning(fmt.Sprintf("model_config.models[%d].id", i), "model_config.catalog",
				fmt.Sprintf("model %q is not cataloged for market %q", m.ID, marketID))
		}
	}
	return result
}

func (r *Registry) fireUpdate(marketID string, mc model.ModelConfig) {
	r.mu.RLock()
	hooks := make([]func(string, model.ModelConfig), len(r.onUpdate))
	copy(hooks, r.onUpdate)
	r.mu.RUnlock()
	for _, fn := range hooks {
		fn(marketID, mc.Clone())
	}
}

// buildView derives the read shape. SelectedModels is the enabled set in the
// deterministic base order every strategy starts from: priority ascending,
// id as tiebreak.
func buildView(key string, mc model.ModelConfig) *model.ModelConfigView {
	enabled := mc.EnabledModels()
	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority < enabled[j].Priority
		}
		return enabled[i].ID < enabled[j].ID
	})
	ids := make([]string, len(enabled))
	for i, m := range enabled {
		ids[i] = m.ID
	}
	return &model.ModelConfigView{
		Market:         key,
		Policy:         mc.Policy,
		EnabledModels:  enabled,
		SelectedModels: ids,
		TotalModels:    len(mc.Models),
	}
}
