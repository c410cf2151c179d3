package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
	"github.com/GoAITrader/tradegate/internal/pkg/logger"
	"github.com/GoAITrader/tradegate/internal/pkg/metrics"
	"github.com/GoAITrader/tradegate/internal/repository"
	"github.com/GoAITrader/tradegate/internal/rules"
)

// EventPublisher fans an event out to live subscribers. A nil publisher is
// fine; the switcher works without an event hub.
type EventPublisher interface {
	Publish(event string, payload any)
}

// Switcher owns activation: it validates a market's document and flips the
// group's active pointer only when the document passes, so the active
// configuration is always one that validated at activation time.
type Switcher struct {
	store  *repository.FileStore
	events EventPublisher
}

func NewSwitcher(store *repository.FileStore, events EventPublisher) *Switcher {
	return &Switcher{store: store, events: events}
}

// SwitchResult reports one activation.
type SwitchResult struct {
	Market        string                  `json:"market"`
	Group         string                  `json:"group"`
	Previous      string                  `json:"previous,omitempty"`
	AlreadyActive bool                    `json:"already_active"`
	ActivatedAt   time.Time               `json:"activated_at"`
	Validation    *model.ValidationResult `json:"validation,omitempty"`
}

// SwitchTo activates a market within its group. Activating the already
// active market succeeds without re-validation. Validation failures reject
// the switch and leave the pointer where it was; skip_validation bypasses
// the gate for operator overrides.
func (s *Switcher) SwitchTo(marketID string, opts model.ActivateRequest) (*SwitchResult, error) {
	profile, err := s.store.Load(marketID)
	if err != nil {
		return nil, err
	}

	if profile.IsActive {
		ptr, _ := s.store.ActivePointer(profile.Group)
		metrics.ActivationsTotal.WithLabelValues(marketID, "noop").Inc()
		return &SwitchResult{
			Market:        marketID,
			Group:         profile.Group,
			AlreadyActive: true,
			ActivatedAt:   ptr.ActivatedAt,
		}, nil
	}

	var result *SwitchResult
	err = s.store.WithLock(marketID, func() error {
		// Re-read under the write lock so validation covers the document
		// that actually becomes active.
		profile, err := s.store.Load(marketID)
		if err != nil {
			return err
		}

		var validation *model.ValidationResult
		if !opts.SkipValidation {
			validation = s.validate(profile)
			if !validation.Valid {
				metrics.ActivationsTotal.WithLabelValues(marketID, "rejected").Inc()
				return apperrors.New(apperrors.ErrValidationFailed,
					fmt.Sprintf("market %q failed validation with %d error(s)", marketID, validation.ErrorCount()), nil).
					WithDetails(validation)
			}
		}

		previous := ""
		if ptr, ok := s.store.ActivePointer(profile.Group); ok {
			previous = ptr.Market
		}
		if err := s.store.SetActive(profile.Group, marketID); err != nil {
			return err
		}
		ptr, _ := s.store.ActivePointer(profile.Group)

		if previous != "" && previous != marketID {
			metrics.ActiveMarket.WithLabelValues(profile.Group, previous).Set(0)
		}
		metrics.ActiveMarket.WithLabelValues(profile.Group, marketID).Set(1)
		metrics.ActivationsTotal.WithLabelValues(marketID, "success").Inc()

		result = &SwitchResult{
			Market:      marketID,
			Group:       profile.Group,
			Previous:    previous,
			ActivatedAt: ptr.ActivatedAt,
			Validation:  validation,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Market activated",
		"market", result.Market,
		"group", result.Group,
		"previous", result.Previous,
		"skip_validation", opts.SkipValidation)
	if s.events != nil {
		s.events.Publish("market.activated", result)
	}
	return result, nil
}

// List enumerates every market profile as a summary row.
func (s *Switcher) List() []model.MarketSummary {
	profiles := s.store.List()
	out := make([]model.MarketSummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, model.MarketSummary{
			ID:       p.ID,
			Kind:     p.Kind,
			Group:    p.Group,
			IsActive: p.IsActive,
			Digest:   documentDigest(p.Document),
		})
	}
	return out
}

// Get loads one market profile.
func (s *Switcher) Get(marketID string) (*model.MarketProfile, error) {
	return s.store.Load(marketID)
}

// SaveDocument replaces a market's stored document. The document must parse
// structurally; full validation runs at activation time.
func (s *Switcher) SaveDocument(marketID string, doc model.Document) error {
	if err := s.store.Save(marketID, doc); err != nil {
		return err
	}
	logger.Info("Market document saved", "market", marketID, "digest", documentDigest(doc))
	if s.events != nil {
		s.events.Publish("config.updated", map[string]any{"market": marketID})
	}
	return nil
}

// Validate runs the full check pipeline against a market's stored document.
func (s *Switcher) Validate(marketID string) (*model.ValidationResult, error) {
	profile, err := s.store.Load(marketID)
	if err != nil {
		return nil, err
	}
	return s.validate(profile), nil
}

func (s *Switcher) validate(profile *model.MarketProfile) *model.ValidationResult {
	result := rules.Validate(profile.Document, rules.ForProfile(profile))
	for _, f := range result.Findings {
		metrics.ValidationFindings.WithLabelValues(profile.ID, string(f.Severity)).Inc()
	}
	return result
}

// Summary is the operator-facing digest of one market.
type Summary struct {
	model.MarketSummary
	Strategy      model.Strategy    `json:"strategy"`
	EnabledModels int               `json:"enabled_models"`
	TotalModels   int               `json:"total_models"`
	DataSources   []string          `json:"data_sources"`
	Keys          []model.KeyStatus `json:"keys"`
	Errors        int               `json:"validation_errors"`
	Warnings      int               `json:"validation_warnings"`
}

func (s *Switcher) Summary(marketID string) (*Summary, error) {
	profile, err := s.store.Load(marketID)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		MarketSummary: model.MarketSummary{
			ID:       profile.ID,
			Kind:     profile.Kind,
			Group:    profile.Group,
			IsActive: profile.IsActive,
			Digest:   documentDigest(profile.Document),
		},
		DataSources: sortedNames(profile.Document.DataSources()),
		Keys:        rules.KeyStatuses(profile.Document),
	}

	if mc, err := profile.Document.ModelConfig(); err == nil {
		out.Strategy = mc.Policy.Strategy
		out.EnabledModels = len(mc.EnabledModels())
		out.TotalModels = len(mc.Models)
	}

	validation := rules.Validate(profile.Document, rules.ForProfile(profile))
	out.Errors = validation.ErrorCount()
	out.Warnings = validation.WarningCount()
	return out, nil
}

// CheckKeys reports the credential table for one market, env overrides
// included.
func (s *Switcher) CheckKeys(marketID string) ([]model.KeyStatus, error) {
	profile, err := s.store.Load(marketID)
	if err != nil {
		return nil, err
	}
	return rules.KeyStatuses(profile.Document), nil
}

// ActiveProfile is one group's current activation.
type ActiveProfile struct {
	Group       string           `json:"group"`
	Market      string           `json:"market"`
	Kind        model.MarketKind `json:"kind"`
	ActivatedAt time.Time        `json:"activated_at"`
}

// Active lists the active market of every group.
func (s *Switcher) Active() []ActiveProfile {
	pointers := s.store.ActivePointers()
	out := make([]ActiveProfile, 0, len(pointers))
	for _, group := range s.store.Groups() {
		ptr := pointers[group]
		out = append(out, ActiveProfile{
			Group:       group,
			Market:      ptr.Market,
			Kind:        model.KindForMarket(ptr.Market),
			ActivatedAt: ptr.ActivatedAt,
		})
	}
	return out
}

func documentDigest(doc model.Document) string {
	data, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}

func sortedNames(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
