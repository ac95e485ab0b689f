// Package services provides the orchestration used by the HTTP handlers and
// the admin CLI on top of the mascot engine.
package services

import (
	"context"
	"fmt"

	"salvadanaio/internal/catalog"
	applog "salvadanaio/internal/log"
	"salvadanaio/internal/mascots"
	"salvadanaio/internal/notify"
	"salvadanaio/internal/preferences"
	"salvadanaio/internal/selection"
)

// Outcome classifies the result of a select or remove request.
type Outcome string

const (
	OutcomeChanged         Outcome = "changed"
	OutcomeAlreadySelected Outcome = "already_selected"
	OutcomeNotSelected     Outcome = "not_selected"
	OutcomeMaximumReached  Outcome = "maximum_reached"
	OutcomeMinimumReached  Outcome = "minimum_reached"
)

// Message is the user-facing text for a refused change.
func (o Outcome) Message() string {
	switch o {
	case OutcomeAlreadySelected:
		return "Mascot already selected"
	case OutcomeNotSelected:
		return "Mascot not selected"
	case OutcomeMaximumReached:
		return fmt.Sprintf("Maximum reached: at most %d mascots", selection.MaxSelected)
	case OutcomeMinimumReached:
		return fmt.Sprintf("Minimum reached: at least %d mascots", selection.MinSelected)
	}
	return ""
}

type MutationResult struct {
	Outcome  Outcome           `json:"outcome"`
	Selected []string          `json:"selected"`
	Summary  selection.Summary `json:"summary"`
}

func (r MutationResult) Changed() bool { return r.Outcome == OutcomeChanged }

// GroupView is one catalog group in the editor.
type GroupView struct {
	Group     catalog.Group  `json:"group"`
	Selected  []catalog.Item `json:"selected"`
	Available []catalog.Item `json:"available"`
}

type EditorView struct {
	Selected    []string          `json:"selected"`
	Groups      []GroupView       `json:"groups"`
	Summary     selection.Summary `json:"summary"`
	MaxReached  bool              `json:"maxReached"`
	MinReached  bool              `json:"minReached"`
	Saving      bool              `json:"saving"`
	Persistable bool              `json:"persistable"`
}

type MascotServiceConfig struct {
	Catalog  *catalog.Catalog
	Gateway  preferences.Gateway
	Bus      *notify.Bus
	Registry *mascots.Registry
	Feed     *mascots.NavigationFeed
	Logger   *applog.Logger
}

// MascotService ties editing sessions, navigation and resets together.
type MascotService struct {
	catalog  *catalog.Catalog
	gateway  preferences.Gateway
	bus      *notify.Bus
	registry *mascots.Registry
	feed     *mascots.NavigationFeed
	logger   *applog.Logger
}

func NewMascotService(cfg MascotServiceConfig) *MascotService {
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	return &MascotService{
		catalog:  cfg.Catalog,
		gateway:  cfg.Gateway,
		bus:      cfg.Bus,
		registry: cfg.Registry,
		feed:     cfg.Feed,
		logger:   cfg.Logger.WithComponent(applog.ComponentSelection),
	}
}

func (s *MascotService) Catalog() *catalog.Catalog { return s.catalog }

// Editor returns the editing view for subject, bootstrapping its session on
// first access.
func (s *MascotService) Editor(ctx context.Context, subject mascots.Subject) EditorView {
	sess := s.registry.Session(ctx, subject)
	view := EditorView{
		Selected:    sess.Selected(),
		Summary:     sess.Summary(),
		MaxReached:  sess.IsMaxReached(),
		MinReached:  sess.IsMinReached(),
		Saving:      sess.IsSaving(),
		Persistable: sess.Persistable(),
	}
	for _, g := range s.catalog.Groups() {
		view.Groups = append(view.Groups, GroupView{
			Group:     g,
			Selected:  sess.EffectiveSetFor(g),
			Available: sess.ComplementFor(g),
		})
	}
	return view
}

func (s *MascotService) Summary(ctx context.Context, subject mascots.Subject) selection.Summary {
	return s.registry.Session(ctx, subject).Summary()
}

// Select adds id to the subject's selection.
func (s *MascotService) Select(ctx context.Context, subject mascots.Subject, id string) (MutationResult, error) {
	sess := s.registry.Session(ctx, subject)
	res, err := sess.Select(id)
	if err != nil {
		return MutationResult{}, fmt.Errorf("select %q: %w", id, err)
	}
	out := s.result(sess, res)
	if !res.Changed {
		// Refusals carry no reason; ask the session which bound applies.
		if sess.IsSelected(id) {
			out.Outcome = OutcomeAlreadySelected
		} else if sess.IsMaxReached() {
			out.Outcome = OutcomeMaximumReached
		}
	}
	s.logMutation(ctx, subject, applog.OpSelect, id, out.Outcome)
	return out, nil
}

// Remove drops id from the subject's selection.
func (s *MascotService) Remove(ctx context.Context, subject mascots.Subject, id string) (MutationResult, error) {
	sess := s.registry.Session(ctx, subject)
	res, err := sess.Remove(id)
	if err != nil {
		return MutationResult{}, fmt.Errorf("remove %q: %w", id, err)
	}
	out := s.result(sess, res)
	if !res.Changed {
		if sess.IsMinReached() {
			out.Outcome = OutcomeMinimumReached
		} else {
			out.Outcome = OutcomeNotSelected
		}
	}
	s.logMutation(ctx, subject, applog.OpRemove, id, out.Outcome)
	return out, nil
}

func (s *MascotService) result(sess *mascots.Session, res selection.Result) MutationResult {
	out := MutationResult{Outcome: OutcomeChanged, Selected: res.Resulting, Summary: sess.Summary()}
	if !res.Changed {
		out.Outcome = OutcomeNotSelected
	}
	return out
}

func (s *MascotService) logMutation(ctx context.Context, subject mascots.Subject, op, id string, outcome Outcome) {
	s.logger.InfoContext(ctx, "Selection change handled",
		applog.FieldSubject, subject.Key(),
		applog.FieldOperation, op,
		applog.FieldItemID, id,
		"outcome", string(outcome))
}

// Navigation returns the display set for subject.
func (s *MascotService) Navigation(ctx context.Context, subject mascots.Subject, limit int) []catalog.Item {
	return s.feed.EffectiveDisplaySet(ctx, subject, limit)
}

// Reset restores the subject to the catalog defaults.
func (s *MascotService) Reset(ctx context.Context, subject mascots.Subject) error {
	if err := mascots.Reset(ctx, s.gateway, s.registry, s.bus, subject); err != nil {
		return fmt.Errorf("reset %s: %w", subject, err)
	}
	s.logger.InfoContext(ctx, "Selection reset", applog.FieldSubject, subject.Key())
	return nil
}

// Stored returns what a fresh session for userID would start from.
func (s *MascotService) Stored(ctx context.Context, userID string) ([]string, mascots.Source) {
	return mascots.Reconcile(ctx, s.catalog, s.gateway, userID, s.logger)
}

// Close closes all editing sessions, waiting for pending writes, and stops
// the navigation feed.
func (s *MascotService) Close() error {
	if s.registry != nil {
		s.registry.Close()
	}
	if s.feed != nil {
		s.feed.Close()
	}
	return nil
}
