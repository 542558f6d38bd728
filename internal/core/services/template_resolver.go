package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
)

// templateResolver implements the TemplateResolverSvc interface
type templateResolver struct {
	BaseService
	templates portsrepo.TemplateReader
	workers   portsrepo.WorkerStructureRepository

	// published templates never change, so they are cached by id
	cache sync.Map
}

// NewTemplateResolver creates a resolver over template and worker assignment storage.
func NewTemplateResolver(templates portsrepo.TemplateReader, workers portsrepo.WorkerStructureRepository) portssvc.TemplateResolverSvc {
	return &templateResolver{templates: templates, workers: workers}
}

var _ portssvc.TemplateResolverSvc = (*templateResolver)(nil)

func (s *templateResolver) Resolve(ctx context.Context, organizationID, employeeID string, asOf time.Time) (*domain.ResolvedStructure, error) {
	worker, err := s.workers.FindCurrentWorkerStructure(ctx, organizationID, employeeID, asOf)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to load worker structure: %w", err)
	}

	var template *domain.PayStructureTemplate
	if worker != nil {
		template, err = s.loadTemplate(ctx, organizationID, worker.TemplateID)
		if err != nil {
			return nil, err
		}
		if template.Status == domain.TemplateDraft || template.Status == domain.TemplateArchived {
			return nil, fmt.Errorf("%w: employee %s is assigned to %s template %s %s",
				apperrors.ErrNoApplicableStructure, employeeID, template.Status, template.Code, template.Version)
		}
	} else {
		template, err = s.defaultTemplate(ctx, organizationID, asOf)
		if err != nil {
			return nil, err
		}
		s.LogDebug(ctx, "No worker structure, using organization default",
			slog.String("employee_id", employeeID),
			slog.String("template_id", template.TemplateID))
	}

	components, disabled, applied, err := applyOverrides(template.Components, worker)
	if err != nil {
		return nil, err
	}
	ordered, err := OrderComponents(components, disabled)
	if err != nil {
		return nil, err
	}

	return &domain.ResolvedStructure{
		Template:        template,
		WorkerStructure: worker,
		Components:      ordered,
		Disabled:        disabled,
		Overrides:       applied,
	}, nil
}

func (s *templateResolver) loadTemplate(ctx context.Context, organizationID, templateID string) (*domain.PayStructureTemplate, error) {
	cacheKey := organizationID + "/" + templateID
	if cached, ok := s.cache.Load(cacheKey); ok {
		return cached.(*domain.PayStructureTemplate), nil
	}
	template, err := s.templates.FindTemplateByID(ctx, organizationID, templateID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: template %s not found", apperrors.ErrNoApplicableStructure, templateID)
		}
		return nil, fmt.Errorf("failed to load template %s: %w", templateID, err)
	}
	if !template.IsMutable() {
		s.cache.Store(cacheKey, template)
	}
	return template, nil
}

// defaultTemplate picks the highest version among the organization's active
// default templates covering asOf.
func (s *templateResolver) defaultTemplate(ctx context.Context, organizationID string, asOf time.Time) (*domain.PayStructureTemplate, error) {
	candidates, err := s.templates.FindDefaultTemplates(ctx, organizationID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load default templates: %w", err)
	}

	var best *domain.PayStructureTemplate
	for i := range candidates {
		c := &candidates[i]
		if c.Status != domain.TemplateActive || !c.IsDefault || !c.Covers(asOf) {
			continue
		}
		if best == nil || semver.Compare(CanonicalVersion(c.Version), CanonicalVersion(best.Version)) > 0 {
			best = c
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no worker structure and no default template for %s",
			apperrors.ErrNoApplicableStructure, asOf.Format(time.DateOnly))
	}
	return s.loadTemplate(ctx, organizationID, best.TemplateID)
}

// CanonicalVersion prefixes a bare version with "v" as semver expects.
func CanonicalVersion(v string) string {
	if v != "" && !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}

// applyOverrides returns copies of the components with effective overrides
// applied and the set of disabled codes.
func applyOverrides(components []domain.PayStructureComponent, worker *domain.WorkerPayStructure) ([]domain.PayStructureComponent, map[string]bool, []domain.ComponentOverride, error) {
	out := slices.Clone(components)
	disabled := map[string]bool{}
	if worker == nil {
		return out, disabled, nil, nil
	}

	index := make(map[string]int, len(out))
	for i, c := range out {
		index[c.Code] = i
	}

	seen := map[string]bool{}
	var applied []domain.ComponentOverride
	for _, o := range worker.Overrides {
		if !o.IsEffective() {
			continue
		}
		i, ok := index[o.ComponentCode]
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: override for unknown component %s", apperrors.ErrConfigValidation, o.ComponentCode)
		}
		if seen[o.ComponentCode] {
			return nil, nil, nil, fmt.Errorf("%w: several overrides for component %s", apperrors.ErrConfigValidation, o.ComponentCode)
		}
		seen[o.ComponentCode] = true

		if o.Disabled {
			disabled[o.ComponentCode] = true
		} else {
			replaced, err := o.ApplyTo(out[i])
			if err != nil {
				return nil, nil, nil, err
			}
			out[i] = replaced
		}
		applied = append(applied, o)
	}
	return out, disabled, applied, nil
}

// OrderComponents returns the enabled components in execution order: a
// component always follows every component it depends on, and otherwise
// components run by sequence order then code. Dependencies on disabled
// components are satisfied trivially; dependencies on codes that do not exist
// are a configuration error.
func OrderComponents(components []domain.PayStructureComponent, disabled map[string]bool) ([]domain.PayStructureComponent, error) {
	byCode := make(map[string]*domain.PayStructureComponent, len(components))
	for i := range components {
		c := &components[i]
		if _, dup := byCode[c.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate component code %s", apperrors.ErrConfigValidation, c.Code)
		}
		byCode[c.Code] = c
	}

	indegree := map[string]int{}
	dependents := map[string][]string{}
	for _, c := range components {
		if disabled[c.Code] {
			continue
		}
		indegree[c.Code] = 0
		for _, dep := range c.DependsOn {
			if _, ok := byCode[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on unknown component %s", apperrors.ErrConfigValidation, c.Code, dep)
			}
			if disabled[dep] {
				continue
			}
			indegree[c.Code]++
			dependents[dep] = append(dependents[dep], c.Code)
		}
	}

	less := func(a, b string) int {
		ca, cb := byCode[a], byCode[b]
		if ca.SequenceOrder != cb.SequenceOrder {
			return ca.SequenceOrder - cb.SequenceOrder
		}
		return strings.Compare(a, b)
	}

	var ready []string
	for code, n := range indegree {
		if n == 0 {
			ready = append(ready, code)
		}
	}

	ordered := make([]domain.PayStructureComponent, 0, len(indegree))
	for len(ready) > 0 {
		slices.SortFunc(ready, less)
		code := ready[0]
		ready = ready[1:]
		ordered = append(ordered, *byCode[code])
		for _, next := range dependents[code] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		delete(indegree, code)
	}

	if len(indegree) > 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrDependencyCycle, describeCycle(byCode, indegree, disabled))
	}
	return ordered, nil
}

// describeCycle follows unresolved dependencies from the smallest blocked code
// until a code repeats, and renders that loop as "A -> B -> A".
func describeCycle(byCode map[string]*domain.PayStructureComponent, blocked map[string]int, disabled map[string]bool) string {
	codes := make([]string, 0, len(blocked))
	for code := range blocked {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	position := map[string]int{}
	var path []string
	current := codes[0]
	for {
		if at, ok := position[current]; ok {
			return strings.Join(append(path[at:], current), " -> ")
		}
		position[current] = len(path)
		path = append(path, current)

		deps := slices.Clone(byCode[current].DependsOn)
		slices.Sort(deps)
		next := ""
		for _, dep := range deps {
			if _, stuck := blocked[dep]; stuck && !disabled[dep] {
				next = dep
				break
			}
		}
		if next == "" {
			return strings.Join(codes, ", ")
		}
		current = next
	}
}
