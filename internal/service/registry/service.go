// Package registry owns the runtime type registry: it loads and persists the
// registry through the gateway and applies schema changes to existing nodes.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
	appErrors "typegraph-backend/internal/errors"
	"typegraph-backend/internal/service/gateway"
)

// Service holds the current registry. Mutations are serialised and applied to
// a clone that replaces the current registry only after it was persisted.
type Service struct {
	gw     *gateway.Gateway
	logger *zap.Logger

	mu      sync.Mutex // serialises mutations
	stateMu sync.RWMutex
	current *schema.Registry
}

// NewService creates a registry service with an empty registry; call Load to
// read the persisted one.
func NewService(gw *gateway.Gateway, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gw: gw, logger: logger.Named("registry"), current: schema.NewRegistry()}
}

// Load reads the persisted registry and makes it current. A missing marker
// node yields an empty registry. A payload that fails to decode, fully or in
// part, still yields a usable registry; the SERIALIZATION error is returned
// next to it so callers can report it and carry on. Store failures leave the
// current registry untouched.
func (s *Service) Load(ctx context.Context) (*schema.Registry, error) {
	const op = "registry.Load"
	s.mu.Lock()
	defer s.mu.Unlock()

	data, found, err := s.gw.LoadRegistryPayload(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, op, "failed to load type registry")
	}

	reg := schema.NewRegistry()
	var decodeErr error
	if found {
		reg, decodeErr = schema.Decode([]byte(data))
		if decodeErr != nil {
			s.logger.Warn("type registry decoded with fallbacks", zap.Error(decodeErr))
			decodeErr = appErrors.Wrap(decodeErr, op, "type registry payload could not be fully decoded")
		}
	}

	s.swap(reg)
	s.logger.Info("type registry loaded",
		zap.Bool("found", found),
		zap.Int("types", len(reg.Types)),
		zap.Int("generation", reg.Generation))
	return reg.Clone(), decodeErr
}

// Save persists reg as one unit and makes it current.
func (s *Service) Save(ctx context.Context, reg *schema.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, reg); err != nil {
		return err
	}
	s.swap(reg.Clone())
	return nil
}

// Registry returns a snapshot of the current registry.
func (s *Service) Registry() *schema.Registry {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.current.Clone()
}

// Find returns the current type with this human label.
func (s *Service) Find(humanLabel string) (schema.NodeType, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.current.Find(humanLabel)
}

// Get is Find reporting a missing type as NOT_FOUND.
func (s *Service) Get(humanLabel string) (schema.NodeType, error) {
	if t, ok := s.Find(humanLabel); ok {
		return t, nil
	}
	return schema.NodeType{}, appErrors.NotFound(appErrors.CodeTypeNotFound,
		fmt.Sprintf("type %q does not exist", humanLabel)).
		WithResource(humanLabel).
		Build()
}

// HumanLabel maps an internal label back to its type's human label.
func (s *Service) HumanLabel(internalLabel string) (string, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	t, ok := s.current.FindInternal(internalLabel)
	return t.HumanLabel, ok
}

// AddType registers a new type with the default schema and persists the
// registry.
func (s *Service) AddType(ctx context.Context, humanLabel string) (schema.NodeType, error) {
	const op = "registry.AddType"
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Registry()
	t, err := next.AddType(humanLabel)
	if err != nil {
		return schema.NodeType{}, appErrors.Wrap(err, op, "type rejected")
	}
	if err := s.persist(ctx, next); err != nil {
		return schema.NodeType{}, err
	}
	s.swap(next)

	s.logger.Info("type added", zap.String("type", humanLabel), zap.String("label", t.InternalLabel))
	return t, nil
}

// AddProperty declares a property on a type. Existing nodes are backfilled
// with the property default before the extended schema is persisted, so a
// failure part way leaves the persisted schema no larger than the data. A
// backfill is not rolled back; rerunning AddProperty after a failed save
// resumes it.
func (s *Service) AddProperty(ctx context.Context, humanLabel string, def schema.PropertyDef) (schema.NodeType, error) {
	const op = "registry.AddProperty"
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Registry()
	t, err := next.AddProperty(humanLabel, def)
	if err != nil {
		return schema.NodeType{}, appErrors.Wrap(err, op, "property rejected")
	}

	written, err := s.gw.BackfillProperty(ctx, t, def)
	if err != nil {
		s.logger.Error("backfill failed; schema not extended",
			zap.String("type", humanLabel),
			zap.String("property", def.Name),
			zap.Int64("written", written),
			zap.Error(err))
		return schema.NodeType{}, appErrors.Wrap(err, op, "failed to backfill existing nodes")
	}

	if err := s.persist(ctx, next); err != nil {
		return schema.NodeType{}, appErrors.Store(appErrors.CodeRegistryPartialSave,
			"existing nodes were backfilled but the extended schema was not saved").
			WithOperation(op).
			WithResource(def.Name).
			WithDetails(fmt.Sprintf("%d nodes of %s carry %q", written, t.InternalLabel, def.Name)).
			WithCause(err).
			Build()
	}
	s.swap(next)

	s.logger.Info("property added",
		zap.String("type", humanLabel),
		zap.String("property", def.Name),
		zap.String("primitive", def.Type.String()),
		zap.Int64("backfilled", written))
	return t, nil
}

// EnsureActiveFlag sets the active property on every node of every type
// declaring it where it is missing. Each type is attempted; failures are
// joined.
func (s *Service) EnsureActiveFlag(ctx context.Context) (int64, error) {
	active := s.gw.Options().ActiveProperty
	reg := s.Registry()

	var total int64
	var errs []error
	for _, t := range reg.Types {
		def, ok := t.Property(active)
		if !ok || def.Type != node.TypeBoolean {
			continue
		}
		if def.Default == "" {
			def.Default = "true"
		}
		n, err := s.gw.BackfillProperty(ctx, t, def)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

func (s *Service) persist(ctx context.Context, reg *schema.Registry) error {
	const op = "registry.Save"
	data, err := schema.Encode(reg)
	if err != nil {
		return appErrors.Wrap(err, op, "failed to encode type registry")
	}
	if err := s.gw.SaveRegistryPayload(ctx, string(data)); err != nil {
		return appErrors.Wrap(err, op, "failed to save type registry")
	}
	return nil
}

func (s *Service) swap(reg *schema.Registry) {
	s.stateMu.Lock()
	s.current = reg
	s.stateMu.Unlock()
}
