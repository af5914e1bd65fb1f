package usecase

import (
	"context"
	"errors"
	"strings"

	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
)

// EntityResolver maps names to entity ids, creating entities on first sight.
// Lookup and insert are separate steps, so two concurrent first resolutions
// of one name may create two entities. Each caller keeps the id it got.
type EntityResolver struct {
	Entities ports.EntityRepository
}

func (r EntityResolver) Resolve(ctx context.Context, category domain.EntityCategory, e domain.Entity) (string, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return "", domain.ErrInvalidRecord
	}
	existing, err := r.Entities.FindByName(ctx, category, e.Name)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", wrapRepo(err)
	}
	id, err := r.Entities.Insert(ctx, category, domain.Entity{Name: e.Name, ProfilePath: e.ProfilePath})
	if err != nil {
		return "", wrapRepo(err)
	}
	return id, nil
}

// ResolveNames resolves every distinct non-empty name in order.
func (r EntityResolver) ResolveNames(ctx context.Context, category domain.EntityCategory, names []string) ([]string, error) {
	entities := make([]domain.Entity, 0, len(names))
	for _, n := range names {
		entities = append(entities, domain.Entity{Name: n})
	}
	return r.resolveAll(ctx, category, entities)
}

func (r EntityResolver) ResolvePeople(ctx context.Context, category domain.EntityCategory, people []domain.Person) ([]string, error) {
	entities := make([]domain.Entity, 0, len(people))
	for _, p := range people {
		entities = append(entities, domain.Entity{Name: p.Name, ProfilePath: p.ProfilePath})
	}
	return r.resolveAll(ctx, category, entities)
}

func (r EntityResolver) resolveAll(ctx context.Context, category domain.EntityCategory, entities []domain.Entity) ([]string, error) {
	ids := make([]string, 0, len(entities))
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		id, err := r.Resolve(ctx, category, e)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
