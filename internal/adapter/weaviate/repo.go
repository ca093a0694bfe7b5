// Package weaviate stores chunks as objects of a Weaviate class with
// client-supplied vectors.
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"impar/api/internal/content"
	"impar/api/internal/store"
)

const (
	propText     = "text"
	propSource   = "source"
	propLocation = "location"
	propType     = "type"

	sourcePageSize = 500
)

// Repository implements store.Repository on a single Weaviate class.
type Repository struct {
	client    *weaviate.Client
	schema    SchemaClient
	className string
}

func NewRepository(client *weaviate.Client, collection string) *Repository {
	return &Repository{
		client:    client,
		schema:    NewClientAdapter(client),
		className: ClassName(collection),
	}
}

func (r *Repository) EnsureCollection(ctx context.Context) error {
	return EnsureSchema(ctx, r.schema, r.className)
}

// Insert creates one object per record. If any create fails, the objects
// already written by this call are deleted before the error is returned.
func (r *Repository) Insert(ctx context.Context, records []store.Record) error {
	created := make([]string, 0, len(records))
	for _, rec := range records {
		_, err := r.client.Data().Creator().
			WithClassName(r.className).
			WithID(rec.ID).
			WithProperties(map[string]interface{}{
				propText:     rec.Text,
				propSource:   rec.Metadata.Source,
				propLocation: rec.Metadata.Location,
				propType:     string(rec.Metadata.Kind),
			}).
			WithVector(rec.Vector).
			Do(ctx)
		if err != nil {
			err = fmt.Errorf("create object: %w", err)
			if rbErr := r.rollback(context.WithoutCancel(ctx), created); rbErr != nil {
				return errors.Join(err, rbErr)
			}
			return err
		}
		created = append(created, rec.ID)
	}
	return nil
}

func (r *Repository) rollback(ctx context.Context, ids []string) error {
	var errs []error
	for _, id := range ids {
		err := r.client.Data().Deleter().
			WithClassName(r.className).
			WithID(id).
			Do(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("rollback object %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Repository) Query(ctx context.Context, vector []float32, k int, source string) ([]store.Record, error) {
	if err := r.requireClass(ctx); err != nil {
		return nil, err
	}

	q := r.client.GraphQL().Get().
		WithClassName(r.className).
		WithNearVector(r.client.GraphQL().NearVectorArgBuilder().WithVector(vector)).
		WithLimit(k).
		WithFields(
			graphql.Field{Name: propText},
			graphql.Field{Name: propSource},
			graphql.Field{Name: propLocation},
			graphql.Field{Name: propType},
		)
	if source != "" {
		q = q.WithWhere(sourceFilter(source))
	}

	objects, err := r.get(ctx, q)
	if err != nil {
		return nil, err
	}

	records := make([]store.Record, 0, len(objects))
	for _, props := range objects {
		records = append(records, store.Record{
			Text: stringProp(props, propText),
			Metadata: content.Metadata{
				Source:   stringProp(props, propSource),
				Location: stringProp(props, propLocation),
				Kind:     content.Kind(stringProp(props, propType)),
			},
		})
	}
	return records, nil
}

func (r *Repository) HasSource(ctx context.Context, source string) (bool, error) {
	if err := r.requireClass(ctx); err != nil {
		return false, err
	}

	objects, err := r.get(ctx, r.client.GraphQL().Get().
		WithClassName(r.className).
		WithWhere(sourceFilter(source)).
		WithLimit(1).
		WithFields(graphql.Field{Name: propSource}))
	if err != nil {
		return false, err
	}
	return len(objects) > 0, nil
}

// DistinctSources walks the class with the cursor API, since the number
// of objects is unbounded.
func (r *Repository) DistinctSources(ctx context.Context) ([]string, error) {
	if err := r.requireClass(ctx); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var sources []string
	after := ""
	for {
		q := r.client.GraphQL().Get().
			WithClassName(r.className).
			WithLimit(sourcePageSize).
			WithFields(
				graphql.Field{Name: propSource},
				graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
			)
		if after != "" {
			q = q.WithAfter(after)
		}

		objects, err := r.get(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, props := range objects {
			if s := stringProp(props, propSource); s != "" && !seen[s] {
				seen[s] = true
				sources = append(sources, s)
			}
		}
		if len(objects) < sourcePageSize {
			return sources, nil
		}

		last := objects[len(objects)-1]
		additional, _ := last["_additional"].(map[string]interface{})
		id, _ := additional["id"].(string)
		if id == "" {
			return sources, nil
		}
		after = id
	}
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	if err := r.requireClass(ctx); err != nil {
		return 0, err
	}

	res, err := r.client.GraphQL().Aggregate().
		WithClassName(r.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, graphqlError(res.Errors)
	}

	agg, _ := res.Data["Aggregate"].(map[string]interface{})
	groups, _ := agg[r.className].([]interface{})
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func (r *Repository) requireClass(ctx context.Context) error {
	exists, err := r.schema.ClassExists(ctx, r.className)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", r.className, store.ErrCollectionNotFound)
	}
	return nil
}

func (r *Repository) get(ctx context.Context, q *graphql.GetBuilder) ([]map[string]interface{}, error) {
	res, err := q.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, graphqlError(res.Errors)
	}

	data, _ := res.Data["Get"].(map[string]interface{})
	raw, _ := data[r.className].([]interface{})
	objects := make([]map[string]interface{}, 0, len(raw))
	for _, o := range raw {
		if props, ok := o.(map[string]interface{}); ok {
			objects = append(objects, props)
		}
	}
	return objects, nil
}

func sourceFilter(source string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{propSource}).
		WithOperator(filters.Equal).
		WithValueText(source)
}

func stringProp(props map[string]interface{}, name string) string {
	s, _ := props[name].(string)
	return s
}

func graphqlError(errs []*models.GraphQLError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			msgs = append(msgs, e.Message)
		}
	}
	return fmt.Errorf("graphql error: %s", strings.Join(msgs, "; "))
}
