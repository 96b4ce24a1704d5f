package dynatrace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ListEntitiesParams filters GET /entities
type ListEntitiesParams struct {
	Page
	Timeframe
	EntitySelector string
	Fields         string
}

// ListEntities lists monitored entities matching an entity selector
func (c *Client) ListEntities(ctx context.Context, p ListEntitiesParams) (*EntitiesList, error) {
	q := url.Values{}
	set(q, "entitySelector", p.EntitySelector)
	set(q, "fields", p.Fields)
	p.Timeframe.apply(q)
	return getJSON[EntitiesList](ctx, c, "/entities", p.Page.apply(q))
}

// GetEntity retrieves a single monitored entity
func (c *Client) GetEntity(ctx context.Context, entityID, fields string, tf Timeframe) (*Entity, error) {
	q := url.Values{}
	set(q, "fields", fields)
	tf.apply(q)
	return getJSON[Entity](ctx, c, "/entities/"+seg(entityID), q)
}

// FindEntitiesByName looks up entities of entityType whose name matches name
func (c *Client) FindEntitiesByName(ctx context.Context, entityType, name string, page Page) (*EntitiesList, error) {
	return c.ListEntities(ctx, ListEntitiesParams{
		Page:           page,
		EntitySelector: EntityNameSelector(entityType, name),
	})
}

// EntityNameSelector builds type("T"),entityName("N"), quoting as the selector grammar requires.
func EntityNameSelector(entityType, name string) string {
	return fmt.Sprintf(`type("%s"),entityName("%s")`, escapeSelectorValue(entityType), escapeSelectorValue(name))
}

func escapeSelectorValue(s string) string {
	r := strings.NewReplacer(`~`, `~~`, `"`, `~"`)
	return r.Replace(s)
}

// ListEntityTypes lists the entity types known to the environment
func (c *Client) ListEntityTypes(ctx context.Context, page Page) (*EntityTypesList, error) {
	return getJSON[EntityTypesList](ctx, c, "/entityTypes", page.apply(url.Values{}))
}

// GetEntityType retrieves the schema of one entity type
func (c *Client) GetEntityType(ctx context.Context, entityType string) (*EntityType, error) {
	return getJSON[EntityType](ctx, c, "/entityTypes/"+seg(entityType), nil)
}

// CreateCustomDevice creates or updates a custom device
func (c *Client) CreateCustomDevice(ctx context.Context, device CustomDevice) (*CustomDeviceCreationResult, error) {
	return sendJSON[CustomDeviceCreationResult](ctx, c, http.MethodPost, "/entities/custom", nil, device)
}
