package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/handiism/cog-bulk/internal/model"
)

// Resource performs the per-kind collection calls.
type Resource struct {
	c    *Client
	kind model.Kind
}

// Resource returns the collection client for kind.
func (c *Client) Resource(kind model.Kind) *Resource {
	return &Resource{c: c, kind: kind}
}

func (c *Client) Assignments() *Resource { return c.Resource(model.KindAssignment) }
func (c *Client) Tests() *Resource       { return c.Resource(model.KindTest) }
func (c *Client) Submissions() *Resource { return c.Resource(model.KindSubmission) }
func (c *Client) Runs() *Resource        { return c.Resource(model.KindRun) }
func (c *Client) Reporters() *Resource   { return c.Resource(model.KindReporter) }

// Kind returns the resource kind served.
func (r *Resource) Kind() model.Kind {
	return r.kind
}

// List returns every id in the collection.
func (r *Resource) List(ctx context.Context) ([]model.ID, error) {
	return r.list(ctx, r.kind.Collection())
}

// ListUnder returns the ids listed beneath one parent, e.g. the submissions
// of an assignment. A NilID parent lists the whole collection.
func (r *Resource) ListUnder(ctx context.Context, parentKind model.Kind, parent model.ID) ([]model.ID, error) {
	if parent.IsNil() {
		return r.List(ctx)
	}
	if !r.kind.ListableUnder(parentKind) {
		return nil, fmt.Errorf("%s cannot be listed under %s", r.kind, parentKind)
	}
	return r.list(ctx, fmt.Sprintf("%s/%s/%s", parentKind.Collection(), parent, r.kind.Collection()))
}

func (r *Resource) list(ctx context.Context, ep string) ([]model.ID, error) {
	body, err := r.c.getJSON(ctx, ep)
	if err != nil {
		return nil, err
	}
	var ids []model.ID
	if err := decodeKey(body, r.kind.Collection(), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Show fetches one object.
func (r *Resource) Show(ctx context.Context, id model.ID) (model.Object, error) {
	return r.object(ctx, http.MethodGet, id)
}

// Delete removes one object and returns its last state.
func (r *Resource) Delete(ctx context.Context, id model.ID) (model.Object, error) {
	if r.kind == model.KindUser {
		return nil, fmt.Errorf("users cannot be deleted")
	}
	return r.object(ctx, http.MethodDelete, id)
}

func (r *Resource) object(ctx context.Context, method string, id model.ID) (model.Object, error) {
	body, err := r.c.callJSON(ctx, method, fmt.Sprintf("%s/%s", r.kind.Collection(), id))
	if err != nil {
		return nil, err
	}
	var obj model.Object
	if err := decodeKey(body, id.String(), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Users serves the user collection plus username lookups.
type Users struct {
	*Resource
}

func (c *Client) Users() *Users {
	return &Users{c.Resource(model.KindUser)}
}

// ByUsername resolves a username to the user's identifier.
func (u *Users) ByUsername(ctx context.Context, username string) (model.ID, error) {
	body, err := u.c.getJSON(ctx, fmt.Sprintf("%s/%s/%s", epUsernames, url.PathEscape(username), epMyUserUUID))
	if err != nil {
		return model.NilID, err
	}
	var id model.ID
	if err := decodeKey(body, keyUserUUID, &id); err != nil {
		return model.NilID, err
	}
	return id, nil
}
