package backoffice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/oapi-codegen/runtime"

	"github.com/florianilch/backoffice-client/internal/authclient"
)

// Requester issues API requests. Implemented by *authclient.Client.
type Requester interface {
	Request(ctx context.Context, method, path string, body any, opts ...authclient.RequestOption) (*authclient.Response, error)
}

// Compile-time check that the authenticated client satisfies Requester
var _ Requester = (*authclient.Client)(nil)

// API groups the back-office resources.
type API struct {
	Products  *Products
	Orders    *Orders
	Inventory *Inventory
	Contact   *Contact
	SEOPages  *SEOPages
}

// New creates the resource wrappers over r.
func New(r Requester) *API {
	return &API{
		Products:  &Products{r: r},
		Orders:    &Orders{r: r},
		Inventory: &Inventory{r: r},
		Contact:   &Contact{r: r},
		SEOPages:  &SEOPages{r: r},
	}
}

// pathParam encodes a single path segment in simple style.
func pathParam(name string, value any) (string, error) {
	seg, err := runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", name, err)
	}
	if seg == "" {
		return "", fmt.Errorf("%s cannot be empty", name)
	}
	return seg, nil
}

// raw issues a request and returns the body, or nil for empty bodies.
func raw(ctx context.Context, r Requester, method, path string, body any, query url.Values) (json.RawMessage, error) {
	var opts []authclient.RequestOption
	if len(query) > 0 {
		opts = append(opts, authclient.WithQuery(query))
	}
	resp, err := r.Request(ctx, method, path, body, opts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, nil
	}
	if !json.Valid(resp.Body) {
		return nil, fmt.Errorf("%s %s: response is not JSON", method, path)
	}
	return json.RawMessage(resp.Body), nil
}

// Products wraps /products.
type Products struct{ r Requester }

func (p *Products) List(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return raw(ctx, p.r, http.MethodGet, "/products", nil, query)
}

func (p *Products) Get(ctx context.Context, id string) (json.RawMessage, error) {
	seg, err := pathParam("id", id)
	if err != nil {
		return nil, err
	}
	return raw(ctx, p.r, http.MethodGet, "/products/"+seg, nil, nil)
}

func (p *Products) Create(ctx context.Context, product json.RawMessage) (json.RawMessage, error) {
	return raw(ctx, p.r, http.MethodPost, "/products", product, nil)
}

func (p *Products) Update(ctx context.Context, id string, product json.RawMessage) (json.RawMessage, error) {
	seg, err := pathParam("id", id)
	if err != nil {
		return nil, err
	}
	return raw(ctx, p.r, http.MethodPut, "/products/"+seg, product, nil)
}

func (p *Products) Delete(ctx context.Context, id string) error {
	seg, err := pathParam("id", id)
	if err != nil {
		return err
	}
	_, err = raw(ctx, p.r, http.MethodDelete, "/products/"+seg, nil, nil)
	return err
}

// Bookings lists product bookings.
func (p *Products) Bookings(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return raw(ctx, p.r, http.MethodGet, "/products/getBooking", nil, query)
}

// Orders wraps /admin/order.
type Orders struct{ r Requester }

func (o *Orders) List(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return raw(ctx, o.r, http.MethodGet, "/admin/order", nil, query)
}

func (o *Orders) Get(ctx context.Context, id string) (json.RawMessage, error) {
	seg, err := pathParam("id", id)
	if err != nil {
		return nil, err
	}
	return raw(ctx, o.r, http.MethodGet, "/admin/order/"+seg, nil, nil)
}

// UpdateStatus moves an order to the given status (e.g. "shipped", "delivered").
func (o *Orders) UpdateStatus(ctx context.Context, id, status string) (json.RawMessage, error) {
	seg, err := pathParam("id", id)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return nil, fmt.Errorf("status cannot be empty")
	}
	return raw(ctx, o.r, http.MethodPatch, "/admin/order/"+seg, map[string]string{"status": status}, nil)
}

// Inventory wraps /invontry/{section}, the backend's spelling.
type Inventory struct{ r Requester }

func (i *Inventory) List(ctx context.Context, section string, query url.Values) (json.RawMessage, error) {
	sec, err := pathParam("section", section)
	if err != nil {
		return nil, err
	}
	return raw(ctx, i.r, http.MethodGet, "/invontry/"+sec, nil, query)
}

func (i *Inventory) Get(ctx context.Context, section, id string) (json.RawMessage, error) {
	sec, err := pathParam("section", section)
	if err != nil {
		return nil, err
	}
	seg, err := pathParam("id", id)
	if err != nil {
		return nil, err
	}
	return raw(ctx, i.r, http.MethodGet, "/invontry/"+sec+"/"+seg, nil, nil)
}

// Adjust posts a stock movement to a section.
func (i *Inventory) Adjust(ctx context.Context, section string, adjustment json.RawMessage) (json.RawMessage, error) {
	sec, err := pathParam("section", section)
	if err != nil {
		return nil, err
	}
	return raw(ctx, i.r, http.MethodPost, "/invontry/"+sec, adjustment, nil)
}

// Contact wraps /contact/.
type Contact struct{ r Requester }

func (c *Contact) List(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return raw(ctx, c.r, http.MethodGet, "/contact/", nil, query)
}

func (c *Contact) Create(ctx context.Context, message json.RawMessage) (json.RawMessage, error) {
	return raw(ctx, c.r, http.MethodPost, "/contact/", message, nil)
}

// SEOPages wraps /seo-pages/{slug}.
type SEOPages struct{ r Requester }

func (s *SEOPages) List(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return raw(ctx, s.r, http.MethodGet, "/seo-pages", nil, query)
}

func (s *SEOPages) Get(ctx context.Context, slug string) (json.RawMessage, error) {
	seg, err := pathParam("slug", slug)
	if err != nil {
		return nil, err
	}
	return raw(ctx, s.r, http.MethodGet, "/seo-pages/"+seg, nil, nil)
}

func (s *SEOPages) Upsert(ctx context.Context, slug string, page json.RawMessage) (json.RawMessage, error) {
	seg, err := pathParam("slug", slug)
	if err != nil {
		return nil, err
	}
	return raw(ctx, s.r, http.MethodPut, "/seo-pages/"+seg, page, nil)
}

func (s *SEOPages) Delete(ctx context.Context, slug string) error {
	seg, err := pathParam("slug", slug)
	if err != nil {
		return err
	}
	_, err = raw(ctx, s.r, http.MethodDelete, "/seo-pages/"+seg, nil, nil)
	return err
}
