package backoffice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/backoffice-client/internal/authclient"
	"github.com/florianilch/backoffice-client/internal/tokenstore"
)

type recordedCall struct {
	Method string
	Path   string
	Body   any
	Query  string
}

// fakeRequester records calls and answers with a canned body.
type fakeRequester struct {
	calls    []recordedCall
	response string
}

func (f *fakeRequester) Request(_ context.Context, method, path string, body any, opts ...authclient.RequestOption) (*authclient.Response, error) {
	req, _ := http.NewRequest(method, "http://backend.invalid"+path, nil)
	for _, opt := range opts {
		opt(req)
	}
	f.calls = append(f.calls, recordedCall{Method: method, Path: path, Body: body, Query: req.URL.RawQuery})
	return &authclient.Response{StatusCode: http.StatusOK, Body: []byte(f.response)}, nil
}

func TestResourceRoutes(t *testing.T) {
	tests := []struct {
		name       string
		call       func(api *API) error
		wantMethod string
		wantPath   string
		wantQuery  string
	}{
		{
			name: "list products with paging",
			call: func(api *API) error {
				_, err := api.Products.List(context.Background(), url.Values{"page": {"2"}})
				return err
			},
			wantMethod: http.MethodGet, wantPath: "/products", wantQuery: "page=2",
		},
		{
			name: "get product",
			call: func(api *API) error {
				_, err := api.Products.Get(context.Background(), "p-42")
				return err
			},
			wantMethod: http.MethodGet, wantPath: "/products/p-42",
		},
		{
			name: "bookings",
			call: func(api *API) error {
				_, err := api.Products.Bookings(context.Background(), nil)
				return err
			},
			wantMethod: http.MethodGet, wantPath: "/products/getBooking",
		},
		{
			name: "delete product",
			call: func(api *API) error {
				return api.Products.Delete(context.Background(), "p-42")
			},
			wantMethod: http.MethodDelete, wantPath: "/products/p-42",
		},
		{
			name: "order status",
			call: func(api *API) error {
				_, err := api.Orders.UpdateStatus(context.Background(), "1001", "shipped")
				return err
			},
			wantMethod: http.MethodPatch, wantPath: "/admin/order/1001",
		},
		{
			name: "inventory section",
			call: func(api *API) error {
				_, err := api.Inventory.Get(context.Background(), "warehouse", "sku-9")
				return err
			},
			wantMethod: http.MethodGet, wantPath: "/invontry/warehouse/sku-9",
		},
		{
			name: "contact message",
			call: func(api *API) error {
				_, err := api.Contact.Create(context.Background(), json.RawMessage(`{"msg":"hi"}`))
				return err
			},
			wantMethod: http.MethodPost, wantPath: "/contact/",
		},
		{
			name: "seo slug is escaped",
			call: func(api *API) error {
				_, err := api.SEOPages.Get(context.Background(), "summer sale")
				return err
			},
			wantMethod: http.MethodGet, wantPath: "/seo-pages/summer%20sale",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRequester{response: `{}`}
			require.NoError(t, tt.call(New(fake)))
			require.Len(t, fake.calls, 1)

			got := fake.calls[0]
			assert.Equal(t, tt.wantMethod, got.Method)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.Equal(t, tt.wantQuery, got.Query)
		})
	}
}

func TestEmptyIdentifiersAreRejected(t *testing.T) {
	fake := &fakeRequester{response: `{}`}
	api := New(fake)

	_, err := api.Products.Get(context.Background(), "")
	require.Error(t, err)
	_, err = api.Orders.UpdateStatus(context.Background(), "1001", "")
	require.Error(t, err)
	assert.Empty(t, fake.calls)
}

func TestNonJSONResponseIsAnError(t *testing.T) {
	fake := &fakeRequester{response: `<html>`}
	_, err := New(fake).Orders.List(context.Background(), nil)
	require.Error(t, err)
}

func TestResourcesThroughAuthenticatedClient(t *testing.T) {
	var gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{"id":"1001","status":"shipped"}`))
	}))
	defer server.Close()

	client, err := authclient.New(server.URL, tokenstore.NewMemoryStore("abc123"))
	require.NoError(t, err)

	order, err := New(client).Orders.UpdateStatus(context.Background(), "1001", "shipped")
	require.NoError(t, err)

	assert.Equal(t, "Bearer abc123", gotAuth)
	assert.JSONEq(t, `{"status":"shipped"}`, gotBody)
	assert.JSONEq(t, `{"id":"1001","status":"shipped"}`, string(order))
}
