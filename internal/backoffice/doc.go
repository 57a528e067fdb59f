// Package backoffice exposes the back-office REST resources (products, orders,
// inventory, contact messages, SEO pages) over an authenticated client.
//
// Payload schemas belong to the backend, so records travel as json.RawMessage.
package backoffice
