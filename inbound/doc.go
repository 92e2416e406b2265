// Package inbound exposes the webhook, login and setup endpoints.
//
// Each endpoint is an InboundHandler bound to a surface. The Dispatcher routes
// requests by surface and NewRouter mounts it on a chi router.
package inbound
