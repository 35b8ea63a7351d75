// Package handler implements the gateway's request entry point: rewrite rule
// evaluation, transparent proxying to upstream origins, and fallthrough to
// the gateway's own routes and static files.
package handler
