// Package partials holds the fragments swapped in by HTMX.
package partials
