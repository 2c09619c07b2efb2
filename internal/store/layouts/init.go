// Package layouts registers the record layouts with the store registry.
// Import this package to make every layout selectable by STORAGE_LAYOUT.
package layouts

// Each layout file uses init() to register itself.
