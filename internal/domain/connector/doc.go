// Package connector contains the domain model for external platform
// connections: the Integration aggregate and its lifecycle, webhook event
// records, and the port interfaces implemented by platform adapters and
// persistence in the infrastructure layer.
package connector
