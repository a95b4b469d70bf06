// Package schema validates response bodies against named JSON Schema
// documents. A Store resolves a reference such as "user" or "users.json" to
// a compiled schema; a Validator reports every violation in a stable order.
package schema
