// Package env resolves {{...}} templates and loads variable sources.
//
// It provides functionality for:
//   - Loading environment files (.env, .env.local, etc.)
//   - Variable interpolation using {{variable}} syntax
//   - Built-in function evaluation ({{uuid()}}, {{fixture(user, email)}})
//   - Values captured by earlier workflow steps ({{userId}}, {{user.address.city}})
//   - OS environment lookups ({{$API_TOKEN}})
//
// Resolution is strict: a reference to a key that is not bound is an
// *capture.UnboundVariableError, never an empty string.
package env
