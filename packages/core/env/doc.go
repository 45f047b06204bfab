// Package env handles variables and placeholder resolution for hitsuite
// documents.
//
// It provides functionality for:
//   - Loading .env files
//   - Placeholder interpolation using {{variable}} syntax
//   - Dotted lookups into structured values ({{row.user.name}})
//   - Environment variables ({{$env.HOME}} or {{$HOME}})
//   - Built-in functions ({{uuid()}}, {{$uuid}}, {{timestamp()}}, ...)
//   - Nested scopes, so table rows and child groups can shadow variables
package env
