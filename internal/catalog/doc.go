// Package catalog is an in-memory platform for callback chains.
//
// A Catalog holds scopes, and inside each scope the receiver types,
// callback types and methods that persisted chains refer to by name. It
// resolves those names back into live methods and restores receivers
// through per-type codecs:
//
//	cat := catalog.New()
//	cat.AddScope("ui")
//	cat.RegisterCallbackType("ui", "ClickHandler")
//	cat.RegisterType("ui", "Button", reflect.TypeFor[*Button](), catalog.JSONCodec[Button]{})
//	cat.RegisterMethod(&callback.Method{...})
//
// Catalog satisfies the platform interface consumed by package persist.
package catalog
