// Package renderbridge renders twig-style templates through a safety bridge.
//
// Printed values pass an escape gate that is aware of the output context
// (html, js, css, url, html_attr). Render arrays, attribute objects and
// safe markup are recognised; calls to trusted URL functions whose
// parameters are compile-time literals are classified safe and printed as
// is. Each render collects cache tags, contexts, max-age and asset
// attachments from the fragments it prints.
//
// Typical use:
//
//	engine, err := renderbridge.NewEngine(
//		pongo.WithBaseDir("templates"),
//		pongo.WithBridge(renderbridge.NewExtension(
//			extension.WithURLGenerator(urls),
//		)),
//	)
//	result, err := engine.RenderTemplate(ctx, "page", data)
//	cache.WriteHeaders(w.Header(), result.Metadata)
package renderbridge
