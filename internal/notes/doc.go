// Package notes maps a project to its fixed set of vault notes and renders
// their Markdown content.
//
// Every project lives under <root>/<slug>/ and owns five seed notes plus a
// Runs/ folder:
//
//	Project Memory/acme-api/
//	├── Acme API Home.md
//	├── MOC.md
//	├── Run Log.md
//	├── Decisions.md
//	├── Open Questions.md
//	└── Runs/2025-11-24-1015-fix-login.md
//
// Everything here is pure. Rendering is deterministic apart from the
// created/updated timestamps, which come from the caller's clock.
package notes
