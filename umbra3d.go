package umbra3d

// umbra3d is a retained-mode 3D scene graph, culling, and render-queue core.
// A SceneManager owns a tree of SceneNodes carrying MovableObjects (entities,
// lights, billboards, particle systems, batched static geometry); each frame,
// given a Camera, it walks the tree, culls, and emits an ordered RenderQueue
// of Renderables that a backend rasterizer consumes.

import (
	"log/slog"
)

var logger = slog.Default()

// SetLogger replaces the logger used for traversal warnings and other
// diagnostics. Passing nil restores slog.Default().
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	logger = l
}
