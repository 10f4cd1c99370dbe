package logging

import (
	"context"
	"log/slog"
)

// componentKey is the attribute that selects a component's level.
const componentKey = "component"

// FilteringHandler drops records below the level the Spec assigns to
// the handler's component. The component is picked up from a
// "component" attribute added with Logger.With.
type FilteringHandler struct {
	inner     slog.Handler
	spec      *Spec
	component string
}

// NewFilteringHandler wraps inner with per-component filtering.
func NewFilteringHandler(inner slog.Handler, spec *Spec) *FilteringHandler {
	return &FilteringHandler{inner: inner, spec: spec}
}

// Enabled reports whether level passes the component's threshold.
func (h *FilteringHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.spec.LevelFor(h.component).ToSlog()
}

// Handle forwards r to the inner handler when it is enabled.
func (h *FilteringHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a handler carrying attrs. A "component" attribute
// switches the level used for filtering.
func (h *FilteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, attr := range attrs {
		if attr.Key == componentKey {
			component = attr.Value.String()
		}
	}
	return &FilteringHandler{
		inner:     h.inner.WithAttrs(attrs),
		spec:      h.spec,
		component: component,
	}
}

// WithGroup returns a handler that nests later attributes under name.
// The component is unchanged.
func (h *FilteringHandler) WithGroup(name string) slog.Handler {
	return &FilteringHandler{
		inner:     h.inner.WithGroup(name),
		spec:      h.spec,
		component: h.component,
	}
}
