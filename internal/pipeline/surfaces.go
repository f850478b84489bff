package pipeline

import (
	"context"

	"github.com/nao1215/gallerywatch/internal/eventloop"
	"github.com/nao1215/gallerywatch/internal/site"
	"github.com/nao1215/gallerywatch/internal/surface"
)

// SurfaceFactory creates a browsing surface for one load. The surface
// delivers its events on loop and applies the request settings of profile.
type SurfaceFactory func(ctx context.Context, loop *eventloop.Loop, profile *site.Profile) (surface.Surface, error)

// StaticSurfaces returns a factory for HTTP surfaces. fallbackUA is used
// for sites without their own user agent.
func StaticSurfaces(fallbackUA string, opts ...surface.Option) SurfaceFactory {
	return func(_ context.Context, loop *eventloop.Loop, profile *site.Profile) (surface.Surface, error) {
		all := append(append([]surface.Option{}, opts...), surface.WithProfile(profile, fallbackUA))
		return surface.NewStatic(loop, all...), nil
	}
}

// ChromeSurfaces returns a factory that starts one Chrome per load.
func ChromeSurfaces(fallbackUA string, opts ...surface.Option) SurfaceFactory {
	return func(ctx context.Context, loop *eventloop.Loop, profile *site.Profile) (surface.Surface, error) {
		all := append(append([]surface.Option{}, opts...), surface.WithProfile(profile, fallbackUA))
		return surface.NewChrome(ctx, loop, all...)
	}
}
