package frontend

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/conneroisu/frontpage/internal/assets"
	ferrors "github.com/conneroisu/frontpage/internal/errors"
	"github.com/conneroisu/frontpage/internal/page"
	"github.com/conneroisu/frontpage/internal/placeholder"
)

// renderUncached finishes rc.Content for the current request. Markers are
// replaced by the output of their instructions, permanent instructions run
// over the whole content and the deferred asset sections are filled with
// everything registered so far.
func (h *Handler) renderUncached(ctx context.Context, rc *page.RenderContext) error {
	ctx, span := h.tracer.Start(ctx, "frontend.uncached")
	defer span.End()

	rendered := 0
	if rc.HasUncachedFragments {
		if err := h.restoreExt(rc); err != nil {
			return err
		}
		n, err := h.resolveMarkers(ctx, rc)
		if err != nil {
			return err
		}
		rendered += n
	}

	for _, inst := range rc.Uncached {
		if !inst.Permanent {
			continue
		}
		out, err := h.eval.RunPermanent(ctx, rc, inst, rc.Content)
		if err != nil {
			return ferrors.NewRenderError(ferrors.CodeInternal, "run permanent instruction", err).
				WithContext("target", inst.Target)
		}
		rc.Content = out
	}

	if rc.HasUncachedFragments && !rc.Config.Bool("disableAllHeaderCode") {
		key := rc.Ext.DivKey
		content, err := rc.Assets.RenderSectionsInto(ctx, rc.Content, key, h.renderOptions(rc))
		if err != nil {
			return ferrors.NewRenderError(ferrors.CodeInternal, "render deferred sections", err)
		}
		content = strings.ReplaceAll(content, headerDataMarker(key),
			strings.Join(rc.AdditionalHeaderData.Markup(), "\n"))
		content = strings.ReplaceAll(content, footerDataMarker(key),
			strings.Join(rc.AdditionalFooterData.Markup(), "\n"))
		rc.Content = content

		// markers may have been registered as assets by the fragments
		n, err := h.resolveMarkers(ctx, rc)
		if err != nil {
			return err
		}
		rendered += n
	}

	h.metrics.Fragments(rendered)
	span.SetAttributes(attribute.Int("page.fragments", rendered))
	return nil
}

// restoreExt rebuilds the asset state captured when the page was generated.
func (h *Handler) restoreExt(rc *page.RenderContext) error {
	if rc.Ext.Assets != nil {
		reg := assets.NewRegistry()
		if err := reg.Restore(*rc.Ext.Assets); err != nil {
			return ferrors.NewCacheError(ferrors.CodeInternal, "restore asset state", err)
		}
		rc.Assets = reg
	}
	if rc.Ext.Collector != nil {
		coll := assets.NewAssetCollector()
		if err := coll.Restore(*rc.Ext.Collector); err != nil {
			return ferrors.NewCacheError(ferrors.CodeInternal, "restore asset collector", err)
		}
		rc.Collector = coll
	}
	rc.AdditionalHeaderData = append(page.Fragments(nil), rc.Ext.AdditionalHeaderData...)
	rc.AdditionalFooterData = append(page.Fragments(nil), rc.Ext.AdditionalFooterData...)
	return nil
}

// resolveMarkers replaces markers in rc.Content until none are left. Output
// of one instruction may contain further markers; those are resolved in the
// next round. It returns the number of instructions rendered.
func (h *Handler) resolveMarkers(ctx context.Context, rc *page.RenderContext) (int, error) {
	rendered := 0
	for round := 0; round < maxResolveRounds && placeholder.Contains(rc.Content); round++ {
		var firstErr error
		rc.Content = placeholder.Resolve(rc.Content, func(id string) (string, bool) {
			if firstErr != nil {
				return "", false
			}
			inst, ok := rc.Instruction(id)
			if !ok || inst.Permanent {
				h.logger.Debug(ctx, "unknown uncached marker", "id", id)
				return "", true
			}
			out, err := h.eval.RenderInstruction(ctx, rc, inst)
			if err != nil {
				firstErr = ferrors.NewRenderError(ferrors.CodeInternal, "render uncached instruction", err).
					WithContext("key", id)
				return "", false
			}
			rendered++
			return out, true
		})
		if firstErr != nil {
			return rendered, firstErr
		}
	}
	if placeholder.Contains(rc.Content) {
		h.logger.Warn(ctx, nil, "uncached markers left after resolving", "rounds", maxResolveRounds)
	}
	return rendered, nil
}
