package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_PublicURL(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher()

	u, err := d.PublicURL(ctx, "css/a.css", "/")
	require.NoError(t, err)
	assert.Equal(t, "/css/a.css", u)

	d.OnGeneratePublicURL(func(_ context.Context, e *GeneratePublicURL) error {
		if e.Path == "css/cdn.css" {
			e.URL = "https://cdn.example.com/" + e.Path
		}
		return nil
	})

	u, err = d.PublicURL(ctx, "css/cdn.css", "/")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/css/cdn.css", u)

	u, err = d.PublicURL(ctx, "css/a.css", "/sub")
	require.NoError(t, err)
	assert.Equal(t, "/sub/css/a.css", u)
}

func TestDispatcher_ListenerErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	d := NewDispatcher()
	d.OnModifyHrefLangTags(func(context.Context, *ModifyHrefLangTags) error { return boom })
	d.OnGeneratePublicURL(func(context.Context, *GeneratePublicURL) error { return boom })

	err := d.DispatchHrefLang(context.Background(), &ModifyHrefLangTags{})
	assert.ErrorIs(t, err, boom)

	_, err = d.PublicURL(context.Background(), "a.css", "/")
	assert.ErrorIs(t, err, boom)
}

func TestModifyHrefLangTags(t *testing.T) {
	d := NewDispatcher()
	d.OnModifyHrefLangTags(func(_ context.Context, e *ModifyHrefLangTags) error {
		e.Set("de", "https://example.com/de/")
		e.Set("en", "https://example.com/")
		e.Set("de", "https://example.de/")
		e.Remove("fr")
		return nil
	})

	e := &ModifyHrefLangTags{Tags: []HrefLang{{Lang: "fr", URL: "https://example.fr/"}}}
	require.NoError(t, d.DispatchHrefLang(context.Background(), e))
	assert.Equal(t, []HrefLang{
		{Lang: "de", URL: "https://example.de/"},
		{Lang: "en", URL: "https://example.com/"},
	}, e.Tags)
}

func TestDefaultPublicURL(t *testing.T) {
	assert.Equal(t, "a.css", DefaultPublicURL("a.css", ""))
	assert.Equal(t, "/abs.css", DefaultPublicURL("/abs.css", "/prefix/"))
	assert.Equal(t, "/prefix/a.css", DefaultPublicURL("a.css", "/prefix/"))
}
