package assets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"

	"github.com/conneroisu/frontpage/internal/logging"
	"github.com/conneroisu/frontpage/internal/placeholder"
)

// Compressor concatenates and minifies local CSS and JS files according to
// the registry flags. Output is written below TempDir inside PublicDir and
// named after a content hash, so repeated runs reuse earlier output.
type Compressor struct {
	publicDir string
	tempDir   string
	logger    logging.Logger
}

// NewCompressor returns a compressor that reads sources from publicDir and
// writes to the public-relative tempDir.
func NewCompressor(publicDir, tempDir string, logger logging.Logger) *Compressor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Compressor{
		publicDir: publicDir,
		tempDir:   strings.Trim(filepath.ToSlash(tempDir), "/"),
		logger:    logger.WithComponent("compressor"),
	}
}

// Process returns a copy of state with concatenation and compression applied.
// Entries whose files cannot be read are left untouched.
func (c *Compressor) Process(ctx context.Context, state State) (State, error) {
	out := state.Clone()
	f := state.Flags
	if f.ConcatenateCSS {
		out.CSSLibs = c.concatCSS(ctx, out.CSSLibs)
		out.CSSFiles = c.concatCSS(ctx, out.CSSFiles)
	}
	if f.ConcatenateJS {
		out.JSLibs = c.concatJS(ctx, out.JSLibs)
		out.JSFiles = c.concatJS(ctx, out.JSFiles)
		out.JSFooterLibs = c.concatJS(ctx, out.JSFooterLibs)
		out.JSFooterFiles = c.concatJS(ctx, out.JSFooterFiles)
	}
	if f.CompressCSS {
		out.CSSLibs = compressList(ctx, c, out.CSSLibs, cssSource, ".css", MinifyCSS)
		out.CSSFiles = compressList(ctx, c, out.CSSFiles, cssSource, ".css", MinifyCSS)
		out.CSSInline = minifyInline(out.CSSInline, MinifyCSS)
	}
	if f.CompressJS {
		out.JSLibs = compressList(ctx, c, out.JSLibs, jsSource, ".js", MinifyJS)
		out.JSFiles = compressList(ctx, c, out.JSFiles, jsSource, ".js", MinifyJS)
		out.JSFooterLibs = compressList(ctx, c, out.JSFooterLibs, jsSource, ".js", MinifyJS)
		out.JSFooterFiles = compressList(ctx, c, out.JSFooterFiles, jsSource, ".js", MinifyJS)
		out.JSInline = minifyInline(out.JSInline, MinifyJS)
		out.JSFooterInline = minifyInline(out.JSFooterInline, MinifyJS)
	}
	return out, nil
}

// source accessors let compressList work on both entry kinds.
type sourced[T any] struct {
	get      func(T) (src string, compress bool)
	withPath func(T, string) T
}

var cssSource = sourced[CSSEntry]{
	get: func(e CSSEntry) (string, bool) { return e.Source, e.Compress && !e.Inline },
	withPath: func(e CSSEntry, p string) CSSEntry {
		e.Source = p
		return e
	},
}

var jsSource = sourced[JSEntry]{
	get: func(e JSEntry) (string, bool) { return e.Source, e.Compress },
	withPath: func(e JSEntry, p string) JSEntry {
		e.Source = p
		return e
	},
}

func compressList[T any](ctx context.Context, c *Compressor, l List[T], acc sourced[T], ext string, minify func(string) string) List[T] {
	var out List[T]
	for _, key := range l.Keys {
		item := l.Items[key]
		src, compress := acc.get(item)
		if compress && !IsExternal(src) {
			if p, err := c.compressFile(src, ext, minify); err == nil {
				item = acc.withPath(item, p)
			} else {
				c.logger.Warn(ctx, err, "compress skipped", "source", src)
			}
		}
		out.Add(key, item, false)
	}
	return out
}

func (c *Compressor) compressFile(src, ext string, minify func(string) string) (string, error) {
	data, err := os.ReadFile(c.osPath(src))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", src, err)
	}
	minified := []byte(minify(string(data)))
	base := strings.TrimSuffix(path.Base(src), path.Ext(src))
	rel := path.Join(c.tempDir, "compressed", base+"-"+contentHash(minified)+ext)
	if err := c.write(rel, minified); err != nil {
		return "", err
	}
	if err := c.writeGzip(rel+".gz", minified); err != nil {
		return "", err
	}
	return rel, nil
}

func (c *Compressor) concatCSS(ctx context.Context, l List[CSSEntry]) List[CSSEntry] {
	var out List[CSSEntry]
	var group []CSSEntry
	flush := func() {
		switch len(group) {
		case 0:
		case 1:
			out.Add(group[0].Source, group[0], false)
		default:
			sources := make([]string, len(group))
			for i, e := range group {
				sources[i] = e.Source
			}
			merged, err := c.merge(sources, ".css")
			if err != nil {
				c.logger.Warn(ctx, err, "concatenation skipped")
				for _, e := range group {
					out.Add(e.Source, e, false)
				}
				break
			}
			e := group[0]
			e.Source = merged
			out.Add(merged, e, false)
		}
		group = nil
	}
	for _, key := range l.Keys {
		e := l.Items[key]
		if !concatenableCSS(e) {
			flush()
			out.Add(key, e, false)
			continue
		}
		if len(group) > 0 && (group[0].Media != e.Media || group[0].Relation != e.Relation) {
			flush()
		}
		group = append(group, e)
	}
	flush()
	return out
}

func concatenableCSS(e CSSEntry) bool {
	return !e.ExcludeFromConcat && !e.Inline && !IsExternal(e.Source) &&
		e.Wrap == "" && e.Title == "" && len(e.ExtraAttributes) == 0
}

func (c *Compressor) concatJS(ctx context.Context, l List[JSEntry]) List[JSEntry] {
	var out List[JSEntry]
	var group []JSEntry
	flush := func() {
		switch len(group) {
		case 0:
		case 1:
			out.Add(listKey(group[0]), group[0], false)
		default:
			sources := make([]string, len(group))
			for i, e := range group {
				sources[i] = e.Source
			}
			merged, err := c.merge(sources, ".js")
			if err != nil {
				c.logger.Warn(ctx, err, "concatenation skipped")
				for _, e := range group {
					out.Add(listKey(e), e, false)
				}
				break
			}
			e := group[0]
			e.Name = ""
			e.Source = merged
			out.Add(merged, e, false)
		}
		group = nil
	}
	for _, key := range l.Keys {
		e := l.Items[key]
		if !concatenableJS(e) {
			flush()
			out.Add(key, e, false)
			continue
		}
		if len(group) > 0 && (group[0].Type != e.Type || group[0].Async != e.Async || group[0].Defer != e.Defer) {
			flush()
		}
		group = append(group, e)
	}
	flush()
	return out
}

func concatenableJS(e JSEntry) bool {
	return !e.ExcludeFromConcat && !IsExternal(e.Source) && e.Wrap == "" &&
		e.Integrity == "" && !e.Nomodule && e.ModuleType == "" && len(e.ExtraAttributes) == 0
}

func listKey(e JSEntry) string {
	if e.Name != "" {
		return e.Name
	}
	return e.Source
}

// merge writes the concatenation of sources and returns its public path.
func (c *Compressor) merge(sources []string, ext string) (string, error) {
	var buf bytes.Buffer
	for _, src := range sources {
		data, err := os.ReadFile(c.osPath(src))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", src, err)
		}
		buf.Write(data)
		buf.WriteString("\n")
	}
	rel := path.Join(c.tempDir, "merged-"+contentHash(buf.Bytes())+ext)
	if err := c.write(rel, buf.Bytes()); err != nil {
		return "", err
	}
	return rel, nil
}

func (c *Compressor) osPath(rel string) string {
	return filepath.Join(c.publicDir, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
}

func (c *Compressor) write(rel string, data []byte) error {
	target := c.osPath(rel)
	if _, err := os.Stat(target); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

func (c *Compressor) writeGzip(rel string, data []byte) error {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("gzip %s: %w", rel, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("gzip %s: %w", rel, err)
	}
	return c.write(rel, buf.Bytes())
}

func minifyInline(l List[InlineBlock], minify func(string) string) List[InlineBlock] {
	var out List[InlineBlock]
	for _, key := range l.Keys {
		b := l.Items[key]
		if b.Compress {
			b.Code = placeholder.Protect(b.Code, minify)
		}
		out.Add(key, b, false)
	}
	return out
}

var minifier = func() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	return m
}()

// MinifyCSS minifies a stylesheet. Code that does not parse is returned
// unchanged.
func MinifyCSS(code string) string {
	return minifyAs("text/css", code)
}

// MinifyJS minifies a script. Code that does not parse, such as a fragment
// cut at an INT_SCRIPT marker, is returned unchanged.
func MinifyJS(code string) string {
	return minifyAs("application/javascript", code)
}

func minifyAs(mediatype, code string) string {
	if strings.TrimSpace(code) == "" {
		return code
	}
	out, err := minifier.String(mediatype, code)
	if err != nil {
		return code
	}
	return out
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}
