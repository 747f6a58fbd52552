// Package cobj evaluates content objects from the setup tree.
//
// A content object is a tree node whose value names the object type (TEXT,
// HTML, COA, USER, COA_INT, USER_INT) and whose children hold its
// configuration. The *_INT variants are not rendered in place: they schedule
// an uncached instruction on the render context and emit its marker.
package cobj

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/conneroisu/frontpage/internal/logging"
	"github.com/conneroisu/frontpage/internal/page"
	"github.com/conneroisu/frontpage/internal/tstree"
)

// Object type names.
const (
	TypeText    = "TEXT"
	TypeHTML    = "HTML"
	TypeCOA     = "COA"
	TypeUser    = "USER"
	TypeCOAInt  = "COA_INT"
	TypeUserInt = "USER_INT"
)

// MaxDepth bounds the nesting of content objects, references included.
const MaxDepth = 100

// ErrMaxDepth is returned when content objects nest deeper than MaxDepth,
// which in practice means a reference cycle in the setup tree.
var ErrMaxDepth = errors.New("content object nesting too deep")

type depthKey struct{}

func depth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// Call is the input of a user function.
type Call struct {
	// Content is the page content for permanent instructions and the
	// current content for stdWrap calls. Empty for USER objects.
	Content string
	Conf    *tstree.Node
	Params  map[string]string
	RC      *page.RenderContext
}

// UserFunc renders a USER object or runs an uncached instruction.
type UserFunc func(ctx context.Context, call Call) (string, error)

// Evaluator renders content objects. It is safe for concurrent use once all
// user functions are registered.
type Evaluator struct {
	mu     sync.RWMutex
	funcs  map[string]UserFunc
	logger logging.Logger
}

// New returns an evaluator without user functions.
func New(logger logging.Logger) *Evaluator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Evaluator{
		funcs:  make(map[string]UserFunc),
		logger: logger.WithComponent("cobj"),
	}
}

// Register makes fn callable as userFunc name.
func (e *Evaluator) Register(name string, fn UserFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs[name] = fn
}

func (e *Evaluator) userFunc(name string) (UserFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.funcs[name]
	return fn, ok
}

// Render renders the numerically keyed children of tree in key order and
// concatenates their output.
func (e *Evaluator) Render(ctx context.Context, rc *page.RenderContext, tree *tstree.Node) (string, error) {
	parts, err := e.renderChildren(ctx, rc, tree)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, ""), nil
}

// RenderInterleaved renders like Render but joins non-empty outputs with sep.
func (e *Evaluator) RenderInterleaved(ctx context.Context, rc *page.RenderContext, tree *tstree.Node, sep string) (string, error) {
	parts, err := e.renderChildren(ctx, rc, tree)
	if err != nil {
		return "", err
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep), nil
}

func (e *Evaluator) renderChildren(ctx context.Context, rc *page.RenderContext, tree *tstree.Node) ([]string, error) {
	var parts []string
	for _, k := range tree.NumericKeys() {
		child := tree.Child(k)
		if !child.HasValue() {
			continue
		}
		out, err := e.RenderSingle(ctx, rc, child.Value(), child)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", k, err)
		}
		parts = append(parts, out)
	}
	return parts, nil
}

// RenderSingle renders one content object of the given type. A name starting
// with "<" references another object in the setup tree by dotted path; its
// configuration is merged under conf.
func (e *Evaluator) RenderSingle(ctx context.Context, rc *page.RenderContext, name string, conf *tstree.Node) (string, error) {
	d := depth(ctx) + 1
	if d > MaxDepth {
		return "", fmt.Errorf("%w: %s", ErrMaxDepth, name)
	}
	ctx = context.WithValue(ctx, depthKey{}, d)

	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "<") {
		var setup *tstree.Node
		if rc != nil {
			setup = rc.Setup
		}
		ref := setup.Get(strings.TrimSpace(name[1:]))
		if ref == nil || !ref.HasValue() {
			e.logger.Debug(ctx, "unresolved content object reference", "ref", name)
			return "", nil
		}
		return e.RenderSingle(ctx, rc, ref.Value(), ref.Merge(withoutValue(conf)))
	}

	switch name {
	case TypeText, TypeHTML:
		return e.StdWrap(ctx, rc, conf.String("value"), conf)
	case TypeCOA:
		return e.renderCOA(ctx, rc, conf)
	case TypeUser:
		return e.renderUser(ctx, rc, conf)
	case TypeCOAInt, TypeUserInt:
		typ := page.InstructionCOA
		if name == TypeUserInt {
			typ = page.InstructionUSER
		}
		if rc == nil {
			return "", fmt.Errorf("%s requires a render context", name)
		}
		return rc.AddUncached(page.Instruction{
			Type: typ,
			Conf: withoutValue(conf),
			Data: copyMap(rc.Data),
		}), nil
	case "":
		return "", nil
	default:
		e.logger.Debug(ctx, "unsupported content object", "type", name)
		return "", nil
	}
}

func (e *Evaluator) renderCOA(ctx context.Context, rc *page.RenderContext, conf *tstree.Node) (string, error) {
	if ifConf := conf.Child("if"); ifConf != nil {
		ok, err := e.CheckIf(ctx, rc, ifConf)
		if err != nil || !ok {
			return "", err
		}
	}
	content, err := e.Render(ctx, rc, conf)
	if err != nil {
		return "", err
	}
	content = Wrap(content, conf.String("wrap"), conf.String("wrap.splitChar"))
	return e.StdWrap(ctx, rc, content, conf.Child("stdWrap"))
}

func (e *Evaluator) renderUser(ctx context.Context, rc *page.RenderContext, conf *tstree.Node) (string, error) {
	name := conf.String("userFunc")
	fn, ok := e.userFunc(name)
	if !ok {
		return "", fmt.Errorf("user function %q is not registered", name)
	}
	out, err := fn(ctx, Call{Conf: conf, RC: rc})
	if err != nil {
		return "", fmt.Errorf("user function %q: %w", name, err)
	}
	return e.StdWrap(ctx, rc, out, conf.Child("stdWrap"))
}

// RenderInstruction renders a non-permanent uncached instruction. The
// instruction's data record is current while it renders.
func (e *Evaluator) RenderInstruction(ctx context.Context, rc *page.RenderContext, inst page.Instruction) (string, error) {
	if inst.Data != nil {
		saved := rc.Data
		rc.Data = inst.Data
		defer func() { rc.Data = saved }()
	}
	switch inst.Type {
	case page.InstructionCOA:
		return e.renderCOA(ctx, rc, inst.Conf)
	case page.InstructionUSER:
		return e.renderUser(ctx, rc, inst.Conf)
	case page.InstructionFunc:
		return e.call(ctx, rc, inst, "")
	default:
		return "", fmt.Errorf("unknown instruction type %q", inst.Type)
	}
}

// RunPermanent applies a permanent instruction to the whole page content and
// returns the transformed content.
func (e *Evaluator) RunPermanent(ctx context.Context, rc *page.RenderContext, inst page.Instruction, content string) (string, error) {
	return e.call(ctx, rc, inst, content)
}

func (e *Evaluator) call(ctx context.Context, rc *page.RenderContext, inst page.Instruction, content string) (string, error) {
	fn, ok := e.userFunc(inst.Target)
	if !ok {
		return "", fmt.Errorf("instruction target %q is not registered", inst.Target)
	}
	out, err := fn(ctx, Call{Content: content, Conf: inst.Conf, Params: inst.Parameters, RC: rc})
	if err != nil {
		return "", fmt.Errorf("instruction %q: %w", inst.Target, err)
	}
	return out, nil
}

func withoutValue(n *tstree.Node) *tstree.Node {
	out := tstree.New()
	for _, k := range n.Keys() {
		out.SetChild(k, n.Child(k))
	}
	return out
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
