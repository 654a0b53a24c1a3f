package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/filter"
	"github.com/kasuganosora/odatacount/pkg/monitor"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/kasuganosora/odatacount/pkg/uri"
)

// Count returns the number of elements of the collection addressed by p that
// satisfy opts.Filter. Every other option is ignored.
func (e *Engine) Count(ctx context.Context, p *uri.Path, opts *Options) (int64, error) {
	if !p.IsCollection() {
		return 0, fmt.Errorf("%w: %s is not a collection", uri.ErrBadRequest, p.Target)
	}
	var text string
	if opts != nil {
		text = opts.Filter
	}
	var bound *filter.Bound
	if text != "" {
		b, err := filter.Compile(e.model, text, p.Target)
		if err != nil {
			return 0, err
		}
		bound = b
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if !e.shareCounts {
		return e.count(ctx, p, bound)
	}
	// 共享的计数不随某个调用方取消, 只受引擎超时限制; 每个调用方各自等待
	ch := e.counts.DoChan(e.countKey(p, text), func() (interface{}, error) {
		shared, cancel := e.withTimeout(context.WithoutCancel(ctx))
		defer cancel()
		return e.count(shared, p, bound)
	})
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("count %s: %w", p, ctx.Err())
	case res := <-ch:
		if res.Shared && e.metrics != nil {
			e.metrics.RecordShared()
		}
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int64), nil
	}
}

// countKey identifies a count: the resolved path with canonical key and
// argument literals, and the filter text. DollarCountEntities(5) and
// DollarCountEntities/5 share a key.
func (e *Engine) countKey(p *uri.Path, filterText string) string {
	var sb strings.Builder
	for _, seg := range p.Segments {
		sb.WriteString("/")
		switch {
		case seg.Kind == uri.SegmentKey && seg.EntityType != nil:
			sb.WriteString("(")
			for i, kp := range seg.EntityType.KeyProperties() {
				if i > 0 {
					sb.WriteString(",")
				}
				sb.WriteString(kp.Name + "=" + edm.FormatLiteral(e.model, edm.Literal{Type: kp.Type, Value: seg.Key[kp.Name]}))
			}
			sb.WriteString(")")
		case seg.Kind == uri.SegmentFunction && seg.Function != nil:
			sb.WriteString(seg.Function.QualifiedName() + "(")
			first := true
			for _, param := range seg.Function.Parameters {
				v, ok := seg.Args[param.Name]
				if !ok {
					continue
				}
				if !first {
					sb.WriteString(",")
				}
				first = false
				sb.WriteString(param.Name + "=" + edm.FormatLiteral(e.model, edm.Literal{Type: param.Type, Value: v}))
			}
			sb.WriteString(")")
		default:
			sb.WriteString(seg.Name)
		}
	}
	sb.WriteString("?")
	sb.WriteString(filterText)
	return sb.String()
}

func (e *Engine) count(ctx context.Context, p *uri.Path, bound *filter.Bound) (int64, error) {
	defer e.begin()()
	start := time.Now()

	n, err := e.resolve(ctx, p)
	if err != nil {
		return 0, err
	}

	if n.lazy {
		if pf, ok := filter.ToDomainFilter(bound); ok {
			c, err := n.ds.Count(ctx, n.set.Name, domain.And(n.base, pf))
			if err != nil {
				return 0, fmt.Errorf("count %s: %w", n.set.Name, err)
			}
			e.recordCount(monitor.ModePushdown, p, c, start)
			return c, nil
		}
	}

	elems, err := e.elements(ctx, n)
	if err != nil {
		return 0, err
	}
	var c int64
	for _, el := range elems {
		if bound != nil {
			ok, err := bound.Match(el.norm)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
		}
		c++
	}
	e.recordCount(monitor.ModeMemory, p, c, start)
	return c, nil
}

func (e *Engine) recordCount(mode string, p *uri.Path, c int64, start time.Time) {
	d := time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordCount(mode, d)
	}
	e.logger.Debug("count %s = %d (%s, %s)", p, c, mode, d)
}

// element one member of a materialised collection
type element struct {
	raw  interface{}
	norm interface{}
	// typ is the actual type of entities, the element type otherwise
	typ edm.TypeRef
}

// elements materialises a collection in runtime representation
func (e *Engine) elements(ctx context.Context, n *node) ([]element, error) {
	if !n.typ.Collection {
		return nil, fmt.Errorf("%w: %s is not a collection", uri.ErrBadRequest, n.typ)
	}

	if n.typ.Kind == edm.KindEntity {
		if err := e.load(ctx, n); err != nil {
			return nil, err
		}
		out := make([]element, 0, len(n.rows))
		for _, row := range n.rows {
			t := e.rowType(n, row).Ref()
			norm, err := e.model.Normalize(t, map[string]interface{}(row))
			if err != nil {
				return nil, fmt.Errorf("entity of %s: %w", t, err)
			}
			out = append(out, element{raw: row, norm: norm, typ: t})
		}
		return out, nil
	}

	if n.value == nil {
		return nil, nil
	}
	items, ok := toSlice(n.value)
	if !ok {
		// collections persisted as JSON text
		v, err := e.model.Normalize(n.typ, n.value)
		if err != nil {
			return nil, err
		}
		items = v.([]interface{})
		elem := n.typ.Elem()
		out := make([]element, len(items))
		for i, item := range items {
			out[i] = element{raw: item, norm: item, typ: elem}
		}
		return out, nil
	}

	elem := n.typ.Elem()
	out := make([]element, len(items))
	for i, item := range items {
		norm, err := e.model.Normalize(elem, item)
		if err != nil {
			return nil, fmt.Errorf("element %d of %s: %w", i, n.typ, err)
		}
		out[i] = element{raw: item, norm: norm, typ: elem}
	}
	return out, nil
}
