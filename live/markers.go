package live

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/domreview/dom"
	"github.com/hazyhaar/domreview/framework"
)

// NodeAttr tags elements carrying framework markers while the page is
// serialized.
const NodeAttr = "data-dr-node"

// snapshotJS tags every element holding framework instance markers,
// serializes the document and exports the markers summarized to plain
// JSON. Parent and return chains are cut after 30 levels, objects after
// two.
const snapshotJS = `() => {
	const MAX_DEPTH = 30, MAX_NODES = 5000, MAX_KEYS = 40;
	const val = (v, d) => {
		if (v === null || v === undefined) return null;
		const t = typeof v;
		if (t === 'function') return '[Function]';
		if (t === 'symbol') return '[Symbol]';
		if (t === 'bigint') return String(v);
		if (t !== 'object') return v;
		if (v instanceof Node) return v.nodeType === 1 ? '[HTMLElement]' : '[Node]';
		if (d <= 0) return '[Object]';
		if (Array.isArray(v)) return v.slice(0, MAX_KEYS).map(x => val(x, d - 1));
		return obj(v, d - 1);
	};
	const obj = (o, d) => {
		if (!o || typeof o !== 'object') return undefined;
		const out = {};
		let n = 0;
		for (const k of Object.keys(o)) {
			if (n++ >= MAX_KEYS) break;
			try { out[k] = val(o[k], d); } catch (e) {}
		}
		return out;
	};
	const ctype = t => (t && (typeof t === 'function' || typeof t === 'object')) ? {
		name: typeof t.name === 'string' ? t.name : undefined,
		displayName: t.displayName,
		__name: t.__name,
		__file: t.__file,
	} : undefined;
	const vue3 = (i, d) => (i && d < MAX_DEPTH) ? {
		type: ctype(i.type),
		props: obj(i.props, 2),
		setupState: obj(i.setupState, 2),
		data: obj(i.data, 2),
		parent: vue3(i.parent, d + 1),
	} : undefined;
	const vue2 = (vm, d) => (vm && d < MAX_DEPTH) ? {
		$options: vm.$options ? {
			name: vm.$options.name,
			_componentTag: vm.$options._componentTag,
			__file: vm.$options.__file,
		} : undefined,
		$props: obj(vm.$props, 2),
		$data: obj(vm.$data, 2),
		$parent: vue2(vm.$parent, d + 1),
	} : undefined;
	const fiber = (f, d) => {
		if (!f || d >= MAX_DEPTH) return undefined;
		const o = {
			memoizedProps: obj(f.memoizedProps, 2),
			_debugSource: f._debugSource ? {fileName: f._debugSource.fileName} : undefined,
			return: fiber(f.return, d + 1),
		};
		if (typeof f.type === 'string') o.hostType = f.type;
		else o.component = ctype(f.type);
		if (f.memoizedState && typeof f.memoizedState === 'object') o.memoizedState = obj(f.memoizedState, 2);
		return o;
	};
	const ng = c => Array.isArray(c) ? c.slice(0, 50).map(x => {
		if (x && typeof x === 'object' && !Array.isArray(x) && !(x instanceof Node) &&
			x.constructor && x.constructor.name && x.constructor.name !== 'Object') {
			return {class: x.constructor.name, fields: obj(x, 2)};
		}
		return val(x, 0);
	}) : undefined;

	const markers = {};
	let n = 0;
	for (const el of document.querySelectorAll('*')) {
		if (n >= MAX_NODES) break;
		const props = {};
		try {
			if (el.__vueParentComponent) props.__vueParentComponent = vue3(el.__vueParentComponent, 0);
			if (el.__vue_app__) props.__vue_app__ = {version: String(el.__vue_app__.version || '')};
			if (el.__vue__) props.__vue__ = vue2(el.__vue__, 0);
			if (el.__ngContext__) {
				const c = ng(el.__ngContext__);
				if (c) props.__ngContext__ = c;
			}
			for (const k of Object.keys(el)) {
				if (k.startsWith('__reactFiber$') || k.startsWith('__reactInternalInstance$')) {
					props[k] = fiber(el[k], 0);
				}
			}
		} catch (e) {}
		if (Object.keys(props).length === 0) continue;
		const id = String(n++);
		el.setAttribute('` + NodeAttr + `', id);
		markers[id] = props;
	}
	const html = '<!DOCTYPE html>' + document.documentElement.outerHTML;
	for (const el of document.querySelectorAll('[` + NodeAttr + `]')) el.removeAttribute('` + NodeAttr + `');
	return {html, markers};
}`

// snapshot is what snapshotJS returns.
type snapshot struct {
	HTML    string                                `json:"html"`
	Markers map[string]map[string]json.RawMessage `json:"markers"`
}

// attachMarkers sets the exported markers as properties of the tagged
// elements of doc and removes the tags. It returns how many elements got
// markers.
func attachMarkers(doc *dom.Document, markers map[string]map[string]json.RawMessage) (int, error) {
	nodes, err := doc.QuerySelectorAll("[" + NodeAttr + "]")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, el := range nodes {
		id, _ := doc.Attr(el, NodeAttr)
		doc.RemoveAttr(el, NodeAttr)
		if _, err := strconv.Atoi(id); err != nil {
			continue
		}
		props, ok := markers[id]
		if !ok {
			continue
		}
		for key, raw := range props {
			v, err := decodeMarker(key, raw)
			if err != nil {
				return n, fmt.Errorf("live: marker %s on node %s: %w", key, id, err)
			}
			if v != nil {
				doc.SetProperty(el, key, v)
			}
		}
		n++
	}
	return n, nil
}

func decodeMarker(key string, raw json.RawMessage) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch {
	case key == framework.PropVue3:
		return decodeAs[framework.Vue3Instance](raw)
	case key == framework.PropVue3App:
		return decodeAs[framework.Vue3App](raw)
	case key == framework.PropVue2:
		return decodeAs[framework.Vue2Instance](raw)
	case key == framework.PropAngular:
		return decodeAngular(raw)
	case strings.HasPrefix(key, framework.ReactFiberPrefix),
		strings.HasPrefix(key, framework.ReactInstancePrefix):
		return decodeAs[framework.ReactFiber](raw)
	}
	return nil, nil
}

func decodeAs[T any](raw json.RawMessage) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeAngular turns exported context items back into component
// instances; items without a class stay plain values.
func decodeAngular(raw json.RawMessage) (framework.AngularContext, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	ctx := make(framework.AngularContext, 0, len(items))
	for _, item := range items {
		var probe struct {
			Class *string `json:"class"`
		}
		if json.Unmarshal(item, &probe) == nil && probe.Class != nil {
			comp, err := decodeAs[framework.AngularComponent](item)
			if err != nil {
				return nil, err
			}
			ctx = append(ctx, comp)
			continue
		}
		var v any
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, err
		}
		ctx = append(ctx, v)
	}
	return ctx, nil
}
