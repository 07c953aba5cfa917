package framework

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domreview/dom"
)

// maxDepth bounds every ancestor and fiber walk.
const maxDepth = 30

// Detector recognises one framework. chain holds the element followed by
// its ancestors, nearest first, at most maxDepth long.
type Detector interface {
	Name() string
	Detect(doc *dom.Document, chain []*html.Node) *Descriptor
}

// DefaultDetectors lists the built-in detectors in priority order. Adding a
// framework means appending a Detector.
func DefaultDetectors() []Detector {
	return []Detector{Vue3{}, Vue2{}, React{}, Angular{}}
}

// Detect runs detectors in order and returns the first match.
func Detect(doc *dom.Document, el *html.Node, detectors []Detector) *Descriptor {
	chain := ancestry(doc, el)
	if len(chain) == 0 {
		return nil
	}
	for _, d := range detectors {
		if desc := d.Detect(doc, chain); desc != nil {
			return desc
		}
	}
	return nil
}

func ancestry(doc *dom.Document, el *html.Node) []*html.Node {
	var chain []*html.Node
	doc.View(func(*html.Node) {
		for cur := el; dom.IsElement(cur) && len(chain) < maxDepth; cur = dom.ParentElement(cur) {
			chain = append(chain, cur)
		}
	})
	return chain
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Vue3 reads __vueParentComponent.
type Vue3 struct{}

func (Vue3) Name() string { return "vue3" }

func (Vue3) Detect(doc *dom.Document, chain []*html.Node) *Descriptor {
	for _, cur := range chain {
		v, ok := doc.Property(cur, PropVue3)
		inst, _ := v.(*Vue3Instance)
		if !ok || inst == nil {
			continue
		}
		typ := inst.Type
		if typ == nil {
			typ = &ComponentType{}
		}
		state := inst.SetupState
		if state == nil {
			state = inst.Data
		}
		var parent string
		if inst.Parent != nil && inst.Parent.Type != nil {
			parent = firstNonEmpty(inst.Parent.Type.Name, inst.Parent.Type.InternalName)
		}
		return &Descriptor{
			Framework:            "vue3",
			ComponentName:        firstNonEmpty(typ.Name, typ.InternalName, "Anonymous"),
			FilePath:             typ.File,
			Props:                Shallow(inst.Props),
			State:                Shallow(state),
			ParentComponentName:  parent,
			ComponentRootElement: cur.Data,
		}
	}
	return nil
}

// Vue2 reads __vue__.
type Vue2 struct{}

func (Vue2) Name() string { return "vue2" }

func (Vue2) Detect(doc *dom.Document, chain []*html.Node) *Descriptor {
	for _, cur := range chain {
		v, ok := doc.Property(cur, PropVue2)
		vm, _ := v.(*Vue2Instance)
		if !ok || vm == nil {
			continue
		}
		opts := vm.Options
		if opts == nil {
			opts = &Vue2Options{}
		}
		var parent string
		if vm.Parent != nil && vm.Parent.Options != nil {
			parent = firstNonEmpty(vm.Parent.Options.Name, vm.Parent.Options.ComponentTag)
		}
		return &Descriptor{
			Framework:            "vue2",
			ComponentName:        firstNonEmpty(opts.Name, opts.ComponentTag, "Anonymous"),
			FilePath:             opts.File,
			Props:                Shallow(vm.Props),
			State:                Shallow(vm.Data),
			ParentComponentName:  parent,
			ComponentRootElement: cur.Data,
		}
	}
	return nil
}

// React reads __reactFiber$* (or the legacy __reactInternalInstance$*) and
// walks up the fiber tree to the nearest component fiber.
type React struct{}

func (React) Name() string { return "react" }

func (React) Detect(doc *dom.Document, chain []*html.Node) *Descriptor {
	fiberKey := ""
	for _, cur := range chain {
		key := ""
		if fiberKey != "" {
			if _, ok := doc.Property(cur, fiberKey); ok {
				key = fiberKey
			}
		}
		if key == "" {
			key = findFiberKey(doc.PropertyKeys(cur), ReactFiberPrefix, ReactInstancePrefix)
		}
		if key == "" {
			continue
		}
		fiberKey = key
		v, _ := doc.Property(cur, key)
		fiber, _ := v.(*ReactFiber)
		comp := componentFiber(fiber)
		if comp == nil {
			continue
		}

		state := map[string]any{}
		if st, ok := comp.MemoizedState.(map[string]any); ok {
			if _, hook := st["memoizedState"]; !hook {
				state = Shallow(st)
			}
		}
		var file, parent string
		if comp.DebugSource != nil {
			file = comp.DebugSource.FileName
		}
		if p := componentFiber(comp.Return); p != nil {
			parent = firstNonEmpty(p.Component.DisplayName, p.Component.Name)
		}
		return &Descriptor{
			Framework:            "react",
			ComponentName:        firstNonEmpty(comp.Component.DisplayName, comp.Component.Name, "Anonymous"),
			FilePath:             file,
			Props:                Shallow(comp.MemoizedProps),
			State:                state,
			ParentComponentName:  parent,
			ComponentRootElement: cur.Data,
		}
	}
	return nil
}

func findFiberKey(keys []string, prefixes ...string) string {
	for _, k := range keys {
		for _, p := range prefixes {
			if strings.HasPrefix(k, p) {
				return k
			}
		}
	}
	return ""
}

func componentFiber(f *ReactFiber) *ReactFiber {
	for d := 0; f != nil && d < maxDepth; d++ {
		if f.Component != nil {
			return f
		}
		f = f.Return
	}
	return nil
}

// Angular reads __ngContext__ and reports the first component instance it
// holds.
type Angular struct{}

func (Angular) Name() string { return "angular" }

// maxContextItems bounds the scan of an __ngContext__ array.
const maxContextItems = 50

func (Angular) Detect(doc *dom.Document, chain []*html.Node) *Descriptor {
	for _, cur := range chain {
		v, _ := doc.Property(cur, PropAngular)
		ctx, ok := v.(AngularContext)
		if !ok {
			continue
		}
		for i, item := range ctx {
			if i >= maxContextItems {
				break
			}
			comp, ok := item.(*AngularComponent)
			if !ok || comp == nil || comp.Class == "" || comp.Class == "Object" {
				continue
			}
			props := Shallow(comp.Fields)
			return &Descriptor{
				Framework:            "angular",
				ComponentName:        comp.Class,
				Props:                props,
				State:                Shallow(comp.Fields),
				ComponentRootElement: cur.Data,
			}
		}
	}
	return nil
}

// DetectPage lists the frameworks the page runs, in detector order.
func DetectPage(doc *dom.Document) []string {
	var (
		app, root, next, reactRoot, ngRoot *html.Node
		appChain                           []*html.Node
	)
	doc.View(func(r *html.Node) {
		app = dom.ElementByID(r, "app")
		if app == nil {
			if body := dom.Body(r); body != nil {
				if kids := dom.Children(body); len(kids) > 0 {
					app = kids[0]
				}
			}
		}
		for c, d := app, 0; c != nil && d < 8; d++ {
			appChain = append(appChain, c)
			kids := dom.Children(c)
			if len(kids) == 0 {
				break
			}
			c = kids[0]
		}
		root = dom.ElementByID(r, "root")
		next = dom.ElementByID(r, "__next")
		reactRoot, _ = dom.Query(r, "[data-reactroot]")
		ngRoot, _ = dom.Query(r, "[ng-version]")
	})

	has := func(n *html.Node, key string) bool {
		if n == nil {
			return false
		}
		_, ok := doc.Property(n, key)
		return ok
	}

	frameworks := []string{}
	vue3 := has(app, PropVue3App)
	for _, c := range appChain {
		if vue3 {
			break
		}
		vue3 = has(c, PropVue3)
	}
	if vue3 {
		frameworks = append(frameworks, "vue3")
	}
	for _, c := range appChain {
		if has(c, PropVue2) {
			frameworks = append(frameworks, "vue2")
			break
		}
	}
	if reactRoot != nil {
		frameworks = append(frameworks, "react")
	} else {
		for _, n := range []*html.Node{root, next, app} {
			if n != nil && findFiberKey(doc.PropertyKeys(n), ReactFiberPrefix) != "" {
				frameworks = append(frameworks, "react")
				break
			}
		}
	}
	if ngRoot != nil {
		frameworks = append(frameworks, "angular")
	}
	return frameworks
}
