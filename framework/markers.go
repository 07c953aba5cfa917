// Package framework reports which UI component owns an element.
//
// Framework runtimes leave instance markers as properties on the elements
// they render (__vueParentComponent, __vue__, __reactFiber$<id>,
// __ngContext__). The page side (Responder) reads those markers and answers
// over the introspection channels; the reviewing side (Client) asks through
// the bridge without ever touching the markers itself.
package framework

// Property names set by framework runtimes.
const (
	PropVue3            = "__vueParentComponent"
	PropVue3App         = "__vue_app__"
	PropVue2            = "__vue__"
	PropAngular         = "__ngContext__"
	ReactFiberPrefix    = "__reactFiber$"
	ReactInstancePrefix = "__reactInternalInstance$"
)

// ComponentType describes a component definition.
type ComponentType struct {
	Name         string `json:"name,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	InternalName string `json:"__name,omitempty"`
	File         string `json:"__file,omitempty"`
}

// Vue3Instance is the value of __vueParentComponent.
type Vue3Instance struct {
	Type       *ComponentType `json:"type,omitempty"`
	Props      map[string]any `json:"props,omitempty"`
	SetupState map[string]any `json:"setupState,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Parent     *Vue3Instance  `json:"parent,omitempty"`
}

// Vue3App is the value of __vue_app__ on the mount element.
type Vue3App struct {
	Version string `json:"version,omitempty"`
}

// Vue2Options is the $options of a Vue 2 instance.
type Vue2Options struct {
	Name         string `json:"name,omitempty"`
	ComponentTag string `json:"_componentTag,omitempty"`
	File         string `json:"__file,omitempty"`
}

// Vue2Instance is the value of __vue__.
type Vue2Instance struct {
	Options *Vue2Options   `json:"$options,omitempty"`
	Props   map[string]any `json:"$props,omitempty"`
	Data    map[string]any `json:"$data,omitempty"`
	Parent  *Vue2Instance  `json:"$parent,omitempty"`
}

// DebugSource locates a React component in source.
type DebugSource struct {
	FileName string `json:"fileName"`
}

// ReactFiber is the value of __reactFiber$<id>. A host fiber (a plain DOM
// tag) has HostType set; a component fiber has Component set.
type ReactFiber struct {
	HostType      string         `json:"hostType,omitempty"`
	Component     *ComponentType `json:"component,omitempty"`
	MemoizedProps map[string]any `json:"memoizedProps,omitempty"`
	MemoizedState any            `json:"memoizedState,omitempty"`
	DebugSource   *DebugSource   `json:"_debugSource,omitempty"`
	Return        *ReactFiber    `json:"return,omitempty"`
}

// AngularComponent is a class instance held in an __ngContext__ array.
type AngularComponent struct {
	Class  string         `json:"class"`
	Fields map[string]any `json:"fields,omitempty"`
}

// AngularContext is the value of __ngContext__.
type AngularContext []any

// Symbol stands for a JavaScript symbol value.
type Symbol string
