package autorouter

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

// Middleware represents middleware function signature
type Middleware func(http.Handler) http.Handler

// ErrorHandler writes the response for a handler method that returned an error
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// RegistrationOptions configures how handlers are registered
type RegistrationOptions struct {
	Prefix       string       // URL prefix (e.g., "/api/v1/")
	MethodPrefix string       // Method prefix (e.g., "setting." -> "setting.Create")
	Middleware   []Middleware // Middleware chain to apply
	OnError      ErrorHandler // defaults to a plain 500
	Logger       *logger.Logger
}

// Route describes one registered endpoint
type Route struct {
	URLPath    string
	MethodName string
	Protected  bool
}

var (
	responseWriterType = reflect.TypeOf((*http.ResponseWriter)(nil)).Elem()
	requestType        = reflect.TypeOf((*http.Request)(nil))
	errorType          = reflect.TypeOf((*error)(nil)).Elem()
)

// AutoRouter registers every exported func(http.ResponseWriter, *http.Request)
// method of a handler struct as <Prefix><MethodPrefix><MethodName>
type AutoRouter struct {
	mux     *http.ServeMux
	options RegistrationOptions
	logger  *logger.Logger

	mu     *sync.Mutex
	routes map[string]Route
}

// NewAutoRouter creates a new auto router
func NewAutoRouter(mux *http.ServeMux, options RegistrationOptions) *AutoRouter {
	log := options.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if options.OnError == nil {
		options.OnError = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
	return &AutoRouter{
		mux:     mux,
		options: options,
		logger:  log.WithComponent("autorouter"),
		mu:      &sync.Mutex{},
		routes:  make(map[string]Route),
	}
}

// WithMethodPrefix returns a router sharing mux and route table but
// registering under a different method prefix
func (ar *AutoRouter) WithMethodPrefix(methodPrefix string) *AutoRouter {
	clone := *ar
	clone.options.MethodPrefix = methodPrefix
	return &clone
}

// RegisterHandlers registers all methods of handler that match the handler signature
func (ar *AutoRouter) RegisterHandlers(handler interface{}) error {
	return ar.register(handler, ar.options.Middleware, false)
}

// RegisterHandlersWithAuth registers handlers behind authMiddleware, which
// runs before the configured middleware
func (ar *AutoRouter) RegisterHandlersWithAuth(handler interface{}, authMiddleware Middleware) error {
	chain := append([]Middleware{authMiddleware}, ar.options.Middleware...)
	return ar.register(handler, chain, true)
}

// RegisterSingleMethod registers one method under a custom path
func (ar *AutoRouter) RegisterSingleMethod(handler interface{}, methodName string, customPath string) error {
	method := reflect.ValueOf(handler).MethodByName(methodName)
	if !method.IsValid() {
		return fmt.Errorf("method %s not found", methodName)
	}
	if !isHandlerMethod(method.Type()) {
		return fmt.Errorf("method %s does not match handler signature", methodName)
	}

	return ar.mount(ar.options.Prefix+customPath, methodName, method, ar.options.Middleware, false)
}

// Routes returns every route registered so far, sorted by path
func (ar *AutoRouter) Routes() []Route {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	out := make([]Route, 0, len(ar.routes))
	for _, r := range ar.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URLPath < out[j].URLPath })
	return out
}

func (ar *AutoRouter) register(handler interface{}, chain []Middleware, protected bool) error {
	methods, err := handlerMethods(handler)
	if err != nil {
		return err
	}
	if len(methods) == 0 {
		return fmt.Errorf("%T has no handler methods", handler)
	}

	value := reflect.ValueOf(handler)
	for _, name := range methods {
		if err := ar.mount(ar.buildURLPath(name), name, value.MethodByName(name), chain, protected); err != nil {
			return fmt.Errorf("failed to register method %s: %w", name, err)
		}
	}
	return nil
}

// mount records the route and hands it to the mux; ServeMux panics on
// duplicates so they are rejected here first
func (ar *AutoRouter) mount(path, methodName string, method reflect.Value, chain []Middleware, protected bool) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if _, exists := ar.routes[path]; exists {
		return fmt.Errorf("path %s already registered", path)
	}

	ar.mux.Handle(path, applyMiddleware(ar.createHandler(method), chain))
	ar.routes[path] = Route{URLPath: path, MethodName: methodName, Protected: protected}

	ar.logger.Debug("Registered route",
		zap.String("path", path),
		zap.String("method", methodName),
		zap.Bool("protected", protected))
	return nil
}

// handlerMethods lists the exported methods of handler with the handler
// signature. Methods starting with "Handle" are left for manual wiring.
func handlerMethods(handler interface{}) ([]string, error) {
	handlerType := reflect.TypeOf(handler)
	if handlerType == nil {
		return nil, fmt.Errorf("handler must be a struct or pointer to struct")
	}
	base := handlerType
	if base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct {
		return nil, fmt.Errorf("handler must be a struct or pointer to struct")
	}

	var names []string
	for i := 0; i < handlerType.NumMethod(); i++ {
		m := handlerType.Method(i)
		if !m.IsExported() || strings.HasPrefix(m.Name, "Handle") {
			continue
		}
		// drop the receiver
		if !isHandlerMethod(reflect.ValueOf(handler).Method(i).Type()) {
			continue
		}
		names = append(names, m.Name)
	}
	return names, nil
}

// isHandlerMethod checks for func(http.ResponseWriter, *http.Request) with
// an optional error result
func isHandlerMethod(t reflect.Type) bool {
	if t.Kind() != reflect.Func || t.NumIn() != 2 || t.NumOut() > 1 {
		return false
	}
	if t.NumOut() == 1 && !t.Out(0).Implements(errorType) {
		return false
	}
	return t.In(0).Implements(responseWriterType) && t.In(1) == requestType
}

func (ar *AutoRouter) buildURLPath(methodName string) string {
	if ar.options.MethodPrefix != "" {
		return ar.options.Prefix + ar.options.MethodPrefix + methodName
	}
	return ar.options.Prefix + strings.ToLower(methodName)
}

func (ar *AutoRouter) createHandler(method reflect.Value) http.Handler {
	onError := ar.options.OnError
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results := method.Call([]reflect.Value{reflect.ValueOf(w), reflect.ValueOf(r)})
		if len(results) == 0 || results[0].IsNil() {
			return
		}
		onError(w, r, results[0].Interface().(error))
	})
}

// applyMiddleware wraps h so chain[0] runs first
func applyMiddleware(h http.Handler, chain []Middleware) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// QuickRegister is a convenience function for simple handler registration
func QuickRegister(mux *http.ServeMux, prefix string, methodPrefix string, handler interface{}) error {
	return NewAutoRouter(mux, RegistrationOptions{
		Prefix:       prefix,
		MethodPrefix: methodPrefix,
	}).RegisterHandlers(handler)
}
