/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"reflect"
	"strings"
	"sync"
)

var errorClass = reflect.TypeOf((*error)(nil)).Elem()

/**
Class loader resolves class names and introspects constructors and factory functions of classes.
*/

var ClassLoaderClass = reflect.TypeOf((*ClassLoader)(nil)).Elem()

type ClassLoader interface {

	/**
	Resolves the class by name
	*/
	LoadClass(name string) (reflect.Type, error)

	/**
	Returns constructors of the class, including the implicit default one of pointers to structures
	*/
	Constructors(class reflect.Type) []*Executable

	/**
	Returns factory functions declared for the class, the Go rendition of static factory methods
	*/
	FactoryFunctions(class reflect.Type) []*Executable

	/**
	Returns class level annotations
	*/
	Annotations(class reflect.Type) []string
}

/**
Executable is a constructor, a factory function or a method of a factory bean.
Results are (T) or (T, error).
*/

type Executable struct {

	/**
	Name of the function or the method
	*/
	Name string

	/**
	Class the executable belongs to
	*/
	DeclaringClass reflect.Type

	/**
	Method of an instance, the receiver is passed on invocation
	*/
	Method bool

	/**
	Implicit default constructor
	*/
	Default bool

	fn           reflect.Value
	paramTypes   []reflect.Type
	paramNames   []string
	resultType   reflect.Type
	returnsError bool
	variadic     bool
}

func newExecutable(name string, declaringClass reflect.Type, fn reflect.Value, method bool, paramNames []string) (*Executable, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, errors.Errorf("executable '%s' of '%v' is not a function", name, declaringClass)
	}
	fnType := fn.Type()
	numOut := fnType.NumOut()
	if numOut == 0 || numOut > 2 {
		return nil, errors.Errorf("executable '%s' of '%v' must return (T) or (T, error), got %d return values", name, declaringClass, numOut)
	}
	returnsError := false
	if numOut == 2 {
		if fnType.Out(1) != errorClass {
			return nil, errors.Errorf("executable '%s' of '%v' second return value must be error, got '%v'", name, declaringClass, fnType.Out(1))
		}
		returnsError = true
	}
	offset := 0
	if method {
		offset = 1
	}
	n := fnType.NumIn() - offset
	if n < 0 {
		return nil, errors.Errorf("method '%s' of '%v' has no receiver", name, declaringClass)
	}
	paramTypes := make([]reflect.Type, n)
	for i := 0; i < n; i++ {
		paramTypes[i] = fnType.In(i + offset)
	}
	if len(paramNames) > 0 && len(paramNames) != n {
		return nil, errors.Errorf("executable '%s' of '%v' has %d parameters, but %d names given", name, declaringClass, n, len(paramNames))
	}
	return &Executable{
		Name:           name,
		DeclaringClass: declaringClass,
		Method:         method,
		fn:             fn,
		paramTypes:     paramTypes,
		paramNames:     paramNames,
		resultType:     fnType.Out(0),
		returnsError:   returnsError,
		variadic:       fnType.IsVariadic(),
	}, nil
}

/**
Creates the constructor of the class from the function, the result has to be assignable to the class
*/
func NewConstructor(class reflect.Type, fn interface{}, paramNames ...string) (*Executable, error) {
	ctor, err := newExecutable("New", class, reflect.ValueOf(fn), false, paramNames)
	if err != nil {
		return nil, err
	}
	if !ctor.resultType.AssignableTo(class) {
		return nil, errors.Errorf("constructor of '%v' returns '%v' that is not assignable to the class", class, ctor.resultType)
	}
	return ctor, nil
}

/**
Creates the factory function of the class
*/
func NewFactoryFunction(class reflect.Type, name string, fn interface{}, paramNames ...string) (*Executable, error) {
	return newExecutable(name, class, reflect.ValueOf(fn), false, paramNames)
}

func defaultConstructor(class reflect.Type) *Executable {
	if class.Kind() != reflect.Ptr || class.Elem().Kind() != reflect.Struct {
		return nil
	}
	elem := class.Elem()
	fn := reflect.MakeFunc(reflect.FuncOf(nil, []reflect.Type{class}, false), func(args []reflect.Value) []reflect.Value {
		return []reflect.Value{reflect.New(elem)}
	})
	return &Executable{
		Name:           "New",
		DeclaringClass: class,
		Default:        true,
		fn:             fn,
		resultType:     class,
	}
}

/**
Returns exported methods of the receiver type with the name
*/
func methodsOf(receiverType reflect.Type, name string) []*Executable {
	if receiverType == nil {
		return nil
	}
	m, ok := receiverType.MethodByName(name)
	if !ok || m.PkgPath != "" {
		return nil
	}
	var ex *Executable
	var err error
	if receiverType.Kind() == reflect.Interface {
		// methods of interfaces carry no Func, the signature is taken from a zero function and bound on invocation
		ex, err = newExecutable(m.Name, receiverType, reflect.Zero(m.Type), false, nil)
		if err == nil {
			ex.Method = true
			ex.fn = reflect.Value{}
		}
	} else {
		ex, err = newExecutable(m.Name, receiverType, m.Func, true, nil)
	}
	if err != nil {
		logger().Debug("skip factory method candidate", zap.Error(err))
		return nil
	}
	return []*Executable{ex}
}

func (t *Executable) ParamCount() int {
	return len(t.paramTypes)
}

func (t *Executable) ParamTypes() []reflect.Type {
	return t.paramTypes
}

/**
Returns the name of the parameter if known
*/
func (t *Executable) ParamName(i int) string {
	if i < len(t.paramNames) {
		return t.paramNames[i]
	}
	return ""
}

func (t *Executable) ResultType() reflect.Type {
	return t.resultType
}

func (t *Executable) IsVariadic() bool {
	return t.variadic
}

/**
Invokes the executable, the receiver is used only by methods
*/
func (t *Executable) Invoke(receiver reflect.Value, args []reflect.Value) (result reflect.Value, err error) {

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("invocation of '%s' recovered with error %v", t, r)
		}
	}()

	fn := t.fn
	if t.Method {
		if !receiver.IsValid() {
			return reflect.Value{}, errors.Errorf("method '%s' requires a receiver", t)
		}
		if !fn.IsValid() {
			fn = receiver.MethodByName(t.Name)
		} else {
			args = append([]reflect.Value{receiver}, args...)
		}
	}

	var out []reflect.Value
	if t.variadic {
		out = fn.CallSlice(args)
	} else {
		out = fn.Call(args)
	}

	if t.returnsError && !out[1].IsNil() {
		return reflect.Value{}, out[1].Interface().(error)
	}
	return out[0], nil
}

func (t *Executable) String() string {
	var out strings.Builder
	if t.DeclaringClass != nil {
		out.WriteString(t.DeclaringClass.String())
		out.WriteByte('.')
	}
	out.WriteString(t.Name)
	out.WriteByte('(')
	for i, p := range t.paramTypes {
		if i > 0 {
			out.WriteString(", ")
		}
		if name := t.ParamName(i); name != "" {
			out.WriteString(name)
			out.WriteByte(' ')
		}
		out.WriteString(p.String())
	}
	out.WriteByte(')')
	return out.String()
}

/**
Type registry is the default class loader, holds classes by name with their constructors,
factory functions and annotations. Each factory could have its own registry.
*/

type TypeRegistry struct {
	sync.RWMutex
	types        map[string]reflect.Type
	constructors map[reflect.Type][]*Executable
	functions    map[reflect.Type][]*Executable
	annotations  map[reflect.Type][]string
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:        make(map[string]reflect.Type),
		constructors: make(map[reflect.Type][]*Executable),
		functions:    make(map[reflect.Type][]*Executable),
		annotations:  make(map[reflect.Type][]string),
	}
}

/**
Registers the class under its type name and additional names
*/
func (t *TypeRegistry) Register(class reflect.Type, names ...string) {
	t.Lock()
	defer t.Unlock()
	t.types[class.String()] = class
	for _, name := range names {
		t.types[name] = class
	}
}

func (t *TypeRegistry) RegisterConstructor(class reflect.Type, fn interface{}, paramNames ...string) error {
	ctor, err := NewConstructor(class, fn, paramNames...)
	if err != nil {
		return err
	}
	t.Lock()
	defer t.Unlock()
	t.types[class.String()] = class
	t.constructors[class] = append(t.constructors[class], ctor)
	return nil
}

func (t *TypeRegistry) RegisterFactoryFunction(class reflect.Type, name string, fn interface{}, paramNames ...string) error {
	ex, err := NewFactoryFunction(class, name, fn, paramNames...)
	if err != nil {
		return err
	}
	t.Lock()
	defer t.Unlock()
	t.types[class.String()] = class
	t.functions[class] = append(t.functions[class], ex)
	return nil
}

func (t *TypeRegistry) Annotate(class reflect.Type, annotations ...string) {
	t.Lock()
	defer t.Unlock()
	t.annotations[class] = append(t.annotations[class], annotations...)
}

func (t *TypeRegistry) LoadClass(name string) (reflect.Type, error) {
	t.RLock()
	defer t.RUnlock()
	if class, ok := t.types[name]; ok {
		return class, nil
	}
	if class, ok := t.types["*"+name]; ok {
		return class, nil
	}
	return nil, newBeanError(ErrCannotLoadClass, "", "class '%s' is not registered", name)
}

func (t *TypeRegistry) Constructors(class reflect.Type) []*Executable {
	t.RLock()
	list := append([]*Executable(nil), t.constructors[class]...)
	t.RUnlock()
	if ctor := defaultConstructor(class); ctor != nil {
		hasNoArg := false
		for _, c := range list {
			if c.ParamCount() == 0 {
				hasNoArg = true
			}
		}
		if !hasNoArg {
			list = append(list, ctor)
		}
	}
	return list
}

func (t *TypeRegistry) FactoryFunctions(class reflect.Type) []*Executable {
	t.RLock()
	defer t.RUnlock()
	return append([]*Executable(nil), t.functions[class]...)
}

/**
Returns registered annotations and the ones of `annotation` tags on blank fields of the structure
*/
func (t *TypeRegistry) Annotations(class reflect.Type) []string {
	t.RLock()
	list := append([]string(nil), t.annotations[class]...)
	t.RUnlock()
	return append(list, tagAnnotations(class)...)
}

func tagAnnotations(class reflect.Type) []string {
	if class == nil {
		return nil
	}
	if class.Kind() == reflect.Ptr {
		class = class.Elem()
	}
	if class.Kind() != reflect.Struct {
		return nil
	}
	var list []string
	for i := 0; i < class.NumField(); i++ {
		field := class.Field(i)
		if field.Name != "_" {
			continue
		}
		if tag, ok := field.Tag.Lookup("annotation"); ok {
			list = append(list, trimSplit(tag, ",")...)
		}
	}
	return list
}

func (t *TypeRegistry) String() string {
	t.RLock()
	defer t.RUnlock()
	return fmt.Sprintf("TypeRegistry{types=%d, constructors=%d, functions=%d}", len(t.types), len(t.constructors), len(t.functions))
}
