/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"github.com/pkg/errors"
	"reflect"
)

/**
Invokes the constructor or the factory method and applies method overrides of the definition on the result.
Nil results are returned as nil, the caller decides whether the bean may be null.
*/
func (t *beanFactory) instantiate(beanName string, mbd *RootBeanDefinition, ex *Executable, receiver reflect.Value, args []reflect.Value) (interface{}, error) {
	v, err := ex.Invoke(receiver, args)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() || (isNillable(v.Type()) && v.IsNil()) {
		return nil, nil
	}
	obj := v.Interface()
	if mbd.MethodOverrides.Len() > 0 {
		if err := t.applyMethodOverrides(beanName, mbd, obj); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

/**
Fills function fields of the instance with closures that look up beans or delegate to method replacers
*/
func (t *beanFactory) applyMethodOverrides(beanName string, mbd *RootBeanDefinition, obj interface{}) error {
	value := reflect.ValueOf(obj)
	if value.Kind() != reflect.Ptr || value.Elem().Kind() != reflect.Struct {
		return newBeanError(ErrBeanCreation, beanName, "method overrides require a pointer to structure, got '%T'", obj)
	}
	for _, mo := range mbd.MethodOverrides.List() {
		field := value.Elem().FieldByName(mo.MethodName())
		if !field.IsValid() || !field.CanSet() || field.Kind() != reflect.Func {
			return newBeanError(ErrBeanCreation, beanName, "method override '%s' has no settable function field on '%T'", mo.MethodName(), obj)
		}
		fnType := field.Type()
		switch override := mo.(type) {
		case *LookupOverride:
			if fnType.NumOut() == 0 || fnType.NumOut() > 2 || (fnType.NumOut() == 2 && fnType.Out(1) != errorClass) {
				return newBeanError(ErrBeanCreation, beanName, "lookup method '%s' must return (T) or (T, error)", override.Method)
			}
			field.Set(reflect.MakeFunc(fnType, t.lookupMethod(override, fnType)))
		case *ReplaceOverride:
			field.Set(reflect.MakeFunc(fnType, t.replacedMethod(override, obj, fnType)))
		default:
			return newBeanError(ErrBeanCreation, beanName, "unknown method override '%T'", mo)
		}
	}
	return nil
}

func (t *beanFactory) lookupMethod(override *LookupOverride, fnType reflect.Type) func([]reflect.Value) []reflect.Value {
	resultType := fnType.Out(0)
	return func(in []reflect.Value) []reflect.Value {
		args := make([]interface{}, len(in))
		for i, v := range in {
			args[i] = v.Interface()
		}
		var bean interface{}
		var err error
		if override.BeanName != "" {
			if len(args) > 0 {
				bean, err = t.GetBeanWithArgs(override.BeanName, args...)
			} else {
				bean, err = t.GetTypedBean(override.BeanName, resultType)
			}
		} else {
			bean, err = t.GetBeanByType(resultType, args...)
		}
		return funcResults(fnType, bean, err)
	}
}

func (t *beanFactory) replacedMethod(override *ReplaceOverride, obj interface{}, fnType reflect.Type) func([]reflect.Value) []reflect.Value {
	return func(in []reflect.Value) []reflect.Value {
		bean, err := t.GetBean(override.ReplacerBeanName)
		if err != nil {
			return errorResults(fnType, err)
		}
		replacer, ok := bean.(MethodReplacer)
		if !ok {
			return errorResults(fnType, notOfRequiredType(override.ReplacerBeanName, reflect.TypeOf((*MethodReplacer)(nil)).Elem(), reflect.TypeOf(bean)))
		}
		out, err := replacer.Reimplement(obj, override.Method, in)
		if err != nil {
			return errorResults(fnType, err)
		}
		if len(out) != fnType.NumOut() {
			return errorResults(fnType, errors.Errorf("replacer of method '%s' returned %d values, expected %d", override.Method, len(out), fnType.NumOut()))
		}
		for i, v := range out {
			if !v.IsValid() {
				out[i] = reflect.Zero(fnType.Out(i))
				continue
			}
			typed, ok := asType(v, fnType.Out(i))
			if !ok {
				return errorResults(fnType, notOfRequiredType("", fnType.Out(i), v.Type()))
			}
			out[i] = typed
		}
		return out
	}
}

/**
Converts the looked up bean into results of the function, a failed lookup panics if the function can not return an error
*/
func funcResults(fnType reflect.Type, bean interface{}, err error) []reflect.Value {
	if err != nil {
		return errorResults(fnType, err)
	}
	out := make([]reflect.Value, fnType.NumOut())
	if bean == nil {
		out[0] = reflect.Zero(fnType.Out(0))
	} else {
		v, ok := asType(reflect.ValueOf(bean), fnType.Out(0))
		if !ok {
			return errorResults(fnType, notOfRequiredType("", fnType.Out(0), reflect.TypeOf(bean)))
		}
		out[0] = v
	}
	if len(out) == 2 {
		out[1] = reflect.Zero(errorClass)
	}
	return out
}

func errorResults(fnType reflect.Type, err error) []reflect.Value {
	n := fnType.NumOut()
	if n == 0 || fnType.Out(n-1) != errorClass {
		panic(err)
	}
	out := make([]reflect.Value, n)
	for i := 0; i < n-1; i++ {
		out[i] = reflect.Zero(fnType.Out(i))
	}
	out[n-1] = reflect.ValueOf(&err).Elem()
	return out
}

/**
Returns the value with exactly the type, functions made by reflection return exact types
*/
func asType(v reflect.Value, typ reflect.Type) (reflect.Value, bool) {
	if v.Type() == typ {
		return v, true
	}
	if !v.Type().AssignableTo(typ) {
		return reflect.Value{}, false
	}
	typed := reflect.New(typ).Elem()
	typed.Set(v)
	return typed, true
}
