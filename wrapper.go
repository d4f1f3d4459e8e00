/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"github.com/pkg/errors"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

/**
Property of the bean class, an exported field and/or a setter method 'SetXxx'
*/

type propertyDescriptor struct {

	/**
	Name of the property, the field name with the first letter in lower case
	*/
	name string

	/**
	Name of the exported field, empty for setter only properties
	*/
	fieldName string

	typ reflect.Type

	fieldIndex []int

	/**
	Name of the setter method, preferred over the field
	*/
	setter string

	/**
	Field carries injection tags and is handled by the tag post-processor
	*/
	tagged bool
}

func (t *propertyDescriptor) writable() bool {
	return t.fieldIndex != nil || t.setter != ""
}

func (t *propertyDescriptor) matches(name string) bool {
	return name == t.name || (t.fieldName != "" && name == t.fieldName)
}

var propertyCache sync.Map

/**
Returns properties of the class, fields first in declaration order, then setter only properties
*/
func propertiesOf(class reflect.Type) []*propertyDescriptor {
	if class == nil {
		return nil
	}
	if cached, ok := propertyCache.Load(class); ok {
		return cached.([]*propertyDescriptor)
	}

	var list []*propertyDescriptor
	byName := make(map[string]*propertyDescriptor)

	if class.Kind() == reflect.Ptr && class.Elem().Kind() == reflect.Struct {
		for _, field := range reflect.VisibleFields(class.Elem()) {
			if field.Anonymous || !field.IsExported() || field.Name == "_" {
				continue
			}
			pd := &propertyDescriptor{
				name:       lowerFirst(field.Name),
				fieldName:  field.Name,
				typ:        field.Type,
				fieldIndex: field.Index,
				tagged:     hasInjectionTag(field),
			}
			list = append(list, pd)
			byName[pd.name] = pd
		}
	}

	for i := 0; i < class.NumMethod(); i++ {
		m := class.Method(i)
		if len(m.Name) <= 3 || !strings.HasPrefix(m.Name, "Set") || m.Type.NumIn() != 2 {
			continue
		}
		if m.Type.NumOut() > 1 || (m.Type.NumOut() == 1 && m.Type.Out(0) != errorClass) {
			continue
		}
		name := lowerFirst(m.Name[3:])
		paramType := m.Type.In(1)
		if pd, ok := byName[name]; ok {
			if pd.typ == paramType {
				pd.setter = m.Name
			}
			continue
		}
		pd := &propertyDescriptor{
			name:   name,
			typ:    paramType,
			setter: m.Name,
		}
		list = append(list, pd)
		byName[name] = pd
	}

	propertyCache.Store(class, list)
	return list
}

func hasInjectionTag(field reflect.StructField) bool {
	_, inject := field.Tag.Lookup("inject")
	_, value := field.Tag.Lookup("value")
	return inject || value || field.Tag == "inject"
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}

/**
Bean wrapper gives access to properties of the bean instance by name, supports nested paths 'a.b'
*/

type beanWrapper struct {
	instance  interface{}
	value     reflect.Value
	converter TypeConverter
}

func newBeanWrapper(instance interface{}, converter TypeConverter) *beanWrapper {
	return &beanWrapper{
		instance:  instance,
		value:     reflect.ValueOf(instance),
		converter: converter,
	}
}

func (t *beanWrapper) class() reflect.Type {
	if !t.value.IsValid() {
		return nil
	}
	return t.value.Type()
}

func (t *beanWrapper) properties() []*propertyDescriptor {
	return propertiesOf(t.class())
}

func findProperty(class reflect.Type, name string) (*propertyDescriptor, bool) {
	for _, pd := range propertiesOf(class) {
		if pd.matches(name) {
			return pd, true
		}
	}
	return nil, false
}

/**
Resolves the nested path to the owner of the last property
*/
func (t *beanWrapper) resolvePath(path string) (reflect.Value, *propertyDescriptor, error) {
	target := t.value
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if !target.IsValid() {
			return reflect.Value{}, nil, newBeanError(ErrInvalidProperty, "", "invalid property path '%s'", path)
		}
		pd, ok := findProperty(target.Type(), part)
		if !ok {
			return reflect.Value{}, nil, newBeanError(ErrInvalidProperty, "", "invalid property '%s' of class '%v': no such property", part, target.Type())
		}
		if i == len(parts)-1 {
			return target, pd, nil
		}
		if pd.fieldIndex == nil {
			return reflect.Value{}, nil, newBeanError(ErrInvalidProperty, "", "invalid property '%s' of class '%v': nested property is not readable", part, target.Type())
		}
		field, err := target.Elem().FieldByIndexErr(pd.fieldIndex)
		if err != nil {
			return reflect.Value{}, nil, newBeanError(ErrInvalidProperty, "", "invalid property path '%s'", path).withCause(err)
		}
		switch {
		case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
			if field.IsNil() {
				return reflect.Value{}, nil, newBeanError(ErrInvalidProperty, "", "value of nested property '%s' in path '%s' is nil", part, path)
			}
			target = field
		case field.Kind() == reflect.Struct:
			target = field.Addr()
		default:
			return reflect.Value{}, nil, newBeanError(ErrInvalidProperty, "", "nested property '%s' in path '%s' is not a structure", part, path)
		}
	}
	return reflect.Value{}, nil, newBeanError(ErrInvalidProperty, "", "empty property path")
}

func (t *beanWrapper) isWritable(path string) bool {
	_, pd, err := t.resolvePath(path)
	return err == nil && pd.writable()
}

func (t *beanWrapper) propertyType(path string) (reflect.Type, error) {
	_, pd, err := t.resolvePath(path)
	if err != nil {
		return nil, err
	}
	return pd.typ, nil
}

func (t *beanWrapper) getPropertyValue(path string) (interface{}, error) {
	target, pd, err := t.resolvePath(path)
	if err != nil {
		return nil, err
	}
	if pd.fieldIndex == nil {
		return nil, newBeanError(ErrInvalidProperty, "", "bean property '%s' is not readable", path)
	}
	field, err := target.Elem().FieldByIndexErr(pd.fieldIndex)
	if err != nil {
		return nil, newBeanError(ErrInvalidProperty, "", "bean property '%s' is not readable", path).withCause(err)
	}
	return field.Interface(), nil
}

/**
Returns true if the property holds the zero value, setter only properties are always unset
*/
func (t *beanWrapper) isUnset(pd *propertyDescriptor) bool {
	if pd.fieldIndex == nil || !t.value.IsValid() || t.value.Kind() != reflect.Ptr {
		return true
	}
	field, err := t.value.Elem().FieldByIndexErr(pd.fieldIndex)
	return err != nil || field.IsZero()
}

func (t *beanWrapper) convertForProperty(value interface{}, path string) (reflect.Value, error) {
	typ, err := t.propertyType(path)
	if err != nil {
		return reflect.Value{}, err
	}
	v, err := t.converter.ConvertIfNecessary(value, typ)
	if err != nil {
		return reflect.Value{}, errors.Wrapf(err, "property '%s'", path)
	}
	return v, nil
}

func (t *beanWrapper) setPropertyValue(path string, value interface{}) error {
	v, err := t.convertForProperty(value, path)
	if err != nil {
		return err
	}
	return t.setConvertedValue(path, v)
}

func (t *beanWrapper) setConvertedValue(path string, v reflect.Value) (err error) {
	target, pd, err := t.resolvePath(path)
	if err != nil {
		return err
	}
	if !pd.writable() {
		return newBeanError(ErrInvalidProperty, "", "bean property '%s' is not writable or has an invalid setter method", path)
	}
	if !v.IsValid() {
		v = reflect.Zero(pd.typ)
	}

	defer func() {
		if r := recover(); r != nil {
			err = newBeanError(ErrInvalidProperty, "", "setting bean property '%s' recovered with error %v", path, r)
		}
	}()

	if pd.setter != "" {
		out := target.MethodByName(pd.setter).Call([]reflect.Value{v})
		if len(out) == 1 && !out[0].IsNil() {
			return errors.Wrapf(out[0].Interface().(error), "setter '%s' failed", pd.setter)
		}
		return nil
	}

	field, err := target.Elem().FieldByIndexErr(pd.fieldIndex)
	if err != nil {
		return newBeanError(ErrInvalidProperty, "", "bean property '%s' is not writable", path).withCause(err)
	}
	field.Set(v)
	return nil
}
