/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"reflect"
)

/**
Descriptor of the injection point, a field, a property or a parameter of a constructor or factory method
*/

type DependencyDescriptor struct {

	/**
	Declared type of the injection point
	*/
	Type reflect.Type

	/**
	Name of the field, property or parameter, used to match bean names among several candidates
	*/
	Name string

	/**
	Class declaring the injection point
	*/
	DeclaringClass reflect.Type

	/**
	Constructor or factory method of the parameter, nil for fields and properties
	*/
	Executable *Executable

	/**
	Index of the parameter
	*/
	ParameterIndex int

	/**
	Absent dependency is an error
	*/
	Required bool

	/**
	Allows initialization of lazy beans and factory beans to find candidates
	*/
	Eager bool

	/**
	Qualifiers of the injection point, all of them have to match the candidate
	*/
	Qualifiers []*Qualifier

	/**
	Exact name of the bean to inject, candidates of the type are not searched
	*/
	BeanName string

	/**
	Value expression suggested by the injection point, '${key:default}'
	*/
	Value string

	/**
	Layout of time values of the expression
	*/
	Layout string

	fallbackMatchAllowed bool
	multiElement         bool
	nonUniqueAsNull      bool
	shortcut             string
}

/**
Creates the descriptor of the required injection point of the type
*/
func NewDependencyDescriptor(typ reflect.Type, name string, required bool) *DependencyDescriptor {
	return &DependencyDescriptor{
		Type:     typ,
		Name:     name,
		Required: required,
		Eager:    true,
	}
}

/**
Creates the descriptor of the struct field
*/
func NewFieldDescriptor(class reflect.Type, field reflect.StructField, required bool) *DependencyDescriptor {
	return &DependencyDescriptor{
		Type:           field.Type,
		Name:           lowerFirst(field.Name),
		DeclaringClass: class,
		ParameterIndex: -1,
		Required:       required,
		Eager:          true,
	}
}

/**
Creates the descriptor of the parameter
*/
func NewParameterDescriptor(ex *Executable, index int, required bool) *DependencyDescriptor {
	return &DependencyDescriptor{
		Type:           ex.ParamTypes()[index],
		Name:           ex.ParamName(index),
		DeclaringClass: ex.DeclaringClass,
		Executable:     ex,
		ParameterIndex: index,
		Required:       required,
		Eager:          true,
	}
}

func (t *DependencyDescriptor) DependencyType() reflect.Type {
	return t.Type
}

func (t *DependencyDescriptor) IsFallbackMatchAllowed() bool {
	return t.fallbackMatchAllowed
}

func (t *DependencyDescriptor) AddQualifier(q *Qualifier) *DependencyDescriptor {
	t.Qualifiers = append(t.Qualifiers, q)
	return t
}

func (t *DependencyDescriptor) copy() *DependencyDescriptor {
	c := *t
	c.Qualifiers = append([]*Qualifier(nil), t.Qualifiers...)
	return &c
}

/**
Copy of the descriptor that relaxes matching for the second pass over candidates
*/
func (t *DependencyDescriptor) forFallbackMatch() *DependencyDescriptor {
	c := t.copy()
	c.fallbackMatchAllowed = true
	c.Eager = true
	return c
}

/**
Copy of the descriptor for elements of a slice or a map
*/
func (t *DependencyDescriptor) forElements(elemType reflect.Type) *DependencyDescriptor {
	c := t.copy()
	c.Type = elemType
	c.multiElement = true
	return c
}

/**
Copy of the descriptor of the element type of optional and lazy shapes
*/
func (t *DependencyDescriptor) forNested(elemType reflect.Type, required bool) *DependencyDescriptor {
	c := t.copy()
	c.Type = elemType
	c.Required = required
	return c
}

/**
Copy of the descriptor bound to the resolved bean name
*/
func (t *DependencyDescriptor) withShortcut(beanName string) *DependencyDescriptor {
	c := t.copy()
	c.shortcut = beanName
	return c
}

/**
Copy of the descriptor resolving to nil instead of failing on several candidates
*/
func (t *DependencyDescriptor) forUnique() *DependencyDescriptor {
	c := t.copy()
	c.Required = false
	c.nonUniqueAsNull = true
	return c
}

func (t *DependencyDescriptor) resolveNotUnique(typ reflect.Type, names []string) error {
	if t.nonUniqueAsNull {
		return nil
	}
	return notUnique(ErrNoUniqueBean, typ, names, fmt.Sprintf("expected single matching bean but found %d", len(names)))
}

func (t *DependencyDescriptor) String() string {
	switch {
	case t.Executable != nil:
		return fmt.Sprintf("parameter %d of %v", t.ParameterIndex, t.Executable)
	case t.DeclaringClass != nil:
		return fmt.Sprintf("field '%s' of %v", t.Name, t.DeclaringClass)
	case t.Name != "":
		return fmt.Sprintf("'%s' of type %v", t.Name, t.Type)
	default:
		return fmt.Sprintf("dependency of type %v", t.Type)
	}
}

/**
Optional injection point, empty if no bean qualifies
*/

type Optional[T any] struct {
	value   T
	present bool
}

func OptionalOf[T any](value T) Optional[T] {
	return Optional[T]{value: value, present: true}
}

func (t Optional[T]) Get() (T, bool) {
	return t.value, t.present
}

func (t Optional[T]) IsPresent() bool {
	return t.present
}

func (t Optional[T]) OrElse(other T) T {
	if t.present {
		return t.value
	}
	return other
}

func (t *Optional[T]) elemType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (t *Optional[T]) set(value interface{}) {
	if value == nil {
		return
	}
	t.value = value.(T)
	t.present = true
}

/**
Implemented by pointers of Optional instances
*/
type optionalValue interface {
	elemType() reflect.Type
	set(value interface{})
}

var optionalValueClass = reflect.TypeOf((*optionalValue)(nil)).Elem()

func isOptionalShape(typ reflect.Type) bool {
	return typ.Kind() == reflect.Struct && reflect.PtrTo(typ).Implements(optionalValueClass)
}

/**
Lazy shapes are functions without parameters returning (T) or (T, error)
*/
func isLazyShape(typ reflect.Type) bool {
	if typ.Kind() != reflect.Func || typ.NumIn() != 0 || typ.IsVariadic() {
		return false
	}
	switch typ.NumOut() {
	case 1:
		return true
	case 2:
		return typ.Out(1) == errorClass
	}
	return false
}
