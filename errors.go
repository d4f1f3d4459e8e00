/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"reflect"
	"strings"
)

/**
Error kind is a comparable classification of bean factory failures.
Kinds form a small hierarchy, so errors.Is(err, ErrNoUniqueBean) also matches ErrAmbiguousPrimary.
*/

type ErrorKind struct {
	name   string
	parent *ErrorKind
}

func newKind(name string, parent *ErrorKind) *ErrorKind {
	return &ErrorKind{name: name, parent: parent}
}

func (k *ErrorKind) Error() string {
	return k.name
}

func (k *ErrorKind) String() string {
	return k.name
}

/**
Returns true if the kind is the target or derived from it
*/
func (k *ErrorKind) Extends(target *ErrorKind) bool {
	for c := k; c != nil; c = c.parent {
		if c == target {
			return true
		}
	}
	return false
}

var (
	// creation family, every failure that aborts getBean for a name
	ErrBeanCreation                = newKind("bean creation failed", nil)
	ErrCurrentlyInCreation         = newKind("bean currently in creation", ErrBeanCreation)
	ErrRawInjectionConflict        = newKind("raw bean injected despite wrapping", ErrCurrentlyInCreation)
	ErrCreationNotAllowed          = newKind("bean creation not allowed", ErrBeanCreation)
	ErrUnsatisfiedDependency       = newKind("unsatisfied dependency", ErrBeanCreation)
	ErrNoUsableConstructor         = newKind("no usable constructor", ErrBeanCreation)
	ErrAmbiguousConstructor        = newKind("ambiguous constructor", ErrBeanCreation)
	ErrFactoryBeanNotInitialized   = newKind("factory bean not initialized", ErrBeanCreation)
	ErrImplicitlyAppearedSingleton = newKind("singleton appeared implicitly", nil)

	// registry state
	ErrAlreadyRegistered = newKind("already registered", nil)
	ErrNoSuchScope       = newKind("no such scope", nil)

	// definition family
	ErrDefinitionStore    = newKind("bean definition store failure", nil)
	ErrValidationFailed   = newKind("bean definition validation failed", ErrDefinitionStore)
	ErrOverrideNotAllowed = newKind("bean definition override not allowed", ErrDefinitionStore)
	ErrNoSuchParent       = newKind("no such parent bean definition", ErrDefinitionStore)
	ErrCircularDefinition = newKind("circular bean definition", ErrDefinitionStore)
	ErrCannotLoadClass    = newKind("cannot load bean class", ErrDefinitionStore)

	// lookup family
	ErrNoSuchDefinition  = newKind("no such bean definition", nil)
	ErrNoMatchingBean    = newKind("no matching bean", ErrNoSuchDefinition)
	ErrNoUniqueBean      = newKind("no unique bean", ErrNoSuchDefinition)
	ErrAmbiguousPrimary  = newKind("more than one primary bean", ErrNoUniqueBean)
	ErrAmbiguousPriority = newKind("more than one bean with the highest priority", ErrNoUniqueBean)
	ErrNotOfRequiredType = newKind("bean is not of required type", nil)
	ErrBeanIsNotFactory  = newKind("bean is not a factory bean", ErrNotOfRequiredType)

	// lifecycle callbacks
	ErrNoSuchInitMethod    = newKind("no such init method", nil)
	ErrNoSuchDestroyMethod = newKind("no such destroy method", nil)

	// property access
	ErrTypeMismatch    = newKind("type mismatch", nil)
	ErrInvalidProperty = newKind("invalid property", nil)
)

/**
Bean error is the single error record of the bean factory
*/

type BeanError struct {

	/**
	Kind of the error, never nil
	*/
	Kind *ErrorKind

	/**
	Name of the bean the error belongs to, could be empty
	*/
	BeanName string

	/**
	Description of the resource the bean definition came from
	*/
	ResourceDescription string

	/**
	Human readable message
	*/
	Message string

	/**
	Required and actual types for type mismatch errors
	*/
	RequiredType reflect.Type
	ActualType   reflect.Type

	/**
	Candidate bean names for ambiguous lookups
	*/
	CandidateNames []string

	/**
	Underlying error
	*/
	Cause error

	/**
	Errors suppressed during speculative operations of the same request
	*/
	RelatedCauses []error
}

func newBeanError(kind *ErrorKind, beanName string, format string, args ...interface{}) *BeanError {
	return &BeanError{
		Kind:     kind,
		BeanName: beanName,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (e *BeanError) Error() string {
	var out strings.Builder
	if e.Kind.Extends(ErrBeanCreation) && e.BeanName != "" {
		out.WriteString("error creating bean '")
		out.WriteString(e.BeanName)
		out.WriteByte('\'')
		if e.ResourceDescription != "" {
			out.WriteString(" defined in ")
			out.WriteString(e.ResourceDescription)
		}
		out.WriteString(": ")
	} else if e.BeanName != "" {
		out.WriteString("bean '")
		out.WriteString(e.BeanName)
		out.WriteString("': ")
	}
	if e.Message != "" {
		out.WriteString(e.Message)
	} else {
		out.WriteString(e.Kind.name)
	}
	if e.Cause != nil {
		out.WriteString(", ")
		out.WriteString(e.Cause.Error())
	}
	if n := len(e.RelatedCauses); n > 0 {
		out.WriteString(fmt.Sprintf(" (related causes: %d)", n))
	}
	return out.String()
}

func (e *BeanError) Unwrap() error {
	return e.Cause
}

func (e *BeanError) Is(target error) bool {
	if kind, ok := target.(*ErrorKind); ok {
		return e.Kind.Extends(kind)
	}
	return false
}

func (e *BeanError) withCause(cause error) *BeanError {
	e.Cause = cause
	return e
}

func (e *BeanError) withResource(description string) *BeanError {
	e.ResourceDescription = description
	return e
}

/**
Returns true if the error itself (not its causes) has the kind or a derived one
*/
func hasKind(err error, kind *ErrorKind) bool {
	if be, ok := err.(*BeanError); ok {
		return be.Kind.Extends(kind)
	}
	return false
}

/**
Wraps the error into a creation error of the bean, unless it is already scoped to the same bean
or signals a registry level condition that has to propagate as is.
*/
func wrapCreation(beanName string, resource string, message string, err error) error {
	if err == nil {
		return nil
	}
	if be, ok := err.(*BeanError); ok {
		if be.Kind.Extends(ErrBeanCreation) && be.BeanName == beanName {
			return be
		}
		if be.Kind == ErrImplicitlyAppearedSingleton {
			return be
		}
	}
	return &BeanError{
		Kind:                ErrBeanCreation,
		BeanName:            beanName,
		ResourceDescription: resource,
		Message:             message,
		Cause:               err,
	}
}

func noSuchBean(beanName string) *BeanError {
	return newBeanError(ErrNoSuchDefinition, beanName, "no bean named '%s' available", beanName)
}

func noMatchingBean(requiredType reflect.Type, message string) *BeanError {
	e := newBeanError(ErrNoMatchingBean, "", "no qualifying bean of type '%v' available", requiredType)
	if message != "" {
		e.Message += ": " + message
	}
	e.RequiredType = requiredType
	return e
}

func notUnique(kind *ErrorKind, requiredType reflect.Type, names []string, message string) *BeanError {
	e := newBeanError(kind, "", "no qualifying bean of type '%v' available: %s: %s", requiredType, message, strings.Join(names, ","))
	e.RequiredType = requiredType
	e.CandidateNames = names
	return e
}

func notOfRequiredType(beanName string, requiredType, actualType reflect.Type) *BeanError {
	e := newBeanError(ErrNotOfRequiredType, beanName, "bean is expected to be of type '%v' but was actually of type '%v'", requiredType, actualType)
	e.RequiredType = requiredType
	e.ActualType = actualType
	return e
}

func currentlyInCreation(beanName string) *BeanError {
	return newBeanError(ErrCurrentlyInCreation, beanName, "requested bean is currently in creation: is there an unresolvable circular reference?")
}

/**
Bounded set of errors suppressed during speculative operations. Oldest entries are dropped first.
*/

const suppressedErrorsLimit = 100

type suppressedErrors struct {
	list []error
}

func (t *suppressedErrors) add(err error) {
	if len(t.list) >= suppressedErrorsLimit {
		copy(t.list, t.list[1:])
		t.list = t.list[:len(t.list)-1]
	}
	t.list = append(t.list, err)
}

func (t *suppressedErrors) attach(err error) error {
	if len(t.list) == 0 {
		return err
	}
	if be, ok := err.(*BeanError); ok {
		be.RelatedCauses = append(be.RelatedCauses, t.list...)
	}
	return err
}
