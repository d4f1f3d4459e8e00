/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"reflect"
	"sync"
	"sync/atomic"
)

/**
Root bean definition is the merged runtime form of the definition, the parent chain flattened.
Besides the settings it caches everything resolved during creation of instances,
so repeated creation of prototypes skips introspection.
*/

type RootBeanDefinition struct {
	BeanDefinition

	/**
	Marks the definition for re-merge on the next access
	*/
	stale atomic.Bool

	/**
	Guards constructor resolution caches
	*/
	argsMu sync.Mutex

	resolvedConstructorOrFactoryMethod *Executable
	constructorArgumentsResolved       bool
	resolvedConstructorArguments       []reflect.Value
	preparedConstructorArguments       []interface{}

	/**
	Guards conversion caches of property values
	*/
	propsMu sync.Mutex

	/**
	Guards the post-processing state
	*/
	postMu                      sync.Mutex
	postProcessed               bool
	beforeInstantiationResolved *bool

	typeMu                    sync.RWMutex
	resolvedClass             reflect.Type
	resolvedTargetType        reflect.Type
	isFactoryBean             *bool
	factoryMethodReturnType   reflect.Type
	factoryMethodToIntrospect *Executable
	isFactoryMethodUnique     bool
	resolvedDestroyMethodName *string
}

func newRootBeanDefinition(def *BeanDefinition) *RootBeanDefinition {
	rbd := &RootBeanDefinition{BeanDefinition: *def}
	rbd.copyCollectionsFrom(def)
	rbd.Source = RootDefinition
	rbd.ParentName = ""
	return rbd
}

/**
Takes over type caches of the previous merge if the class and the factory method stay the same
*/
func (t *RootBeanDefinition) copyRelevantCaches(previous *RootBeanDefinition) {
	if t.ClassName != previous.ClassName || t.Class != previous.Class ||
		t.FactoryBeanName != previous.FactoryBeanName || t.FactoryMethodName != previous.FactoryMethodName {
		return
	}
	previous.typeMu.RLock()
	defer previous.typeMu.RUnlock()
	t.typeMu.Lock()
	defer t.typeMu.Unlock()
	t.resolvedClass = previous.resolvedClass
	t.resolvedTargetType = previous.resolvedTargetType
	t.isFactoryBean = previous.isFactoryBean
	t.factoryMethodReturnType = previous.factoryMethodReturnType
	t.factoryMethodToIntrospect = previous.factoryMethodToIntrospect
	t.isFactoryMethodUnique = previous.isFactoryMethodUnique
}

/**
Target type of the bean if known, the class for definitions without factory method
*/
func (t *RootBeanDefinition) TargetType() reflect.Type {
	t.typeMu.RLock()
	defer t.typeMu.RUnlock()
	if t.resolvedTargetType != nil {
		return t.resolvedTargetType
	}
	if t.FactoryMethodName == "" {
		if t.Class != nil {
			return t.Class
		}
		return t.resolvedClass
	}
	return nil
}

func (t *RootBeanDefinition) setResolvedTargetType(class reflect.Type) {
	t.typeMu.Lock()
	t.resolvedTargetType = class
	t.typeMu.Unlock()
}

/**
Returns the class of the definition, the one loaded by class name if already resolved
*/
func (t *RootBeanDefinition) beanClass() reflect.Type {
	if t.Class != nil {
		return t.Class
	}
	t.typeMu.RLock()
	defer t.typeMu.RUnlock()
	return t.resolvedClass
}

func (t *RootBeanDefinition) setResolvedClass(class reflect.Type) {
	t.typeMu.Lock()
	t.resolvedClass = class
	t.typeMu.Unlock()
}

func (t *RootBeanDefinition) IsFactoryMethod() bool {
	return t.FactoryMethodName != ""
}

func (t *RootBeanDefinition) isFactoryMethod(ex *Executable) bool {
	return ex != nil && ex.Name == t.FactoryMethodName
}

/**
Returns the factory method resolved on the first creation
*/
func (t *RootBeanDefinition) ResolvedFactoryMethod() *Executable {
	t.typeMu.RLock()
	defer t.typeMu.RUnlock()
	return t.factoryMethodToIntrospect
}

func (t *RootBeanDefinition) cachedFactoryBean() (bool, bool) {
	t.typeMu.RLock()
	defer t.typeMu.RUnlock()
	if t.isFactoryBean == nil {
		return false, false
	}
	return *t.isFactoryBean, true
}

func (t *RootBeanDefinition) setFactoryBean(value bool) {
	t.typeMu.Lock()
	t.isFactoryBean = &value
	t.typeMu.Unlock()
}

func (t *RootBeanDefinition) factoryMethodReturn() reflect.Type {
	t.typeMu.RLock()
	defer t.typeMu.RUnlock()
	return t.factoryMethodReturnType
}

func (t *RootBeanDefinition) setFactoryMethodIntrospection(method *Executable, returnType reflect.Type, unique bool) {
	t.typeMu.Lock()
	if method != nil {
		t.factoryMethodToIntrospect = method
	}
	if returnType != nil {
		t.factoryMethodReturnType = returnType
	}
	t.isFactoryMethodUnique = unique
	t.typeMu.Unlock()
}

func (t *RootBeanDefinition) markStale() {
	t.stale.Store(true)
}

func (t *RootBeanDefinition) IsStale() bool {
	return t.stale.Load()
}

func (t *RootBeanDefinition) resolvedConstructor() (*Executable, bool) {
	t.argsMu.Lock()
	defer t.argsMu.Unlock()
	return t.resolvedConstructorOrFactoryMethod, t.constructorArgumentsResolved
}

func (t *RootBeanDefinition) String() string {
	return "Root bean: " + t.BeanDefinition.String()
}
