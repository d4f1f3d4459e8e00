/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"github.com/pkg/errors"
	"reflect"
	"sort"
	"strings"
)

/**
Resolves values of property values and constructor arguments of one bean:
references, inner beans, injection points, managed collections and typed strings.
*/

type valueResolver struct {
	factory  *beanFactory
	chain    *creation
	beanName string
	mbd      *RootBeanDefinition
}

func newValueResolver(factory *beanFactory, c *creation, beanName string, mbd *RootBeanDefinition) *valueResolver {
	return &valueResolver{
		factory:  factory,
		chain:    c,
		beanName: beanName,
		mbd:      mbd,
	}
}

/**
Resolves the value, argName describes the property or the argument for error messages
*/
func (t *valueResolver) resolve(argName string, value interface{}) (interface{}, error) {
	switch v := value.(type) {

	case *RuntimeBeanReference:
		return t.resolveReference(argName, v)

	case *RuntimeBeanNameReference:
		name, err := t.factory.ResolveEmbeddedValue(v.BeanName)
		if err != nil {
			return nil, err
		}
		if !t.factory.ContainsBean(name) {
			return nil, newBeanError(ErrBeanCreation, t.beanName, "invalid bean name '%s' in bean reference for %s", name, argName)
		}
		return name, nil

	case *BeanDefinitionHolder:
		return t.resolveInnerBean(argName, v.Name, v.Definition)

	case *BeanDefinition:
		return t.resolveInnerBean(argName, fmt.Sprintf("(inner bean)#%x", t.factory.innerBeanSeq.Add(1)), v)

	case *DependencyDescriptor:
		var autowiredNames []string
		obj, err := t.factory.resolveDependency(t.chain, v, t.beanName, &autowiredNames)
		if err != nil {
			return nil, err
		}
		for _, name := range autowiredNames {
			if t.factory.ContainsBean(name) {
				t.factory.RegisterDependentBean(name, t.beanName)
			}
		}
		return obj, nil

	case *ManagedList:
		return t.resolveList(argName, v)

	case *ManagedMap:
		return t.resolveMap(argName, v)

	case *TypedStringValue:
		s, err := t.factory.ResolveEmbeddedValue(v.Value)
		if err != nil {
			return nil, wrapCreation(t.beanName, t.mbd.ResourceDescription, fmt.Sprintf("error resolving typed string value for %s", argName), err)
		}
		if v.TargetType == nil {
			return s, nil
		}
		converted, err := t.factory.converter().ConvertIfNecessary(s, v.TargetType)
		if err != nil {
			return nil, wrapCreation(t.beanName, t.mbd.ResourceDescription, fmt.Sprintf("error converting typed string value for %s", argName), err)
		}
		return converted.Interface(), nil

	case string:
		if strings.Contains(v, "${") {
			return t.factory.ResolveEmbeddedValue(v)
		}
		return v, nil

	default:
		return value, nil
	}
}

func (t *valueResolver) resolveReference(argName string, ref *RuntimeBeanReference) (interface{}, error) {
	var bean interface{}
	var resolvedName string
	var err error

	switch {
	case ref.ToParent:
		parent := t.factory.parentFactory()
		if parent == nil {
			return nil, newBeanError(ErrBeanCreation, t.beanName, "cannot resolve reference to bean %v in parent factory: no parent factory available", ref)
		}
		if ref.BeanName == "" {
			bean, err = parent.GetBeanByType(ref.Type)
		} else {
			resolvedName, err = t.factory.ResolveEmbeddedValue(ref.BeanName)
			if err == nil {
				bean, err = parent.GetBean(resolvedName)
			}
		}

	case ref.BeanName == "":
		bean, resolvedName, err = t.factory.resolveBeanByType(t.chain, ref.Type, nil, false)
		if err == nil && resolvedName == "" {
			err = noMatchingBean(ref.Type, "")
		}
		if err == nil {
			t.factory.RegisterDependentBean(resolvedName, t.beanName)
		}

	default:
		resolvedName, err = t.factory.ResolveEmbeddedValue(ref.BeanName)
		if err == nil {
			bean, err = t.factory.doGetBean(t.chain, resolvedName, ref.Type, nil, false)
		}
		if err == nil {
			t.factory.RegisterDependentBean(resolvedName, t.beanName)
		}
	}

	if err != nil {
		return nil, wrapCreation(t.beanName, t.mbd.ResourceDescription, fmt.Sprintf("cannot resolve reference to bean %v while setting %s", ref, argName), err)
	}
	return bean, nil
}

/**
Creates the inner bean, scoped like the containing bean and destroyed with it
*/
func (t *valueResolver) resolveInnerBean(argName string, innerName string, def *BeanDefinition) (interface{}, error) {
	mbd, err := t.factory.getMergedDefinitionWithContaining(innerName, def, t.mbd, make(map[string]bool))
	if err != nil {
		return nil, wrapCreation(t.beanName, t.mbd.ResourceDescription, fmt.Sprintf("cannot create inner bean '%s' while setting %s", innerName, argName), err)
	}

	actualName := innerName
	if mbd.IsSingleton() {
		actualName = t.factory.adaptInnerBeanName(innerName)
	}
	t.factory.registerContainedBean(actualName, t.beanName)

	for _, dep := range mbd.DependsOn {
		t.factory.RegisterDependentBean(dep, actualName)
		if _, err := t.factory.doGetBean(t.chain, dep, nil, nil, false); err != nil {
			return nil, wrapCreation(t.beanName, t.mbd.ResourceDescription, fmt.Sprintf("cannot create inner bean '%s' while setting %s", innerName, argName), err)
		}
	}

	inner, err := t.factory.createBean(t.chain, actualName, mbd, nil)
	if err != nil {
		return nil, wrapCreation(t.beanName, t.mbd.ResourceDescription, fmt.Sprintf("cannot create inner bean '%s' while setting %s", innerName, argName), err)
	}
	if fb, ok := inner.(FactoryBean); ok {
		return t.factory.getObjectFromFactoryBean(t.chain, fb, actualName, !mbd.Synthetic)
	}
	return unwrapNull(inner), nil
}

func (t *valueResolver) resolveList(argName string, list *ManagedList) (interface{}, error) {
	resolved := make([]interface{}, 0, len(list.Elements))
	for i, elem := range list.Elements {
		obj, err := t.resolve(fmt.Sprintf("%s with key [%d]", argName, i), elem)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, obj)
	}
	if list.ElementType == nil {
		return resolved, nil
	}
	v, err := t.factory.converter().ConvertIfNecessary(resolved, reflect.SliceOf(list.ElementType))
	if err != nil {
		return nil, errors.Wrapf(err, "list of %s", argName)
	}
	return v.Interface(), nil
}

func (t *valueResolver) resolveMap(argName string, m *ManagedMap) (interface{}, error) {
	keys := make([]string, 0, len(m.Entries))
	for k := range m.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	resolved := make(map[string]interface{}, len(m.Entries))
	for _, k := range keys {
		obj, err := t.resolve(fmt.Sprintf("%s with key [%s]", argName, k), m.Entries[k])
		if err != nil {
			return nil, err
		}
		resolved[k] = obj
	}
	if m.ValueType == nil {
		return resolved, nil
	}
	v, err := t.factory.converter().ConvertIfNecessary(resolved, reflect.MapOf(stringClass, m.ValueType))
	if err != nil {
		return nil, errors.Wrapf(err, "map of %s", argName)
	}
	return v.Interface(), nil
}

/**
Returns true if resolution of the value could depend on other beans or on each instance
*/
func isDynamicValue(value interface{}) bool {
	switch v := value.(type) {
	case *RuntimeBeanReference, *RuntimeBeanNameReference, *BeanDefinitionHolder, *BeanDefinition, *DependencyDescriptor, *ManagedList, *ManagedMap:
		return true
	case *TypedStringValue:
		return v.Dynamic
	default:
		return false
	}
}
