/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"reflect"
)

type beanProvider struct {
	factory  *beanFactory
	desc     *DependencyDescriptor
	beanName string
}

/**
Creates provider of beans matching the descriptor, requested on behalf of the bean, the name could be empty
*/
func newBeanProvider(factory *beanFactory, desc *DependencyDescriptor, beanName string) ObjectProvider {
	return &beanProvider{
		factory:  factory,
		desc:     desc,
		beanName: beanName,
	}
}

func (t *beanProvider) Object(args ...interface{}) (interface{}, error) {
	if len(args) > 0 {
		c, leave := t.factory.enterChain(t.beanName)
		defer leave()
		bean, name, err := t.factory.resolveBeanByType(c, t.desc.Type, args, false)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, noMatchingBean(t.desc.Type, "")
		}
		return bean, nil
	}
	desc := t.desc.copy()
	desc.Required = true
	obj, err := t.resolve(desc)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, noMatchingBean(t.desc.Type, "")
	}
	return obj, nil
}

func (t *beanProvider) IfAvailable() (interface{}, error) {
	desc := t.desc.copy()
	desc.Required = false
	obj, err := t.resolve(desc)
	if hasKind(err, ErrNoMatchingBean) {
		return nil, nil
	}
	return obj, err
}

func (t *beanProvider) IfUnique() (interface{}, error) {
	obj, err := t.resolve(t.desc.forUnique())
	if hasKind(err, ErrNoMatchingBean) {
		return nil, nil
	}
	return obj, err
}

func (t *beanProvider) resolve(desc *DependencyDescriptor) (interface{}, error) {
	c, leave := t.factory.enterChain(t.beanName)
	defer leave()
	var names []string
	obj, err := t.factory.doResolveDependency(c, desc, t.beanName, &names)
	if err != nil {
		return nil, err
	}
	if t.beanName != "" {
		for _, name := range names {
			if t.factory.ContainsBean(name) {
				t.factory.RegisterDependentBean(name, t.beanName)
			}
		}
	}
	return obj, nil
}

func (t *beanProvider) Stream(yield func(obj interface{}) bool) error {
	c, leave := t.factory.enterChain(t.beanName)
	defer leave()
	for _, name := range t.candidateNames(c) {
		bean, err := t.factory.doGetBean(c, name, nil, nil, false)
		if err != nil {
			return err
		}
		if bean == nil {
			continue
		}
		if !yield(bean) {
			return nil
		}
	}
	return nil
}

func (t *beanProvider) OrderedStream(yield func(obj interface{}) bool) error {
	c, leave := t.factory.enterChain(t.beanName)
	defer leave()
	names := t.candidateNames(c)
	beans := make([]interface{}, 0, len(names))
	for _, name := range names {
		bean, err := t.factory.doGetBean(c, name, nil, nil, false)
		if err != nil {
			return err
		}
		if bean != nil {
			beans = append(beans, bean)
		}
	}
	orderBeans(beans, t.factory.comparator())
	for _, bean := range beans {
		if !yield(bean) {
			break
		}
	}
	return nil
}

func (t *beanProvider) candidateNames(c *creation) []string {
	resolver := t.factory.autowireCandidateResolver()
	var list []string
	for _, name := range t.factory.beanNamesIncludingAncestors(c, t.desc.Type, true) {
		if !t.factory.isSelfReference(t.beanName, name) && t.factory.isCandidate(name, t.desc, resolver) {
			list = append(list, name)
		}
	}
	return list
}

func (t *beanProvider) String() string {
	return "provider of " + typeName(t.desc.Type)
}

func typeName(typ reflect.Type) string {
	if typ == nil {
		return "<nil>"
	}
	return typ.String()
}

/**
Typed lazy handle injected into fields and parameters of type Provider[T]
*/

type Provider[T any] struct {
	provider ObjectProvider
}

func (t Provider[T]) Object(args ...interface{}) (T, error) {
	var zero T
	if t.provider == nil {
		return zero, noMatchingBean(reflect.TypeOf((*T)(nil)).Elem(), "provider is not bound to a factory")
	}
	obj, err := t.provider.Object(args...)
	if err != nil || obj == nil {
		return zero, err
	}
	return obj.(T), nil
}

/**
Returns the bean and true, or false if no bean matches
*/
func (t Provider[T]) IfAvailable() (T, bool, error) {
	var zero T
	if t.provider == nil {
		return zero, false, nil
	}
	obj, err := t.provider.IfAvailable()
	if err != nil || obj == nil {
		return zero, false, err
	}
	return obj.(T), true, nil
}

func (t Provider[T]) IfUnique() (T, bool, error) {
	var zero T
	if t.provider == nil {
		return zero, false, nil
	}
	obj, err := t.provider.IfUnique()
	if err != nil || obj == nil {
		return zero, false, err
	}
	return obj.(T), true, nil
}

func (t Provider[T]) Stream(yield func(T) bool) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Stream(func(obj interface{}) bool {
		return yield(obj.(T))
	})
}

func (t Provider[T]) OrderedStream(yield func(T) bool) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.OrderedStream(func(obj interface{}) bool {
		return yield(obj.(T))
	})
}

func (t *Provider[T]) elemType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (t *Provider[T]) bind(provider ObjectProvider) {
	t.provider = provider
}

/**
Implemented by pointers of Provider instances
*/
type providerValue interface {
	elemType() reflect.Type
	bind(provider ObjectProvider)
}

var providerValueClass = reflect.TypeOf((*providerValue)(nil)).Elem()

func isProviderShape(typ reflect.Type) bool {
	return typ.Kind() == reflect.Struct && reflect.PtrTo(typ).Implements(providerValueClass)
}
