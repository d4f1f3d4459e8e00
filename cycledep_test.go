/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans_test

import (
	"github.com/codeallergy/beans"
	"github.com/stretchr/testify/require"
	"reflect"
	"sync"
	"testing"
	"time"
)

type Pinger interface {
	Ping() string
}

var CircAClass = reflect.TypeOf((*circA)(nil)) // *circA
type circA struct {
	B *circB
}

func (t *circA) Ping() string {
	return "a"
}

var CircBClass = reflect.TypeOf((*circB)(nil)) // *circB
type circB struct {
	A Pinger
}

type pingerWrapper struct {
	Pinger
}

func (t *pingerWrapper) Ping() string {
	return "wrapped " + t.Pinger.Ping()
}

type wrappingProcessor struct {
	beans.BeanPostProcessorAdapter
	beanName string
}

func (t *wrappingProcessor) PostProcessAfterInitialization(bean interface{}, beanName string) (interface{}, error) {
	if beanName == t.beanName {
		return &pingerWrapper{bean.(Pinger)}, nil
	}
	return bean, nil
}

func registerCycle(t *testing.T, f beans.ConfigurableListableBeanFactory, scope string) {
	a := beans.NewBeanDefinition(CircAClass)
	a.Scope = scope
	a.Properties.Add("b", beans.Ref("b"))
	require.NoError(t, f.RegisterBeanDefinition("a", a))

	b := beans.NewBeanDefinition(CircBClass)
	b.Scope = scope
	b.Properties.Add("a", beans.Ref("a"))
	require.NoError(t, f.RegisterBeanDefinition("b", b))
}

func TestCircularSingletons(t *testing.T) {

	f := beans.New()
	registerCycle(t, f, beans.ScopeSingleton)

	obj, err := f.GetBean("a")
	require.NoError(t, err)
	a := obj.(*circA)
	require.NotNil(t, a.B)
	require.Same(t, a, a.B.A)

	b, err := f.GetBean("b")
	require.NoError(t, err)
	require.Same(t, a.B, b)
}

func TestCircularReferencesNotAllowed(t *testing.T) {

	f := beans.New()
	f.SetAllowCircularReferences(false)
	registerCycle(t, f, beans.ScopeSingleton)

	_, err := f.GetBean("a")
	require.ErrorIs(t, err, beans.ErrCurrentlyInCreation)
	require.False(t, f.ContainsSingleton("a"))
	require.False(t, f.ContainsSingleton("b"))
	require.False(t, f.IsCurrentlyInCreation("a"))
}

func TestCircularPrototypes(t *testing.T) {

	f := beans.New()
	registerCycle(t, f, beans.ScopePrototype)

	_, err := f.GetBean("a")
	require.ErrorIs(t, err, beans.ErrCurrentlyInCreation)
	require.ErrorIs(t, err, beans.ErrBeanCreation)
}

func TestRawInjectionConflict(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.AddBeanPostProcessor(&wrappingProcessor{beanName: "a"}))
	registerCycle(t, f, beans.ScopeSingleton)

	_, err := f.GetBean("a")
	require.ErrorIs(t, err, beans.ErrRawInjectionConflict)
	require.ErrorIs(t, err, beans.ErrCurrentlyInCreation)
	require.False(t, f.ContainsSingleton("a"))
	require.False(t, f.ContainsSingleton("b"))
}

func TestRawInjectionDespiteWrapping(t *testing.T) {

	f := beans.New()
	f.SetAllowRawInjectionDespiteWrapping(true)
	require.NoError(t, f.AddBeanPostProcessor(&wrappingProcessor{beanName: "a"}))
	registerCycle(t, f, beans.ScopeSingleton)

	obj, err := f.GetBean("a")
	require.NoError(t, err)
	require.Equal(t, "wrapped a", obj.(Pinger).Ping())

	b, err := f.GetBean("b")
	require.NoError(t, err)
	require.Equal(t, "a", b.(*circB).A.Ping())
}

var CtorAClass = reflect.TypeOf((*ctorA)(nil)) // *ctorA
type ctorA struct {
	b *ctorB
}

var CtorBClass = reflect.TypeOf((*ctorB)(nil)) // *ctorB
type ctorB struct {
	a *ctorA
}

func TestCircularConstructors(t *testing.T) {

	f := beans.New()
	registry := f.ClassLoader().(*beans.TypeRegistry)
	require.NoError(t, registry.RegisterConstructor(CtorAClass, func(b *ctorB) *ctorA { return &ctorA{b: b} }))
	require.NoError(t, registry.RegisterConstructor(CtorBClass, func(a *ctorA) *ctorB { return &ctorB{a: a} }))

	require.NoError(t, f.RegisterBeanDefinition("a", beans.NewBeanDefinition(CtorAClass)))
	require.NoError(t, f.RegisterBeanDefinition("b", beans.NewBeanDefinition(CtorBClass)))

	_, err := f.GetBean("a")
	require.ErrorIs(t, err, beans.ErrCurrentlyInCreation)
	require.False(t, f.ContainsSingleton("a"))
}

func within(t *testing.T, timeout time.Duration, fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		require.FailNow(t, "factory call did not return, deadlock")
	}
}

var AwareAClass = reflect.TypeOf((*awareA)(nil)) // *awareA
type awareA struct {
	factory beans.BeanFactory
	B       *awareB
}

func (t *awareA) SetBeanFactory(factory beans.BeanFactory) {
	t.factory = factory
}

func (t *awareA) PostConstruct() error {
	obj, err := t.factory.GetBean("b")
	if err != nil {
		return err
	}
	t.B = obj.(*awareB)
	return nil
}

var AwareBClass = reflect.TypeOf((*awareB)(nil)) // *awareB
type awareB struct {
	A *awareA
}

func TestLookupFromPostConstruct(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("a", beans.NewBeanDefinition(AwareAClass)))
	b := beans.NewBeanDefinition(AwareBClass)
	b.Properties.Add("a", beans.Ref("a"))
	require.NoError(t, f.RegisterBeanDefinition("b", b))

	var obj interface{}
	var err error
	within(t, 5*time.Second, func() {
		obj, err = f.GetBean("a")
	})
	require.NoError(t, err)
	a := obj.(*awareA)
	require.NotNil(t, a.B)
	require.Same(t, a, a.B.A)

	other, err := f.GetBean("b")
	require.NoError(t, err)
	require.Same(t, a.B, other)
	require.False(t, f.IsCurrentlyInCreation("a"))
}

var SelfLookupClass = reflect.TypeOf((*selfLookup)(nil)) // *selfLookup
type selfLookup struct {
	factory beans.BeanFactory
}

func (t *selfLookup) SetBeanFactory(factory beans.BeanFactory) {
	t.factory = factory
}

func (t *selfLookup) PostConstruct() error {
	_, err := t.factory.GetBean("self")
	return err
}

func TestPrototypeLookupOfItself(t *testing.T) {

	f := beans.New()
	def := beans.NewBeanDefinition(SelfLookupClass)
	def.Scope = beans.ScopePrototype
	require.NoError(t, f.RegisterBeanDefinition("self", def))

	var err error
	within(t, 5*time.Second, func() {
		_, err = f.GetBean("self")
	})
	require.ErrorIs(t, err, beans.ErrCurrentlyInCreation)
	require.ErrorIs(t, err, beans.ErrBeanCreation)

	// the chain of the failed request is released
	_, err = f.GetBean("self")
	require.ErrorIs(t, err, beans.ErrCurrentlyInCreation)
}

var PeerAClass = reflect.TypeOf((*peerA)(nil)) // *peerA
type peerA struct {
	B *peerB
}

var PeerBClass = reflect.TypeOf((*peerB)(nil)) // *peerB
type peerB struct {
	A *peerA
}

func TestConcurrentCircularSingletons(t *testing.T) {

	f := beans.New()

	var barrier sync.WaitGroup
	barrier.Add(2)
	meet := func(instance interface{}) beans.Supplier {
		return func(beans.BeanFactory) (interface{}, error) {
			barrier.Done()
			barrier.Wait()
			return instance, nil
		}
	}

	a := beans.NewBeanDefinition(PeerAClass)
	a.Supplier = meet(&peerA{})
	a.Properties.Add("b", beans.Ref("b"))
	require.NoError(t, f.RegisterBeanDefinition("a", a))

	b := beans.NewBeanDefinition(PeerBClass)
	b.Supplier = meet(&peerB{})
	b.Properties.Add("a", beans.Ref("a"))
	require.NoError(t, f.RegisterBeanDefinition("b", b))

	names := []string{"a", "b"}
	objs := make([]interface{}, len(names))
	errs := make([]error, len(names))

	within(t, 5*time.Second, func() {
		var wg sync.WaitGroup
		for i, name := range names {
			wg.Add(1)
			go func(i int, name string) {
				defer wg.Done()
				objs[i], errs[i] = f.GetBean(name)
			}(i, name)
		}
		wg.Wait()
	})

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	pa := objs[0].(*peerA)
	pb := objs[1].(*peerB)
	require.Same(t, pb, pa.B)
	require.Same(t, pa, pb.A)
}
