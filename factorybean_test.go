/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans_test

import (
	"github.com/codeallergy/beans"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"reflect"
	"sync/atomic"
	"testing"
)

var BeanConstructedClass = reflect.TypeOf((*beanConstructed)(nil)) // *beanConstructed
type beanConstructed struct {
	Id int
}

var FactoryBeanImplClass = reflect.TypeOf((*factoryBeanImpl)(nil)) // *factoryBeanImpl
type factoryBeanImpl struct {
	Prefix  int
	Shared  bool
	Eager   bool
	Broken  bool
	created atomic.Int32
}

func (t *factoryBeanImpl) Object() (interface{}, error) {
	if t.Broken {
		return nil, errors.New("broken factory")
	}
	n := t.created.Add(1)
	return &beanConstructed{Id: t.Prefix + int(n)}, nil
}

func (t *factoryBeanImpl) ObjectType() reflect.Type {
	return BeanConstructedClass
}

func (t *factoryBeanImpl) Singleton() bool {
	return t.Shared
}

func (t *factoryBeanImpl) Prototype() bool {
	return !t.Shared
}

func (t *factoryBeanImpl) EagerInit() bool {
	return t.Eager
}

func factoryBeanDefinition(prefix int, shared bool) *beans.BeanDefinition {
	def := beans.NewBeanDefinition(FactoryBeanImplClass)
	def.Properties.Add("prefix", prefix)
	def.Properties.Add("shared", shared)
	return def
}

func TestSingletonFactoryBean(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("constructed", factoryBeanDefinition(100, true)))

	a, err := f.GetBean("constructed")
	require.NoError(t, err)
	require.Equal(t, 101, a.(*beanConstructed).Id)

	b, err := f.GetBean("constructed")
	require.NoError(t, err)
	require.Same(t, a, b)

	fb, err := f.GetBean("&constructed")
	require.NoError(t, err)
	require.IsType(t, &factoryBeanImpl{}, fb)
	require.Equal(t, int32(1), fb.(*factoryBeanImpl).created.Load())

	isFactory, err := f.IsFactoryBean("constructed")
	require.NoError(t, err)
	require.True(t, isFactory)

	typ, err := f.GetType("constructed")
	require.NoError(t, err)
	require.Equal(t, BeanConstructedClass, typ)

	typ, err = f.GetType("&constructed")
	require.NoError(t, err)
	require.Equal(t, FactoryBeanImplClass, typ)

	require.True(t, f.ContainsBean("&constructed"))
	require.Equal(t, []string{"constructed"}, f.GetBeanNamesForType(BeanConstructedClass, true, true))
	require.Equal(t, []string{"&constructed"}, f.GetBeanNamesForType(FactoryBeanImplClass, true, true))

	obj, err := f.GetBeanByType(BeanConstructedClass)
	require.NoError(t, err)
	require.Same(t, a, obj)
}

func TestPrototypeFactoryBean(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("constructed", factoryBeanDefinition(0, false)))

	a, err := f.GetBean("constructed")
	require.NoError(t, err)
	b, err := f.GetBean("constructed")
	require.NoError(t, err)
	require.NotSame(t, a, b)
	require.Equal(t, 1, a.(*beanConstructed).Id)
	require.Equal(t, 2, b.(*beanConstructed).Id)

	singleton, err := f.IsSingleton("constructed")
	require.NoError(t, err)
	require.False(t, singleton)

	prototype, err := f.IsPrototype("constructed")
	require.NoError(t, err)
	require.True(t, prototype)

	// the factory bean itself is a singleton
	singleton, err = f.IsSingleton("&constructed")
	require.NoError(t, err)
	require.True(t, singleton)
}

func TestEagerInitFactoryBean(t *testing.T) {

	f := beans.New()
	eager := factoryBeanDefinition(0, true)
	eager.Properties.Add("eager", true)
	require.NoError(t, f.RegisterBeanDefinition("eager", eager))
	require.NoError(t, f.RegisterBeanDefinition("lazy", factoryBeanDefinition(0, true)))

	require.NoError(t, f.PreInstantiateSingletons())

	fb, err := f.GetBean("&eager")
	require.NoError(t, err)
	require.Equal(t, int32(1), fb.(*factoryBeanImpl).created.Load())

	fb, err = f.GetBean("&lazy")
	require.NoError(t, err)
	require.Equal(t, int32(0), fb.(*factoryBeanImpl).created.Load())
}

func TestNotFactoryBean(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("first", beans.NewBeanDefinition(FirstBeanClass)))

	_, err := f.GetBean("&first")
	require.ErrorIs(t, err, beans.ErrBeanIsNotFactory)
	require.ErrorIs(t, err, beans.ErrNotOfRequiredType)
	require.False(t, f.ContainsBean("&first"))

	isFactory, err := f.IsFactoryBean("first")
	require.NoError(t, err)
	require.False(t, isFactory)
}

func TestBrokenFactoryBean(t *testing.T) {

	f := beans.New()
	def := factoryBeanDefinition(0, true)
	def.Properties.Add("broken", true)
	require.NoError(t, f.RegisterBeanDefinition("broken", def))

	_, err := f.GetBean("broken")
	require.ErrorIs(t, err, beans.ErrBeanCreation)
	require.Contains(t, err.Error(), "broken factory")
}

func TestManualFactoryBean(t *testing.T) {

	f := beans.New()
	fb := &factoryBeanImpl{Prefix: 10, Shared: true}
	require.NoError(t, f.RegisterSingleton("manual", fb))

	obj, err := f.GetBean("manual")
	require.NoError(t, err)
	require.Equal(t, 11, obj.(*beanConstructed).Id)

	raw, err := f.GetBean("&manual")
	require.NoError(t, err)
	require.Same(t, fb, raw)

	obj, err = f.GetBeanByType(BeanConstructedClass)
	require.NoError(t, err)
	require.Equal(t, 11, obj.(*beanConstructed).Id)
}
