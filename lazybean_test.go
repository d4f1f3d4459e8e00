/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans_test

import (
	"github.com/codeallergy/beans"
	"github.com/stretchr/testify/require"
	"reflect"
	"sync/atomic"
	"testing"
)

var lazyInstances atomic.Int32

var LazyServiceClass = reflect.TypeOf((*lazyService)(nil)) // *lazyService
type lazyService struct {
	Id int32
}

func (t *lazyService) PostConstruct() error {
	t.Id = lazyInstances.Add(1)
	return nil
}

var LazyHolderClass = reflect.TypeOf((*lazyHolder)(nil)) // *lazyHolder
type lazyHolder struct {
	Service  func() (*lazyService, error) `inject:"lazy"`
	Plain    func() *lazyService          `inject`
	Missing  func() (*elementX, error)    `inject:"lazy"`
	Optional func() *elementX             `inject:"lazy,optional"`
}

func newLazyFactory(t *testing.T) beans.ConfigurableListableBeanFactory {
	f := beans.New()
	require.NoError(t, f.AddBeanPostProcessor(beans.NewTagInjectionPostProcessor(f)))

	service := beans.NewBeanDefinition(LazyServiceClass)
	service.SetLazyInit(true)
	require.NoError(t, f.RegisterBeanDefinition("service", service))
	require.NoError(t, f.RegisterBeanDefinition("holder", beans.NewBeanDefinition(LazyHolderClass)))
	return f
}

func TestLazyInitBean(t *testing.T) {

	f := newLazyFactory(t)
	require.NoError(t, f.PreInstantiateSingletons())

	require.True(t, f.ContainsSingleton("holder"))
	require.False(t, f.ContainsSingleton("service"))

	def, err := f.GetBeanDefinition("service")
	require.NoError(t, err)
	require.True(t, def.IsLazyInit())

	obj, err := f.GetBean("service")
	require.NoError(t, err)
	require.NotZero(t, obj.(*lazyService).Id)
	require.True(t, f.ContainsSingleton("service"))
}

func TestLazyFunctionField(t *testing.T) {

	f := newLazyFactory(t)

	obj, err := f.GetBean("holder")
	require.NoError(t, err)
	holder := obj.(*lazyHolder)
	require.NotNil(t, holder.Service)
	require.NotNil(t, holder.Plain)
	require.False(t, f.ContainsSingleton("service"))

	service, err := holder.Service()
	require.NoError(t, err)
	require.NotNil(t, service)
	require.True(t, f.ContainsSingleton("service"))

	require.Same(t, service, holder.Plain())

	again, err := holder.Service()
	require.NoError(t, err)
	require.Same(t, service, again)
}

func TestLazyFunctionMissingBean(t *testing.T) {

	f := newLazyFactory(t)

	obj, err := f.GetBean("holder")
	require.NoError(t, err)
	holder := obj.(*lazyHolder)

	_, err = holder.Missing()
	require.ErrorIs(t, err, beans.ErrNoMatchingBean)

	require.Nil(t, holder.Optional())

	require.NoError(t, f.RegisterBeanDefinition("x", element(ElementXClass, "x")))
	x, err := holder.Missing()
	require.NoError(t, err)
	require.Equal(t, "x", x.Name)
	require.Equal(t, "x", holder.Optional().Name)
}

var BadLazyHolderClass = reflect.TypeOf((*badLazyHolder)(nil)) // *badLazyHolder
type badLazyHolder struct {
	Service func(id int) *lazyService `inject:"lazy"`
}

func TestLazyFunctionShape(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.AddBeanPostProcessor(beans.NewTagInjectionPostProcessor(f)))
	require.NoError(t, f.RegisterBeanDefinition("holder", beans.NewBeanDefinition(BadLazyHolderClass)))

	_, err := f.GetBean("holder")
	require.Error(t, err)
	require.Contains(t, err.Error(), "lazy injection requires function type")
}
