/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans_test

import (
	"fmt"
	"github.com/codeallergy/beans"
	"github.com/stretchr/testify/require"
	"reflect"
	"testing"
)

var FirstBeanClass = reflect.TypeOf((*firstBean)(nil)) // *firstBean
type firstBean struct {
	Name string
}

var SecondBeanClass = reflect.TypeOf((*secondBean)(nil)) // *secondBean
type secondBean struct {
	First *firstBean
	Count int
}

func TestSingletonBean(t *testing.T) {

	f := beans.New()
	def := beans.NewBeanDefinition(FirstBeanClass)
	def.Properties.Add("name", "alpha")
	require.NoError(t, f.RegisterBeanDefinition("first", def))

	a, err := f.GetBean("first")
	require.NoError(t, err)
	require.Equal(t, "alpha", a.(*firstBean).Name)

	b, err := f.GetBean("first")
	require.NoError(t, err)
	require.Same(t, a, b)

	ok, err := f.IsSingleton("first")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.IsPrototype("first")
	require.NoError(t, err)
	require.False(t, ok)

	require.True(t, f.ContainsSingleton("first"))
}

func TestPrototypeBean(t *testing.T) {

	f := beans.New()
	def := beans.NewBeanDefinition(FirstBeanClass)
	def.Scope = beans.ScopePrototype
	def.Properties.Add("Name", "beta")
	require.NoError(t, f.RegisterBeanDefinition("first", def))

	a, err := f.GetBean("first")
	require.NoError(t, err)
	b, err := f.GetBean("first")
	require.NoError(t, err)

	require.NotSame(t, a, b)
	require.Equal(t, "beta", b.(*firstBean).Name)
	require.False(t, f.ContainsSingleton("first"))

	ok, err := f.IsPrototype("first")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBeanReference(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("first", beans.NewBeanDefinition(FirstBeanClass)))

	def := beans.NewBeanDefinition(SecondBeanClass)
	def.Properties.Add("first", beans.Ref("first"))
	def.Properties.Add("count", "5")
	require.NoError(t, f.RegisterBeanDefinition("second", def))

	obj, err := f.GetBean("second")
	require.NoError(t, err)
	second := obj.(*secondBean)

	first, err := f.GetBean("first")
	require.NoError(t, err)
	require.Same(t, first, second.First)
	require.Equal(t, 5, second.Count)

	require.Equal(t, []string{"second"}, f.GetDependentBeans("first"))
	require.Equal(t, []string{"first"}, f.GetDependenciesForBean("second"))
}

func TestBeanNotFound(t *testing.T) {

	f := beans.New()

	_, err := f.GetBean("missing")
	require.ErrorIs(t, err, beans.ErrNoSuchDefinition)
	require.False(t, f.ContainsBean("missing"))

	_, err = f.GetBeanByType(FirstBeanClass)
	require.ErrorIs(t, err, beans.ErrNoMatchingBean)
}

func TestBeanByType(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("first", beans.NewBeanDefinition(FirstBeanClass)))
	require.NoError(t, f.RegisterBeanDefinition("second", beans.NewBeanDefinition(SecondBeanClass)))

	obj, err := f.GetBeanByType(FirstBeanClass)
	require.NoError(t, err)
	require.IsType(t, &firstBean{}, obj)

	names := f.GetBeanNamesForType(FirstBeanClass, true, true)
	require.Equal(t, []string{"first"}, names)

	m, err := f.GetBeansOfType(SecondBeanClass, true, true)
	require.NoError(t, err)
	require.Equal(t, 1, len(m))
	require.NotNil(t, m["second"])
}

func TestMultipleBeansByType(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("one", beans.NewBeanDefinition(FirstBeanClass)))
	require.NoError(t, f.RegisterBeanDefinition("two", beans.NewBeanDefinition(FirstBeanClass)))

	_, err := f.GetBeanByType(FirstBeanClass)
	require.ErrorIs(t, err, beans.ErrNoUniqueBean)

	def, err := f.GetBeanDefinition("two")
	require.NoError(t, err)
	def.Primary = true
	require.NoError(t, f.RegisterBeanDefinition("two", def))

	obj, err := f.GetBeanByType(FirstBeanClass)
	require.NoError(t, err)
	two, err := f.GetBean("two")
	require.NoError(t, err)
	require.Same(t, two, obj)
}

func TestAmbiguousPrimary(t *testing.T) {

	f := beans.New()
	for _, name := range []string{"one", "two"} {
		def := beans.NewBeanDefinition(FirstBeanClass)
		def.Primary = true
		require.NoError(t, f.RegisterBeanDefinition(name, def))
	}

	_, err := f.GetBeanByType(FirstBeanClass)
	require.ErrorIs(t, err, beans.ErrAmbiguousPrimary)
	require.ErrorIs(t, err, beans.ErrNoUniqueBean)
}

func TestPriorityBeanByType(t *testing.T) {

	f := beans.New()
	low := beans.NewBeanDefinition(FirstBeanClass)
	low.SetPriority(10)
	low.Properties.Add("name", "low")
	high := beans.NewBeanDefinition(FirstBeanClass)
	high.SetPriority(1)
	high.Properties.Add("name", "high")
	require.NoError(t, f.RegisterBeanDefinition("low", low))
	require.NoError(t, f.RegisterBeanDefinition("high", high))

	obj, err := f.GetBeanByType(FirstBeanClass)
	require.NoError(t, err)
	require.Equal(t, "high", obj.(*firstBean).Name)
}

func TestAmbiguousPriority(t *testing.T) {

	f := beans.New()
	for _, name := range []string{"one", "two"} {
		def := beans.NewBeanDefinition(FirstBeanClass)
		def.SetPriority(5)
		require.NoError(t, f.RegisterBeanDefinition(name, def))
	}
	lower := beans.NewBeanDefinition(FirstBeanClass)
	lower.SetPriority(7)
	require.NoError(t, f.RegisterBeanDefinition("three", lower))

	_, err := f.GetBeanByType(FirstBeanClass)
	require.ErrorIs(t, err, beans.ErrAmbiguousPriority)
	require.ErrorIs(t, err, beans.ErrNoUniqueBean)
	require.Contains(t, err.Error(), "same priority ('5')")
}

func TestSuppressedCausesBounded(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.AddBeanPostProcessor(beans.NewTagInjectionPostProcessor(f)))
	for i := 0; i < 150; i++ {
		require.NoError(t, f.RegisterBeanDefinition(fmt.Sprintf("orphan%d", i), beans.NewChildBeanDefinition("missing")))
	}
	require.NoError(t, f.RegisterBeanDefinition("holder", beans.NewBeanDefinition(RequiredHolderClass)))

	_, err := f.GetBean("holder")
	require.ErrorIs(t, err, beans.ErrNoMatchingBean)

	var beanErr *beans.BeanError
	require.ErrorAs(t, err, &beanErr)
	require.Equal(t, "holder", beanErr.BeanName)
	require.Equal(t, 100, len(beanErr.RelatedCauses))
	for _, cause := range beanErr.RelatedCauses {
		require.ErrorIs(t, cause, beans.ErrNoSuchParent)
	}
	require.Contains(t, err.Error(), "(related causes: 100)")
}

func TestBeanAliases(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("first", beans.NewBeanDefinition(FirstBeanClass)))
	require.NoError(t, f.RegisterAlias("first", "primaryFirst"))
	require.NoError(t, f.RegisterAlias("primaryFirst", "aliasOfAlias"))

	a, err := f.GetBean("first")
	require.NoError(t, err)
	b, err := f.GetBean("aliasOfAlias")
	require.NoError(t, err)
	require.Same(t, a, b)

	require.True(t, f.IsAlias("primaryFirst"))
	require.ElementsMatch(t, []string{"primaryFirst", "aliasOfAlias"}, f.GetAliases("first"))

	err = f.RegisterAlias("aliasOfAlias", "first")
	require.Error(t, err)
}

func TestTypedBean(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("first", beans.NewBeanDefinition(FirstBeanClass)))

	_, err := f.GetTypedBean("first", SecondBeanClass)
	require.ErrorIs(t, err, beans.ErrNotOfRequiredType)

	ok, err := f.IsTypeMatch("first", FirstBeanClass)
	require.NoError(t, err)
	require.True(t, ok)

	typ, err := f.GetType("first")
	require.NoError(t, err)
	require.Equal(t, FirstBeanClass, typ)
}

func TestManualSingleton(t *testing.T) {

	f := beans.New()
	first := &firstBean{Name: "manual"}
	require.NoError(t, f.RegisterSingleton("manual", first))

	err := f.RegisterSingleton("manual", &firstBean{})
	require.ErrorIs(t, err, beans.ErrAlreadyRegistered)

	obj, err := f.GetBeanByType(FirstBeanClass)
	require.NoError(t, err)
	require.Same(t, first, obj)
	require.Equal(t, []string{"manual"}, f.GetBeanNamesForType(FirstBeanClass, true, true))
	require.Equal(t, 0, f.GetBeanDefinitionCount())
}
