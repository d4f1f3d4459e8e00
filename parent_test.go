/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans_test

import (
	"github.com/codeallergy/beans"
	"github.com/stretchr/testify/require"
	"testing"
)

func named(name string) *beans.BeanDefinition {
	def := beans.NewBeanDefinition(FirstBeanClass)
	def.Properties.Add("name", name)
	return def
}

func newHierarchy(t *testing.T) (parent, child beans.ConfigurableListableBeanFactory) {
	parent = beans.New()
	require.NoError(t, parent.RegisterBeanDefinition("shared", named("parent")))

	child = beans.New()
	require.NoError(t, child.SetParentBeanFactory(parent))
	return parent, child
}

func TestParentLookup(t *testing.T) {

	parent, child := newHierarchy(t)

	p, ok := child.ParentBeanFactory()
	require.True(t, ok)
	require.Equal(t, parent, p)

	obj, err := child.GetBean("shared")
	require.NoError(t, err)
	require.Equal(t, "parent", obj.(*firstBean).Name)

	fromParent, err := parent.GetBean("shared")
	require.NoError(t, err)
	require.Same(t, fromParent, obj)

	require.True(t, child.ContainsBean("shared"))
	require.False(t, child.ContainsLocalBean("shared"))
	require.False(t, child.ContainsBeanDefinition("shared"))

	obj, err = child.GetBeanByType(FirstBeanClass)
	require.NoError(t, err)
	require.Same(t, fromParent, obj)

	require.Error(t, child.SetParentBeanFactory(child))
	require.Error(t, child.SetParentBeanFactory(beans.New()))
	require.NoError(t, child.SetParentBeanFactory(parent))
}

func TestLocalBeanHidesParent(t *testing.T) {

	parent, child := newHierarchy(t)
	require.NoError(t, child.RegisterBeanDefinition("shared", named("child")))

	obj, err := child.GetBean("shared")
	require.NoError(t, err)
	require.Equal(t, "child", obj.(*firstBean).Name)

	obj, err = parent.GetBean("shared")
	require.NoError(t, err)
	require.Equal(t, "parent", obj.(*firstBean).Name)
	require.True(t, child.ContainsLocalBean("shared"))
}

func TestAutowireFromParent(t *testing.T) {

	parent, child := newHierarchy(t)

	def := beans.NewBeanDefinition(SecondBeanClass)
	def.AutowireMode = beans.AutowireByType
	require.NoError(t, child.RegisterBeanDefinition("second", def))

	obj, err := child.GetBean("second")
	require.NoError(t, err)
	shared, err := parent.GetBean("shared")
	require.NoError(t, err)
	require.Same(t, shared, obj.(*secondBean).First)

	_, err = parent.GetBean("second")
	require.ErrorIs(t, err, beans.ErrNoSuchDefinition)
}

func TestLocalPrimaryWins(t *testing.T) {

	parent := beans.New()
	inParent := named("parent")
	inParent.Primary = true
	require.NoError(t, parent.RegisterBeanDefinition("parentFirst", inParent))

	child := beans.New()
	require.NoError(t, child.SetParentBeanFactory(parent))
	local := named("child")
	local.Primary = true
	require.NoError(t, child.RegisterBeanDefinition("childFirst", local))

	def := beans.NewBeanDefinition(SecondBeanClass)
	def.AutowireMode = beans.AutowireByType
	require.NoError(t, child.RegisterBeanDefinition("second", def))

	obj, err := child.GetBean("second")
	require.NoError(t, err)
	require.Equal(t, "child", obj.(*secondBean).First.Name)

	another := named("another")
	another.Primary = true
	require.NoError(t, child.RegisterBeanDefinition("anotherFirst", another))

	_, err = child.GetBeanByType(FirstBeanClass)
	require.ErrorIs(t, err, beans.ErrAmbiguousPrimary)
}

func TestChildDefinition(t *testing.T) {

	f := beans.New()
	template := beans.NewBeanDefinition(SecondBeanClass)
	template.Abstract = true
	template.Scope = beans.ScopePrototype
	template.Properties.Add("count", 3)
	require.NoError(t, f.RegisterBeanDefinition("template", template))

	child := beans.NewChildBeanDefinition("template")
	child.Properties.Add("count", 5)
	require.NoError(t, f.RegisterBeanDefinition("five", child))

	inherited := beans.NewChildBeanDefinition("template")
	require.NoError(t, f.RegisterBeanDefinition("three", inherited))

	obj, err := f.GetBean("five")
	require.NoError(t, err)
	require.Equal(t, 5, obj.(*secondBean).Count)

	obj, err = f.GetBean("three")
	require.NoError(t, err)
	require.Equal(t, 3, obj.(*secondBean).Count)

	prototype, err := f.IsPrototype("three")
	require.NoError(t, err)
	require.True(t, prototype)

	mbd, err := f.GetMergedBeanDefinition("five")
	require.NoError(t, err)
	require.Equal(t, SecondBeanClass, mbd.Class)
	require.False(t, mbd.Abstract)
}

func TestChildOfParentFactoryDefinition(t *testing.T) {

	_, child := newHierarchy(t)

	def := beans.NewChildBeanDefinition("shared")
	def.Properties.Add("name", "redefined")
	require.NoError(t, child.RegisterBeanDefinition("shared", def))

	obj, err := child.GetBean("shared")
	require.NoError(t, err)
	require.Equal(t, "redefined", obj.(*firstBean).Name)

	orphan := beans.NewChildBeanDefinition("orphan")
	standalone := beans.New()
	require.NoError(t, standalone.RegisterBeanDefinition("orphan", orphan))
	_, err = standalone.GetBean("orphan")
	require.ErrorIs(t, err, beans.ErrNoSuchParent)
}

func TestMissingParentDefinition(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("child", beans.NewChildBeanDefinition("unknown")))

	_, err := f.GetBean("child")
	require.ErrorIs(t, err, beans.ErrNoSuchParent)
	require.ErrorIs(t, err, beans.ErrDefinitionStore)

	err = f.RegisterBeanDefinition("invalid", &beans.BeanDefinition{Source: beans.ChildDefinition})
	require.ErrorIs(t, err, beans.ErrValidationFailed)
}

func TestCircularParentDefinition(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("a", beans.NewChildBeanDefinition("b")))
	require.NoError(t, f.RegisterBeanDefinition("b", beans.NewChildBeanDefinition("a")))

	_, err := f.GetBean("a")
	require.ErrorIs(t, err, beans.ErrCircularDefinition)
}

func TestParentReference(t *testing.T) {

	_, child := newHierarchy(t)
	require.NoError(t, child.RegisterBeanDefinition("shared", named("child")))

	def := beans.NewBeanDefinition(SecondBeanClass)
	def.Properties.Add("first", &beans.RuntimeBeanReference{BeanName: "shared", ToParent: true})
	require.NoError(t, child.RegisterBeanDefinition("second", def))

	obj, err := child.GetBean("second")
	require.NoError(t, err)
	require.Equal(t, "parent", obj.(*secondBean).First.Name)

	orphan := beans.New()
	require.NoError(t, orphan.RegisterBeanDefinition("second", def))
	_, err = orphan.GetBean("second")
	require.ErrorIs(t, err, beans.ErrBeanCreation)
}
