/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans_test

import (
	"github.com/codeallergy/beans"
	"github.com/stretchr/testify/require"
	"reflect"
	"testing"
)

var ElementXClass = reflect.TypeOf((*elementX)(nil)) // *elementX
type elementX struct {
	Name string
}

var OrderedElementXClass = reflect.TypeOf((*orderedElementX)(nil)) // *orderedElementX
type orderedElementX struct {
	Name string
}

func (t *orderedElementX) BeanOrder() int {
	return int(t.Name[0] - 'a')
}

var HolderXClass = reflect.TypeOf((*holderX)(nil)) // *holderX
type holderX struct {
	Array []*elementX
	Map   map[string]*elementX
	Tags  []string
}

var OrderedHolderXClass = reflect.TypeOf((*orderedHolderX)(nil)) // *orderedHolderX
type orderedHolderX struct {
	Array []*orderedElementX
}

func element(class reflect.Type, name string) *beans.BeanDefinition {
	def := beans.NewBeanDefinition(class)
	def.Properties.Add("name", name)
	return def
}

func TestManagedList(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("a", element(ElementXClass, "a")))
	require.NoError(t, f.RegisterBeanDefinition("b", element(ElementXClass, "b")))

	def := beans.NewBeanDefinition(HolderXClass)
	def.Properties.Add("array", &beans.ManagedList{
		Elements:    []interface{}{beans.Ref("b"), beans.Ref("a"), element(ElementXClass, "inner")},
		ElementType: ElementXClass,
	})
	def.Properties.Add("tags", "x;y;z")
	require.NoError(t, f.RegisterBeanDefinition("holder", def))

	obj, err := f.GetBean("holder")
	require.NoError(t, err)
	holder := obj.(*holderX)

	require.Equal(t, 3, len(holder.Array))
	require.Equal(t, "b", holder.Array[0].Name)
	require.Equal(t, "a", holder.Array[1].Name)
	require.Equal(t, "inner", holder.Array[2].Name)
	require.Equal(t, []string{"x", "y", "z"}, holder.Tags)

	a, err := f.GetBean("a")
	require.NoError(t, err)
	require.Same(t, a, holder.Array[1])
}

func TestManagedMap(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("a", element(ElementXClass, "a")))

	def := beans.NewBeanDefinition(HolderXClass)
	def.Properties.Add("map", &beans.ManagedMap{
		Entries: map[string]interface{}{
			"first":  beans.Ref("a"),
			"second": element(ElementXClass, "b"),
		},
		ValueType: ElementXClass,
	})
	require.NoError(t, f.RegisterBeanDefinition("holder", def))

	obj, err := f.GetBean("holder")
	require.NoError(t, err)
	holder := obj.(*holderX)

	require.Equal(t, 2, len(holder.Map))
	require.Equal(t, "a", holder.Map["first"].Name)
	require.Equal(t, "b", holder.Map["second"].Name)
}

func TestManagedListMerge(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("a", element(ElementXClass, "a")))
	require.NoError(t, f.RegisterBeanDefinition("b", element(ElementXClass, "b")))

	parent := beans.NewBeanDefinition(HolderXClass)
	parent.Abstract = true
	parent.Properties.Add("array", &beans.ManagedList{
		Elements:    []interface{}{beans.Ref("a")},
		ElementType: ElementXClass,
	})
	require.NoError(t, f.RegisterBeanDefinition("parent", parent))

	child := beans.NewChildBeanDefinition("parent")
	child.Properties.Add("array", &beans.ManagedList{
		Elements:    []interface{}{beans.Ref("b")},
		ElementType: ElementXClass,
		MergeParent: true,
	})
	require.NoError(t, f.RegisterBeanDefinition("child", child))

	replaced := beans.NewChildBeanDefinition("parent")
	replaced.Properties.Add("array", &beans.ManagedList{
		Elements:    []interface{}{beans.Ref("b")},
		ElementType: ElementXClass,
	})
	require.NoError(t, f.RegisterBeanDefinition("replaced", replaced))

	obj, err := f.GetBean("child")
	require.NoError(t, err)
	holder := obj.(*holderX)
	require.Equal(t, 2, len(holder.Array))
	require.Equal(t, "a", holder.Array[0].Name)
	require.Equal(t, "b", holder.Array[1].Name)

	obj, err = f.GetBean("replaced")
	require.NoError(t, err)
	require.Equal(t, 1, len(obj.(*holderX).Array))

	_, err = f.GetBean("parent")
	require.ErrorIs(t, err, beans.ErrBeanCreation)
}

func TestAutowireSliceByType(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("c", element(OrderedElementXClass, "c")))
	require.NoError(t, f.RegisterBeanDefinition("a", element(OrderedElementXClass, "a")))
	require.NoError(t, f.RegisterBeanDefinition("b", element(OrderedElementXClass, "b")))

	def := beans.NewBeanDefinition(OrderedHolderXClass)
	def.AutowireMode = beans.AutowireByType
	require.NoError(t, f.RegisterBeanDefinition("holder", def))

	obj, err := f.GetBean("holder")
	require.NoError(t, err)
	holder := obj.(*orderedHolderX)

	require.Equal(t, 3, len(holder.Array))
	require.Equal(t, "a", holder.Array[0].Name)
	require.Equal(t, "b", holder.Array[1].Name)
	require.Equal(t, "c", holder.Array[2].Name)

	require.ElementsMatch(t, []string{"a", "b", "c"}, f.GetDependenciesForBean("holder"))
}

type arrayHolder struct {
	Elements [4]*orderedElementX `inject`
}

type shortArrayHolder struct {
	Elements [2]*orderedElementX `inject`
}

func TestInjectArrayByType(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("c", element(OrderedElementXClass, "c")))
	require.NoError(t, f.RegisterBeanDefinition("a", element(OrderedElementXClass, "a")))
	require.NoError(t, f.RegisterBeanDefinition("b", element(OrderedElementXClass, "b")))
	processor := beans.NewTagInjectionPostProcessor(f)

	holder := &arrayHolder{}
	require.NoError(t, processor.ProcessInjection(holder))
	require.Equal(t, "a", holder.Elements[0].Name)
	require.Equal(t, "b", holder.Elements[1].Name)
	require.Equal(t, "c", holder.Elements[2].Name)
	require.Nil(t, holder.Elements[3])

	err := processor.ProcessInjection(&shortArrayHolder{})
	require.ErrorIs(t, err, beans.ErrNoMatchingBean)
	require.Contains(t, err.Error(), "array of length 2 can not hold 3 matching beans")
}

func TestAutowireMapByType(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("a", element(ElementXClass, "a")))
	require.NoError(t, f.RegisterBeanDefinition("b", element(ElementXClass, "b")))

	def := beans.NewBeanDefinition(HolderXClass)
	def.AutowireMode = beans.AutowireByType
	require.NoError(t, f.RegisterBeanDefinition("holder", def))

	obj, err := f.GetBean("holder")
	require.NoError(t, err)
	holder := obj.(*holderX)

	require.Equal(t, 2, len(holder.Map))
	require.Equal(t, "a", holder.Map["a"].Name)
	require.Equal(t, "b", holder.Map["b"].Name)
	require.Equal(t, 2, len(holder.Array))
	require.Nil(t, holder.Tags)
}

func TestOrderedStream(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("b", element(OrderedElementXClass, "b")))
	require.NoError(t, f.RegisterBeanDefinition("a", element(OrderedElementXClass, "a")))

	var names []string
	err := f.GetBeanProvider(OrderedElementXClass).OrderedStream(func(obj interface{}) bool {
		names = append(names, obj.(*orderedElementX).Name)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)

	names = names[:0]
	err = f.GetBeanProvider(OrderedElementXClass).Stream(func(obj interface{}) bool {
		names = append(names, obj.(*orderedElementX).Name)
		return false
	})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, names)
}
