/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans_test

import (
	"fmt"
	"github.com/codeallergy/beans"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"reflect"
	"testing"
)

var EngineClass = reflect.TypeOf((*engine)(nil)) // *engine
type engine struct {
	Power int
}

var CarClass = reflect.TypeOf((*car)(nil)) // *car
type car struct {
	Engine *engine
	Model  string
	Year   int
}

var GarageClass = reflect.TypeOf((*garage)(nil)) // *garage
type garage struct {
	Brand string
}

func (t *garage) Build(model string) *car {
	return &car{Model: t.Brand + " " + model}
}

func registry(f beans.ConfigurableListableBeanFactory) *beans.TypeRegistry {
	return f.ClassLoader().(*beans.TypeRegistry)
}

func TestIndexedConstructorArguments(t *testing.T) {

	f := beans.New()
	require.NoError(t, registry(f).RegisterConstructor(CarClass, func(model string, year int) *car {
		return &car{Model: model, Year: year}
	}, "model", "year"))

	def := beans.NewBeanDefinition(CarClass)
	def.ConstructorArgs.AddIndexed(0, "sedan")
	def.ConstructorArgs.AddIndexed(1, "2020")
	require.NoError(t, f.RegisterBeanDefinition("car", def))

	obj, err := f.GetBean("car")
	require.NoError(t, err)
	c := obj.(*car)
	require.Equal(t, "sedan", c.Model)
	require.Equal(t, 2020, c.Year)
}

func TestNamedConstructorArguments(t *testing.T) {

	f := beans.New()
	require.NoError(t, registry(f).RegisterConstructor(CarClass, func(model string, year int) *car {
		return &car{Model: model, Year: year}
	}, "model", "year"))

	def := beans.NewBeanDefinition(CarClass)
	def.Scope = beans.ScopePrototype
	def.ConstructorArgs.AddGenericHolder(&beans.ValueHolder{Name: "year", Value: 2021})
	def.ConstructorArgs.AddGeneric("coupe")
	require.NoError(t, f.RegisterBeanDefinition("car", def))

	for i := 0; i < 2; i++ {
		obj, err := f.GetBean("car")
		require.NoError(t, err)
		c := obj.(*car)
		require.Equal(t, "coupe", c.Model)
		require.Equal(t, 2021, c.Year)
	}
}

func TestConstructorAutowiring(t *testing.T) {

	f := beans.New()
	require.NoError(t, registry(f).RegisterConstructor(CarClass, func(e *engine) *car {
		return &car{Engine: e, Model: "default"}
	}))

	motor := beans.NewBeanDefinition(EngineClass)
	motor.Properties.Add("power", 300)
	require.NoError(t, f.RegisterBeanDefinition("engine", motor))
	require.NoError(t, f.RegisterBeanDefinition("car", beans.NewBeanDefinition(CarClass)))

	obj, err := f.GetBean("car")
	require.NoError(t, err)
	c := obj.(*car)
	require.NotNil(t, c.Engine)
	require.Equal(t, 300, c.Engine.Power)

	e, err := f.GetBean("engine")
	require.NoError(t, err)
	require.Same(t, e, c.Engine)
	require.Equal(t, []string{"car"}, f.GetDependentBeans("engine"))
}

func TestUnsatisfiedConstructor(t *testing.T) {

	f := beans.New()
	require.NoError(t, registry(f).RegisterConstructor(CarClass, func(e *engine) *car {
		return &car{Engine: e}
	}))
	require.NoError(t, f.RegisterBeanDefinition("car", beans.NewBeanDefinition(CarClass)))

	_, err := f.GetBean("car")
	require.ErrorIs(t, err, beans.ErrUnsatisfiedDependency)
	require.ErrorIs(t, err, beans.ErrNoMatchingBean)
	require.False(t, f.ContainsSingleton("car"))
}

type plainCounter int

func TestNoUsableConstructor(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("counter", beans.NewBeanDefinition(reflect.TypeOf(plainCounter(0)))))

	_, err := f.GetBean("counter")
	require.ErrorIs(t, err, beans.ErrNoUsableConstructor)
	require.ErrorIs(t, err, beans.ErrBeanCreation)
}

func TestExplicitArguments(t *testing.T) {

	f := beans.New()
	require.NoError(t, registry(f).RegisterConstructor(CarClass, func(model string, year int) *car {
		return &car{Model: model, Year: year}
	}, "model", "year"))

	def := beans.NewBeanDefinition(CarClass)
	def.Scope = beans.ScopePrototype
	require.NoError(t, f.RegisterBeanDefinition("car", def))

	obj, err := f.GetBeanWithArgs("car", "roadster", 1999)
	require.NoError(t, err)
	require.Equal(t, "roadster", obj.(*car).Model)
	require.Equal(t, 1999, obj.(*car).Year)

	obj, err = f.GetBeanWithArgs("car", "wagon", "2005")
	require.NoError(t, err)
	require.Equal(t, "wagon", obj.(*car).Model)
	require.Equal(t, 2005, obj.(*car).Year)

	_, err = f.GetBeanWithArgs("car", "one", 1, "extra")
	require.Error(t, err)
}

func TestStaticFactoryFunction(t *testing.T) {

	f := beans.New()
	require.NoError(t, registry(f).RegisterFactoryFunction(CarClass, "NewSportsCar", func(e *engine) *car {
		return &car{Engine: e, Model: "sports"}
	}))
	require.NoError(t, registry(f).RegisterFactoryFunction(CarClass, "NewBrokenCar", func() (*car, error) {
		return nil, errors.New("no parts")
	}))
	require.NoError(t, f.RegisterBeanDefinition("engine", beans.NewBeanDefinition(EngineClass)))

	sports := beans.NewBeanDefinition(CarClass)
	sports.FactoryMethodName = "NewSportsCar"
	sports.AutowireMode = beans.AutowireConstructor
	require.NoError(t, f.RegisterBeanDefinition("sports", sports))

	broken := beans.NewBeanDefinition(CarClass)
	broken.FactoryMethodName = "NewBrokenCar"
	require.NoError(t, f.RegisterBeanDefinition("broken", broken))

	unknown := beans.NewBeanDefinition(CarClass)
	unknown.FactoryMethodName = "NewFlyingCar"
	require.NoError(t, f.RegisterBeanDefinition("unknown", unknown))

	obj, err := f.GetBean("sports")
	require.NoError(t, err)
	require.Equal(t, "sports", obj.(*car).Model)
	require.NotNil(t, obj.(*car).Engine)

	_, err = f.GetBean("broken")
	require.ErrorIs(t, err, beans.ErrBeanCreation)
	require.Contains(t, err.Error(), "no parts")

	_, err = f.GetBean("unknown")
	require.ErrorIs(t, err, beans.ErrNoUsableConstructor)
}

func TestInstanceFactoryMethod(t *testing.T) {

	f := beans.New()
	g := beans.NewBeanDefinition(GarageClass)
	g.Properties.Add("brand", "volvo")
	require.NoError(t, f.RegisterBeanDefinition("garage", g))

	def := &beans.BeanDefinition{
		FactoryBeanName:   "garage",
		FactoryMethodName: "Build",
	}
	def.ConstructorArgs.AddIndexed(0, "truck")
	require.NoError(t, f.RegisterBeanDefinition("truck", def))

	obj, err := f.GetBean("truck")
	require.NoError(t, err)
	require.Equal(t, "volvo truck", obj.(*car).Model)
	require.Equal(t, []string{"truck"}, f.GetDependentBeans("garage"))

	self := &beans.BeanDefinition{
		FactoryBeanName:   "self",
		FactoryMethodName: "Build",
	}
	require.NoError(t, f.RegisterBeanDefinition("self", self))
	_, err = f.GetBean("self")
	require.ErrorIs(t, err, beans.ErrBeanCreation)
}

func TestSupplier(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("engine", beans.NewBeanDefinition(EngineClass)))

	def := &beans.BeanDefinition{
		Supplier: func(factory beans.BeanFactory) (interface{}, error) {
			e, err := factory.GetBean("engine")
			if err != nil {
				return nil, err
			}
			return &car{Engine: e.(*engine), Model: "supplied"}, nil
		},
	}
	require.NoError(t, f.RegisterBeanDefinition("car", def))

	failing := &beans.BeanDefinition{
		Supplier: func(factory beans.BeanFactory) (interface{}, error) {
			return nil, errors.New("out of stock")
		},
	}
	require.NoError(t, f.RegisterBeanDefinition("failing", failing))

	obj, err := f.GetBean("car")
	require.NoError(t, err)
	require.Equal(t, "supplied", obj.(*car).Model)

	_, err = f.GetBean("failing")
	require.ErrorIs(t, err, beans.ErrBeanCreation)
	require.Contains(t, err.Error(), "out of stock")
}

var LabelClass = reflect.TypeOf((*label)(nil)) // *label
type label struct {
	Text string
	Via  string
}

type version int

func (v version) String() string {
	return fmt.Sprintf("v%d", int(v))
}

func TestConstructorResolutionModes(t *testing.T) {

	f := beans.New()
	require.NoError(t, registry(f).RegisterConstructor(LabelClass, func(v interface{}) *label {
		return &label{Text: fmt.Sprint(v), Via: "any"}
	}))
	require.NoError(t, registry(f).RegisterConstructor(LabelClass, func(s fmt.Stringer) *label {
		return &label{Text: s.String(), Via: "stringer"}
	}))

	lenient := beans.NewBeanDefinition(LabelClass)
	lenient.ConstructorArgs.AddIndexed(0, version(2))
	require.NoError(t, f.RegisterBeanDefinition("lenient", lenient))

	strict := beans.NewBeanDefinition(LabelClass)
	strict.StrictConstructorResolution = true
	strict.ConstructorArgs.AddIndexed(0, version(3))
	require.NoError(t, f.RegisterBeanDefinition("strict", strict))

	obj, err := f.GetBean("lenient")
	require.NoError(t, err)
	require.Equal(t, "stringer", obj.(*label).Via)
	require.Equal(t, "v2", obj.(*label).Text)

	_, err = f.GetBean("strict")
	require.ErrorIs(t, err, beans.ErrAmbiguousConstructor)
	require.ErrorIs(t, err, beans.ErrBeanCreation)
	require.Contains(t, err.Error(), "ambiguous constructor matches found")
	require.False(t, f.ContainsSingleton("strict"))
}

var DealerClass = reflect.TypeOf((*dealer)(nil)) // *dealer
type dealer struct {
	NewCar func(model string, year int) (*car, error)
	Greet  func(name string) string
}

type greeter struct {
}

func (t *greeter) Reimplement(obj interface{}, method string, args []reflect.Value) ([]reflect.Value, error) {
	return []reflect.Value{reflect.ValueOf("hello " + args[0].String())}, nil
}

func TestMethodOverrides(t *testing.T) {

	f := beans.New()
	require.NoError(t, registry(f).RegisterConstructor(CarClass, func(model string, year int) *car {
		return &car{Model: model, Year: year}
	}, "model", "year"))

	proto := beans.NewBeanDefinition(CarClass)
	proto.Scope = beans.ScopePrototype
	require.NoError(t, f.RegisterBeanDefinition("car", proto))
	require.NoError(t, f.RegisterSingleton("greeter", &greeter{}))

	def := beans.NewBeanDefinition(DealerClass)
	def.MethodOverrides.Add(&beans.LookupOverride{Method: "NewCar", BeanName: "car"})
	def.MethodOverrides.Add(&beans.ReplaceOverride{Method: "Greet", ReplacerBeanName: "greeter"})
	require.NoError(t, f.RegisterBeanDefinition("dealer", def))

	obj, err := f.GetBean("dealer")
	require.NoError(t, err)
	d := obj.(*dealer)

	c, err := d.NewCar("hatchback", 2010)
	require.NoError(t, err)
	require.Equal(t, "hatchback", c.Model)
	require.Equal(t, 2010, c.Year)

	other, err := d.NewCar("hatchback", 2010)
	require.NoError(t, err)
	require.NotSame(t, c, other)

	require.Equal(t, "hello bob", d.Greet("bob"))

	invalid := beans.NewBeanDefinition(DealerClass)
	invalid.MethodOverrides.Add(&beans.LookupOverride{Method: "Missing"})
	err = f.RegisterBeanDefinition("invalid", invalid)
	require.ErrorIs(t, err, beans.ErrValidationFailed)
}
