/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"go.uber.org/zap"
	"reflect"
)

/**
Returns an instance of the bean, shared or independent, creating it on the chain if necessary
*/
func (t *beanFactory) doGetBean(c *creation, name string, requiredType reflect.Type, args []interface{}, typeCheckOnly bool) (interface{}, error) {
	beanName := t.canonicalName(transformedBeanName(name))

	if len(args) == 0 {
		shared, err := t.getSingleton(c, beanName, true)
		if err != nil {
			return nil, err
		}
		if shared != nil {
			if t.isSingletonCurrentlyInCreation(beanName) {
				logger().Debug("returning eagerly cached instance of singleton bean that is not fully initialized yet", zap.String("bean", beanName))
			}
			bean, err := t.getObjectForBeanInstance(c, shared, name, beanName, nil)
			if err != nil {
				return nil, err
			}
			return t.adaptBeanInstance(name, bean, requiredType)
		}
	}

	if c.isPrototypeCurrentlyInCreation(beanName) {
		return nil, currentlyInCreation(beanName)
	}

	if parent := t.parentFactory(); parent != nil && !t.ContainsBeanDefinition(beanName) {
		nameToLookup := originalBeanName(beanName, name)
		switch {
		case len(args) > 0:
			return parent.GetBeanWithArgs(nameToLookup, args...)
		case requiredType != nil:
			return parent.GetTypedBean(nameToLookup, requiredType)
		default:
			return parent.GetBean(nameToLookup)
		}
	}

	if !typeCheckOnly {
		t.markBeanAsCreated(beanName)
	}

	bean, err := t.createScopedBean(c, name, beanName, args)
	if err != nil {
		if !typeCheckOnly {
			t.alreadyCreated.Delete(beanName)
		}
		return nil, err
	}
	return t.adaptBeanInstance(name, bean, requiredType)
}

func (t *beanFactory) createScopedBean(c *creation, name, beanName string, args []interface{}) (interface{}, error) {
	mbd, err := t.getMergedLocalBeanDefinition(beanName)
	if err != nil {
		return nil, err
	}
	if mbd.Abstract {
		return nil, newBeanError(ErrBeanCreation, beanName, "bean definition is abstract").withResource(mbd.ResourceDescription)
	}

	for _, dep := range mbd.DependsOn {
		if t.isDependent(beanName, dep) {
			return nil, newBeanError(ErrBeanCreation, beanName, "circular depends-on relationship between '%s' and '%s'", beanName, dep).withResource(mbd.ResourceDescription)
		}
		t.RegisterDependentBean(dep, beanName)
		if _, err := t.doGetBean(c, dep, nil, nil, false); err != nil {
			return nil, wrapCreation(beanName, mbd.ResourceDescription, fmt.Sprintf("'%s' depends on missing bean '%s'", beanName, dep), err)
		}
	}

	switch {
	case mbd.IsSingleton():
		instance, err := t.getOrCreateSingleton(c, beanName, func() (interface{}, error) {
			obj, err := t.createBean(c, beanName, mbd, args)
			if err != nil {
				if hasKind(err, ErrImplicitlyAppearedSingleton) {
					return nil, err
				}
				// the instance could have been exposed early for circular references
				if e := t.destroyNamedSingleton(beanName); e != nil {
					logger().Warn("destruction of partially created singleton failed", zap.String("bean", beanName), zap.Error(e))
				}
				return nil, err
			}
			return obj, nil
		})
		if err != nil {
			return nil, err
		}
		return t.getObjectForBeanInstance(c, instance, name, beanName, mbd)

	case mbd.IsPrototype():
		c.beforePrototypeCreation(beanName)
		instance, err := t.createBean(c, beanName, mbd, args)
		c.afterPrototypeCreation(beanName)
		if err != nil {
			return nil, err
		}
		return t.getObjectForBeanInstance(c, instance, name, beanName, mbd)

	default:
		scope, ok := t.GetRegisteredScope(mbd.Scope)
		if !ok {
			return nil, newBeanError(ErrNoSuchScope, beanName, "no scope registered for scope name '%s'", mbd.Scope)
		}
		instance, err := scope.Get(beanName, func() (interface{}, error) {
			c.beforePrototypeCreation(beanName)
			defer c.afterPrototypeCreation(beanName)
			obj, err := t.createBean(c, beanName, mbd, args)
			return unwrapNull(obj), err
		})
		if err != nil {
			return nil, wrapCreation(beanName, mbd.ResourceDescription, fmt.Sprintf("scope '%s' failed to provide the bean", mbd.Scope), err)
		}
		return t.getObjectForBeanInstance(c, instance, name, beanName, mbd)
	}
}

/**
Converts the bean to the required type if necessary
*/
func (t *beanFactory) adaptBeanInstance(name string, bean interface{}, requiredType reflect.Type) (interface{}, error) {
	if requiredType == nil || bean == nil {
		return bean, nil
	}
	actualType := reflect.TypeOf(bean)
	if actualType.AssignableTo(requiredType) {
		return bean, nil
	}
	v, err := t.converter().ConvertIfNecessary(bean, requiredType)
	if err != nil || !v.IsValid() {
		logger().Debug("failed to convert bean to required type", zap.String("bean", name), zap.Stringer("type", requiredType), zap.Error(err))
		return nil, notOfRequiredType(name, requiredType, actualType)
	}
	return v.Interface(), nil
}

func (t *beanFactory) markBeanAsCreated(beanName string) {
	if _, ok := t.alreadyCreated.Load(beanName); ok {
		return
	}
	t.mergeMu.Lock()
	defer t.mergeMu.Unlock()
	if _, ok := t.alreadyCreated.Load(beanName); !ok {
		// re-merge once on the first creation to pick up late changes of the definition
		if v, ok := t.mergedDefinitions.Load(beanName); ok {
			v.(*RootBeanDefinition).markStale()
		}
		t.alreadyCreated.Store(beanName, true)
	}
}

func (t *beanFactory) hasBeanCreationStarted() bool {
	started := false
	t.alreadyCreated.Range(func(key, value interface{}) bool {
		started = true
		return false
	})
	return started
}

/**
Returns the object of the factory bean, or the bean itself for plain beans and '&' names
*/
func (t *beanFactory) getObjectForBeanInstance(c *creation, instance interface{}, name, beanName string, mbd *RootBeanDefinition) (interface{}, error) {
	if instance == nil || instance == nullBean {
		return nil, nil
	}

	if isFactoryDereference(name) {
		if _, ok := instance.(FactoryBean); !ok {
			e := newBeanError(ErrBeanIsNotFactory, beanName, "bean named '%s' is expected to be a factory bean but was actually of type '%T'", beanName, instance)
			e.RequiredType = FactoryBeanClass
			e.ActualType = reflect.TypeOf(instance)
			return nil, e
		}
		if mbd != nil {
			mbd.setFactoryBean(true)
		}
		return instance, nil
	}

	fb, ok := instance.(FactoryBean)
	if !ok {
		return instance, nil
	}

	if mbd != nil {
		mbd.setFactoryBean(true)
	} else if obj, ok := t.factoryBeanObjectCache.Load(beanName); ok {
		return unwrapNull(obj), nil
	}

	if mbd == nil && t.ContainsBeanDefinition(beanName) {
		mbd, _ = t.getMergedLocalBeanDefinition(beanName)
	}
	synthetic := mbd != nil && mbd.Synthetic
	return t.getObjectFromFactoryBean(c, fb, beanName, !synthetic)
}

func (t *beanFactory) IsSingleton(name string) (bool, error) {
	beanName := t.canonicalName(transformedBeanName(name))

	if instance, err := t.getSingleton(nil, beanName, false); err == nil && instance != nil {
		if fb, ok := instance.(FactoryBean); ok {
			return isFactoryDereference(name) || fb.Singleton(), nil
		}
		return !isFactoryDereference(name), nil
	}

	if parent := t.parentFactory(); parent != nil && !t.ContainsBeanDefinition(beanName) {
		return parent.IsSingleton(originalBeanName(beanName, name))
	}

	mbd, err := t.getMergedLocalBeanDefinition(beanName)
	if err != nil {
		return false, err
	}
	if !mbd.IsSingleton() {
		return false, nil
	}
	c, leave := t.enterChain("")
	defer leave()
	if t.isFactoryBeanDef(c, beanName, mbd) {
		if isFactoryDereference(name) {
			return true, nil
		}
		obj, err := t.doGetBean(c, FactoryBeanPrefix+beanName, nil, nil, false)
		if err != nil {
			return false, err
		}
		fb, ok := obj.(FactoryBean)
		return ok && fb.Singleton(), nil
	}
	return !isFactoryDereference(name), nil
}

func (t *beanFactory) IsPrototype(name string) (bool, error) {
	beanName := t.canonicalName(transformedBeanName(name))

	if parent := t.parentFactory(); parent != nil && !t.ContainsBeanDefinition(beanName) {
		return parent.IsPrototype(originalBeanName(beanName, name))
	}

	mbd, err := t.getMergedLocalBeanDefinition(beanName)
	if err != nil {
		return false, err
	}
	c, leave := t.enterChain("")
	defer leave()
	if mbd.IsPrototype() {
		return !isFactoryDereference(name) || t.isFactoryBeanDef(c, beanName, mbd), nil
	}
	if isFactoryDereference(name) || !t.isFactoryBeanDef(c, beanName, mbd) {
		return false, nil
	}
	obj, err := t.doGetBean(c, FactoryBeanPrefix+beanName, nil, nil, false)
	if err != nil {
		return false, err
	}
	fb, ok := obj.(FactoryBean)
	if !ok {
		return false, nil
	}
	if smart, ok := fb.(SmartFactoryBean); ok && smart.Prototype() {
		return true, nil
	}
	return !fb.Singleton(), nil
}

func (t *beanFactory) IsTypeMatch(name string, typeToMatch reflect.Type) (bool, error) {
	c, leave := t.enterChain("")
	defer leave()
	return t.isTypeMatch(c, name, typeToMatch, true)
}

/**
Checks the type of the bean without creating it if possible, factory beans could be created
to ask for the object type if allowed
*/
func (t *beanFactory) isTypeMatch(c *creation, name string, typeToMatch reflect.Type, allowFactoryBeanInit bool) (bool, error) {
	beanName := t.canonicalName(transformedBeanName(name))
	dereference := isFactoryDereference(name)

	instance, err := t.getSingleton(c, beanName, false)
	if err != nil {
		return false, err
	}
	if instance != nil && instance != nullBean {
		if fb, ok := instance.(FactoryBean); ok {
			if !dereference {
				typ := objectTypeOf(fb)
				return typ != nil && typeMatches(typ, typeToMatch), nil
			}
			return typeMatches(reflect.TypeOf(fb), typeToMatch), nil
		}
		if !dereference {
			return typeMatches(reflect.TypeOf(instance), typeToMatch), nil
		}
		return false, nil
	}
	if instance == nullBean || (t.ContainsSingleton(beanName) && !t.ContainsBeanDefinition(beanName)) {
		return false, nil
	}

	if parent := t.parentFactory(); parent != nil && !t.ContainsBeanDefinition(beanName) {
		return parent.IsTypeMatch(originalBeanName(beanName, name), typeToMatch)
	}

	mbd, err := t.getMergedLocalBeanDefinition(beanName)
	if err != nil {
		return false, err
	}

	predicted := t.predictBeanType(c, beanName, mbd)
	if predicted == nil {
		return false, nil
	}

	if isFactoryBeanType(predicted) {
		mbd.setFactoryBean(true)
		if !dereference {
			predicted = t.getTypeForFactoryBean(c, beanName, mbd, allowFactoryBeanInit)
			if predicted == nil {
				return false, nil
			}
		}
	} else if dereference {
		return false, nil
	}

	return typeMatches(predicted, typeToMatch), nil
}

func typeMatches(actual, required reflect.Type) bool {
	if required == nil {
		return true
	}
	return actual != nil && actual.AssignableTo(required)
}

func isFactoryBeanType(typ reflect.Type) bool {
	return typ != nil && typ.Implements(FactoryBeanClass)
}

func (t *beanFactory) GetType(name string) (reflect.Type, error) {
	c, leave := t.enterChain("")
	defer leave()
	return t.typeOf(c, name, true)
}

func (t *beanFactory) typeOf(c *creation, name string, allowFactoryBeanInit bool) (reflect.Type, error) {
	beanName := t.canonicalName(transformedBeanName(name))

	instance, err := t.getSingleton(c, beanName, false)
	if err != nil {
		return nil, err
	}
	if instance == nullBean {
		return nil, nil
	}
	if instance != nil {
		if fb, ok := instance.(FactoryBean); ok && !isFactoryDereference(name) {
			return objectTypeOf(fb), nil
		}
		return reflect.TypeOf(instance), nil
	}

	if parent := t.parentFactory(); parent != nil && !t.ContainsBeanDefinition(beanName) {
		return parent.GetType(originalBeanName(beanName, name))
	}

	mbd, err := t.getMergedLocalBeanDefinition(beanName)
	if err != nil {
		return nil, err
	}

	beanClass := t.predictBeanType(c, beanName, mbd)
	if isFactoryBeanType(beanClass) {
		if !isFactoryDereference(name) {
			return t.getTypeForFactoryBean(c, beanName, mbd, allowFactoryBeanInit), nil
		}
		return beanClass, nil
	}
	if isFactoryDereference(name) {
		return nil, nil
	}
	return beanClass, nil
}

/**
Predicts the type of the bean, asking smart post-processors first
*/
func (t *beanFactory) predictBeanType(c *creation, beanName string, mbd *RootBeanDefinition) reflect.Type {
	targetType := t.determineTargetType(c, beanName, mbd)
	if targetType != nil && !mbd.Synthetic {
		for _, p := range t.postProcessors().smartInstantiationAware {
			predicted, err := p.PredictBeanType(targetType, beanName)
			if err != nil {
				logger().Debug("post-processor failed to predict bean type", zap.String("bean", beanName), zap.Error(err))
				continue
			}
			if predicted != nil {
				return predicted
			}
		}
	}
	return targetType
}

func (t *beanFactory) determineTargetType(c *creation, beanName string, mbd *RootBeanDefinition) reflect.Type {
	if typ := mbd.TargetType(); typ != nil {
		return typ
	}
	var typ reflect.Type
	if mbd.FactoryMethodName != "" {
		typ = t.getTypeForFactoryMethod(c, beanName, mbd)
	} else {
		var err error
		typ, err = t.resolveBeanClass(mbd, beanName)
		if err != nil {
			logger().Debug("failed to resolve bean class", zap.String("bean", beanName), zap.Error(err))
			return nil
		}
	}
	if typ != nil {
		mbd.setResolvedTargetType(typ)
	}
	return typ
}

/**
Resolves the class of the definition, loading it by the class name through the class loader
*/
func (t *beanFactory) resolveBeanClass(mbd *RootBeanDefinition, beanName string) (reflect.Type, error) {
	if class := mbd.beanClass(); class != nil {
		return class, nil
	}
	if mbd.ClassName == "" {
		return nil, nil
	}
	className, err := t.ResolveEmbeddedValue(mbd.ClassName)
	if err != nil {
		return nil, newBeanError(ErrCannotLoadClass, beanName, "cannot resolve class name '%s'", mbd.ClassName).withCause(err)
	}
	loader := t.ClassLoader()
	if loader == nil {
		return nil, newBeanError(ErrCannotLoadClass, beanName, "no class loader to load class '%s'", className)
	}
	class, err := loader.LoadClass(className)
	if err != nil {
		return nil, newBeanError(ErrCannotLoadClass, beanName, "cannot load class '%s'", className).withCause(err).withResource(mbd.ResourceDescription)
	}
	mbd.setResolvedClass(class)
	return class, nil
}

/**
Determines the return type of the factory method, the common type of all candidates with the name
*/
func (t *beanFactory) getTypeForFactoryMethod(c *creation, beanName string, mbd *RootBeanDefinition) reflect.Type {
	if typ := mbd.factoryMethodReturn(); typ != nil {
		return typ
	}

	var candidates []*Executable
	if mbd.FactoryBeanName != "" {
		if mbd.FactoryBeanName == beanName {
			return nil
		}
		factoryClass, err := t.typeOf(c, mbd.FactoryBeanName, false)
		if err != nil || factoryClass == nil {
			return nil
		}
		candidates = methodsOf(factoryClass, mbd.FactoryMethodName)
	} else {
		factoryClass, err := t.resolveBeanClass(mbd, beanName)
		if err != nil || factoryClass == nil {
			return nil
		}
		candidates = t.factoryFunctions(factoryClass, mbd.FactoryMethodName)
	}

	minArgs := mbd.ConstructorArgs.Count()
	var common reflect.Type
	var unique *Executable
	count := 0
	for _, ex := range candidates {
		if ex.ParamCount() < minArgs && !ex.IsVariadic() {
			continue
		}
		count++
		unique = ex
		common = commonType(common, ex.ResultType(), count == 1)
		if common == nil {
			return nil
		}
	}

	switch {
	case count == 1:
		mbd.setFactoryMethodIntrospection(unique, unique.ResultType(), true)
	case count > 1:
		mbd.setFactoryMethodIntrospection(nil, common, false)
	}
	return common
}

func (t *beanFactory) factoryFunctions(class reflect.Type, name string) []*Executable {
	loader := t.ClassLoader()
	if loader == nil {
		return nil
	}
	var list []*Executable
	for _, ex := range loader.FactoryFunctions(class) {
		if ex.Name == name {
			list = append(list, ex)
		}
	}
	return list
}

/**
Returns the type both types are assignable to, nil if there is none of the two
*/
func commonType(a, b reflect.Type, first bool) reflect.Type {
	switch {
	case first:
		return b
	case a == nil || b == nil:
		return nil
	case a == b || b.AssignableTo(a):
		return a
	case a.AssignableTo(b):
		return b
	default:
		return nil
	}
}
