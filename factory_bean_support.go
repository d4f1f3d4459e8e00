/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"reflect"
)

/**
Returns the object produced by the factory bean. Objects of singleton factory beans are cached
and post-processed once, unless requested while the factory bean itself is in creation.
*/
func (t *beanFactory) getObjectFromFactoryBean(c *creation, fb FactoryBean, beanName string, shouldPostProcess bool) (interface{}, error) {
	if !fb.Singleton() || !t.ContainsSingleton(beanName) {
		obj, err := t.doGetObjectFromFactoryBean(fb, beanName)
		if err != nil {
			return nil, err
		}
		if shouldPostProcess && obj != nil {
			obj, err = t.applyBeanPostProcessorsAfterInitialization(obj, beanName)
			if err != nil {
				return nil, wrapCreation(beanName, "", "post-processing of FactoryBean's object failed", err)
			}
		}
		return obj, nil
	}

	if cached, ok := t.factoryBeanObjectCache.Load(beanName); ok {
		return unwrapNull(cached), nil
	}

	obj, err := t.doGetObjectFromFactoryBean(fb, beanName)
	if err != nil {
		return nil, err
	}

	// Object() could have stored it already through a circular reference
	if cached, ok := t.factoryBeanObjectCache.Load(beanName); ok {
		return unwrapNull(cached), nil
	}

	if shouldPostProcess && obj != nil {
		if t.isSingletonCurrentlyInCreation(beanName) {
			return obj, nil
		}
		obj, err = t.applyBeanPostProcessorsAfterInitialization(obj, beanName)
		if err != nil {
			return nil, wrapCreation(beanName, "", "post-processing of FactoryBean's singleton object failed", err)
		}
	}

	if t.ContainsSingleton(beanName) {
		stored := obj
		if stored == nil {
			stored = nullBean
		}
		actual, _ := t.factoryBeanObjectCache.LoadOrStore(beanName, stored)
		return unwrapNull(actual), nil
	}
	return obj, nil
}

func (t *beanFactory) doGetObjectFromFactoryBean(fb FactoryBean, beanName string) (obj interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newBeanError(ErrBeanCreation, beanName, "FactoryBean panicked on object creation: %v", r)
		}
	}()

	obj, err = fb.Object()
	if err != nil {
		if errors.Is(err, ErrFactoryBeanNotInitialized) {
			return nil, currentlyInCreation(beanName).withCause(err)
		}
		return nil, wrapCreation(beanName, "", "FactoryBean threw exception on object creation", err)
	}

	if obj == nil && t.isSingletonCurrentlyInCreation(beanName) {
		return nil, newBeanError(ErrCurrentlyInCreation, beanName, "FactoryBean which is currently in creation returned nil from Object()")
	}
	return obj, nil
}

/**
Returns the object type of the factory bean, nil if the factory bean can not tell it yet
*/
func objectTypeOf(fb FactoryBean) (typ reflect.Type) {
	defer func() {
		if r := recover(); r != nil {
			logger().Debug("FactoryBean panicked on ObjectType()", zap.Any("panic", r))
			typ = nil
		}
	}()
	return fb.ObjectType()
}

/**
Determines the object type of the factory bean definition, creating the factory bean if allowed
*/
func (t *beanFactory) getTypeForFactoryBean(c *creation, beanName string, mbd *RootBeanDefinition, allowInit bool) reflect.Type {
	if !allowInit {
		return nil
	}

	if mbd.IsSingleton() {
		if fb := t.getSingletonFactoryBeanForTypeCheck(c, beanName, mbd); fb != nil {
			if typ := objectTypeOf(fb); typ != nil {
				return typ
			}
		}
	}

	obj, err := t.doGetBean(c, FactoryBeanPrefix+beanName, nil, nil, false)
	if err != nil {
		if hasKind(err, ErrCurrentlyInCreation) {
			logger().Debug("bean currently in creation on FactoryBean type check", zap.String("bean", beanName), zap.Error(err))
		} else {
			logger().Warn("bean creation exception on FactoryBean type check", zap.String("bean", beanName), zap.Error(err))
		}
		c.onSuppressed(err)
		return nil
	}
	if fb, ok := obj.(FactoryBean); ok {
		return objectTypeOf(fb)
	}
	return nil
}

/**
Creates the raw singleton factory bean to ask for its object type, the instance is reused by the creation later.
Returns nil if the factory bean is in creation or could not be created.
*/
func (t *beanFactory) getSingletonFactoryBeanForTypeCheck(c *creation, beanName string, mbd *RootBeanDefinition) FactoryBean {
	if cached, ok := t.factoryBeanInstanceCache.Load(beanName); ok {
		return cached.(FactoryBean)
	}

	instance, err := t.getSingleton(c, beanName, false)
	if err != nil {
		return nil
	}
	if fb, ok := instance.(FactoryBean); ok {
		return fb
	}

	if t.isSingletonCurrentlyInCreation(beanName) || (mbd.FactoryBeanName != "" && t.isSingletonCurrentlyInCreation(mbd.FactoryBeanName)) {
		return nil
	}
	if !t.tryBeginCreation(c, beanName) {
		return nil
	}

	outermost := c.beginSuppress()
	defer c.endSuppress(outermost)

	fromInstantiation := false
	err = func() error {
		defer t.endCreation(beanName)
		var err error
		instance, err = t.resolveBeforeInstantiation(c, beanName, mbd)
		if err != nil || instance != nil {
			return err
		}
		instance, err = t.createBeanInstance(c, beanName, mbd, nil)
		fromInstantiation = err == nil
		return err
	}()
	if err != nil {
		logger().Debug("bean creation exception on singleton FactoryBean type check", zap.String("bean", beanName), zap.Error(err))
		c.onSuppressed(err)
		return nil
	}

	fb, ok := instance.(FactoryBean)
	if !ok {
		return nil
	}
	if fromInstantiation {
		t.factoryBeanInstanceCache.Store(beanName, fb)
	}
	return fb
}

/**
Returns true if the definition produces a factory bean, judging from the predicted type
*/
func (t *beanFactory) isFactoryBeanDef(c *creation, beanName string, mbd *RootBeanDefinition) bool {
	if cached, ok := mbd.cachedFactoryBean(); ok {
		return cached
	}
	result := isFactoryBeanType(t.predictBeanType(c, beanName, mbd))
	mbd.setFactoryBean(result)
	return result
}

func (t *beanFactory) IsFactoryBean(name string) (bool, error) {
	beanName := t.canonicalName(transformedBeanName(name))

	instance, err := t.getSingleton(nil, beanName, false)
	if err != nil {
		return false, err
	}
	if instance != nil {
		_, ok := instance.(FactoryBean)
		return ok, nil
	}

	if !t.ContainsBeanDefinition(beanName) {
		if parent := t.parentFactory(); parent != nil {
			if cbf, ok := parent.(ConfigurableBeanFactory); ok {
				return cbf.IsFactoryBean(name)
			}
		}
		return false, noSuchBean(beanName)
	}

	mbd, err := t.getMergedLocalBeanDefinition(beanName)
	if err != nil {
		return false, err
	}
	c, leave := t.enterChain("")
	defer leave()
	return t.isFactoryBeanDef(c, beanName, mbd), nil
}
