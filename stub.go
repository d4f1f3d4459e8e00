/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"reflect"
)

/**
Null Bean Stub is stored in place of nil produced by a factory method, a supplier or a factory bean
*/

type nullBeanStub struct {
}

func (t *nullBeanStub) String() string {
	return "null"
}

var nullBean = &nullBeanStub{}

/**
Returns nil for the null bean stub
*/
func unwrapNull(obj interface{}) interface{} {
	if obj == nullBean {
		return nil
	}
	return obj
}

/**
Bean Post Processor Adapter is using to embed into post-processors that implement only a few hooks.
Every hook passes the bean through unchanged.
*/

type BeanPostProcessorAdapter struct {
}

func (t *BeanPostProcessorAdapter) PostProcessBeforeInitialization(bean interface{}, beanName string) (interface{}, error) {
	return bean, nil
}

func (t *BeanPostProcessorAdapter) PostProcessAfterInitialization(bean interface{}, beanName string) (interface{}, error) {
	return bean, nil
}

func (t *BeanPostProcessorAdapter) PostProcessBeforeInstantiation(class reflect.Type, beanName string) (interface{}, error) {
	return nil, nil
}

func (t *BeanPostProcessorAdapter) PostProcessAfterInstantiation(bean interface{}, beanName string) (bool, error) {
	return true, nil
}

func (t *BeanPostProcessorAdapter) PostProcessProperties(pvs *PropertyValues, bean interface{}, beanName string) (*PropertyValues, error) {
	return pvs, nil
}

func (t *BeanPostProcessorAdapter) PredictBeanType(class reflect.Type, beanName string) (reflect.Type, error) {
	return nil, nil
}

func (t *BeanPostProcessorAdapter) DetermineCandidateConstructors(class reflect.Type, beanName string) ([]*Executable, error) {
	return nil, nil
}

func (t *BeanPostProcessorAdapter) GetEarlyBeanReference(bean interface{}, beanName string) (interface{}, error) {
	return bean, nil
}
