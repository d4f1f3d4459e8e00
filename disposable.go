/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"io"
	"reflect"
)

/**
Adapter running every destruction callback of the bean: destruction aware post-processors,
DisposableBean.Destroy and the destroy method.
*/

type disposableBeanAdapter struct {
	bean                 interface{}
	beanName             string
	invokeDisposableBean bool
	destroyMethod        string
	processors           []DestructionAwareBeanPostProcessor
}

func newDisposableBeanAdapter(bean interface{}, beanName string, rbd *RootBeanDefinition, processors []DestructionAwareBeanPostProcessor) (*disposableBeanAdapter, error) {
	t := &disposableBeanAdapter{
		bean:       bean,
		beanName:   beanName,
		processors: filterDestructionProcessors(bean, processors),
	}
	_, t.invokeDisposableBean = bean.(DisposableBean)

	if rbd != nil {
		name := inferDestroyMethod(bean, rbd)
		if name != "" && !(t.invokeDisposableBean && name == "Destroy") {
			if _, ok := destroyMethodOf(bean, name); ok {
				t.destroyMethod = name
			} else if !rbd.DestroyMethodOptional && name != InferMethod {
				return nil, newBeanError(ErrNoSuchDestroyMethod, beanName, "could not find a destroy method named '%s' on bean with name '%s'", name, beanName)
			}
		}
	}
	return t, nil
}

/**
Adapter of an existing object, only interface callbacks and post-processors apply
*/
func newObjectDisposableAdapter(bean interface{}, processors []DestructionAwareBeanPostProcessor) *disposableBeanAdapter {
	t := &disposableBeanAdapter{
		bean:       bean,
		beanName:   reflect.TypeOf(bean).String(),
		processors: filterDestructionProcessors(bean, processors),
	}
	_, t.invokeDisposableBean = bean.(DisposableBean)
	return t
}

func filterDestructionProcessors(bean interface{}, processors []DestructionAwareBeanPostProcessor) []DestructionAwareBeanPostProcessor {
	var list []DestructionAwareBeanPostProcessor
	for _, p := range processors {
		if p.RequiresDestruction(bean) {
			list = append(list, p)
		}
	}
	return list
}

func (t *disposableBeanAdapter) destroy() (err error) {

	for _, p := range t.processors {
		if e := t.safeCall(func() error { return p.PostProcessBeforeDestruction(t.bean, t.beanName) }); e != nil {
			err = multierr.Append(err, e)
		}
	}

	if t.invokeDisposableBean {
		logger().Debug("invoking Destroy() on bean", zap.String("bean", t.beanName))
		if e := t.safeCall(t.bean.(DisposableBean).Destroy); e != nil {
			err = multierr.Append(err, errors.Wrapf(e, "invocation of Destroy() on bean '%s' failed", t.beanName))
		}
	}

	if t.destroyMethod != "" {
		if m, ok := destroyMethodOf(t.bean, t.destroyMethod); ok {
			logger().Debug("invoking destroy method on bean", zap.String("bean", t.beanName), zap.String("method", t.destroyMethod))
			if e := t.safeCall(func() error { return invokeLifecycleMethod(m) }); e != nil {
				err = multierr.Append(err, errors.Wrapf(e, "invocation of destroy method '%s' on bean '%s' failed", t.destroyMethod, t.beanName))
			}
		}
	}

	return err
}

func (t *disposableBeanAdapter) safeCall(cb func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("destruction of bean '%s' recovered with error %v", t.beanName, r)
		}
	}()
	return cb()
}

/**
Returns true if destruction of the bean needs any callback
*/
func hasDestroyMethod(bean interface{}, rbd *RootBeanDefinition) bool {
	if _, ok := bean.(DisposableBean); ok {
		return true
	}
	return inferDestroyMethod(bean, rbd) != ""
}

/**
Resolves the destroy method name of the definition, '(inferred)' and io.Closer beans infer Close or Shutdown
*/
func inferDestroyMethod(bean interface{}, rbd *RootBeanDefinition) string {
	rbd.typeMu.RLock()
	cached := rbd.resolvedDestroyMethodName
	rbd.typeMu.RUnlock()
	if cached != nil {
		return *cached
	}

	name := rbd.DestroyMethodName
	_, closer := bean.(io.Closer)
	if name == InferMethod || (name == "" && closer) {
		name = ""
		if _, isDisposable := bean.(DisposableBean); !isDisposable {
			for _, candidate := range []string{"Close", "Shutdown"} {
				if _, ok := destroyMethodOf(bean, candidate); ok {
					name = candidate
					break
				}
			}
		}
	}

	rbd.typeMu.Lock()
	rbd.resolvedDestroyMethodName = &name
	rbd.typeMu.Unlock()
	return name
}

/**
Finds the exported method without parameters
*/
func destroyMethodOf(bean interface{}, name string) (reflect.Value, bool) {
	return lifecycleMethodOf(bean, name)
}

func lifecycleMethodOf(bean interface{}, name string) (reflect.Value, bool) {
	if bean == nil || name == "" {
		return reflect.Value{}, false
	}
	m := reflect.ValueOf(bean).MethodByName(name)
	if !m.IsValid() || m.Type().NumIn() != 0 {
		return reflect.Value{}, false
	}
	return m, true
}

/**
Calls the method without parameters, the last result of type error is returned
*/
func invokeLifecycleMethod(m reflect.Value) error {
	out := m.Call(nil)
	if n := len(out); n > 0 && m.Type().Out(n-1) == errorClass && !out[n-1].IsNil() {
		return out[n-1].Interface().(error)
	}
	return nil
}
