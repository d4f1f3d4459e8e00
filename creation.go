/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"bytes"
	"reflect"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

var creationSeq atomic.Uint64

var goroutinePrefix = []byte("goroutine ")

/**
Id of the calling goroutine parsed from the header of its stack trace, 'goroutine 42 [running]:'
*/
func goroutineId() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(header, ' '); i >= 0 {
		header = header[:i]
	}
	id, _ := strconv.ParseUint(string(header), 10, 64)
	return id
}

/**
Creation chain is the state of one top level bean request and every nested request it makes.
Re-entrant requests of the same chain are circular references, requests of other chains
wait for the owner to finish the singleton.
*/

type creation struct {
	id uint64

	sync.Mutex

	/**
	Prototype beans currently in creation by this chain with the reentry count
	*/
	prototypesInCreation map[string]int

	/**
	Stack of beans created by suppliers, used to register implicit dependencies
	*/
	currentlyCreated []string

	/**
	Errors suppressed during speculative operations of the chain
	*/
	suppressed *suppressedErrors
}

func newCreation() *creation {
	return &creation{
		id:                   creationSeq.Add(1),
		prototypesInCreation: make(map[string]int),
	}
}

func (t *creation) beforePrototypeCreation(beanName string) {
	t.Lock()
	t.prototypesInCreation[beanName]++
	t.Unlock()
}

func (t *creation) afterPrototypeCreation(beanName string) {
	t.Lock()
	if n := t.prototypesInCreation[beanName]; n > 1 {
		t.prototypesInCreation[beanName] = n - 1
	} else {
		delete(t.prototypesInCreation, beanName)
	}
	t.Unlock()
}

func (t *creation) isPrototypeCurrentlyInCreation(beanName string) bool {
	t.Lock()
	defer t.Unlock()
	return t.prototypesInCreation[beanName] > 0
}

func (t *creation) pushCreated(beanName string) {
	t.Lock()
	t.currentlyCreated = append(t.currentlyCreated, beanName)
	t.Unlock()
}

func (t *creation) popCreated() {
	t.Lock()
	if n := len(t.currentlyCreated); n > 0 {
		t.currentlyCreated = t.currentlyCreated[:n-1]
	}
	t.Unlock()
}

func (t *creation) currentlyCreatedBean() (string, bool) {
	t.Lock()
	defer t.Unlock()
	if n := len(t.currentlyCreated); n > 0 {
		return t.currentlyCreated[n-1], true
	}
	return "", false
}

/**
Starts collecting suppressed errors, returns true if this call is the outermost one
*/
func (t *creation) beginSuppress() bool {
	t.Lock()
	defer t.Unlock()
	if t.suppressed == nil {
		t.suppressed = &suppressedErrors{}
		return true
	}
	return false
}

func (t *creation) endSuppress(outermost bool) {
	if outermost {
		t.Lock()
		t.suppressed = nil
		t.Unlock()
	}
}

func (t *creation) onSuppressed(err error) {
	t.Lock()
	defer t.Unlock()
	if t.suppressed != nil {
		t.suppressed.add(err)
	}
}

func (t *creation) attachSuppressed(err error) error {
	t.Lock()
	defer t.Unlock()
	if t.suppressed != nil {
		return t.suppressed.attach(err)
	}
	return err
}

/**
Bean factory bound to the creation chain, handed to suppliers.
Beans obtained through it become dependencies of the bean the supplier creates.
*/

type chainFactory struct {
	*beanFactory
	chain *creation
}

func (t *chainFactory) GetBean(name string) (interface{}, error) {
	return t.getAndRegister(name, nil, nil)
}

func (t *chainFactory) GetBeanWithArgs(name string, args ...interface{}) (interface{}, error) {
	return t.getAndRegister(name, nil, args)
}

func (t *chainFactory) GetTypedBean(name string, requiredType reflect.Type) (interface{}, error) {
	return t.getAndRegister(name, requiredType, nil)
}

func (t *chainFactory) GetBeanByType(requiredType reflect.Type, args ...interface{}) (interface{}, error) {
	bean, name, err := t.resolveBeanByType(t.chain, requiredType, args, false)
	if err != nil {
		return nil, err
	}
	if bean == nil {
		return nil, noMatchingBean(requiredType, "")
	}
	t.registerImplicitDependency(name)
	return bean, nil
}

func (t *chainFactory) getAndRegister(name string, requiredType reflect.Type, args []interface{}) (interface{}, error) {
	bean, err := t.doGetBean(t.chain, name, requiredType, args, false)
	if err != nil {
		return nil, err
	}
	t.registerImplicitDependency(name)
	return bean, nil
}

func (t *chainFactory) registerImplicitDependency(name string) {
	if current, ok := t.chain.currentlyCreatedBean(); ok && name != "" {
		t.RegisterDependentBean(transformedBeanName(name), current)
	}
}
