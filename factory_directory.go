/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"sort"
	"sync"
)

/**
Directory of bean factories by serialization id. Handles referring to a factory by id,
like providers restored from a wire format, find the live factory here.
*/

type FactoryDirectory struct {
	sync.RWMutex
	factories map[string]ConfigurableListableBeanFactory
}

func NewFactoryDirectory() *FactoryDirectory {
	return &FactoryDirectory{
		factories: make(map[string]ConfigurableListableBeanFactory),
	}
}

func (t *FactoryDirectory) Get(id string) (ConfigurableListableBeanFactory, bool) {
	t.RLock()
	defer t.RUnlock()
	f, ok := t.factories[id]
	return f, ok
}

func (t *FactoryDirectory) Ids() []string {
	t.RLock()
	defer t.RUnlock()
	list := make([]string, 0, len(t.factories))
	for id := range t.factories {
		list = append(list, id)
	}
	sort.Strings(list)
	return list
}

func (t *FactoryDirectory) register(id string, factory ConfigurableListableBeanFactory) error {
	t.Lock()
	defer t.Unlock()
	if prev, ok := t.factories[id]; ok && prev != factory {
		return errors.Errorf("serialization id '%s' is already taken by another bean factory", id)
	}
	t.factories[id] = factory
	return nil
}

func (t *FactoryDirectory) unregister(id string, factory ConfigurableListableBeanFactory) {
	t.Lock()
	defer t.Unlock()
	if prev, ok := t.factories[id]; ok && prev == factory {
		delete(t.factories, id)
	}
}

/**
Publishes the factory in the directory under the id, the empty id removes it from the directory
*/
func (t *beanFactory) SetSerializationId(directory *FactoryDirectory, id string) error {
	t.configMu.Lock()
	defer t.configMu.Unlock()
	if t.directory != nil && t.serializationId != "" {
		t.directory.unregister(t.serializationId, t)
	}
	t.directory, t.serializationId = nil, ""
	if directory == nil || id == "" {
		return nil
	}
	if err := directory.register(id, t); err != nil {
		return err
	}
	t.directory, t.serializationId = directory, id
	logger().Debug("bean factory published", zap.String("serializationId", id))
	return nil
}

func (t *beanFactory) SerializationId() string {
	t.configMu.RLock()
	defer t.configMu.RUnlock()
	return t.serializationId
}
