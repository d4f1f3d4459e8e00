/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"go.uber.org/zap"
	"sort"
	"strings"
	"sync"
)

/**
Holds aliases of bean names, an alias could point to another alias
*/

type aliasRegistry struct {
	sync.RWMutex
	aliasMap map[string]string

	/**
	Checks whether the alias could override the alias of other name
	*/
	allowOverriding func() bool
}

func newAliasRegistry(allowOverriding func() bool) *aliasRegistry {
	return &aliasRegistry{
		aliasMap:        make(map[string]string),
		allowOverriding: allowOverriding,
	}
}

func (t *aliasRegistry) RegisterAlias(name, alias string) error {
	if name == "" || alias == "" {
		return newBeanError(ErrValidationFailed, name, "name and alias must not be empty")
	}
	t.Lock()
	defer t.Unlock()
	if alias == name {
		delete(t.aliasMap, alias)
		return nil
	}
	if registered, ok := t.aliasMap[alias]; ok {
		if registered == name {
			return nil
		}
		if !t.allowOverriding() {
			return newBeanError(ErrAlreadyRegistered, name, "cannot define alias '%s' for name '%s': it is already registered for name '%s'", alias, name, registered)
		}
		logger().Debug("override alias", zap.String("alias", alias), zap.String("old", registered), zap.String("new", name))
	}
	if t.hasAlias(alias, name) {
		return newBeanError(ErrCircularDefinition, name, "cannot register alias '%s' for name '%s': circular reference - '%s' is a direct or indirect alias for '%s' already", alias, name, name, alias)
	}
	t.aliasMap[alias] = name
	return nil
}

/**
Returns true if the alias resolves to the name, directly or through other aliases
*/
func (t *aliasRegistry) hasAlias(name, alias string) bool {
	for i := 0; i <= len(t.aliasMap); i++ {
		registered, ok := t.aliasMap[alias]
		if !ok {
			return false
		}
		if registered == name {
			return true
		}
		alias = registered
	}
	return false
}

func (t *aliasRegistry) RemoveAlias(alias string) error {
	t.Lock()
	defer t.Unlock()
	if _, ok := t.aliasMap[alias]; !ok {
		return newBeanError(ErrNoSuchDefinition, alias, "no alias '%s' registered", alias)
	}
	delete(t.aliasMap, alias)
	return nil
}

func (t *aliasRegistry) IsAlias(name string) bool {
	t.RLock()
	defer t.RUnlock()
	_, ok := t.aliasMap[name]
	return ok
}

/**
Returns all aliases of the name, transitively, sorted
*/
func (t *aliasRegistry) GetAliases(name string) []string {
	t.RLock()
	defer t.RUnlock()
	var list []string
	t.collectAliases(name, &list, make(map[string]bool))
	sort.Strings(list)
	return list
}

func (t *aliasRegistry) collectAliases(name string, list *[]string, visited map[string]bool) {
	for alias, registered := range t.aliasMap {
		if registered == name && !visited[alias] {
			visited[alias] = true
			*list = append(*list, alias)
			t.collectAliases(alias, list, visited)
		}
	}
}

/**
Resolves the alias chain to the canonical name
*/
func (t *aliasRegistry) canonicalName(name string) string {
	t.RLock()
	defer t.RUnlock()
	canonical := name
	for i := 0; i <= len(t.aliasMap); i++ {
		resolved, ok := t.aliasMap[canonical]
		if !ok {
			break
		}
		canonical = resolved
	}
	return canonical
}

/**
Removes every alias pointing to the name
*/
func (t *aliasRegistry) removeAliasesOf(name string) {
	t.Lock()
	defer t.Unlock()
	for alias, registered := range t.aliasMap {
		if registered == name {
			delete(t.aliasMap, alias)
		}
	}
}

/**
Strips the factory bean prefix, '&&x' is the same as '&x'
*/
func transformedBeanName(name string) string {
	for strings.HasPrefix(name, FactoryBeanPrefix) {
		name = name[len(FactoryBeanPrefix):]
	}
	return name
}

func isFactoryDereference(name string) bool {
	return strings.HasPrefix(name, FactoryBeanPrefix)
}

func originalBeanName(name, requested string) string {
	if isFactoryDereference(requested) {
		return FactoryBeanPrefix + name
	}
	return name
}
