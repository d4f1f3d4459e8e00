/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	placeholderPrefix    = "${"
	placeholderSuffix    = "}"
	placeholderSeparator = ":"
)

const defaultPropertyResolverPriority = 100

/**
Source of properties, resolvers with higher priority are asked first
*/
var PropertyResolverClass = reflect.TypeOf((*PropertyResolver)(nil)).Elem()

type PropertyResolver interface {

	Priority() int

	GetProperty(key string) (string, bool)
}

/**
Properties resolve '${key}' and '${key:default}' placeholders of string values,
registered in the factory by AddEmbeddedValueResolver.
*/
var PropertiesClass = reflect.TypeOf((*Properties)(nil)).Elem()

type Properties interface {
	PropertyResolver
	StringValueResolver

	/**
	Registers additional source of properties
	*/
	Register(resolver PropertyResolver)

	PropertyResolvers() []PropertyResolver

	/**
	Loads nested maps, keys are joined by dots and list items by semicolons
	*/
	LoadMap(source map[string]interface{})

	/**
	Loads YAML document, nested keys are joined by dots
	*/
	LoadYAML(reader io.Reader) error

	/**
	Loads 'key=value' lines in dotenv syntax, '#' starts a comment
	*/
	LoadDotEnv(reader io.Reader) error

	/**
	Parses 'key=value' lines in dotenv syntax
	*/
	Parse(content string) error

	/**
	Dumps own properties in dotenv syntax, sorted by key
	*/
	Dump() (string, error)

	/**
	Inherits resolvers of the parent, own properties take precedence
	*/
	Extend(parent Properties)

	Len() int

	Keys() []string

	Map() map[string]string

	Contains(key string) bool

	/**
	Returns the value of the key from the first resolver having it
	*/
	Get(key string) (string, bool)

	GetString(key, def string) string

	GetBool(key string, def bool) bool

	GetInt(key string, def int) int

	GetFloat(key string, def float32) float32

	GetDouble(key string, def float64) float64

	GetDuration(key string, def time.Duration) time.Duration

	GetFileMode(key string, def os.FileMode) os.FileMode

	Set(key string, value string)

	Remove(key string) bool

	Clear()

	/**
	Handler of conversion errors of typed getters
	*/
	SetErrorHandler(onError func(string, error))

	/**
	Leaves unresolvable placeholders as is instead of failing
	*/
	SetIgnoreUnresolvable(ignore bool)
}

type properties struct {
	sync.RWMutex

	priority int
	store    map[string]string

	resolvers []PropertyResolver

	errorHandler       func(string, error)
	ignoreUnresolvable bool
}

func NewProperties() Properties {
	t := &properties{
		priority:  defaultPropertyResolverPriority,
		store:     make(map[string]string),
		resolvers: make([]PropertyResolver, 0, 10),
	}
	t.Register(t)
	return t
}

func (t *properties) String() string {
	t.RLock()
	defer t.RUnlock()
	return fmt.Sprintf("Properties{priority=%d,store=%d,resolvers=%d,errorHandler=%v}", t.priority, len(t.store), len(t.resolvers), t.errorHandler != nil)
}

func (t *properties) Register(resolver PropertyResolver) {
	t.Lock()
	defer t.Unlock()
	t.resolvers = append(t.resolvers, resolver)
	t.sortResolvers()
}

/**
Caller holds the write lock, so own priority is read from the field
*/
func (t *properties) sortResolvers() {
	priorityOf := func(r PropertyResolver) int {
		if r == PropertyResolver(t) {
			return t.priority
		}
		return r.Priority()
	}
	sort.SliceStable(t.resolvers, func(i, j int) bool {
		return priorityOf(t.resolvers[i]) > priorityOf(t.resolvers[j])
	})
}

func (t *properties) PropertyResolvers() []PropertyResolver {
	t.RLock()
	defer t.RUnlock()
	buf := make([]PropertyResolver, len(t.resolvers))
	copy(buf, t.resolvers)
	return buf
}

func (t *properties) Priority() int {
	t.RLock()
	defer t.RUnlock()
	return t.priority
}

func (t *properties) LoadMap(source map[string]interface{}) {
	t.Lock()
	defer t.Unlock()
	t.loadMapRec(make([]byte, 0, 100), source)
}

func (t *properties) loadMapRec(stack []byte, m map[string]interface{}) {
	for k, v := range m {
		n := len(stack)
		if n > 0 {
			stack = append(stack, '.')
		}
		stack = append(stack, k...)
		switch next := v.(type) {
		case map[string]interface{}:
			t.loadMapRec(stack, next)
		case []interface{}:
			list := make([]string, len(next))
			for i, item := range next {
				list[i] = fmt.Sprint(item)
			}
			t.store[string(stack)] = strings.Join(list, ";")
		case nil:
			t.store[string(stack)] = ""
		default:
			t.store[string(stack)] = fmt.Sprint(v)
		}
		stack = stack[:n]
	}
}

func (t *properties) LoadYAML(reader io.Reader) error {
	var doc map[string]interface{}
	if err := yaml.NewDecoder(reader).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.Wrap(err, "invalid YAML properties")
	}
	t.LoadMap(doc)
	return nil
}

func (t *properties) LoadDotEnv(reader io.Reader) error {
	m, err := godotenv.Parse(reader)
	if err != nil {
		return errors.Wrap(err, "invalid dotenv properties")
	}
	t.Lock()
	defer t.Unlock()
	for k, v := range m {
		t.store[k] = v
	}
	return nil
}

func (t *properties) Parse(content string) error {
	return t.LoadDotEnv(strings.NewReader(content))
}

func (t *properties) Dump() (string, error) {
	return godotenv.Marshal(t.Map())
}

func (t *properties) Extend(parent Properties) {
	r := parent.PropertyResolvers()
	priority := parent.Priority()
	t.Lock()
	defer t.Unlock()
	if priority >= t.priority {
		t.priority = priority + 1
	}
	for _, item := range r {
		if item != PropertyResolver(t) {
			t.resolvers = append(t.resolvers, item)
		}
	}
	t.sortResolvers()
}

func (t *properties) Len() int {
	t.RLock()
	defer t.RUnlock()
	return len(t.store)
}

func (t *properties) Keys() []string {
	t.RLock()
	defer t.RUnlock()
	keys := make([]string, 0, len(t.store))
	for k := range t.store {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t *properties) Map() map[string]string {
	t.RLock()
	defer t.RUnlock()
	m := make(map[string]string, len(t.store))
	for k, v := range t.store {
		m[k] = v
	}
	return m
}

func (t *properties) Contains(key string) bool {
	t.RLock()
	defer t.RUnlock()
	_, ok := t.store[key]
	return ok
}

func (t *properties) GetProperty(key string) (string, bool) {
	t.RLock()
	defer t.RUnlock()
	value, ok := t.store[key]
	return value, ok
}

func (t *properties) Get(key string) (string, bool) {
	for _, r := range t.PropertyResolvers() {
		if value, ok := r.GetProperty(key); ok {
			return value, true
		}
	}
	return "", false
}

func (t *properties) GetString(key, def string) string {
	if value, ok := t.Get(key); ok {
		return value
	}
	return def
}

func (t *properties) SetErrorHandler(onError func(string, error)) {
	t.Lock()
	defer t.Unlock()
	t.errorHandler = onError
}

func (t *properties) onError(key string, err error) {
	t.RLock()
	cb := t.errorHandler
	t.RUnlock()
	if cb != nil {
		cb(key, err)
	}
}

func (t *properties) GetBool(key string, def bool) bool {
	value, ok := t.Get(key)
	if !ok {
		return def
	}
	v, err := parseBool(value)
	if err != nil {
		t.onError(key, err)
		return def
	}
	return v
}

func (t *properties) GetInt(key string, def int) int {
	value, ok := t.Get(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		t.onError(key, err)
		return def
	}
	return v
}

func (t *properties) GetFloat(key string, def float32) float32 {
	value, ok := t.Get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(value, 32)
	if err != nil {
		t.onError(key, err)
		return def
	}
	return float32(f)
}

func (t *properties) GetDouble(key string, def float64) float64 {
	value, ok := t.Get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		t.onError(key, err)
		return def
	}
	return f
}

func (t *properties) GetDuration(key string, def time.Duration) time.Duration {
	value, ok := t.Get(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		t.onError(key, err)
		return def
	}
	return d
}

func (t *properties) GetFileMode(key string, def os.FileMode) os.FileMode {
	if value, ok := t.Get(key); ok {
		return parseFileMode(value)
	}
	return def
}

func (t *properties) Set(key string, value string) {
	t.Lock()
	defer t.Unlock()
	t.store[key] = value
}

func (t *properties) Remove(key string) bool {
	t.Lock()
	defer t.Unlock()
	if _, ok := t.store[key]; !ok {
		return false
	}
	delete(t.store, key)
	return true
}

func (t *properties) Clear() {
	t.Lock()
	defer t.Unlock()
	t.store = make(map[string]string)
}

func (t *properties) SetIgnoreUnresolvable(ignore bool) {
	t.Lock()
	defer t.Unlock()
	t.ignoreUnresolvable = ignore
}

/**
Replaces placeholders in the value, nested placeholders in keys, defaults and values are resolved as well
*/
func (t *properties) ResolveStringValue(value string) (string, error) {
	t.RLock()
	ignore := t.ignoreUnresolvable
	t.RUnlock()
	return t.parseStringValue(value, ignore, make(map[string]bool))
}

func (t *properties) parseStringValue(value string, ignore bool, visiting map[string]bool) (string, error) {
	start := strings.Index(value, placeholderPrefix)
	for start != -1 {
		end := findPlaceholderEnd(value, start)
		if end == -1 {
			break
		}
		original := value[start+len(placeholderPrefix) : end]
		if visiting[original] {
			return "", errors.Errorf("circular placeholder reference '%s' in property definitions", original)
		}
		visiting[original] = true

		placeholder, err := t.parseStringValue(original, ignore, visiting)
		if err != nil {
			return "", err
		}

		resolved, ok := t.Get(placeholder)
		if !ok {
			if i := strings.Index(placeholder, placeholderSeparator); i != -1 {
				resolved, ok = t.Get(placeholder[:i])
				if !ok {
					resolved, ok = placeholder[i+len(placeholderSeparator):], true
				}
			}
		}

		switch {
		case ok:
			if resolved, err = t.parseStringValue(resolved, ignore, visiting); err != nil {
				return "", err
			}
			value = value[:start] + resolved + value[end+len(placeholderSuffix):]
			start = indexFrom(value, placeholderPrefix, start+len(resolved))
		case ignore:
			start = indexFrom(value, placeholderPrefix, end+len(placeholderSuffix))
		default:
			return "", errors.Errorf("could not resolve placeholder '%s' in value '%s'", placeholder, value)
		}
		delete(visiting, original)
	}
	return value, nil
}

func findPlaceholderEnd(s string, start int) int {
	index := start + len(placeholderPrefix)
	nested := 0
	for index < len(s) {
		switch {
		case strings.HasPrefix(s[index:], placeholderSuffix):
			if nested == 0 {
				return index
			}
			nested--
			index += len(placeholderSuffix)
		case strings.HasPrefix(s[index:], placeholderPrefix):
			nested++
			index += len(placeholderPrefix)
		default:
			index++
		}
	}
	return -1
}

func indexFrom(s, substr string, from int) int {
	if from >= len(s) {
		return -1
	}
	if i := strings.Index(s[from:], substr); i != -1 {
		return from + i
	}
	return -1
}
