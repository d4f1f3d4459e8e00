/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"github.com/pkg/errors"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	durationClass   = reflect.TypeOf(time.Millisecond)
	timeClass       = reflect.TypeOf(time.Time{})
	osFileModeClass = reflect.TypeOf(os.FileMode(0777))
	fsFileModeClass = reflect.TypeOf(fs.FileMode(0777))
	typeClass       = reflect.TypeOf((*reflect.Type)(nil)).Elem()
	interfaceClass  = reflect.TypeOf((*interface{})(nil)).Elem()
	stringClass     = reflect.TypeOf("")
)

/**
Default type converter, converts strings to simple types, numbers between each other and collections element by element
*/

type SimpleTypeConverter struct {

	/**
	Layout of time values, RFC3339 by default
	*/
	TimeLayout string
}

func (t *SimpleTypeConverter) ConvertIfNecessary(value interface{}, requiredType reflect.Type) (reflect.Value, error) {
	v, err := convertValue(value, requiredType, t.TimeLayout)
	if err != nil {
		e := newBeanError(ErrTypeMismatch, "", "failed to convert value of type '%T' to required type '%v'", value, requiredType).withCause(err)
		e.RequiredType = requiredType
		if value != nil {
			e.ActualType = reflect.TypeOf(value)
		}
		return reflect.Value{}, e
	}
	return v, nil
}

func convertValue(value interface{}, requiredType reflect.Type, layout string) (reflect.Value, error) {

	if value == nil {
		if requiredType == nil || isNillable(requiredType) {
			if requiredType == nil {
				return reflect.Value{}, nil
			}
			return reflect.Zero(requiredType), nil
		}
		return reflect.Value{}, errors.Errorf("nil value for the type '%v'", requiredType)
	}

	v := reflect.ValueOf(value)
	if requiredType == nil || v.Type().AssignableTo(requiredType) {
		return v, nil
	}

	if s, ok := value.(string); ok && isSimpleType(requiredType) {
		return convertString(s, requiredType, layout)
	}

	switch {
	case isNumber(v.Type()) && isNumber(requiredType):
		return v.Convert(requiredType), nil
	case v.Kind() == reflect.String && requiredType.Kind() == reflect.String:
		return v.Convert(requiredType), nil
	case v.Kind() == reflect.Bool && requiredType.Kind() == reflect.Bool:
		return v.Convert(requiredType), nil
	case requiredType.Kind() == reflect.String && (isNumber(v.Type()) || v.Kind() == reflect.Bool):
		return reflect.ValueOf(fmt.Sprint(value)).Convert(requiredType), nil
	case isArray(v.Type()) && requiredType.Kind() == reflect.Slice:
		n := v.Len()
		slice := reflect.MakeSlice(requiredType, 0, n)
		for i := 0; i < n; i++ {
			elem, err := convertValue(v.Index(i).Interface(), requiredType.Elem(), layout)
			if err != nil {
				return reflect.Value{}, errors.Wrapf(err, "element %d", i)
			}
			slice = reflect.Append(slice, elem)
		}
		return slice, nil
	case v.Kind() == reflect.Map && requiredType.Kind() == reflect.Map && v.Type().Key() == requiredType.Key():
		m := reflect.MakeMapWithSize(requiredType, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			elem, err := convertValue(iter.Value().Interface(), requiredType.Elem(), layout)
			if err != nil {
				return reflect.Value{}, errors.Wrapf(err, "entry '%v'", iter.Key())
			}
			m.SetMapIndex(iter.Key(), elem)
		}
		return m, nil
	}

	return reflect.Value{}, errors.Errorf("no conversion from '%v' to '%v'", v.Type(), requiredType)
}

func convertString(s string, t reflect.Type, layout string) (val reflect.Value, err error) {
	var v interface{}

	switch {

	case isArray(t):
		parts := trimSplit(s, ";")
		slice := reflect.MakeSlice(reflect.SliceOf(t.Elem()), 0, len(parts))
		for _, s := range parts {
			val, err := convertString(s, t.Elem(), layout)
			if err != nil {
				return slice, err
			}
			slice = reflect.Append(slice, val)
		}
		if t.Kind() == reflect.Array {
			arr := reflect.New(t).Elem()
			reflect.Copy(arr, slice)
			return arr, nil
		}
		return slice.Convert(t), nil

	case isDuration(t):
		v, err = time.ParseDuration(s)

	case isTime(t):
		if layout == "" {
			layout = time.RFC3339
		}
		v, err = time.Parse(layout, s)

	case isFileMode(t):
		v, err = parseFileMode(s), nil

	case isBool(t):
		v, err = parseBool(s)

	case isString(t):
		v, err = s, nil

	case isFloat(t):
		v, err = strconv.ParseFloat(s, 64)

	case isInt(t):
		v, err = strconv.ParseInt(s, 10, 64)

	case isUint(t):
		v, err = strconv.ParseUint(s, 10, 64)

	default:
		return reflect.Zero(t), fmt.Errorf("unsupported type %s", t)
	}

	if err != nil {
		return reflect.Zero(t), err
	}

	return reflect.ValueOf(v).Convert(t), nil
}

/**
Simple types are never autowired and are checked by 'simple' dependency checks
*/
func isSimpleType(t reflect.Type) bool {
	switch {
	case isBool(t), isString(t), isFloat(t), isInt(t), isUint(t):
		return true
	case isDuration(t), isTime(t), isFileMode(t), t == typeClass:
		return true
	case isArray(t):
		return isSimpleType(t.Elem())
	}
	return false
}

func isNumber(t reflect.Type) bool {
	return isInt(t) || isUint(t) || isFloat(t)
}

func isBool(t reflect.Type) bool {
	return t.Kind() == reflect.Bool
}

func isString(t reflect.Type) bool {
	return t.Kind() == reflect.String
}

func isFloat(t reflect.Type) bool {
	return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
}

func isInt(t reflect.Type) bool {
	return t.Kind() == reflect.Int || t.Kind() == reflect.Int8 || t.Kind() == reflect.Int16 || t.Kind() == reflect.Int32 || t.Kind() == reflect.Int64
}

func isUint(t reflect.Type) bool {
	return t.Kind() == reflect.Uint || t.Kind() == reflect.Uint8 || t.Kind() == reflect.Uint16 || t.Kind() == reflect.Uint32 || t.Kind() == reflect.Uint64
}

func isDuration(t reflect.Type) bool {
	return t == durationClass
}

func isTime(t reflect.Type) bool {
	return t == timeClass
}

func isFileMode(t reflect.Type) bool {
	return t == osFileModeClass || t == fsFileModeClass
}

func isArray(t reflect.Type) bool {
	return t.Kind() == reflect.Array || t.Kind() == reflect.Slice
}

func isNillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	}
	return false
}

/**
Identity of two values, pointers by address, comparable values by equality
*/
func sameObject(a, b interface{}) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if !va.Type().Comparable() {
		return false
	}
	defer func() {
		// interface fields holding incomparable values
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

func trimSplit(s string, sep string) []string {
	var a []string
	for _, v := range strings.Split(s, sep) {
		if v = strings.TrimSpace(v); v != "" {
			a = append(a, v)
		}
	}
	return a
}

func parseBool(str string) (bool, error) {
	switch str {
	case "1", "t", "T", "true", "TRUE", "True", "on", "ON", "On":
		return true, nil
	case "0", "f", "F", "false", "FALSE", "False", "off", "OFF", "Off":
		return false, nil
	}
	return false, errors.Errorf("invalid syntax '%s'", str)
}

/**
Parses only os.Unix file mode with 0777 mask
*/
func parseFileMode(s string) os.FileMode {

	var m uint32

	const rwx = "rwxrwxrwx"
	off := len(s) - len(rwx)
	if off < 0 {
		buf := []byte("---------")
		copy(buf[-off:], s)
		s = string(buf)
	} else {
		s = s[off:]
	}

	for i, c := range rwx {
		if byte(c) == s[i] {
			m |= 1 << uint(9-1-i)
		}
	}

	return os.FileMode(m)
}
