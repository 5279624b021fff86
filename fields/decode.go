// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package fields

import (
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// As returns the value of field for block k converted to T. The boolean is
// false if the field is unset.
//
// Values that already have type T are returned as is. Anything else, such as
// the generic maps and slices produced by decoding a course fixture, is
// converted by re-encoding it as YAML and decoding into T.
func As[T any](r Reader, field string, k BlockKey) (T, bool, error) {
	var zero T
	raw, err := r.Get(field, k)
	if err != nil || raw == nil {
		return zero, false, err
	}
	t, err := Convert[T](raw)
	if err != nil {
		return zero, false, errors.Wrapf(err, "field %q of %s", errors.Safe(field), k)
	}
	return t, true, nil
}

// Convert converts an untyped value to T. See As.
func Convert[T any](raw any) (T, error) {
	if t, ok := raw.(T); ok {
		return t, nil
	}
	var t T
	b, err := yaml.Marshal(raw)
	if err != nil {
		return t, errors.Wrap(err, "re-encoding value")
	}
	if err := yaml.Unmarshal(b, &t); err != nil {
		return t, errors.Wrapf(err, "decoding %T", t)
	}
	return t, nil
}
