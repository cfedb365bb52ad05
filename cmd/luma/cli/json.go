// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/tidwall/jsonc"
)

// WriteJSON writes value to w as indented JSON. A nil slice is
// written as [] rather than null.
func WriteJSON(w io.Writer, value any) error {
	if v := reflect.ValueOf(value); v.Kind() == reflect.Slice && v.IsNil() {
		value = reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// ReadJSONC reads a JSON file that may contain // and /* */ comments
// and trailing commas, and decodes it into target. Unknown fields are
// rejected. A path of "-" reads stdin.
func ReadJSONC(path string, target any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	return DecodeJSONC(data, target)
}

// DecodeJSONC is ReadJSONC for bytes already in memory.
func DecodeJSONC(data []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}
	return nil
}
