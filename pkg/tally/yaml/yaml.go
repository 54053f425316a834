/*
Copyright 2025 The Tally Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package yaml

import (
	"bytes"
	"io"

	yamlv3 "gopkg.in/yaml.v3"
)

// UnmarshalStrict decodes with unknown fields rejected.
func UnmarshalStrict(in []byte, out interface{}) error {
	return unmarshal(in, out, true)
}

func Unmarshal(in []byte, out interface{}) error {
	return unmarshal(in, out, false)
}

// Marshal encodes with a two space indent, the way the config files are
// written by hand.
func Marshal(in interface{}) (out []byte, err error) {
	var b bytes.Buffer
	encoder := yamlv3.NewEncoder(&b)
	encoder.SetIndent(2)
	if err := encoder.Encode(in); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func unmarshal(in []byte, out interface{}, strict bool) error {
	b := bytes.NewReader(in)
	decoder := yamlv3.NewDecoder(b)
	decoder.KnownFields(strict)
	if err := decoder.Decode(out); err != nil {
		// yaml v3 returns EOF for an empty document where an empty
		// object is wanted.
		if err != io.EOF {
			return err
		}
	}
	return nil
}
