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

package testutil

import (
	"fmt"
	"reflect"
)

// Override sets the value pointed to by dest to tmp for the duration of
// the test, then restores the original value.
func (t *T) Override(dest, tmp interface{}) {
	teardown, err := override(dest, tmp)
	if err != nil {
		t.Fatalf("temporary override value is invalid: %v", err)
		return
	}
	t.teardownActions = append(t.teardownActions, teardown)
}

func override(dest, tmp interface{}) (func(), error) {
	dValue := reflect.ValueOf(dest)
	if dValue.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("destination is not a pointer: %v", dValue.Kind())
	}

	dElem := dValue.Elem()
	if !dElem.CanSet() {
		return nil, fmt.Errorf("destination is not settable")
	}

	saved := reflect.New(dElem.Type()).Elem()
	saved.Set(dElem)

	var tValue reflect.Value
	if tmp == nil {
		tValue = reflect.Zero(dElem.Type())
	} else {
		tValue = reflect.ValueOf(tmp)
	}
	if !tValue.Type().AssignableTo(dElem.Type()) {
		return nil, fmt.Errorf("value of type %v is not assignable to %v", tValue.Type(), dElem.Type())
	}
	dElem.Set(tValue)

	return func() { dElem.Set(saved) }, nil
}
