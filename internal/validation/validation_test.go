/*
 * Copyright 2026 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidation(t *testing.T) {
	t.Run("ValidateValue test", func(t *testing.T) {
		assert.NoError(t, ValidateValue("1h30m20s", "duration"))
		assert.NoError(t, ValidateValue("500ms", "duration"))

		err := ValidateValue("one hour", "duration")
		require.Error(t, err)
		assert.Equal(t, "duration", err.(Violation).Tag)
		assert.Contains(t, err.(Violation).Description, "time duration")
	})

	t.Run("room key test", func(t *testing.T) {
		assert.NoError(t, ValidateValue("doc1", "room_key"))
		assert.NoError(t, ValidateValue("team_a_doc", "room_key"))

		for _, raw := range []string{"", "a/b", "a:b", "/doc1"} {
			err := ValidateValue(raw, "room_key")
			require.Error(t, err, raw)
			assert.Equal(t, "room_key", err.(Violation).Tag)
		}
	})

	t.Run("ValidateStruct test", func(t *testing.T) {
		type Section struct {
			Port     int    `validate:"min=1,max=65535"`
			Interval string `validate:"required,duration"`
		}

		err := ValidateStruct(Section{Port: 0, Interval: "soon"})
		structError := err.(*StructError)
		assert.Len(t, structError.Violations, 2)
		assert.Equal(t, "Port", structError.Violations[0].Field)
		assert.Contains(t, structError.Error(), "Interval")

		assert.NoError(t, ValidateStruct(Section{Port: 11101, Interval: "30s"}))
	})

	t.Run("custom rule test", func(t *testing.T) {
		require.NoError(t, register(rule{
			tag: "custom",
			msg: "{0} must be custom",
			check: func(fl validator.FieldLevel) bool {
				return fl.Field().String() == "custom"
			},
		}))

		err := ValidateValue("custom-invalid-value", "required,custom")
		require.Error(t, err)
		assert.Equal(t, "custom", err.(Violation).Tag)
		assert.NoError(t, ValidateValue("custom", "required,custom"))
	})
}
