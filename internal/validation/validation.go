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

// Package validation validates configurations and operator input with
// struct tags. Besides the built-in rules of go-playground/validator it knows
// "duration" and "room_key".
package validation

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/yorkie-team/relay/pkg/document/key"
)

var (
	v = validator.New()

	// trans renders violations in English.
	trans ut.Translator
)

// rule is a custom validation tag with the message shown when it fails.
type rule struct {
	tag   string
	msg   string
	check validator.Func
}

var rules = []rule{{
	tag: "duration",
	msg: "{0} must be a valid time duration string format",
	check: func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	},
}, {
	tag: "room_key",
	msg: "{0} must be a sanitized room key",
	check: func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		return val != "" && key.FromPath(val).String() == val
	},
}}

// Violation is a single failed rule.
type Violation struct {
	Tag         string
	Field       string
	Err         error
	Description string
}

// Error returns the error message.
func (e Violation) Error() string {
	return e.Err.Error()
}

// StructError lists the violations of a struct.
type StructError struct {
	Violations []Violation
}

// Error returns one description per line.
func (s StructError) Error() string {
	descs := make([]string, 0, len(s.Violations))
	for _, v := range s.Violations {
		descs = append(descs, v.Description)
	}
	return strings.Join(descs, "\n")
}

func newViolation(fe validator.FieldError) Violation {
	return Violation{
		Tag:         fe.Tag(),
		Field:       fe.StructField(),
		Err:         fe,
		Description: fe.Translate(trans),
	}
}

// ValidateValue validates a single value against the tag, for example a room
// key given on the command line.
func ValidateValue(val interface{}, tag string) error {
	err := v.Var(val, tag)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return err
	}
	return newViolation(fieldErrs[0])
}

// ValidateStruct validates the `validate` tags of the struct.
func ValidateStruct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	structErr := &StructError{}
	for _, fe := range fieldErrs {
		structErr.Violations = append(structErr.Violations, newViolation(fe))
	}
	return structErr
}

// register adds a custom rule and its English message.
func register(r rule) error {
	if err := v.RegisterValidation(r.tag, r.check); err != nil {
		return fmt.Errorf("register rule %s: %w", r.tag, err)
	}

	if err := v.RegisterTranslation(r.tag, trans,
		func(t ut.Translator) error {
			return t.Add(r.tag, r.msg, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(r.tag, fe.Field())
			return msg
		},
	); err != nil {
		return fmt.Errorf("register message of %s: %w", r.tag, err)
	}
	return nil
}

func init() {
	locale := en.New()
	trans, _ = ut.New(locale, locale).GetTranslator(locale.Locale())

	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		fmt.Fprintf(os.Stderr, "validation: %v\n", err)
		os.Exit(1)
	}
	for _, r := range rules {
		if err := register(r); err != nil {
			fmt.Fprintf(os.Stderr, "validation: %v\n", err)
			os.Exit(1)
		}
	}
}
