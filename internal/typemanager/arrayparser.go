/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package typemanager

import (
	"strings"

	"github.com/go-errors/errors"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
)

// arrayElement is one parsed entry of an array literal. Exactly one
// of null, nested, or value is meaningful.
type arrayElement struct {
	null   bool
	nested []arrayElement
	value  string
}

func textColumn(
	value string,
) *pgtypes.TupleDataColumn {

	return &pgtypes.TupleDataColumn{
		DataType: pgtypes.TupleDataTypeText,
		Data:     []byte(value),
	}
}

// parseArrayLiteral parses the textual output format of PostgreSQL
// arrays: `{}`-delimited, comma-separated elements, double-quoted
// values with backslash escapes, bare NULL tokens, and nested braces
// for multidimensional arrays.
func parseArrayLiteral(
	literal string,
) ([]arrayElement, error) {

	parser := &arrayLiteralParser{input: literal}
	elements, err := parser.parseArray()
	if err != nil {
		return nil, err
	}
	if parser.pos != len(parser.input) {
		return nil, errors.Errorf(
			"array literal has trailing garbage at offset %d: %s", parser.pos, literal,
		)
	}
	return elements, nil
}

type arrayLiteralParser struct {
	input string
	pos   int
}

func (p *arrayLiteralParser) parseArray() ([]arrayElement, error) {
	if !p.expect('{') {
		return nil, errors.Errorf("array literal doesn't start with '{': %s", p.input)
	}

	elements := make([]arrayElement, 0)
	if p.peek() == '}' {
		p.pos++
		return elements, nil
	}

	for {
		element, err := p.parseElement()
		if err != nil {
			return nil, err
		}
		elements = append(elements, element)

		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return elements, nil
		default:
			return nil, errors.Errorf(
				"malformed array literal at offset %d: %s", p.pos, p.input,
			)
		}
	}
}

func (p *arrayLiteralParser) parseElement() (arrayElement, error) {
	switch p.peek() {
	case '{':
		nested, err := p.parseArray()
		if err != nil {
			return arrayElement{}, err
		}
		return arrayElement{nested: nested}, nil

	case '"':
		value, err := p.parseQuoted()
		if err != nil {
			return arrayElement{}, err
		}
		return arrayElement{value: value}, nil

	default:
		value, err := p.parseBare()
		if err != nil {
			return arrayElement{}, err
		}
		if strings.EqualFold(value, "NULL") {
			return arrayElement{null: true}, nil
		}
		return arrayElement{value: value}, nil
	}
}

func (p *arrayLiteralParser) parseQuoted() (string, error) {
	p.pos++ // opening quote

	builder := strings.Builder{}
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch c {
		case '\\':
			if p.pos+1 >= len(p.input) {
				return "", errors.Errorf("dangling escape in array literal: %s", p.input)
			}
			builder.WriteByte(p.input[p.pos+1])
			p.pos += 2
		case '"':
			p.pos++
			return builder.String(), nil
		default:
			builder.WriteByte(c)
			p.pos++
		}
	}
	return "", errors.Errorf("unterminated quoted value in array literal: %s", p.input)
}

func (p *arrayLiteralParser) parseBare() (string, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == ',' || c == '}' {
			if p.pos == start {
				return "", errors.Errorf(
					"empty unquoted value in array literal at offset %d: %s", p.pos, p.input,
				)
			}
			return p.input[start:p.pos], nil
		}
		if c == '{' || c == '"' {
			return "", errors.Errorf(
				"unexpected '%c' in array literal at offset %d: %s", c, p.pos, p.input,
			)
		}
		p.pos++
	}
	return "", errors.Errorf("unterminated array literal: %s", p.input)
}

func (p *arrayLiteralParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *arrayLiteralParser) expect(
	c byte,
) bool {

	if p.peek() != c {
		return false
	}
	p.pos++
	return true
}
