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

package pgtypes

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// TupleDataTypeNull marks a column transmitted as SQL NULL
	TupleDataTypeNull = uint8('n')
	// TupleDataTypeToast marks an unchanged toasted column whose
	// value was not transmitted
	TupleDataTypeToast = uint8('u')
	// TupleDataTypeText marks a column transmitted in text format
	TupleDataTypeText = uint8('t')
	// TupleDataTypeBinary marks a column transmitted in binary format
	TupleDataTypeBinary = uint8('b')
)

// TupleDataColumn is a single column of a row image.
type TupleDataColumn struct {
	// DataType is one of the TupleDataType markers
	DataType uint8
	// Data is the column payload; only set for text and binary columns
	Data []byte
}

// IsNull reports whether the column was transmitted as SQL NULL.
func (c *TupleDataColumn) IsNull() bool {
	return c.DataType == TupleDataTypeNull
}

// IsUnchangedToast reports whether the column is an unchanged toasted
// value that was not transmitted.
func (c *TupleDataColumn) IsUnchangedToast() bool {
	return c.DataType == TupleDataTypeToast
}

// IsBinary reports whether the column payload is in binary format.
func (c *TupleDataColumn) IsBinary() bool {
	return c.DataType == TupleDataTypeBinary
}

func (c TupleDataColumn) String() string {
	return fmt.Sprintf("{dataType:%c dataLength:%d}", c.DataType, len(c.Data))
}

// TupleData is a decoded row image.
type TupleData struct {
	// ColumnNum is the number of columns
	ColumnNum uint16
	// Columns in schema order
	Columns []*TupleDataColumn
}

func (t *TupleData) String() string {
	if t == nil {
		return "<nil>"
	}
	builder := strings.Builder{}
	builder.WriteString("{columns:[")
	for i, column := range t.Columns {
		builder.WriteString(column.String())
		if i < len(t.Columns)-1 {
			builder.WriteString(" ")
		}
	}
	builder.WriteString("]}")
	return builder.String()
}

// decodeTupleData reads a row image off the wire and returns the
// number of consumed bytes. The update decoder needs the byte count
// to find the new tuple marker behind the optional old tuple.
func decodeTupleData(
	src []byte,
) (*TupleData, int, error) {

	if len(src) < 2 {
		return nil, 0, protocolErrorf(
			"TupleData truncated: expected at least 2 bytes, got %d", len(src),
		)
	}
	columnNum := binary.BigEndian.Uint16(src)
	low := 2

	tupleData := &TupleData{
		ColumnNum: columnNum,
		Columns:   make([]*TupleDataColumn, 0, columnNum),
	}
	for i := 0; i < int(columnNum); i++ {
		if len(src) < low+1 {
			return nil, 0, protocolErrorf(
				"TupleData truncated: expected at least %d bytes, got %d", low+1, len(src),
			)
		}
		column := new(TupleDataColumn)
		column.DataType = src[low]
		low++

		switch column.DataType {
		case TupleDataTypeNull, TupleDataTypeToast:
			// No payload follows

		case TupleDataTypeText, TupleDataTypeBinary:
			if len(src) < low+4 {
				return nil, 0, protocolErrorf(
					"TupleData truncated: expected at least %d bytes, got %d", low+4, len(src),
				)
			}
			dataLength := int(binary.BigEndian.Uint32(src[low:]))
			low += 4
			if len(src) < low+dataLength {
				return nil, 0, protocolErrorf(
					"TupleData truncated: expected at least %d bytes, got %d",
					low+dataLength, len(src),
				)
			}
			column.Data = src[low : low+dataLength]
			low += dataLength

		default:
			return nil, 0, protocolErrorf(
				"TupleData column %d has unknown marker '%c'", i, column.DataType,
			)
		}
		tupleData.Columns = append(tupleData.Columns, column)
	}
	return tupleData, low, nil
}
