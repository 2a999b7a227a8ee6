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
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/hashicorp/go-uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	dateTextFormat        = "2006-01-02"
	timeTextFormat        = "15:04:05.999999"
	timestampWireFormat   = "2006-01-02 15:04:05.999999"
	timestampTextFormat   = "2006-01-02T15:04:05.999999"
	timestamptzWireFormat = "2006-01-02 15:04:05.999999-07"
)

// Textual values PostgreSQL emits for boolean columns
var errIllegalValue = errors.Errorf("illegal value for data type conversion")

func (tm *TypeManager) registerBuiltinConverters() {
	register := func(converter Converter, oids ...uint32) {
		for _, oid := range oids {
			tm.converters[oid] = converter
		}
	}

	register(text2bool, pgtype.BoolOID)
	register(text2int64, pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID, pgtype.OIDOID, pgtype.XIDOID)
	register(text2float64, pgtype.Float4OID, pgtype.Float8OID)

	// Arbitrary precision values stay textual, a float round trip
	// would silently lose digits
	register(text2string, pgtype.NumericOID)

	register(
		text2string,
		pgtype.TextOID, pgtype.VarcharOID, pgtype.BPCharOID,
		pgtype.NameOID, pgtype.QCharOID,
	)
	register(text2bytes, pgtype.ByteaOID)
	register(tm.text2json, pgtype.JSONOID, pgtype.JSONBOID)
	register(text2uuid, pgtype.UUIDOID)

	register(date2text, pgtype.DateOID)
	register(time2text, pgtype.TimeOID)
	register(timestamp2text, pgtype.TimestampOID)
	register(timestamptz2text, pgtype.TimestamptzOID)

	registerArray := func(oidArray, oidElement uint32) {
		tm.converters[oidArray] = tm.arrayConverter(oidElement)
	}
	registerArray(pgtype.BoolArrayOID, pgtype.BoolOID)
	registerArray(pgtype.Int2ArrayOID, pgtype.Int2OID)
	registerArray(pgtype.Int4ArrayOID, pgtype.Int4OID)
	registerArray(pgtype.Int8ArrayOID, pgtype.Int8OID)
	registerArray(pgtype.Float4ArrayOID, pgtype.Float4OID)
	registerArray(pgtype.Float8ArrayOID, pgtype.Float8OID)
	registerArray(pgtype.NumericArrayOID, pgtype.NumericOID)
	registerArray(pgtype.TextArrayOID, pgtype.TextOID)
	registerArray(pgtype.VarcharArrayOID, pgtype.VarcharOID)
	registerArray(pgtype.BPCharArrayOID, pgtype.BPCharOID)
	registerArray(pgtype.NameArrayOID, pgtype.NameOID)
	registerArray(pgtype.ByteaArrayOID, pgtype.ByteaOID)
	registerArray(pgtype.JSONArrayOID, pgtype.JSONOID)
	registerArray(pgtype.JSONBArrayOID, pgtype.JSONBOID)
	registerArray(pgtype.UUIDArrayOID, pgtype.UUIDOID)
	registerArray(pgtype.DateArrayOID, pgtype.DateOID)
	registerArray(pgtype.TimeArrayOID, pgtype.TimeOID)
	registerArray(pgtype.TimestampArrayOID, pgtype.TimestampOID)
	registerArray(pgtype.TimestamptzArrayOID, pgtype.TimestamptzOID)
}

func text2bool(
	_ uint32, data []byte,
) (any, error) {

	switch string(data) {
	case "t", "true":
		return true, nil
	case "f", "false":
		return false, nil
	}
	return nil, errIllegalValue
}

func text2int64(
	_ uint32, data []byte,
) (any, error) {

	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return v, nil
}

func text2float64(
	oid uint32, data []byte,
) (any, error) {

	bitSize := 64
	if oid == pgtype.Float4OID {
		bitSize = 32
	}
	v, err := strconv.ParseFloat(string(data), bitSize)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return v, nil
}

func text2string(
	_ uint32, data []byte,
) (any, error) {

	return string(data), nil
}

func text2bytes(
	_ uint32, data []byte,
) (any, error) {

	s := string(data)
	if !strings.HasPrefix(s, `\x`) {
		return nil, errors.Errorf("bytea value doesn't use hex format: %s", s)
	}
	v, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return v, nil
}

func (tm *TypeManager) text2json(
	_ uint32, data []byte,
) (any, error) {

	var v any
	if err := tm.jsonDecoder.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return v, nil
}

func text2uuid(
	_ uint32, data []byte,
) (any, error) {

	parsed, err := uuid.ParseUUID(string(data))
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	formatted, err := uuid.FormatUUID(parsed)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return formatted, nil
}

func date2text(
	_ uint32, data []byte,
) (any, error) {

	s := string(data)
	// Special values have no ISO representation and stay as-is
	if s == "infinity" || s == "-infinity" || strings.HasSuffix(s, " BC") {
		return s, nil
	}
	v, err := time.Parse(dateTextFormat, s)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return v.Format(dateTextFormat), nil
}

func time2text(
	_ uint32, data []byte,
) (any, error) {

	v, err := time.Parse(timeTextFormat, string(data))
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return v.Format(timeTextFormat), nil
}

func timestamp2text(
	_ uint32, data []byte,
) (any, error) {

	s := string(data)
	if s == "infinity" || s == "-infinity" || strings.HasSuffix(s, " BC") {
		return s, nil
	}
	v, err := time.Parse(timestampWireFormat, s)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return v.Format(timestampTextFormat), nil
}

func timestamptz2text(
	_ uint32, data []byte,
) (any, error) {

	s := string(data)
	if s == "infinity" || s == "-infinity" || strings.HasSuffix(s, " BC") {
		return s, nil
	}
	v, err := time.Parse(timestamptzWireFormat, s)
	if err != nil {
		// Offsets with minute granularity serialize as -07:00
		v, err = time.Parse(time.RFC3339Nano, strings.Replace(s, " ", "T", 1))
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
	}
	return v.In(time.UTC).Format(time.RFC3339Nano), nil
}

func (tm *TypeManager) arrayConverter(
	oidElement uint32,
) Converter {

	return func(_ uint32, data []byte) (any, error) {
		elements, err := parseArrayLiteral(string(data))
		if err != nil {
			return nil, err
		}
		return tm.convertArrayElements(oidElement, elements)
	}
}

func (tm *TypeManager) convertArrayElements(
	oidElement uint32, elements []arrayElement,
) ([]any, error) {

	converted := make([]any, 0, len(elements))
	for _, element := range elements {
		switch {
		case element.null:
			converted = append(converted, nil)

		case element.nested != nil:
			// Multidimensional arrays nest recursively
			nested, err := tm.convertArrayElements(oidElement, element.nested)
			if err != nil {
				return nil, err
			}
			converted = append(converted, nested)

		default:
			value, err := tm.Convert(oidElement, textColumn(element.value))
			if err != nil {
				return nil, err
			}
			converted = append(converted, value)
		}
	}
	return converted, nil
}
