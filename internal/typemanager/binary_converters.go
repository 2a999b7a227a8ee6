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
	"fmt"
	"net"
	"net/netip"
	"reflect"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/hashicorp/go-uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// convertBinary decodes a binary format column through the pgx codec
// registry and canonicalizes the resulting driver value. The server
// only uses binary format when the session negotiated it (PG14+).
func (tm *TypeManager) convertBinary(
	oid uint32, data []byte,
) (any, error) {

	typ, present := tm.typeMap.TypeForOID(oid)
	if !present {
		return nil, errors.Errorf("no binary codec for oid %d", oid)
	}

	value, err := typ.Codec.DecodeValue(tm.typeMap, oid, pgtype.BinaryFormatCode, data)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return tm.canonicalize(oid, value)
}

func (tm *TypeManager) canonicalize(
	oid uint32, value any,
) (any, error) {

	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool, int64, float64, string:
		return v, nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case []byte:
		return v, nil
	case map[string]any:
		return v, nil

	case time.Time:
		switch oid {
		case pgtype.DateOID:
			return v.Format(dateTextFormat), nil
		case pgtype.TimestampOID:
			return v.In(time.UTC).Format(timestampTextFormat), nil
		default:
			return v.In(time.UTC).Format(time.RFC3339Nano), nil
		}

	case pgtype.Time:
		return microsToTimeText(v.Microseconds), nil

	case pgtype.Numeric:
		return numericToText(v)

	case [16]byte:
		return uuid.FormatUUID(v[:])

	case net.HardwareAddr:
		return strings.ToLower(v.String()), nil

	case netip.Prefix:
		return v.String(), nil

	case netip.Addr:
		return v.String(), nil
	}

	// Array codecs hand back typed slices, flatten them to []any with
	// canonical elements
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		elements := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			element, err := tm.canonicalize(oid, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			elements[i] = element
		}
		return elements, nil
	}

	return nil, errors.Errorf(
		"no canonical representation for %T (oid %d)", value, oid,
	)
}

func microsToTimeText(
	micros int64,
) string {

	remaining := int64(time.Microsecond) * micros
	hours := remaining / int64(time.Hour)
	remaining = remaining % int64(time.Hour)
	minutes := remaining / int64(time.Minute)
	remaining = remaining % int64(time.Minute)
	seconds := remaining / int64(time.Second)
	remaining = remaining % int64(time.Second)
	return fmt.Sprintf(
		"%02d:%02d:%02d.%06d", hours, minutes, seconds,
		(time.Nanosecond * time.Duration(remaining)).Microseconds(),
	)
}

// numericToText renders a binary numeric without precision loss.
func numericToText(
	v pgtype.Numeric,
) (any, error) {

	if !v.Valid {
		return nil, nil
	}
	if v.NaN {
		return "NaN", nil
	}
	if v.InfinityModifier == pgtype.Infinity {
		return "Infinity", nil
	}
	if v.InfinityModifier == pgtype.NegativeInfinity {
		return "-Infinity", nil
	}

	digits := v.Int.String()
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}

	var text string
	switch {
	case v.Exp == 0:
		text = digits
	case v.Exp > 0:
		text = digits + strings.Repeat("0", int(v.Exp))
	default:
		scale := int(-v.Exp)
		if len(digits) <= scale {
			digits = strings.Repeat("0", scale-len(digits)+1) + digits
		}
		split := len(digits) - scale
		text = digits[:split] + "." + digits[split:]
	}

	if negative {
		text = "-" + text
	}
	return text, nil
}
