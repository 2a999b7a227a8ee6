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

	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// postgisConverter returns a structural converter for the postgis
// types announced through Type messages, nil for everything else.
func postgisConverter(
	typeName string,
) Converter {

	switch typeName {
	case "geometry", "geography":
		return geometry2map
	}
	return nil
}

// geometry2map decodes the hex EWKB wire representation of postgis
// values into a GeoJSON-shaped map with the srid attached.
func geometry2map(
	_ uint32, data []byte,
) (any, error) {

	raw, err := hex.DecodeString(string(data))
	if err != nil {
		// Binary format columns carry the EWKB payload directly
		raw = data
	}

	geometry, err := ewkb.Unmarshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	encoded, err := geojson.Marshal(geometry)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	var value map[string]any
	if err := json.Unmarshal(encoded, &value); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	value["srid"] = int64(geometry.SRID())
	return value, nil
}
